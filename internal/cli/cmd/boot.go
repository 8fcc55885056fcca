package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/bridgesim/bridgesim/internal/board"
	"github.com/bridgesim/bridgesim/internal/cli"
	"github.com/bridgesim/bridgesim/internal/loader"
	"github.com/bridgesim/bridgesim/internal/log"
	"github.com/bridgesim/bridgesim/internal/ramdevice"
	"github.com/bridgesim/bridgesim/internal/stackcpu"
	"github.com/bridgesim/bridgesim/internal/tty"
)

// Boot is the command that assembles a machine from a RAM device, a
// stack-CPU, and (with -console) an interactive console, loads a program
// image, and runs it to completion.
func Boot() cli.Command {
	return &boot{}
}

type boot struct {
	ramSize   uint
	stackSize uint
	program   string
	console   bool
}

func (boot) Description() string {
	return "assemble a machine and run a program image"
}

func (b boot) Usage(out io.Writer) error {
	_, err := fmt.Fprintln(out, `
boot -program <path> [ -ram-size N ] [ -stack-size N ] [ -console ]

Assemble a motherboard with one RAM device and one stack-CPU, load the
program image at <path>, and run until the program shuts the machine down
or an unrecoverable device error occurs.`)

	return err
}

func (b *boot) FlagSet() *cli.FlagSet {
	fs := flag.NewFlagSet("boot", flag.ExitOnError)

	fs.UintVar(&b.ramSize, "ram-size", 0x10000, "RAM device size, in bytes")
	fs.UintVar(&b.stackSize, "stack-size", 256, "stack-CPU internal stack size, in words")
	fs.StringVar(&b.program, "program", "", "path to an Intel-Hex program image")
	fs.BoolVar(&b.console, "console", false, "plug in an interactive console device")

	return fs
}

func (b *boot) Run(ctx context.Context, _ []string, out io.Writer, logger *log.Logger) int {
	if b.program == "" {
		fmt.Fprintln(out, "boot: -program is required")
		return 1
	}

	ram, err := ramdevice.New(ramdevice.Config{MemorySize: uint32(b.ramSize)})
	if err != nil {
		logger.Error("boot: creating RAM device", "err", err)
		return 2
	}

	if err := loader.LoadFileIntoDevice(ram, b.program); err != nil {
		logger.Error("boot: loading program", "err", err)
		return 2
	}

	cpu, err := stackcpu.New(stackcpu.Config{StackSize: uint32(b.stackSize)})
	if err != nil {
		logger.Error("boot: creating stack-CPU", "err", err)
		return 2
	}

	mb, err := board.New(board.Config{MaxDevices: 3})
	if err != nil {
		logger.Error("boot: creating motherboard", "err", err)
		return 2
	}

	cpuID, err := mb.AddDevice(cpu)
	if err != nil {
		logger.Error("boot: adding stack-CPU", "err", err)
		return 2
	}

	if _, err := mb.AddDevice(ram); err != nil {
		logger.Error("boot: adding RAM device", "err", err)
		return 2
	}

	if b.console {
		const keyboardInterruptCode = 1

		console := tty.New(tty.Config{InterruptTarget: cpuID, InterruptCode: keyboardInterruptCode})

		if _, err := mb.AddDevice(console); err != nil {
			logger.Error("boot: adding console", "err", err)
			return 2
		}
	}

	logger.Info("boot: starting machine", "ram-size", b.ramSize, "stack-size", b.stackSize)

	if err := mb.Boot(); err != nil {
		logger.Error("boot: machine halted with error", "err", err)
		return 2
	}

	logger.Info("boot: machine halted cleanly", "errors", cpu.ErrorsRegister())

	return 0
}
