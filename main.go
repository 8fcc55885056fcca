// bridgesim is the command-line interface to the simulator: a motherboard
// hosting RAM, a stack-CPU, and devices over a shared memory bus and
// interrupt fabric.
package main

import (
	"context"
	"os"

	"github.com/bridgesim/bridgesim/internal/cli"
	"github.com/bridgesim/bridgesim/internal/cli/cmd"
)

var commands = []cli.Command{
	cmd.Boot(),
}

// Entry point.
func main() {
	result :=
		cli.New(context.Background()).
			WithLogger(os.Stderr).
			WithCommands(commands).
			WithHelp(cmd.Help(commands)).
			Execute(os.Args[1:])

	os.Exit(result)
}
