// Package loader writes program images into a booted machine's global
// memory, and parses them from Intel-Hex-encoded program files.
package loader

import (
	"fmt"
	"os"

	"github.com/bridgesim/bridgesim/internal/board"
	"github.com/bridgesim/bridgesim/internal/encoding"
)

// LoadIntoDevice writes every image directly into a device's own local
// address space, bypassing the motherboard's memory map entirely. This is
// how a program is placed before the first Boot: the map isn't finalized
// yet, so there is no global address to resolve. Each image's Base is used
// as a local address within dev (see the boot command in internal/cli/cmd).
func LoadIntoDevice(dev board.MemoryMapped, images []encoding.Image) error {
	for _, img := range images {
		if err := dev.WriteBytes(uint32(img.Base), img.Bytes); err != nil {
			return fmt.Errorf("loader: write image at local %#x: %w", img.Base, err)
		}
	}

	return nil
}

// Load writes every image in images into global memory through host, in
// order. It is the direct analogue of original_source's loader: copy bytes
// to an address, nothing more. Unlike LoadIntoDevice, this requires the
// motherboard's memory map to already be finalized, so it is only useful
// after a first Boot/Halt cycle, to stage a new program before Reboot.
func Load(host board.HostCallbacks, images []encoding.Image) error {
	for _, img := range images {
		if err := host.WriteBytes(img.Base, img.Bytes); err != nil {
			return fmt.Errorf("loader: write image at %#x: %w", img.Base, err)
		}
	}

	return nil
}

// LoadFile reads path as Intel-Hex text and writes its images into global
// memory through host.
func LoadFile(host board.HostCallbacks, path string) error {
	images, err := readImages(path)
	if err != nil {
		return err
	}

	return Load(host, images)
}

// LoadFileIntoDevice reads path as Intel-Hex text and writes its images
// directly into a device's local address space.
func LoadFileIntoDevice(dev board.MemoryMapped, path string) error {
	images, err := readImages(path)
	if err != nil {
		return err
	}

	return LoadIntoDevice(dev, images)
}

func readImages(path string) ([]encoding.Image, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loader: read %s: %w", path, err)
	}

	var enc encoding.HexEncoding
	if err := enc.UnmarshalText(text); err != nil {
		return nil, fmt.Errorf("loader: decode %s: %w", path, err)
	}

	return enc.Images(), nil
}
