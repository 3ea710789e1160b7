// Command duskvm loads a ROM image, mounts the reference devices, and
// evaluates a vector. Flag/positional-argument handling uses the
// standard flag package: flag.Parse() followed by taking the single
// remaining positional argument as the ROM path, rather than a
// third-party CLI library (none of the retrieved examples reach for one).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"duskvm/devices"
	"duskvm/vm"
)

func main() {
	debugFlag := flag.Bool("debug", false, "step through execution interactively")
	vectorFlag := flag.String("vector", "0x0100", "hex address to evaluate")
	timeoutFlag := flag.Duration("timeout", 0, "abort the vector after this long (0 disables)")
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: duskvm [-debug] [-vector addr] [-timeout dur] <rom>")
		os.Exit(2)
	}

	rom, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, "read rom:", err)
		os.Exit(1)
	}

	var vector uint64
	if _, err := fmt.Sscanf(*vectorFlag, "0x%x", &vector); err != nil {
		if _, err := fmt.Sscanf(*vectorFlag, "%d", &vector); err != nil {
			fmt.Fprintln(os.Stderr, "bad -vector value:", *vectorFlag)
			os.Exit(2)
		}
	}

	cpu := vm.Construct()
	cpu.Debug = *debugFlag
	if *debugFlag {
		cpu.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	console := devices.NewConsole()
	defer console.Close()

	if err := cpu.MountDevice(1, console); err != nil {
		fmt.Fprintln(os.Stderr, "mount console:", err)
		os.Exit(1)
	}
	if err := cpu.MountDevice(2, devices.NewScreen()); err != nil {
		fmt.Fprintln(os.Stderr, "mount screen:", err)
		os.Exit(1)
	}
	if err := cpu.MountDevice(3, devices.NewFile()); err != nil {
		fmt.Fprintln(os.Stderr, "mount file:", err)
		os.Exit(1)
	}

	if err := cpu.LoadROM(rom); err != nil {
		fmt.Fprintln(os.Stderr, "load rom:", err)
		os.Exit(1)
	}

	if *debugFlag {
		if err := cpu.RunVectorDebugMode(uint16(vector)); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := runWithTimeout(cpu, uint16(vector), *timeoutFlag); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runWithTimeout bounds execution time at the EvalVector boundary: it
// runs the whole vector in a goroutine and races it against a context
// deadline, so the core itself knows nothing about wall-clock limits.
// On timeout it returns an error without stopping that goroutine; the
// vector keeps running until the process exits.
func runWithTimeout(cpu *vm.CPU, vector uint16, timeout time.Duration) error {
	if timeout <= 0 {
		return cpu.RunVector(vector)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- cpu.RunVector(vector)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return errors.New("duskvm: vector evaluation timed out")
	}
}
