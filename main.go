package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"noisevpn/domain/mode"
	"noisevpn/presentation"
	"noisevpn/presentation/bubble_tea"
	"noisevpn/presentation/elevation"
)

const packageName = "noisevpn"

func main() {
	processElevation := elevation.NewProcessElevation()
	if !processElevation.IsElevated() {
		fmt.Printf("warning: %s must be run with admin privileges: %s\n", packageName, processElevation.Hint())
		os.Exit(1)
	}

	appCtx, appCtxCancel := context.WithCancel(context.Background())
	defer appCtxCancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		<-sigChan
		fmt.Println("\ninterrupt received, shutting down...")
		appCtxCancel()
	}()

	appMode := presentation.NewAppMode(os.Args)
	m, err := appMode.Mode()
	if err != nil {
		var invalid mode.InvalidModeProvided
		if errors.As(err, &invalid) {
			fmt.Printf("%v\n", err)
			printUsage()
			os.Exit(1)
		}
		m, err = promptForMode()
		if err != nil {
			fmt.Printf("%v\n", err)
			printUsage()
			os.Exit(1)
		}
	}

	switch m {
	case mode.Server:
		fmt.Println("starting server...")
		presentation.StartServer(appCtx)
	case mode.Client:
		fmt.Println("starting client...")
		presentation.StartClient(appCtx)
	default:
		fmt.Printf("unsupported mode: %v\n", m)
		printUsage()
		os.Exit(1)
	}
}

// promptForMode falls back to an interactive bubbletea selector when no mode
// was given on the command line.
func promptForMode() (mode.Mode, error) {
	selector := bubble_tea.NewSelector("Select mode:", []string{"s Server", "c Client"})
	result, err := tea.NewProgram(selector).Run()
	if err != nil {
		return mode.Unknown, fmt.Errorf("mode selector: %w", err)
	}
	chosen, ok := result.(bubble_tea.Selector)
	if !ok {
		return mode.Unknown, fmt.Errorf("mode selector: unexpected result type %T", result)
	}
	switch chosen.Choice() {
	case "s":
		return mode.Server, nil
	case "c":
		return mode.Client, nil
	default:
		return mode.Unknown, fmt.Errorf("no mode selected")
	}
}

func printUsage() {
	fmt.Printf("Usage: %s <mode>\nModes:\n  s  - Server\n  c  - Client\n", packageName)
}
