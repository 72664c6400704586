// File: cmd/marionette/main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/marionette-cli/cmd"
	"github.com/xkilldash9x/marionette-cli/internal/observability"
)

func main() {
	// Interrupts cancel the context; the orchestrator stops between actions
	// rather than mid-keystroke.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := cmd.Execute(ctx)
	observability.Sync()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
