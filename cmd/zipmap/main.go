package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/ryanm101/zipmap/internal/session"
)

// exitInterrupted is the shell convention for a process ended by SIGINT.
const exitInterrupted = 130

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		_, _ = fmt.Fprintln(os.Stderr)
		os.Exit(exitInterrupted)
	case errors.Is(err, session.ErrBatchFailed):
		// The batch report has already listed every failure.
		os.Exit(1)
	default:
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
