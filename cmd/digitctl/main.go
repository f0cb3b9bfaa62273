// Package main (in digitctl-subfolder) provides the command line tool for offline predictions
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/UnendingLoop/DigitRecognizer/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx, os.Args[1:], os.Stdout); err != nil {
		stop()
		os.Exit(1)
	}
}
