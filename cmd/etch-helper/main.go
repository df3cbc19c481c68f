// etch-helper is the privileged worker that writes an image file onto a
// block device and verifies the result. It is spawned by the etch CLI
// through pkexec and speaks a line protocol on stdout; it never prompts and
// never reads stdin.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"etch/internal/logging"
	"etch/internal/progress"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := logging.New(logging.Options{Output: os.Stderr})
	if err != nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if err := runHelper(ctx, os.Args[1:], os.Stdout, logger); err != nil {
		// The parent watches stdout; stderr is only for humans reading logs.
		_ = progress.NewEmitter(os.Stdout).Failure(err.Error())
		logger.Error("imaging failed", logging.Error(err))
		os.Exit(1)
	}
}
