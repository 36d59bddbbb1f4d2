//go:build !windows

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

// watchCancelSignal calls cancel on every SIGUSR1 until ctx ends.
func watchCancelSignal(ctx context.Context, cancel func(), logger *zap.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGUSR1)
	defer signal.Stop(sigChan)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sigChan:
			logger.Info("received SIGUSR1, cancelling final warning")
			cancel()
		}
	}
}
