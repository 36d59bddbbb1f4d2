//go:build windows

package main

import (
	"context"

	"go.uber.org/zap"
)

// watchCancelSignal is a no-op on Windows; use the probe command instead.
func watchCancelSignal(ctx context.Context, _ func(), _ *zap.Logger) {
	<-ctx.Done()
}
