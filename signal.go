package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// interruptContext returns a context canceled by the first SIGINT or SIGTERM.
// Downloads in flight then stop and delete their partial files, and uploads
// stop sending. A second signal exits immediately.
func interruptContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := watchSignals(parent, logger, sigCh, os.Exit)

	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

// watchSignals cancels the returned context on the first value from sigCh
// and calls exit with 128+signal on the second.
func watchSignals(
	parent context.Context, logger *slog.Logger, sigCh <-chan os.Signal, exit func(int),
) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		select {
		case sig := <-sigCh:
			logger.Warn("interrupted, stopping transfers (repeat to exit now)",
				slog.String("signal", sig.String()),
			)
			cancel()
		case <-ctx.Done():
			return
		}

		select {
		case sig := <-sigCh:
			logger.Warn("interrupted again, exiting", slog.String("signal", sig.String()))
			exit(signalExitCode(sig))
		case <-parent.Done():
		}
	}()

	return ctx, cancel
}

func signalExitCode(sig os.Signal) int {
	if s, ok := sig.(syscall.Signal); ok {
		return 128 + int(s)
	}

	return 1
}
