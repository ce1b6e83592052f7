package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWatchSignals_FirstCancelsSecondExits(t *testing.T) {
	parent, stop := context.WithCancel(context.Background())
	defer stop()

	sigCh := make(chan os.Signal, 1)
	exitCh := make(chan int, 1)

	ctx, cancel := watchSignals(parent, quietLogger(), sigCh, func(code int) { exitCh <- code })
	defer cancel()

	sigCh <- syscall.SIGINT

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not canceled after the first signal")
	}

	assert.Empty(t, exitCh, "first signal must not exit")

	sigCh <- syscall.SIGTERM

	select {
	case code := <-exitCh:
		assert.Equal(t, 128+int(syscall.SIGTERM), code)
	case <-time.After(2 * time.Second):
		t.Fatal("second signal did not exit")
	}
}

func TestWatchSignals_ParentCancel(t *testing.T) {
	parent, stop := context.WithCancel(context.Background())

	ctx, cancel := watchSignals(parent, quietLogger(), make(chan os.Signal), func(int) {
		t.Error("exit called without a signal")
	})
	defer cancel()

	stop()

	select {
	case <-ctx.Done():
		require.ErrorIs(t, ctx.Err(), context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("context not canceled with its parent")
	}
}

func TestInterruptContext_RealSignal(t *testing.T) {
	ctx, cancel := interruptContext(context.Background(), quietLogger())
	defer cancel()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not canceled within 2 seconds of SIGINT")
	}
}

type fakeSignal struct{}

func (fakeSignal) String() string { return "fake" }
func (fakeSignal) Signal() {}

func TestSignalExitCode(t *testing.T) {
	assert.Equal(t, 130, signalExitCode(syscall.SIGINT))
	assert.Equal(t, 143, signalExitCode(syscall.SIGTERM))
	assert.Equal(t, 1, signalExitCode(fakeSignal{}))
}
