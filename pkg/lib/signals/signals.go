package signals

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// Canceler is interrupted by the first shutdown signal.
type Canceler interface {
	SetCancel(flag bool)
}

// Context returns a Context that is done on SIGTERM or SIGINT. The
// first signal asks each of cs to cancel before ctx is done. If a
// second signal is caught, the program is terminated with exit code 1.
// The returned func releases the handler.
func Context(parent context.Context, cs ...Canceler) (context.Context, func()) {
	c := make(chan os.Signal, 2)
	signal.Notify(c, shutdownSignals...)
	ctx, release := handle(parent, c, func() { os.Exit(1) }, cs...)
	return ctx, func() {
		signal.Stop(c)
		release()
	}
}

func handle(parent context.Context, c <-chan os.Signal, exit func(), cs ...Canceler) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	released := make(chan struct{})
	var once sync.Once
	go func() {
		select {
		case <-c:
		case <-ctx.Done():
			return
		case <-released:
			return
		}
		for _, canceler := range cs {
			canceler.SetCancel(true)
		}
		cancel()

		select {
		case <-parent.Done():
		case <-released:
		case <-c:
			exit() // second signal. Exit directly.
		}
	}()
	return ctx, func() {
		once.Do(func() { close(released) })
		cancel()
	}
}
