package util

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// InterruptContext returns a context cancelled on the first SIGINT/SIGTERM.
// Work in progress is left on disk; a second signal exits immediately. The
// returned stop func releases the signal handler.
func InterruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	return interruptContext(parent, func() {
		fmt.Println("\nExiting due to interrupt.")
		os.Exit(1)
	})
}

func interruptContext(parent context.Context, exit func()) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sig := make(chan os.Signal, 2)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	stopped := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)

		select {
		case <-sig:
		case <-ctx.Done():
			return
		case <-stopped:
			return
		}

		fmt.Println("\nInterrupt received. Finishing in-flight requests...")
		cancel()

		select {
		case <-sig:
			exit()
		case <-stopped:
		}
	}()

	var once sync.Once
	return ctx, func() {
		once.Do(func() {
			signal.Stop(sig)
			close(stopped)
			cancel()
			<-finished
		})
	}
}

func RemoveIfEmpty(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	if len(entries) == 0 {
		if err := os.Remove(dir); err == nil {
			fmt.Printf("Removed empty output folder: %s\n", dir)
		}
	}
}
