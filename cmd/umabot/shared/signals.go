package shared

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/charmbracelet/log"
)

// SetupSignalHandler returns a context cancelled on the first interrupt. A
// second interrupt exits immediately. The returned stop releases the handler.
func SetupSignalHandler(logger *log.Logger) (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	released := make(chan struct{})

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Received signal, finishing the current action", "signal", sig.String())
			cancel()
		case <-released:
			return
		}
		select {
		case <-sigChan:
			logger.Warn("Second signal, exiting now")
			os.Exit(130)
		case <-released:
		}
	}()

	var once sync.Once
	return ctx, func() {
		once.Do(func() {
			close(released)
			cancel()
		})
	}
}
