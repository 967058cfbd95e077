package httputil

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// RunServerUntilSignal starts srv and runs until SIGINT / SIGTERM.
// Shutdown waits at most shutdownTimeout for active requests
func RunServerUntilSignal(srv *http.Server, shutdownTimeout time.Duration) error {
	chServerErr := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		// mute error caused by Shutdown()
		if err == http.ErrServerClosed {
			err = nil
		}
		chServerErr <- err
	}()

	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt /* SIGINT */, syscall.SIGTERM)
	defer signal.Stop(c)

	select {
	case err := <-chServerErr:
		return err
	case <-c:
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
