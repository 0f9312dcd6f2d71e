// Package httputil holds small helpers shared by the process's HTTP
// servers (currently the metrics endpoint).
package httputil

import (
	"context"
	"errors"
	"net/http"
)

// ListenAndServeContext runs server until ctx is cancelled, then shuts it
// down gracefully. A clean shutdown is not reported as an error.
func ListenAndServeContext(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		return server.Shutdown(context.Background())
	}
}
