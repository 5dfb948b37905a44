// Package httpserver owns the listener lifecycle of the API process.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Timeouts bound each phase of a connection. Write is generous because the
// CSV exports stream whole tables.
type Timeouts struct {
	ReadHeader time.Duration
	Read       time.Duration
	Write      time.Duration
	Idle       time.Duration
	Shutdown   time.Duration
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		ReadHeader: 5 * time.Second,
		Read:       15 * time.Second,
		Write:      60 * time.Second,
		Idle:       60 * time.Second,
		Shutdown:   15 * time.Second,
	}
}

// Server pairs an http.Server with its shutdown budget.
type Server struct {
	srv      *http.Server
	shutdown time.Duration
}

func New(addr string, handler http.Handler, t Timeouts) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: t.ReadHeader,
			ReadTimeout:       t.Read,
			WriteTimeout:      t.Write,
			IdleTimeout:       t.Idle,
		},
		shutdown: t.Shutdown,
	}
}

// Serve listens until ctx is cancelled, then drains in-flight requests for
// at most the shutdown budget. A listener failure is returned immediately.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
