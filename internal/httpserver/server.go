package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Server wraps the http.Server with timeouts suited to long video uploads.
type Server struct {
	inner *http.Server
}

// New constructs a server listening on the provided port. requestTimeout bounds reading an
// upload and writing its response, which includes waiting for motion extraction.
func New(port int, handler http.Handler, requestTimeout time.Duration) *Server {
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	return &Server{
		inner: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       requestTimeout,
			WriteTimeout:      requestTimeout,
			IdleTimeout:       2 * time.Minute,
		},
	}
}

// Start begins serving HTTP traffic. It returns nil after Shutdown.
func (s *Server) Start() error {
	return ignoreClosed(s.inner.ListenAndServe())
}

// Serve accepts connections on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	return ignoreClosed(s.inner.Serve(l))
}

// Shutdown gracefully terminates the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}

func ignoreClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
