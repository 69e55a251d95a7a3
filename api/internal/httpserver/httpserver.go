package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Server wraps http.Server with address validation and graceful shutdown.
type Server struct {
	server *http.Server
}

// New validates addr and builds a server. The write timeout leaves room for
// a slow provider call.
func New(addr string, handler http.Handler) (*Server, error) {
	if err := validateHost(addr); err != nil {
		return nil, err
	}

	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      90 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}, nil
}

// Start blocks until the server stops. A clean shutdown returns nil.
func (s *Server) Start() error {
	err := s.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

func validateHost(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}
	if port == "" {
		return validation.NewError("validation_invalid_port", "port cant be empty")
	}
	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}
	return nil
}
