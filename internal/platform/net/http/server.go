package http

import (
	"context"
	stdhttp "net/http"
	"time"

	"dupehound/internal/platform/config"
	"dupehound/internal/platform/logger"

	"github.com/go-chi/chi/v5"
)

// Server wraps a chi mux and the stdlib http.Server that serves it
type Server struct {
	addr string
	mux  *chi.Mux
	srv  *stdhttp.Server
}

// NewServer builds the server from config. API_PORT (under the caller's
// env prefix) picks the listen address; opts receive the raw mux so
// bootstrap can install global middleware before any module mounts
func NewServer(cfg config.Conf, opts ...func(*chi.Mux)) *Server {
	addr := cfg.MayString("API_PORT", ":4000")
	m := chi.NewRouter()
	for _, o := range opts {
		o(m)
	}
	return &Server{
		addr: addr,
		mux:  m,
		srv: &stdhttp.Server{
			Addr:              addr,
			Handler:           m,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Router returns the mounting facade modules build their routes on
func (s *Server) Router() Router { return AdaptChi(s.mux) }

// Addr reports the configured listen address
func (s *Server) Addr() string { return s.addr }

// Run blocks serving requests until Shutdown is called. A clean close is
// not an error
func (s *Server) Run(ctx context.Context) error {
	logger.Named("http").Info().Str("addr", s.addr).Msg("http listening")
	if err := s.srv.ListenAndServe(); err != stdhttp.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
