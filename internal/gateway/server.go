// Package gateway is the HTTP boundary: the LINE webhook callback plus
// health and metrics endpoints.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/soyeahso/linegpt/internal/domain"
	"github.com/soyeahso/linegpt/internal/line"
	"github.com/soyeahso/linegpt/internal/logging"
	"github.com/soyeahso/linegpt/internal/metrics"
	"github.com/soyeahso/linegpt/internal/routing"
)

// CallbackPath is where the platform delivers webhooks.
const CallbackPath = "/callback"

const shutdownTimeout = 10 * time.Second

// EventHandler processes the verified events of one delivery.
type EventHandler interface {
	HandleEvents(ctx context.Context, events []domain.InboundEvent) []routing.Outcome
}

// Options configure the listener.
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration // must cover the synchronous agent call
}

// Server is the webhook HTTP server.
type Server struct {
	opts     Options
	verifier *line.Verifier
	handler  EventHandler
	metrics  *metrics.Metrics
	log      *logging.Logger

	httpServer *http.Server
	ready      chan struct{}
}

// New creates a webhook server. m may be nil, in which case /metrics is not
// served.
func New(opts Options, verifier *line.Verifier, handler EventHandler, m *metrics.Metrics, log *logging.Logger) *Server {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 15 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Minute
	}
	return &Server{
		opts:     opts,
		verifier: verifier,
		handler:  handler,
		metrics:  m,
		log:      log.Sub("gateway"),
		ready:    make(chan struct{}),
	}
}

// Handler returns the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	if s.metrics != nil {
		r.Use(metricsMiddleware(s.metrics))
	}
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.log))
	r.Use(chimw.Recoverer)

	r.Post(CallbackPath, s.handleCallback)
	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}
	r.NotFound(handleNotFound)
	return r
}

// Start begins listening for webhook deliveries.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}
	s.httpServer.Addr = ln.Addr().String()
	close(s.ready)

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("callback", CallbackPath).
		Dur("writeTimeout", s.opts.WriteTimeout).
		Msg("webhook server ready")

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down webhook server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Warn().Err(err).Msg("graceful shutdown failed")
		}
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr returns the bound listen address, or empty string if not started.
func (s *Server) Addr() string {
	select {
	case <-s.ready:
		return s.httpServer.Addr
	default:
		return ""
	}
}
