// Package server exposes QR decoding, PDF scanning and the search engine
// registry over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/qrlens/internal/engines"
	"github.com/MeKo-Tech/qrlens/internal/pdf"
	"github.com/MeKo-Tech/qrlens/internal/pipeline"
)

// decodeService is what the server needs from a pipeline.
type decodeService interface {
	ProcessImage(ctx context.Context, img image.Image) (*pipeline.ImageResult, error)
	ProcessPages(ctx context.Context, pages []pdf.Page) (*pipeline.PDFResult, error)
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline        decodeService
	engines         *engines.Store
	rateLimiter     *RateLimiter
	addr            string
	corsOrigin      string
	maxUploadMB     int64
	timeout         time.Duration
	shutdownTimeout time.Duration
	version         string
}

// Config holds server configuration.
type Config struct {
	Host               string
	Port               int
	CORSOrigin         string
	MaxUploadMB        int64
	TimeoutSec         int
	ShutdownTimeoutSec int
	Version            string
	RateLimit          RateLimitConfig
}

// RateLimitConfig enables per-client limits. Zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64
}

// NewServer creates a server decoding with p and serving the registry in
// store.
func NewServer(config Config, p *pipeline.Pipeline, store *engines.Store) (*Server, error) {
	if p == nil {
		return nil, errors.New("server: nil pipeline")
	}
	if store == nil {
		return nil, errors.New("server: nil engine store")
	}
	if config.MaxUploadMB <= 0 {
		config.MaxUploadMB = 50
	}
	if config.TimeoutSec <= 0 {
		config.TimeoutSec = 30
	}
	if config.ShutdownTimeoutSec <= 0 {
		config.ShutdownTimeoutSec = 10
	}

	s := &Server{
		pipeline:        p,
		engines:         store,
		addr:            net.JoinHostPort(config.Host, strconv.Itoa(config.Port)),
		corsOrigin:      config.CORSOrigin,
		maxUploadMB:     config.MaxUploadMB,
		timeout:         time.Duration(config.TimeoutSec) * time.Second,
		shutdownTimeout: time.Duration(config.ShutdownTimeoutSec) * time.Second,
		version:         config.Version,
	}
	if rl := config.RateLimit; rl.Enabled {
		s.rateLimiter = NewRateLimiter(rl.RequestsPerMinute, rl.RequestsPerHour, rl.MaxRequestsPerDay, rl.MaxDataPerDay)
	}
	return s, nil
}

// Addr returns the listen address.
func (s *Server) Addr() string { return s.addr }

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Methods(http.MethodOptions).PathPrefix("/").HandlerFunc(s.corsMiddleware(func(http.ResponseWriter, *http.Request) {}))

	r.HandleFunc("/health", s.corsMiddleware(s.healthHandler)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/decode", s.corsMiddleware(s.rateLimitMiddleware(s.decodeHandler))).Methods(http.MethodPost)
	r.HandleFunc("/decode/pdf", s.corsMiddleware(s.rateLimitMiddleware(s.decodePDFHandler))).Methods(http.MethodPost)
	r.HandleFunc("/ws/decode", s.corsMiddleware(s.rateLimitMiddleware(s.decodeWebSocketHandler))).Methods(http.MethodGet)

	r.HandleFunc("/engines", s.corsMiddleware(s.listEnginesHandler)).Methods(http.MethodGet)
	r.HandleFunc("/engines", s.corsMiddleware(s.addEngineHandler)).Methods(http.MethodPost)
	r.HandleFunc("/engines/reset", s.corsMiddleware(s.resetEnginesHandler)).Methods(http.MethodPost)
	r.HandleFunc("/engines/templates", s.corsMiddleware(s.listTemplatesHandler)).Methods(http.MethodGet)
	r.HandleFunc("/engines/templates/{name}", s.corsMiddleware(s.addTemplateHandler)).Methods(http.MethodPost)
	r.HandleFunc("/engines/{id}", s.corsMiddleware(s.getEngineHandler)).Methods(http.MethodGet)
	r.HandleFunc("/engines/{id}", s.corsMiddleware(s.editEngineHandler)).Methods(http.MethodPut)
	r.HandleFunc("/engines/{id}", s.corsMiddleware(s.deleteEngineHandler)).Methods(http.MethodDelete)
	r.HandleFunc("/engines/{id}/toggle", s.corsMiddleware(s.toggleEngineHandler)).Methods(http.MethodPost)

	r.HandleFunc("/search", s.corsMiddleware(s.searchHandler)).Methods(http.MethodGet)
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		// Uploads and decoding share the request timeout.
		ReadTimeout: s.timeout,
		IdleTimeout: 2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down HTTP server", "timeout", s.shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
