// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server exposes the budget assistant over HTTP.
//
// Routes:
//
//	POST /api/chat        run one turn, answered as a server-sent event stream
//	POST /api/chat/reset  forget a conversation
//	GET  /health          liveness
//	GET  /metrics         Prometheus exposition (when metrics are enabled)
//	GET  /debug/spans     recent spans (when the debug exporter is enabled)
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kadirpekel/tally/pkg/agent"
	"github.com/kadirpekel/tally/pkg/model"
	"github.com/kadirpekel/tally/pkg/observability"
	"github.com/kadirpekel/tally/pkg/session"
)

const (
	DefaultAddress         = "127.0.0.1:3000"
	DefaultShutdownTimeout = 10 * time.Second

	maxRequestBody = 1 << 20
)

// Runner runs one turn of a conversation. *agent.Agent implements it.
type Runner interface {
	Run(ctx context.Context, history model.History, userInput string, opts ...agent.RunOption) (*agent.Result, error)
}

var _ Runner = (*agent.Agent)(nil)

// Config configures the HTTP server.
type Config struct {
	Address         string
	ShutdownTimeout time.Duration

	// CORSOrigins lists allowed browser origins; "*" allows any.
	CORSOrigins []string

	// SessionBackend labels session metrics.
	SessionBackend string
}

// Server serves chat turns over HTTP.
type Server struct {
	cfg      Config
	runner   atomic.Pointer[runnerHolder]
	sessions session.Store
	obs      *observability.Manager
	handler  http.Handler
}

type runnerHolder struct {
	Runner
}

type Option func(*Server)

// WithObservability wires tracing, metrics and the debug span endpoint.
func WithObservability(m *observability.Manager) Option {
	return func(s *Server) {
		if m != nil {
			s.obs = m
		}
	}
}

// New creates a server. runner and sessions are required.
func New(cfg Config, runner Runner, sessions session.Store, opts ...Option) (*Server, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if cfg.Address == "" {
		cfg.Address = DefaultAddress
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}

	s := &Server{
		cfg:      cfg,
		sessions: sessions,
		obs:      observability.NoopManager(),
	}
	s.runner.Store(&runnerHolder{runner})
	for _, opt := range opts {
		opt(s)
	}
	s.handler = s.routes()
	return s, nil
}

// SetRunner swaps the runner used by subsequent turns. Turns already in
// flight finish on the runner they started with.
func (s *Server) SetRunner(r Runner) {
	if r == nil {
		return
	}
	s.runner.Store(&runnerHolder{r})
	slog.Info("Chat runner replaced")
}

func (s *Server) currentRunner() Runner {
	return s.runner.Load().Runner
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(observability.HTTPMiddleware(s.obs.Tracer(), s.obs.Recorder(), routePattern))
	r.Use(requestLogger)
	if len(s.cfg.CORSOrigins) > 0 {
		r.Use(corsMiddleware(s.cfg.CORSOrigins))
	}

	r.Route("/api/chat", func(r chi.Router) {
		r.Post("/", s.handleChat)
		r.Post("/reset", s.handleReset)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if metrics := s.obs.Metrics(); metrics != nil {
		r.Handle(s.obs.MetricsPath(), metrics.Handler())
		slog.Info("Prometheus metrics enabled", "path", s.obs.MetricsPath())
	}

	if debug := s.obs.Tracer().DebugExporter(); debug != nil {
		r.Get("/debug/spans", debug.Handler().ServeHTTP)
		slog.Info("Debug span capture enabled", "path", "/debug/spans")
	}

	return r
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully within the configured timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "address", ln.Addr().String())
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	slog.Info("Shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

// ListenAndServe listens on the configured address and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Address, err)
	}
	return s.Serve(ctx, ln)
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return strings.TrimSuffix(pattern, "/")
		}
	}
	return "unmatched"
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	allowAll := false
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowAll || allowed[origin]) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
