// Package server exposes the hh.ru OAuth callback, a health check and
// Prometheus metrics over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hrvibe/hrvibe-core/internal/recruiting"
)

const (
	DefaultAddr     = ":8080"
	shutdownTimeout = 10 * time.Second
	callbackTimeout = 30 * time.Second
)

// Authorizer completes the hh.ru OAuth flow.
type Authorizer interface {
	CompleteAuthorization(ctx context.Context, state, code string) (int64, error)
}

// AuthorizedHook is told which manager has just logged in.
type AuthorizedHook func(ctx context.Context, managerID int64) error

type Server struct {
	addr       string
	auth       Authorizer
	authorized AuthorizedHook
	gatherer   prometheus.Gatherer
	logger     *zap.Logger
	httpServer *http.Server
}

func New(addr string, auth Authorizer, hook AuthorizedHook, gatherer prometheus.Gatherer, log *zap.Logger) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if log == nil {
		log = zap.NewNop()
	}

	s := &Server{
		addr:       addr,
		auth:       auth,
		authorized: hook,
		gatherer:   gatherer,
		logger:     log.With(zap.String("component", "http")),
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	r.Get("/oauth/callback", s.oauthCallback)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	return r
}

// Run serves until ctx is done, then shuts the server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server started", zap.String("addr", s.addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	s.logger.Info("http server stopped")
	return nil
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) oauthCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		http.Error(w, "code and state are required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), callbackTimeout)
	defer cancel()

	managerID, err := s.auth.CompleteAuthorization(ctx, state, code)
	switch {
	case errors.Is(err, recruiting.ErrUnknownState):
		s.logger.Warn("oauth callback with unknown state")
		http.Error(w, "authorization request not found", http.StatusNotFound)
		return
	case err != nil:
		s.logger.Error("completing authorization", zap.Error(err))
		http.Error(w, "authorization failed", http.StatusInternalServerError)
		return
	}

	if s.authorized != nil {
		if err := s.authorized(ctx, managerID); err != nil {
			s.logger.Error("notifying manager about authorization", zap.Int64("manager_id", managerID), zap.Error(err))
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(authorizedPage))
}

const authorizedPage = `<!doctype html>
<html><head><meta charset="utf-8"><title>hh.ru</title></head>
<body><p>Авторизация прошла успешно. Вернитесь в Telegram.</p></body></html>`
