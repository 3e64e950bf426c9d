// Package server exposes the webhook endpoints that drive gate runs.
//
// One HTTP server receives deliveries from GitHub and GitLab, verifies
// them, and dispatches each to the check lifecycle on its own goroutine
// so a slow gate run never blocks webhook delivery.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gatewright/gatewright/internal/checks"
	gaterrors "github.com/gatewright/gatewright/internal/errors"
	"github.com/gatewright/gatewright/internal/events"
	"github.com/gatewright/gatewright/internal/hosting"
	"github.com/gatewright/gatewright/internal/onboard"
)

// DefaultDispatchTimeout bounds a single webhook-triggered gate run.
const DefaultDispatchTimeout = 5 * time.Minute

// Config holds server configuration.
type Config struct {
	Addr string

	// GitHubWebhookSecret verifies X-Hub-Signature-256 on GitHub deliveries.
	GitHubWebhookSecret string

	// GitLabWebhookToken is compared against X-Gitlab-Token.
	GitLabWebhookToken string

	// Hosting is the base provider configuration; the provider field is
	// overridden per webhook endpoint.
	Hosting hosting.Config

	// DispatchTimeout bounds each dispatched run (default 5m).
	DispatchTimeout time.Duration

	Logger *slog.Logger
}

// Server receives forge webhooks and drives the check lifecycle.
type Server struct {
	log       *slog.Logger
	lifecycle *checks.Lifecycle
	seeder    *onboard.Seeder
	publisher events.Publisher
	cfg       Config
	router    chi.Router
	metrics   *metrics

	// newProvider builds a forge client for a delivery. Swappable in tests.
	newProvider func(fullName string, cfg hosting.Config) (hosting.Provider, error)

	// inflight tracks dispatched deliveries so Shutdown can drain them.
	inflight sync.WaitGroup

	httpSrv *http.Server
}

// New creates a webhook server wired to the given lifecycle.
func New(lifecycle *checks.Lifecycle, seeder *onboard.Seeder, publisher events.Publisher, cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = DefaultDispatchTimeout
	}

	s := &Server{
		log:         log,
		lifecycle:   lifecycle,
		seeder:      seeder,
		publisher:   publisher,
		cfg:         cfg,
		metrics:     newMetrics(),
		newProvider: hosting.NewProvider,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Post("/webhook/github", s.handleGitHubWebhook)
	r.Post("/webhook/gitlab", s.handleGitLabWebhook)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))
	r.Get("/events", s.handleEventStream)
	return r
}

// Handler returns the HTTP handler, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", "addr", s.cfg.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown stops accepting deliveries and drains in-flight runs.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var err error
	if s.httpSrv != nil {
		err = s.httpSrv.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("shutdown deadline reached with runs still in flight")
	}
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// dispatch runs fn against a fresh forge client on its own goroutine.
// Stale-event drops are expected churn and logged at debug only.
func (s *Server) dispatch(providerType, fullName string, fn func(ctx context.Context, forge hosting.Provider) error) {
	cfg := s.cfg.Hosting
	cfg.Provider = providerType

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.DispatchTimeout)
		defer cancel()

		forge, err := s.newProvider(fullName, cfg)
		if err != nil {
			s.metrics.dispatchErrors.WithLabelValues(providerType).Inc()
			s.log.Error("provider construction failed", "repo", fullName, "error", err)
			return
		}

		if err := fn(ctx, forge); err != nil {
			if gaterrors.HasCode(err, gaterrors.CodeStaleEvent) {
				s.log.Debug("stale event dropped", "repo", fullName)
				return
			}
			s.metrics.dispatchErrors.WithLabelValues(providerType).Inc()
			s.log.Error("delivery handling failed", "repo", fullName, "error", err)
			return
		}
		s.metrics.dispatchesHandled.WithLabelValues(providerType).Inc()
	}()
}
