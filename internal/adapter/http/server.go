package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/couchcryptid/rainfall-insights/internal/dataset"
	"github.com/couchcryptid/rainfall-insights/internal/domain"
	"github.com/couchcryptid/rainfall-insights/internal/observability"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker = sharedobs.ReadinessChecker

// alwaysReady is used when no readiness checker is configured.
type alwaysReady struct{}

func (alwaysReady) CheckReadiness(context.Context) error { return nil }

// Forecaster projects the rainfall series to a target year.
type Forecaster interface {
	Forecast(ctx context.Context, series domain.RainfallSeries, targetYear int) (domain.ForecastResult, error)
}

// Explainer explains corpus terms using the chat model.
type Explainer interface {
	Explain(ctx context.Context, term string) (domain.ExplanationResult, error)
	Terms() []string
}

// Publisher emits activity events. Failures never fail the request.
type Publisher interface {
	Publish(ctx context.Context, event domain.ActivityEvent) error
}

// NopPublisher discards events. It is used when event publishing is disabled.
type NopPublisher struct{}

// Publish does nothing.
func (NopPublisher) Publish(context.Context, domain.ActivityEvent) error { return nil }

// Services are the components the API routes delegate to.
type Services struct {
	Summary    dataset.Summary
	Series     domain.RainfallSeries
	Forecaster Forecaster
	Explainer  Explainer
	Ready      ReadinessChecker
	Publisher  Publisher
}

// Server exposes health, readiness, metrics, and the v1 rainfall API.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	svc        Services
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the health routes and the /v1 API.
// Write timeouts are sized for a forecast fit; the engine enforces its own deadline.
func NewServer(addr string, svc Services, metrics *observability.Metrics, logger *slog.Logger) *Server {
	if svc.Publisher == nil {
		svc.Publisher = NopPublisher{}
	}
	if svc.Ready == nil {
		svc.Ready = alwaysReady{}
	}

	mux := http.NewServeMux()
	s := &Server{
		svc:     svc,
		metrics: metrics,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(svc.Ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/dataset", s.handleDataset)
	mux.HandleFunc("POST /v1/forecasts", s.handleForecast)
	mux.HandleFunc("GET /v1/terms", s.handleTerms)
	mux.HandleFunc("POST /v1/explanations", s.handleExplanation)

	// Request ID runs outermost so the access log and spans share it.
	inner := accessLog(logger, gzhttp.GzipHandler(mux))
	handler := otelhttp.NewHandler(inner, "rainfall-api",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/healthz" && r.URL.Path != "/readyz"
		}),
	)
	s.handler = requestID(handler)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the full middleware chain, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
