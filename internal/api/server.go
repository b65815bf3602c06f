package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/user/scraper-service/internal/domain"
	"github.com/user/scraper-service/internal/monitoring"
	"github.com/user/scraper-service/internal/retry"
)

// Runner executes a retried scrape.
type Runner interface {
	Run(ctx context.Context, req domain.ScrapeRequest) retry.Outcome
}

// Pinger is a dependency the health check pings.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ProxyReporter lists proxy health for operators.
type ProxyReporter interface {
	Report(ctx context.Context) ([]domain.ProxyHealth, error)
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	port       string
	router     http.Handler
	httpServer *http.Server
	runner     Runner
	checks     map[string]Pinger
	proxies    ProxyReporter
	metrics    *monitoring.Metrics
	gatherer   prometheus.Gatherer
	logger     *zap.Logger
}

// NewServer builds the HTTP server. proxies may be nil, in which case the
// proxy report route is not mounted.
func NewServer(port string, runner Runner, checks map[string]Pinger, proxies ProxyReporter, m *monitoring.Metrics, g prometheus.Gatherer, l *zap.Logger) *Server {
	s := &Server{
		port:     port,
		runner:   runner,
		checks:   checks,
		proxies:  proxies,
		metrics:  m,
		gatherer: g,
		logger:   l.Named("api"),
	}
	s.router = s.setupRouter()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%s", s.port),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: requestTimeout + 10*time.Second,
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
