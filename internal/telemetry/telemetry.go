// Package telemetry writes proxy and scrape attempt logs in the background.
//
// Writes are detached from the request that produced them. A failed write is
// logged and counted, and is never reported back to the caller.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/user/scraper-service/internal/domain"
	"github.com/user/scraper-service/internal/monitoring"
)

// Sink persists telemetry rows.
type Sink interface {
	InsertProxyLog(ctx context.Context, entry domain.ProxyLogEntry) error
	InsertScraperLog(ctx context.Context, entry domain.ScraperLogEntry) error
}

// ErrorCounter tracks rolling per-proxy failure counts.
type ErrorCounter interface {
	IncrementProxyErrors(ctx context.Context, host string, port int) (int64, error)
}

const (
	streamProxy   = "proxy_log"
	streamScraper = "scraper_log"
	streamCounter = "proxy_error_count"
)

// Logger fans telemetry out to background goroutines.
type Logger struct {
	sink    Sink
	counter ErrorCounter
	metrics *monitoring.Metrics
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time

	wg sync.WaitGroup
}

// NewLogger creates a Logger. counter and metrics may be nil.
func NewLogger(sink Sink, counter ErrorCounter, metrics *monitoring.Metrics, timeout time.Duration, logger *zap.Logger) *Logger {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Logger{
		sink:    sink,
		counter: counter,
		metrics: metrics,
		logger:  logger.Named("telemetry"),
		timeout: timeout,
		now:     time.Now,
	}
}

// LogProxyAttempt records one network attempt through a proxy. It returns
// immediately.
func (l *Logger) LogProxyAttempt(entry domain.ProxyLogEntry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = l.now()
	}
	if l.metrics != nil {
		l.metrics.IncProxyRequest(string(entry.Status))
	}

	l.spawn(streamProxy, func(ctx context.Context) error {
		return l.sink.InsertProxyLog(ctx, entry)
	}, zap.String("proxy", entry.ProxyHost), zap.String("url", entry.URL))

	if l.counter != nil && entry.Status != domain.ProxySuccess {
		l.spawn(streamCounter, func(ctx context.Context) error {
			_, err := l.counter.IncrementProxyErrors(ctx, entry.ProxyHost, entry.ProxyPort)
			return err
		}, zap.String("proxy", entry.ProxyHost))
	}
}

// LogScrapeAttempt records one top-level fetch invocation. It returns
// immediately.
func (l *Logger) LogScrapeAttempt(entry domain.ScraperLogEntry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = l.now()
	}
	l.spawn(streamScraper, func(ctx context.Context) error {
		return l.sink.InsertScraperLog(ctx, entry)
	}, zap.String("source", string(entry.Source)), zap.String("url", entry.URL))
}

// Wait blocks until every pending write has finished. Used on shutdown.
func (l *Logger) Wait() {
	l.wg.Wait()
}

func (l *Logger) spawn(stream string, write func(ctx context.Context) error, fields ...zap.Field) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				l.logger.Error("telemetry write panicked", append(fields, zap.String("stream", stream), zap.Any("panic", r))...)
				l.failed(stream)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
		defer cancel()

		if err := write(ctx); err != nil {
			l.logger.Warn("telemetry write failed", append(fields, zap.String("stream", stream), zap.Error(err))...)
			l.failed(stream)
		}
	}()
}

func (l *Logger) failed(stream string) {
	if l.metrics != nil {
		l.metrics.IncTelemetryError(stream)
	}
}
