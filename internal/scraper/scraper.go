// Package scraper is the fetch engine: it validates a scrape request, routes
// it through a proxy with the source's fetch strategy, validates and extracts
// the content, and records telemetry for every invocation.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/user/scraper-service/internal/classifier"
	"github.com/user/scraper-service/internal/domain"
	"github.com/user/scraper-service/internal/extractor"
	"github.com/user/scraper-service/internal/monitoring"
	"github.com/user/scraper-service/internal/provider"
	"github.com/user/scraper-service/internal/source"
	"github.com/user/scraper-service/internal/validator"
)

// Page is the raw material a retrieval strategy hands back.
type Page struct {
	HTML string
	// Title and Description are set by strategies that can read them from a
	// live DOM. They take precedence over values parsed from HTML.
	Title       string
	Description string
}

// Retriever fetches a page, optionally through a proxy.
type Retriever interface {
	Retrieve(ctx context.Context, rawURL string, p *domain.ProxyEndpoint, userAgent string) (Page, error)
}

// ProxyPool hands out proxies and user agents.
type ProxyPool interface {
	NextProxy(ctx context.Context) *domain.ProxyEndpoint
	GetUserAgent() string
}

// Recorder receives telemetry. Calls must not block.
type Recorder interface {
	LogProxyAttempt(entry domain.ProxyLogEntry)
	LogScrapeAttempt(entry domain.ScraperLogEntry)
}

// Searcher queries the third-party data provider.
type Searcher interface {
	Search(ctx context.Context, platform, query string) ([]provider.Item, error)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status code %d", e.Code)
}

func (e *StatusError) StatusCode() int { return e.Code }

// Options wires the strategies into a Scraper. Nil strategies are reported as
// failures for the sources that need them.
type Options struct {
	HTTP     Retriever
	Browser  Retriever
	Provider Searcher
	Metrics  *monitoring.Metrics
}

// Scraper is the fetch engine.
type Scraper struct {
	pool       ProxyPool
	recorder   Recorder
	retrievers map[source.Strategy]Retriever
	provider   Searcher
	metrics    *monitoring.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

func New(pool ProxyPool, recorder Recorder, opts Options, logger *zap.Logger) *Scraper {
	retrievers := make(map[source.Strategy]Retriever, 2)
	if opts.HTTP != nil {
		retrievers[source.StrategyHTTP] = opts.HTTP
	}
	if opts.Browser != nil {
		retrievers[source.StrategyBrowser] = opts.Browser
	}
	return &Scraper{
		pool:       pool,
		recorder:   recorder,
		retrievers: retrievers,
		provider:   opts.Provider,
		metrics:    opts.Metrics,
		logger:     logger.Named("scraper"),
		now:        time.Now,
	}
}

// Fetch runs one scrape attempt. It never returns an error: every failure is
// carried in the result as a classified kind. Exactly one scrape log is
// recorded per call.
func (s *Scraper) Fetch(ctx context.Context, req domain.ScrapeRequest) domain.ScrapeResult {
	start := s.now()
	res := s.fetch(ctx, req)
	elapsed := s.now().Sub(start)

	entry := domain.ScraperLogEntry{
		Source:     req.Source,
		URL:        req.URL,
		DurationMS: elapsed.Milliseconds(),
		Status:     domain.ScrapeSuccess,
		CreatedAt:  start,
	}
	if !res.Succeeded() {
		entry.Status = domain.ScrapeFail
		entry.Error = res.ErrorMessage
	}
	s.recorder.LogScrapeAttempt(entry)

	if s.metrics != nil {
		s.metrics.ObserveScrape(string(req.Source), string(entry.Status), string(res.ErrorKind), elapsed)
	}
	if res.Succeeded() {
		s.logger.Info("scrape succeeded",
			zap.String("url", req.URL),
			zap.String("source", string(req.Source)),
			zap.Int("emails", len(res.Emails)),
			zap.Duration("duration", elapsed))
	} else {
		s.logger.Warn("scrape failed",
			zap.String("url", req.URL),
			zap.String("source", string(req.Source)),
			zap.String("kind", string(res.ErrorKind)),
			zap.String("error", res.ErrorMessage),
			zap.Duration("duration", elapsed))
	}
	return res
}

func (s *Scraper) fetch(ctx context.Context, req domain.ScrapeRequest) domain.ScrapeResult {
	d, err := validator.ValidateRequest(req)
	if err != nil {
		return failure(err)
	}

	if d.Strategy == source.StrategyProvider {
		return s.fetchFromProvider(ctx, d, req.URL)
	}

	retriever, ok := s.retrievers[d.Strategy]
	if !ok {
		return domain.Failure(domain.KindUnknown, fmt.Sprintf("no %s fetch strategy configured", d.Strategy))
	}

	p := s.pool.NextProxy(ctx)
	userAgent := s.pool.GetUserAgent()

	netStart := s.now()
	page, err := retriever.Retrieve(ctx, req.URL, p, userAgent)
	if err != nil {
		c := classifier.Classify(err)
		s.logProxy(p, req, c.ProxyStatus, netStart, err.Error())
		return domain.Failure(c.Kind, err.Error())
	}

	// A content mismatch is not the proxy's fault, so no proxy row is written.
	if err := validator.ValidateContent(d, req.URL, page.HTML); err != nil {
		return failure(err)
	}
	s.logProxy(p, req, domain.ProxySuccess, netStart, "")

	content := extractor.Extract(page.HTML)
	if page.Title != "" {
		content.Title = page.Title
	}
	if page.Description != "" {
		content.Description = page.Description
	}
	return domain.Success(content.Title, content.Description, content.Emails)
}

func (s *Scraper) logProxy(p *domain.ProxyEndpoint, req domain.ScrapeRequest, status domain.ProxyOutcome, start time.Time, errMsg string) {
	if p == nil {
		return
	}
	entry := domain.ProxyLogEntry{
		ProxyHost:  p.Host,
		ProxyPort:  p.Port,
		Source:     req.Source,
		URL:        req.URL,
		Status:     status,
		DurationMS: s.now().Sub(start).Milliseconds(),
		Error:      errMsg,
		CreatedAt:  start,
	}
	if ip := net.ParseIP(p.Host); ip != nil {
		entry.ProxyIP = ip.String()
	}
	s.recorder.LogProxyAttempt(entry)
}

// failure converts an error into a result, classifying it if needed.
func failure(err error) domain.ScrapeResult {
	var se *domain.ScrapeError
	if errors.As(err, &se) {
		return domain.Failure(se.Kind, se.Message)
	}
	return domain.Failure(classifier.Classify(err).Kind, err.Error())
}
