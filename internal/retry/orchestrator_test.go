package retry

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/scraper-service/internal/domain"
	"github.com/user/scraper-service/internal/monitoring"
	"github.com/user/scraper-service/internal/proxy"
	"github.com/user/scraper-service/internal/scraper"
	"github.com/user/scraper-service/internal/telemetry"
)

type scriptedFetcher struct {
	mu      sync.Mutex
	results []domain.ScrapeResult
	calls   int
}

func (f *scriptedFetcher) Fetch(context.Context, domain.ScrapeRequest) domain.ScrapeResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.results[f.calls%len(f.results)]
	f.calls++
	return r
}

type recordedSleeps struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *recordedSleeps) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sleeps = append(r.sleeps, d)
	return nil
}

func newTestOrchestrator(f Fetcher) (*Orchestrator, *recordedSleeps) {
	o := New(f, DefaultConfig(), nil, zap.NewNop())
	s := &recordedSleeps{}
	o.sleep = s.sleep
	return o, s
}

var req = domain.ScrapeRequest{URL: "https://acme.test", Source: domain.SourceGeneric}

func TestRunSucceedsFirstTime(t *testing.T) {
	f := &scriptedFetcher{results: []domain.ScrapeResult{domain.Success("Acme", "", nil)}}
	o, sleeps := newTestOrchestrator(f)

	out := o.Run(context.Background(), req)

	assert.True(t, out.Succeeded())
	assert.Equal(t, 1, f.calls)
	assert.Empty(t, sleeps.sleeps)
	assert.Equal(t, []domain.AttemptState{{Attempt: 1, Status: domain.AttemptSuccess}}, out.Attempts)
}

func TestRunStopsOnValidation(t *testing.T) {
	for _, failFirst := range []int{0, 1} {
		t.Run(fmt.Sprintf("after %d transient failures", failFirst), func(t *testing.T) {
			var results []domain.ScrapeResult
			for i := 0; i < failFirst; i++ {
				results = append(results, domain.Failure(domain.KindTimeout, "timeout"))
			}
			results = append(results, domain.Failure(domain.KindValidation, "Not a Shopify site"))
			f := &scriptedFetcher{results: results}

			var states []State
			o, sleeps := newTestOrchestrator(f)
			o.WithObserver(func(s State, _ []domain.AttemptState) { states = append(states, s) })

			out := o.Run(context.Background(), req)

			assert.Equal(t, StateExhausted, out.State)
			assert.Equal(t, failFirst+1, f.calls)
			assert.Len(t, sleeps.sleeps, failFirst)
			assert.Equal(t, "Not a Shopify site", out.Message)
			assert.Equal(t, domain.KindValidation, out.Result.ErrorKind)
			assert.Equal(t, "Not a Shopify site", out.Result.ErrorMessage)
			assert.Equal(t, StateExhausted, states[len(states)-1])
		})
	}
}

func TestRunBoundAndGenericMessage(t *testing.T) {
	f := &scriptedFetcher{results: []domain.ScrapeResult{
		domain.Failure(domain.KindConnectionRefused, "dial tcp 10.0.0.1:80: connect: connection refused"),
	}}
	m := monitoring.NewMetrics(prometheus.NewRegistry())
	o := New(f, DefaultConfig(), m, zap.NewNop())
	sleeps := &recordedSleeps{}
	o.sleep = sleeps.sleep

	out := o.Run(context.Background(), req)

	assert.Equal(t, StateExhausted, out.State)
	assert.Equal(t, 3, f.calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, sleeps.sleeps)
	assert.Equal(t, "Scraping failed after 3 attempts. Please check your configuration and try again.", out.Message)
	assert.Equal(t, out.Message, out.Result.ErrorMessage)
	assert.Equal(t, domain.KindConnectionRefused, out.Result.ErrorKind)
	require.Len(t, out.Attempts, 3)
	for i, a := range out.Attempts {
		assert.Equal(t, i+1, a.Attempt)
		assert.Equal(t, domain.AttemptError, a.Status)
		assert.Contains(t, a.Error, "connection refused")
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RetryAttemptsTotal.WithLabelValues(string(StateExhausted))))
}

func TestRunObserverSeesWaiting(t *testing.T) {
	f := &scriptedFetcher{results: []domain.ScrapeResult{
		domain.Failure(domain.KindTimeout, "timeout"),
		domain.Success("ok", "", nil),
	}}
	o, _ := newTestOrchestrator(f)

	var history [][]domain.AttemptState
	o.WithObserver(func(_ State, attempts []domain.AttemptState) { history = append(history, attempts) })
	out := o.Run(context.Background(), req)

	require.True(t, out.Succeeded())
	assert.Contains(t, history, []domain.AttemptState{
		{Attempt: 1, Status: domain.AttemptError, Error: "timeout"},
		{Attempt: 2, Status: domain.AttemptWaiting},
	})
}

func TestRunCancelledWhileWaiting(t *testing.T) {
	f := &scriptedFetcher{results: []domain.ScrapeResult{domain.Failure(domain.KindTimeout, "timeout")}}
	o := New(f, Config{MaxAttempts: 3, Delay: time.Hour}, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	o.WithObserver(func(s State, _ []domain.AttemptState) {
		if s == StateWaiting {
			cancel()
		}
	})

	out := o.Run(ctx, req)
	assert.Equal(t, StateExhausted, out.State)
	assert.Equal(t, 1, f.calls)
	assert.Len(t, out.Attempts, 1)
}

type flakyRetriever struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (r *flakyRetriever) Retrieve(_ context.Context, _ string, _ *domain.ProxyEndpoint, _ string) (scraper.Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.calls <= r.failures {
		return scraper.Page{}, fmt.Errorf("navigate: %w", context.DeadlineExceeded)
	}
	return scraper.Page{HTML: "<html><head><title>Acme</title></head><body>sales@acme.test</body></html>"}, nil
}

type listDirectory []domain.ProxyEndpoint

func (d listDirectory) ListActive(context.Context) ([]domain.ProxyEndpoint, error) {
	return d, nil
}

func TestTransientFailuresThenSuccessEndToEnd(t *testing.T) {
	now := time.Now()
	dir := listDirectory{
		{Host: "10.0.0.1", Port: 8080, Status: domain.ProxyActive, UpdatedAt: now},
		{Host: "10.0.0.2", Port: 8080, Status: domain.ProxyActive, UpdatedAt: now.Add(-time.Minute)},
	}
	sink := telemetry.NewMemorySink()
	tel := telemetry.NewLogger(sink, nil, nil, time.Second, zap.NewNop())
	s := scraper.New(proxy.NewManager(dir, zap.NewNop()), tel, scraper.Options{HTTP: &flakyRetriever{failures: 2}}, zap.NewNop())

	o, sleeps := newTestOrchestrator(s)
	out := o.Run(context.Background(), req)
	tel.Wait()

	require.True(t, out.Succeeded())
	assert.Equal(t, []string{"sales@acme.test"}, out.Result.Emails)
	assert.Equal(t, []domain.AttemptStatus{domain.AttemptError, domain.AttemptError, domain.AttemptSuccess},
		[]domain.AttemptStatus{out.Attempts[0].Status, out.Attempts[1].Status, out.Attempts[2].Status})
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, sleeps.sleeps)

	proxyLogs := sink.ProxyLogs()
	require.Len(t, proxyLogs, 3)
	statuses := map[domain.ProxyOutcome]int{}
	for _, l := range proxyLogs {
		statuses[l.Status]++
	}
	assert.Equal(t, map[domain.ProxyOutcome]int{domain.ProxyTimeout: 2, domain.ProxySuccess: 1}, statuses)

	scraperLogs := sink.ScraperLogs()
	require.Len(t, scraperLogs, 3)
}
