// Package retry drives bounded, sequential scrape attempts for one request.
package retry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/user/scraper-service/internal/domain"
	"github.com/user/scraper-service/internal/monitoring"
)

// State is the orchestrator's position in its state machine.
type State string

const (
	StateIdle       State = "idle"
	StateAttempting State = "attempting"
	StateWaiting    State = "waiting"
	StateSucceeded  State = "succeeded"
	StateExhausted  State = "exhausted"
)

// Fetcher runs a single scrape attempt.
type Fetcher interface {
	Fetch(ctx context.Context, req domain.ScrapeRequest) domain.ScrapeResult
}

// Config configures retry behavior.
type Config struct {
	// MaxAttempts includes the first attempt.
	MaxAttempts int
	// Delay is the fixed wait between attempts.
	Delay time.Duration
}

func DefaultConfig() Config {
	return Config{MaxAttempts: 3, Delay: 2 * time.Second}
}

// Observer is called with a snapshot of the attempt history whenever it changes.
type Observer func(state State, attempts []domain.AttemptState)

// Outcome is the final result of a retried scrape.
type Outcome struct {
	State    State                 `json:"state"`
	Result   domain.ScrapeResult   `json:"result"`
	Attempts []domain.AttemptState `json:"attempts"`
	Message  string                `json:"message,omitempty"`
}

func (o Outcome) Succeeded() bool {
	return o.State == StateSucceeded
}

// Orchestrator retries transient failures and stops on validation failures.
type Orchestrator struct {
	fetcher  Fetcher
	cfg      Config
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	observer Observer
	sleep    func(ctx context.Context, d time.Duration) error
}

func New(fetcher Fetcher, cfg Config, metrics *monitoring.Metrics, logger *zap.Logger) *Orchestrator {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.Delay < 0 {
		cfg.Delay = def.Delay
	}
	return &Orchestrator{
		fetcher: fetcher,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger.Named("retry"),
		sleep:   sleepContext,
	}
}

// WithObserver registers fn to receive attempt history updates.
func (o *Orchestrator) WithObserver(fn Observer) *Orchestrator {
	o.observer = fn
	return o
}

// ExhaustedMessage is shown when transient failures used up every attempt.
func ExhaustedMessage(attempts int) string {
	return fmt.Sprintf("Scraping failed after %d attempts. Please check your configuration and try again.", attempts)
}

// Run attempts req until it succeeds, hits a validation failure or runs out
// of attempts. Attempts never overlap.
func (o *Orchestrator) Run(ctx context.Context, req domain.ScrapeRequest) Outcome {
	var (
		attempts []domain.AttemptState
		last     domain.ScrapeResult
	)

	for n := 1; n <= o.cfg.MaxAttempts; n++ {
		if n > 1 {
			attempts = append(attempts, domain.AttemptState{Attempt: n, Status: domain.AttemptWaiting})
			o.notify(StateWaiting, attempts)
			if err := o.sleep(ctx, o.cfg.Delay); err != nil {
				attempts = attempts[:len(attempts)-1]
				o.logger.Info("retry aborted while waiting", zap.String("url", req.URL), zap.Error(err))
				return o.exhausted(req, attempts, last)
			}
			attempts[len(attempts)-1].Status = domain.AttemptPending
		} else {
			attempts = append(attempts, domain.AttemptState{Attempt: n, Status: domain.AttemptPending})
		}
		o.notify(StateAttempting, attempts)

		last = o.fetcher.Fetch(ctx, req)
		cur := &attempts[len(attempts)-1]

		if last.Succeeded() {
			cur.Status = domain.AttemptSuccess
			o.notify(StateSucceeded, attempts)
			o.count(StateSucceeded)
			return Outcome{State: StateSucceeded, Result: last, Attempts: attempts}
		}

		cur.Status = domain.AttemptError
		cur.Error = last.ErrorMessage
		o.logger.Info("scrape attempt failed",
			zap.String("url", req.URL),
			zap.Int("attempt", n),
			zap.String("kind", string(last.ErrorKind)))

		if !last.ErrorKind.Retryable() {
			break
		}
	}
	return o.exhausted(req, attempts, last)
}

func (o *Orchestrator) exhausted(req domain.ScrapeRequest, attempts []domain.AttemptState, last domain.ScrapeResult) Outcome {
	msg := last.ErrorMessage
	if last.ErrorKind != domain.KindValidation {
		msg = ExhaustedMessage(o.cfg.MaxAttempts)
	}
	o.notify(StateExhausted, attempts)
	o.count(StateExhausted)
	o.logger.Warn("scrape exhausted",
		zap.String("url", req.URL),
		zap.Int("attempts", len(attempts)),
		zap.String("kind", string(last.ErrorKind)))

	return Outcome{
		State:    StateExhausted,
		Result:   domain.Failure(last.ErrorKind, msg),
		Attempts: attempts,
		Message:  msg,
	}
}

func (o *Orchestrator) notify(state State, attempts []domain.AttemptState) {
	if o.observer == nil {
		return
	}
	snapshot := make([]domain.AttemptState, len(attempts))
	copy(snapshot, attempts)
	o.observer(state, snapshot)
}

func (o *Orchestrator) count(state State) {
	if o.metrics != nil {
		o.metrics.IncRetryOutcome(string(state))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
