package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/phishguard/internal/browser"
	"github.com/nao1215/phishguard/internal/model"
	"github.com/nao1215/phishguard/internal/pipeline"
)

// Default timings.
const (
	DefaultPollInterval = 4 * time.Second
	DefaultErrorBackoff = 5 * time.Second
)

// Browser lists the sessions of a browser.
type Browser interface {
	ListSessions(ctx context.Context) ([]pipeline.Session, error)
	Version(ctx context.Context) (*browser.VersionInfo, error)
}

// DevTools adapts a browser.Client to Browser.
type DevTools struct {
	*browser.Client
}

// ListSessions lists the page sessions of the browser.
func (d DevTools) ListSessions(ctx context.Context) ([]pipeline.Session, error) {
	sessions, err := d.Client.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]pipeline.Session, len(sessions))
	for i, s := range sessions {
		out[i] = s
	}
	return out, nil
}

// Recorder persists verdicts.
type Recorder interface {
	SaveVerdict(ctx context.Context, rec *model.VerdictRecord) (int64, error)
}

// Observer receives sweep statistics.
type Observer interface {
	ObserveSweep(result pipeline.SweepResult)
	ObserveListFailure()
}

// Poller drives sweeps until it is stopped.
type Poller struct {
	browser      Browser
	factory      pipeline.Factory
	interval     time.Duration
	backoff      time.Duration
	workers      int
	recheck      *pipeline.RecheckCache
	recorder     Recorder
	observer     Observer
	onEvaluation func(*model.Evaluation)
	logger       *slog.Logger

	// wait sleeps for d and reports false if ctx ended first.
	wait func(ctx context.Context, d time.Duration) bool
}

// Option configures a Poller.
type Option func(*Poller)

// WithPollInterval sets the pause after a successful sweep.
func WithPollInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithErrorBackoff sets the pause after a failed listing.
func WithErrorBackoff(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.backoff = d
		}
	}
}

// WithWorkers sets how many sessions are evaluated concurrently.
func WithWorkers(n int) Option {
	return func(p *Poller) {
		p.workers = n
	}
}

// WithRecheckCache sets the cache pruned before every sweep. It should be
// the cache the pipeline factory uses.
func WithRecheckCache(c *pipeline.RecheckCache) Option {
	return func(p *Poller) {
		p.recheck = c
	}
}

// WithRecorder persists every classified evaluation after its sweep.
func WithRecorder(r Recorder) Option {
	return func(p *Poller) {
		p.recorder = r
	}
}

// WithObserver sets the sweep observer.
func WithObserver(o Observer) Option {
	return func(p *Poller) {
		p.observer = o
	}
}

// WithEvaluationCallback is called after each evaluation from worker
// goroutines; fn must be thread-safe.
func WithEvaluationCallback(fn func(*model.Evaluation)) Option {
	return func(p *Poller) {
		p.onEvaluation = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Poller) {
		p.logger = logger
	}
}

// NewPoller creates a Poller evaluating each listed session with a pipeline
// built by factory.
func NewPoller(b Browser, factory pipeline.Factory, opts ...Option) *Poller {
	p := &Poller{
		browser:  b,
		factory:  factory,
		interval: DefaultPollInterval,
		backoff:  DefaultErrorBackoff,
		wait:     sleep,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Run sweeps until ctx is cancelled. It returns nil on shutdown and the
// error of a contract violation, which is never retried.
func (p *Poller) Run(ctx context.Context) error {
	p.probe(ctx)

	p.logger.Info("monitoring started",
		"interval", p.interval,
		"backoff", p.backoff,
		"workers", p.workers,
	)

	for {
		delay := p.interval

		if _, err := p.Sweep(ctx); err != nil {
			if errors.Is(err, model.ErrContractViolation) {
				p.logger.Error("aborting: extractor and classifier disagree", "error", err)
				return err
			}
			if ctx.Err() != nil {
				break
			}
			p.logger.Warn("sweep failed", "error", err, "retry_in", p.backoff)
			delay = p.backoff
		}

		if ctx.Err() != nil || !p.wait(ctx, delay) {
			break
		}
	}

	p.logger.Info("monitoring stopped")
	return nil
}

// Sweep lists the sessions once and evaluates all of them.
// A listing failure is returned and counts as a failed sweep.
func (p *Poller) Sweep(ctx context.Context) (pipeline.SweepResult, error) {
	sweepID := uuid.NewString()

	sessions, err := p.browser.ListSessions(ctx)
	if err != nil {
		if p.observer != nil {
			p.observer.ObserveListFailure()
		}
		return pipeline.SweepResult{SweepID: sweepID}, fmt.Errorf("list sessions: %w", err)
	}

	if n := p.recheck.Prune(); n > 0 {
		p.logger.Debug("pruned recheck cache", "entries", n)
	}

	p.logger.Debug("sweep started", "sweep", sweepID, "sessions", len(sessions))

	bp := pipeline.NewBatchProcessor(p.factory,
		pipeline.WithBatchLogger(p.logger),
		pipeline.WithConcurrency(p.workers),
		pipeline.WithEvaluationCallback(p.onEvaluation),
	)
	result, err := bp.ProcessSessions(ctx, sweepID, sessions)

	p.record(context.WithoutCancel(ctx), result)

	if p.observer != nil {
		p.observer.ObserveSweep(result)
	}
	return result, err
}

// probe logs the browser version. A failure is not fatal: the browser may
// start after the monitor.
func (p *Poller) probe(ctx context.Context) {
	v, err := p.browser.Version(ctx)
	if err != nil {
		p.logger.Warn("devtools endpoint not reachable yet", "error", err)
		return
	}
	p.logger.Info("connected to browser", "browser", v.Browser, "protocol", v.ProtocolVersion)
}

func (p *Poller) record(ctx context.Context, result pipeline.SweepResult) {
	if p.recorder == nil {
		return
	}
	for _, ev := range result.Evaluations {
		if ev == nil || !ev.Classified || ev.Err != nil {
			continue
		}
		rec := ev.Record(model.HashURL(ev.URL))
		if _, err := p.recorder.SaveVerdict(ctx, &rec); err != nil {
			p.logger.Error("failed to record verdict", "url", ev.URL, "error", err)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
