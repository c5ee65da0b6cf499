package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/phishguard/internal/model"
)

// Factory builds the pipeline evaluating one session.
// A fresh pipeline per session keeps step state from leaking between tabs.
type Factory func(session Session) *Pipeline

// SweepResult summarizes one sweep.
type SweepResult struct {
	SweepID string

	// Listed is the number of sessions handed to the sweep.
	Listed int

	Phishing  int
	Benign    int
	Skipped   int
	Failed    int
	Cancelled int

	// Evaluations holds one entry per started session, in listing order.
	// Sessions never started because of shutdown are nil.
	Evaluations []*model.Evaluation

	Duration time.Duration
}

// Evaluated returns how many sessions were classified.
func (r SweepResult) Evaluated() int {
	return r.Phishing + r.Benign
}

// BatchProcessor evaluates the sessions of one sweep concurrently.
type BatchProcessor struct {
	factory     Factory
	concurrency int
	logger      *slog.Logger
	onEvaluated func(*model.Evaluation)
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent evaluations.
// Default is 4 if not specified.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithEvaluationCallback registers fn to be called after every finished
// evaluation. fn is called from worker goroutines and must be thread-safe.
func WithEvaluationCallback(fn func(*model.Evaluation)) BatchOption {
	return func(b *BatchProcessor) {
		b.onEvaluated = fn
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(factory Factory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		factory:     factory,
		concurrency: 4,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessSessions evaluates every session once.
//
// Once ctx is cancelled no further session is started; evaluations already
// running continue on a context detached from ctx and end when their own
// step timeouts expire. Every session is released on every path, including
// sessions that were never started.
//
// Failures and panics are isolated per session. The only error returned is a
// contract violation (extractor and classifier disagree on the feature set),
// which aborts the remaining sessions of the sweep.
func (bp *BatchProcessor) ProcessSessions(ctx context.Context, sweepID string, sessions []Session) (SweepResult, error) {
	start := time.Now()
	result := SweepResult{
		SweepID:     sweepID,
		Listed:      len(sessions),
		Evaluations: make([]*model.Evaluation, len(sessions)),
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, session := range sessions {
		g.Go(func() error {
			defer bp.release(session)

			if gctx.Err() != nil {
				mu.Lock()
				result.Cancelled++
				mu.Unlock()
				return nil
			}

			ev := bp.evaluate(context.WithoutCancel(gctx), sweepID, session)

			mu.Lock()
			result.Evaluations[i] = ev
			switch {
			case ev.Err != nil:
				result.Failed++
			case ev.Skipped:
				result.Skipped++
			case ev.Classified && ev.Verdict.IsPhishing():
				result.Phishing++
			case ev.Classified:
				result.Benign++
			}
			mu.Unlock()

			if bp.onEvaluated != nil {
				bp.onEvaluated(ev)
			}

			if errors.Is(ev.Err, model.ErrContractViolation) {
				return ev.Err
			}
			return nil
		})
	}

	err := g.Wait()
	result.Duration = time.Since(start)

	bp.logger.Info("sweep complete",
		"sweep", sweepID,
		"sessions", result.Listed,
		"phishing", result.Phishing,
		"benign", result.Benign,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"cancelled", result.Cancelled,
		"elapsed", result.Duration,
	)

	return result, err
}

// evaluate runs one session's pipeline, converting a panic into a failure.
func (bp *BatchProcessor) evaluate(ctx context.Context, sweepID string, session Session) (ev *model.Evaluation) {
	ev = model.NewEvaluation(session.ID(), sweepID)

	defer func() {
		if r := recover(); r != nil {
			ev.Err = fmt.Errorf("%w: %v", ErrPanic, r)
			ev.FinishedAt = time.Now()
			bp.logger.Error("evaluation panicked", "tab", ev.SessionID, "url", ev.URL, "panic", r)
		}
	}()

	if err := bp.factory(session).Execute(ctx, ev); err != nil {
		bp.logger.Warn("evaluation failed",
			"tab", ev.SessionID,
			"url", ev.URL,
			"error", err,
		)
	}
	return ev
}

func (bp *BatchProcessor) release(session Session) {
	if err := session.Release(); err != nil {
		bp.logger.Debug("failed to release session", "tab", session.ID(), "error", err)
	}
}
