package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nao1215/phishguard/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, each receiving the evaluation filled in
// by the previous ones.
type Step interface {
	// Do executes the step. Returning ErrSkip ends the evaluation without
	// error; any other error ends it as a failure.
	Do(ctx context.Context, ev *model.Evaluation) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all pipeline steps in sequence.
// Cancellation is checked before each step; steps handle their own timeouts.
//
// It returns nil when every step ran or a step skipped the evaluation, and
// the failing step's error otherwise. The error is also stored in ev.Err.
func (p *Pipeline) Execute(ctx context.Context, ev *model.Evaluation) error {
	defer func() {
		ev.FinishedAt = time.Now()
	}()

	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"tab", ev.SessionID,
				"reason", ctx.Err(),
			)
			ev.Err = ctx.Err()
			return ctx.Err()
		default:
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"tab", ev.SessionID,
		)

		err := step.Do(ctx, ev)
		ev.PerformedSteps = append(ev.PerformedSteps, step.Name())

		if errors.Is(err, ErrSkip) {
			if !ev.Skipped {
				ev.Skip(step.Name())
			}
			p.logger.Debug("evaluation skipped",
				"step", step.Name(),
				"tab", ev.SessionID,
				"reason", ev.SkipReason,
			)
			return nil
		}
		if err != nil {
			ev.Err = err
			return err
		}
	}

	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
