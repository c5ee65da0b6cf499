package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/phishguard/internal/model"
)

// Sink names reported to the failure hook.
const (
	SinkVerdictLog = "verdict_log"
	SinkClose      = "close"
)

// Closer closes the tab a verdict was reached for.
type Closer interface {
	Close(ctx context.Context) error
}

// titled is implemented by closers that know the tab title.
type titled interface {
	Title() string
}

// Alert is the payload handed to alerters.
type Alert struct {
	URL        string    `json:"url"`
	Title      string    `json:"title,omitempty"`
	SessionID  string    `json:"session_id"`
	SweepID    string    `json:"sweep_id"`
	Score      float64   `json:"score"`
	DetectedAt time.Time `json:"detected_at"`
}

// Alerter warns the user about a phishing page.
type Alerter interface {
	Name() string
	Alert(ctx context.Context, alert Alert) error
}

// Dispatcher delivers phishing verdicts to its sinks.
// It is safe for concurrent use if its sinks are.
type Dispatcher struct {
	alerters        []Alerter
	verdictLog      *VerdictLog
	closeOnPhishing bool
	onFailure       func(sink string)
	logger          *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithAlerters adds alert sinks. They are called in order.
func WithAlerters(alerters ...Alerter) Option {
	return func(d *Dispatcher) {
		for _, a := range alerters {
			if a != nil {
				d.alerters = append(d.alerters, a)
			}
		}
	}
}

// WithVerdictLog sets the append-only verdict log.
func WithVerdictLog(v *VerdictLog) Option {
	return func(d *Dispatcher) {
		d.verdictLog = v
	}
}

// WithCloseOnPhishing controls whether phishing tabs are closed. Default true.
func WithCloseOnPhishing(enabled bool) Option {
	return func(d *Dispatcher) {
		d.closeOnPhishing = enabled
	}
}

// WithFailureHook registers fn to be called with the sink name whenever a
// sink fails. fn must be thread-safe.
func WithFailureHook(fn func(sink string)) Option {
	return func(d *Dispatcher) {
		d.onFailure = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// New creates a Dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{closeOnPhishing: true}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// Dispatch alerts, logs and closes for one phishing evaluation.
// It never fails; ev.Closed reports whether the tab was closed.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *model.Evaluation, closer Closer) {
	var title string
	if t, ok := closer.(titled); ok {
		title = t.Title()
	}

	d.logger.Warn("phishing detected",
		"tab", ev.SessionID,
		"url", ev.URL,
		"title", title,
		"score", ev.Score,
	)

	alert := Alert{
		URL:        ev.URL,
		Title:      title,
		SessionID:  ev.SessionID,
		SweepID:    ev.SweepID,
		Score:      ev.Score,
		DetectedAt: time.Now(),
	}

	for _, a := range d.alerters {
		if err := a.Alert(ctx, alert); err != nil {
			d.fail(a.Name(), ev, err)
		}
	}

	if d.verdictLog != nil {
		if err := d.verdictLog.Append(ev.URL, ev.Verdict); err != nil {
			d.fail(SinkVerdictLog, ev, err)
		}
	}

	if !d.closeOnPhishing || closer == nil {
		return
	}
	if err := closer.Close(ctx); err != nil {
		d.fail(SinkClose, ev, err)
		return
	}
	ev.Closed = true
	d.logger.Info("closed phishing tab", "tab", ev.SessionID, "url", ev.URL)
}

func (d *Dispatcher) fail(sink string, ev *model.Evaluation, err error) {
	d.logger.Error("dispatch sink failed",
		"sink", sink,
		"tab", ev.SessionID,
		"url", ev.URL,
		"error", err,
	)
	if d.onFailure != nil {
		d.onFailure(sink)
	}
}
