package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/phishguard/internal/browser"
	"github.com/nao1215/phishguard/internal/classifier"
	"github.com/nao1215/phishguard/internal/dispatch"
	"github.com/nao1215/phishguard/internal/model"
	"github.com/nao1215/phishguard/internal/pipeline"
	"github.com/nao1215/phishguard/internal/whitelist"
)

// fakeTab implements pipeline.Session.
type fakeTab struct {
	id     string
	url    string
	urlErr error

	mu       sync.Mutex
	closed   bool
	released bool
}

func (f *fakeTab) ID() string { return f.id }

func (f *fakeTab) CurrentURL(context.Context) (string, error) {
	return f.url, f.urlErr
}

func (f *fakeTab) Document(context.Context) (string, error) {
	return `<html><head><link rel="icon" href="/favicon.ico"></head><body></body></html>`, nil
}

func (f *fakeTab) Close(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTab) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = true
	return nil
}

// fakeBrowser returns scripted listings, one per call. The last entry
// repeats.
type fakeBrowser struct {
	mu       sync.Mutex
	listings []listing
	calls    int
	onList   func(call int)
}

type listing struct {
	tabs []*fakeTab
	err  error
}

func (f *fakeBrowser) ListSessions(context.Context) ([]pipeline.Session, error) {
	f.mu.Lock()
	idx := min(f.calls, len(f.listings)-1)
	f.calls++
	call := f.calls
	l := f.listings[idx]
	f.mu.Unlock()

	if f.onList != nil {
		f.onList(call)
	}
	if l.err != nil {
		return nil, l.err
	}
	out := make([]pipeline.Session, len(l.tabs))
	for i, tab := range l.tabs {
		out[i] = tab
	}
	return out, nil
}

func (f *fakeBrowser) Version(context.Context) (*browser.VersionInfo, error) {
	return nil, fmt.Errorf("%w: connection refused", browser.ErrProtocol)
}

// recordingDispatcher records phishing URLs and closes the tab.
type recordingDispatcher struct {
	mu   sync.Mutex
	urls []string
}

func (r *recordingDispatcher) Dispatch(ctx context.Context, ev *model.Evaluation, closer dispatch.Closer) {
	r.mu.Lock()
	r.urls = append(r.urls, ev.URL)
	r.mu.Unlock()
	if closer.Close(ctx) == nil {
		ev.Closed = true
	}
}

type memoryRecorder struct {
	mu      sync.Mutex
	records []model.VerdictRecord
}

func (m *memoryRecorder) SaveVerdict(_ context.Context, rec *model.VerdictRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, *rec)
	return int64(len(m.records)), nil
}

type countingObserver struct {
	mu           sync.Mutex
	sweeps       []pipeline.SweepResult
	listFailures int
}

func (c *countingObserver) ObserveSweep(r pipeline.SweepResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweeps = append(c.sweeps, r)
}

func (c *countingObserver) ObserveListFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listFailures++
}

type brokenClassifier struct{}

func (brokenClassifier) Classify(model.FeatureVector) (classifier.Result, error) {
	return classifier.Result{}, fmt.Errorf("%w: unexpected feature", model.ErrContractViolation)
}

// ipClassifier flags URLs that use a raw IP address.
func ipClassifier(t *testing.T) *classifier.Classifier {
	t.Helper()

	coef := make([]float64, model.FeatureCount)
	coef[model.FeatureIndex(model.FeatureUsingIP)] = 10
	c, err := classifier.New(&classifier.Artifact{
		Features: append([]string(nil), model.FeatureNames...),
		Scaler:   classifier.ScalerSpec{Type: classifier.ScalerNone},
		Model:    classifier.ModelSpec{Type: classifier.ModelLogistic, Coef: coef, Intercept: -5},
	})
	if err != nil {
		t.Fatalf("failed to build classifier: %v", err)
	}
	return c
}

func components(t *testing.T, d pipeline.Dispatcher) pipeline.Components {
	t.Helper()

	return pipeline.Components{
		Renderer:      browser.NewSessionRenderer(),
		Classifier:    ipClassifier(t),
		Whitelist:     whitelist.New("online.bank.example"),
		Dispatcher:    d,
		RenderTimeout: time.Second,
	}
}

func TestSweep(t *testing.T) {
	t.Parallel()

	t.Run("mixed tabs produce exactly one dispatch", func(t *testing.T) {
		t.Parallel()

		tabs := []*fakeTab{
			{id: "1", url: "https://example.com/"},
			{id: "2", url: "https://example.org/news"},
			{id: "3", url: "http://192.0.2.10/bank.example.verify"},
			{id: "4", url: "https://online.bank.example/login"},
			{id: "5", urlErr: fmt.Errorf("%w: tab crashed", browser.ErrProtocol)},
		}
		d := &recordingDispatcher{}
		c := components(t, d)

		recorder := &memoryRecorder{}
		observer := &countingObserver{}
		fb := &fakeBrowser{listings: []listing{{tabs: tabs}}}

		p := NewPoller(fb, c.Factory(), WithRecorder(recorder), WithObserver(observer), WithWorkers(2))
		result, err := p.Sweep(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(d.urls) != 1 || d.urls[0] != "http://192.0.2.10/bank.example.verify" {
			t.Errorf("expected exactly one dispatch, got %v", d.urls)
		}
		if result.Phishing != 1 || result.Benign != 2 || result.Skipped != 1 || result.Failed != 1 {
			t.Errorf("unexpected counts %+v", result)
		}
		if result.SweepID == "" {
			t.Error("expected sweep id")
		}

		for _, tab := range tabs {
			if !tab.released {
				t.Errorf("tab %s not released", tab.id)
			}
			if tab.closed != (tab.id == "3") {
				t.Errorf("tab %s closed=%v", tab.id, tab.closed)
			}
		}

		if len(recorder.records) != 3 {
			t.Fatalf("expected 3 recorded verdicts, got %d", len(recorder.records))
		}
		for _, rec := range recorder.records {
			if rec.SweepID != result.SweepID || rec.URLHash != model.HashURL(rec.URL) {
				t.Errorf("unexpected record %+v", rec)
			}
			if rec.Verdict.IsPhishing() && !rec.Closed {
				t.Error("expected phishing record to be marked closed")
			}
		}
		if len(observer.sweeps) != 1 {
			t.Errorf("expected one observed sweep, got %d", len(observer.sweeps))
		}
	})

	t.Run("listing failure", func(t *testing.T) {
		t.Parallel()

		observer := &countingObserver{}
		fb := &fakeBrowser{listings: []listing{{err: fmt.Errorf("%w: refused", browser.ErrProtocol)}}}

		p := NewPoller(fb, components(t, &recordingDispatcher{}).Factory(), WithObserver(observer))
		_, err := p.Sweep(context.Background())
		if !errors.Is(err, browser.ErrProtocol) {
			t.Errorf("expected ErrProtocol, got %v", err)
		}
		if observer.listFailures != 1 || len(observer.sweeps) != 0 {
			t.Errorf("unexpected observer state %+v", observer)
		}
	})

	t.Run("recheck cache skips recently cleared URLs", func(t *testing.T) {
		t.Parallel()

		cache := pipeline.NewRecheckCache(time.Hour)
		c := components(t, &recordingDispatcher{})
		c.Recheck = cache
		fb := &fakeBrowser{listings: []listing{{tabs: []*fakeTab{{id: "1", url: "https://example.com/"}}}}}

		p := NewPoller(fb, c.Factory(), WithRecheckCache(cache))
		first, err := p.Sweep(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := p.Sweep(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if first.Benign != 1 || second.Skipped != 1 {
			t.Errorf("expected benign then skipped, got %+v / %+v", first, second)
		}
	})
}

func TestRun(t *testing.T) {
	t.Parallel()

	t.Run("backs off after listing failures and stops on cancel", func(t *testing.T) {
		t.Parallel()

		refused := fmt.Errorf("%w: refused", browser.ErrProtocol)
		fb := &fakeBrowser{listings: []listing{
			{err: refused},
			{err: refused},
			{tabs: []*fakeTab{{id: "1", url: "https://example.com/"}}},
		}}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var waits []time.Duration
		p := NewPoller(fb, components(t, &recordingDispatcher{}).Factory(),
			WithPollInterval(4*time.Second),
			WithErrorBackoff(5*time.Second),
		)
		p.wait = func(_ context.Context, d time.Duration) bool {
			waits = append(waits, d)
			if len(waits) == 3 {
				cancel()
				return false
			}
			return true
		}

		if err := p.Run(ctx); err != nil {
			t.Fatalf("expected nil on shutdown, got %v", err)
		}

		want := []time.Duration{5 * time.Second, 5 * time.Second, 4 * time.Second}
		if len(waits) != len(want) {
			t.Fatalf("expected waits %v, got %v", want, waits)
		}
		for i := range want {
			if waits[i] != want[i] {
				t.Errorf("wait %d: expected %v, got %v", i, want[i], waits[i])
			}
		}
	})

	t.Run("contract violation stops the loop", func(t *testing.T) {
		t.Parallel()

		c := components(t, &recordingDispatcher{})
		c.Classifier = brokenClassifier{}
		tab := &fakeTab{id: "1", url: "https://example.com/"}
		fb := &fakeBrowser{listings: []listing{{tabs: []*fakeTab{tab}}}}

		p := NewPoller(fb, c.Factory())
		p.wait = func(context.Context, time.Duration) bool {
			t.Error("loop must not continue after a contract violation")
			return false
		}

		err := p.Run(context.Background())
		if !errors.Is(err, model.ErrContractViolation) {
			t.Errorf("expected ErrContractViolation, got %v", err)
		}
		if !tab.released {
			t.Error("expected tab to be released")
		}
	})

	t.Run("cancellation during a sweep returns nil", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		tabs := []*fakeTab{{id: "1", url: "https://example.com/"}, {id: "2", url: "https://example.net/"}}
		fb := &fakeBrowser{
			listings: []listing{{tabs: tabs}},
			onList:   func(int) { cancel() },
		}

		p := NewPoller(fb, components(t, &recordingDispatcher{}).Factory(), WithPollInterval(time.Millisecond))
		done := make(chan error, 1)
		go func() { done <- p.Run(ctx) }()

		select {
		case err := <-done:
			if err != nil {
				t.Errorf("expected nil, got %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("poller did not stop")
		}
		for _, tab := range tabs {
			if !tab.released {
				t.Errorf("tab %s not released", tab.id)
			}
		}
	})

	t.Run("real sleep honours the interval", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		fb := &fakeBrowser{listings: []listing{{tabs: nil}}}
		fb.onList = func(call int) {
			if call == 3 {
				cancel()
			}
		}

		p := NewPoller(fb, components(t, &recordingDispatcher{}).Factory(), WithPollInterval(10*time.Millisecond))
		start := time.Now()
		if err := p.Run(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
			t.Errorf("expected at least two intervals, got %v", elapsed)
		}
	})
}

func TestSleep(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if sleep(ctx, time.Hour) {
		t.Error("expected sleep to end on cancellation")
	}
	if !sleep(context.Background(), time.Millisecond) {
		t.Error("expected sleep to complete")
	}
}
