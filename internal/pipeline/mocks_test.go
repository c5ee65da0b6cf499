package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/nao1215/phishguard/internal/browser"
	"github.com/nao1215/phishguard/internal/classifier"
	"github.com/nao1215/phishguard/internal/dispatch"
	"github.com/nao1215/phishguard/internal/model"
)

var errFetch = errors.New("tab went away")

// mockSession implements Session.
type mockSession struct {
	id         string
	url        string
	urlErr     error
	html       string
	panicOnURL bool

	mu       sync.Mutex
	released int
	closed   int
}

func (m *mockSession) ID() string { return m.id }

func (m *mockSession) CurrentURL(context.Context) (string, error) {
	if m.panicOnURL {
		panic("unexpected tab state")
	}
	if m.urlErr != nil {
		return "", m.urlErr
	}
	return m.url, nil
}

func (m *mockSession) Document(context.Context) (string, error) {
	return m.html, nil
}

func (m *mockSession) Close(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

func (m *mockSession) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released++
	return nil
}

func (m *mockSession) counts() (released, closed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.released, m.closed
}

// mockRenderer serves fixed HTML per URL.
type mockRenderer struct {
	pages map[string]string
	err   error
}

func (m *mockRenderer) Render(_ context.Context, url string, _ browser.DocumentSource) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if html, ok := m.pages[url]; ok {
		return html, nil
	}
	return "<html><head><link rel=\"icon\" href=\"/favicon.ico\"></head><body></body></html>", nil
}

// mockClassifier returns a fixed result or error.
type mockClassifier struct {
	result classifier.Result
	err    error
}

func (m *mockClassifier) Classify(model.FeatureVector) (classifier.Result, error) {
	return m.result, m.err
}

// mockDispatcher records dispatched evaluations and closes the tab.
type mockDispatcher struct {
	mu   sync.Mutex
	urls []string
}

func (m *mockDispatcher) Dispatch(ctx context.Context, ev *model.Evaluation, closer dispatch.Closer) {
	m.mu.Lock()
	m.urls = append(m.urls, ev.URL)
	m.mu.Unlock()
	if closer != nil && closer.Close(ctx) == nil {
		ev.Closed = true
	}
}

func (m *mockDispatcher) dispatched() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.urls...)
}

// ipClassifier flags pages whose URL uses a raw IP address.
func ipClassifier() *classifier.Classifier {
	coef := make([]float64, model.FeatureCount)
	coef[model.FeatureIndex(model.FeatureUsingIP)] = 10
	c, err := classifier.New(&classifier.Artifact{
		Features: append([]string(nil), model.FeatureNames...),
		Scaler:   classifier.ScalerSpec{Type: classifier.ScalerNone},
		Model:    classifier.ModelSpec{Type: classifier.ModelLogistic, Coef: coef, Intercept: -5},
	})
	if err != nil {
		panic(err)
	}
	return c
}

func stringsReader(s string) *strings.Reader {
	return strings.NewReader(s)
}
