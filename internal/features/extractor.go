package features

import (
	"fmt"
	"log/slog"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/phishguard/internal/model"
)

// Extractor computes feature vectors.
// It holds no per-call state and is safe for concurrent use.
type Extractor struct {
	logger *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger used for debug output of extracted vectors.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// NewExtractor creates an Extractor.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Extract computes the full feature vector for pageURL and its rendered
// document. It returns ErrExtraction if the document is missing or a DOM
// query fails; no partial vector is ever returned.
func (e *Extractor) Extract(pageURL string, doc *goquery.Document) (vec model.FeatureVector, err error) {
	if doc == nil {
		return model.FeatureVector{}, fmt.Errorf("%w: no document for %s", ErrExtraction, pageURL)
	}

	defer func() {
		if r := recover(); r != nil {
			vec = model.FeatureVector{}
			err = fmt.Errorf("%w: dom query: %v", ErrExtraction, r)
		}
	}()

	v := urlVector(pageURL)
	applyDocumentFeatures(pageURL, doc, &v)

	e.logger.Debug("extracted features", "url", pageURL, "features", v.String())

	return v, nil
}

// urlVector computes only the URL-derived features; document features are 0.
func urlVector(pageURL string) model.FeatureVector {
	var v model.FeatureVector
	applyURLFeatures(pageURL, &v)
	return v
}
