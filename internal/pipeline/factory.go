package pipeline

import (
	"log/slog"
	"time"

	"github.com/nao1215/phishguard/internal/browser"
	"github.com/nao1215/phishguard/internal/features"
)

// Components are the shared collaborators of every session pipeline.
// All of them must be safe for concurrent use.
type Components struct {
	Renderer      browser.Renderer
	Extractor     *features.Extractor
	Classifier    Classifier
	Whitelist     Matcher
	Dispatcher    Dispatcher
	Recheck       *RecheckCache
	RenderTimeout time.Duration
	Logger        *slog.Logger
}

// Factory returns a Factory building the standard evaluation pipeline:
// resolve the URL, drop blank and internal pages, skip recently cleared and
// whitelisted URLs, then extract, classify and dispatch.
func (c Components) Factory() Factory {
	logger := orDefault(c.Logger)
	extractor := c.Extractor
	if extractor == nil {
		extractor = features.NewExtractor(features.WithLogger(logger))
	}

	return func(session Session) *Pipeline {
		p := New(WithLogger(logger))
		p.AddSteps(
			NewResolveURLStep(session, logger),
			NewTargetFilterStep(logger),
			NewRecheckStep(c.Recheck, logger),
			NewWhitelistStep(c.Whitelist, logger),
			NewExtractStep(c.Renderer, session, extractor, c.RenderTimeout, logger),
			NewClassifyStep(c.Classifier, c.Recheck, logger),
			NewDispatchStep(c.Dispatcher, session, logger),
		)
		return p
	}
}
