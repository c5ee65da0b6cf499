package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nao1215/phishguard/internal/browser"
	"github.com/nao1215/phishguard/internal/classifier"
	"github.com/nao1215/phishguard/internal/dispatch"
	"github.com/nao1215/phishguard/internal/features"
	"github.com/nao1215/phishguard/internal/model"
)

// Session is the part of a browser tab the steps use.
type Session interface {
	ID() string
	CurrentURL(ctx context.Context) (string, error)
	Document(ctx context.Context) (string, error)
	Close(ctx context.Context) error
	Release() error
}

// Skip reasons recorded on evaluations.
const (
	SkipBlankURL    = "blank url"
	SkipInternalURL = "browser-internal page"
	SkipRecent      = "recently evaluated as benign"
	SkipWhitelisted = "whitelisted"
)

// reservedPrefixes are URL prefixes of browser-internal pages.
var reservedPrefixes = []string{
	"chrome://",
	"chrome-extension://",
	"chrome-untrusted://",
	"chrome-search://",
	"devtools://",
	"edge://",
	"brave://",
	"view-source:",
	"about:",
}

// IsInternalURL reports whether url belongs to a browser-internal scheme.
func IsInternalURL(url string) bool {
	lower := strings.ToLower(url)
	for _, p := range reservedPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

// ResolveURLStep reads the tab's current URL into the evaluation.
type ResolveURLStep struct {
	session Session
	logger  *slog.Logger
}

// NewResolveURLStep creates a ResolveURLStep for session.
func NewResolveURLStep(session Session, logger *slog.Logger) *ResolveURLStep {
	return &ResolveURLStep{session: session, logger: orDefault(logger)}
}

// Name returns the step name.
func (s *ResolveURLStep) Name() string {
	return "resolve_url"
}

// Do executes the step.
func (s *ResolveURLStep) Do(ctx context.Context, ev *model.Evaluation) error {
	url, err := s.session.CurrentURL(ctx)
	if err != nil {
		s.logger.Warn("failed to read tab URL", "tab", ev.SessionID, "error", err)
		return fmt.Errorf("read tab URL: %w", err)
	}
	ev.URL = url
	return nil
}

// TargetFilterStep skips blank URLs and browser-internal pages.
type TargetFilterStep struct {
	logger *slog.Logger
}

// NewTargetFilterStep creates a TargetFilterStep.
func NewTargetFilterStep(logger *slog.Logger) *TargetFilterStep {
	return &TargetFilterStep{logger: orDefault(logger)}
}

// Name returns the step name.
func (s *TargetFilterStep) Name() string {
	return "target_filter"
}

// Do executes the step.
func (s *TargetFilterStep) Do(_ context.Context, ev *model.Evaluation) error {
	switch {
	case strings.TrimSpace(ev.URL) == "":
		ev.Skip(SkipBlankURL)
	case IsInternalURL(ev.URL):
		ev.Skip(SkipInternalURL)
	default:
		return nil
	}
	s.logger.Debug("skipping tab", "tab", ev.SessionID, "url", ev.URL, "reason", ev.SkipReason)
	return ErrSkip
}

// RecheckStep skips URLs the cache found benign recently.
type RecheckStep struct {
	cache  *RecheckCache
	logger *slog.Logger
}

// NewRecheckStep creates a RecheckStep.
func NewRecheckStep(cache *RecheckCache, logger *slog.Logger) *RecheckStep {
	return &RecheckStep{cache: cache, logger: orDefault(logger)}
}

// Name returns the step name.
func (s *RecheckStep) Name() string {
	return "recheck"
}

// Do executes the step.
func (s *RecheckStep) Do(_ context.Context, ev *model.Evaluation) error {
	if !s.cache.Fresh(ev.URL) {
		return nil
	}
	ev.Skip(SkipRecent)
	s.logger.Debug("skipping tab", "tab", ev.SessionID, "url", ev.URL, "reason", ev.SkipReason)
	return ErrSkip
}

// Matcher matches URLs against trusted patterns.
type Matcher interface {
	Match(url string) (string, bool)
}

// WhitelistStep skips trusted URLs before anything is rendered.
type WhitelistStep struct {
	whitelist Matcher
	logger    *slog.Logger
}

// NewWhitelistStep creates a WhitelistStep.
func NewWhitelistStep(whitelist Matcher, logger *slog.Logger) *WhitelistStep {
	return &WhitelistStep{whitelist: whitelist, logger: orDefault(logger)}
}

// Name returns the step name.
func (s *WhitelistStep) Name() string {
	return "whitelist"
}

// Do executes the step.
func (s *WhitelistStep) Do(_ context.Context, ev *model.Evaluation) error {
	if s.whitelist == nil {
		return nil
	}
	entry, ok := s.whitelist.Match(ev.URL)
	if !ok {
		return nil
	}
	ev.Skip(SkipWhitelisted)
	s.logger.Info("whitelisted", "tab", ev.SessionID, "url", ev.URL, "entry", entry)
	return ErrSkip
}

// ExtractStep renders the page and computes its feature vector.
type ExtractStep struct {
	renderer  browser.Renderer
	source    browser.DocumentSource
	extractor *features.Extractor
	timeout   time.Duration
	logger    *slog.Logger
}

// NewExtractStep creates an ExtractStep. source is the tab handed to the
// renderer; timeout bounds one render.
func NewExtractStep(renderer browser.Renderer, source browser.DocumentSource,
	extractor *features.Extractor, timeout time.Duration, logger *slog.Logger) *ExtractStep {
	if extractor == nil {
		extractor = features.NewExtractor(features.WithLogger(logger))
	}
	return &ExtractStep{
		renderer:  renderer,
		source:    source,
		extractor: extractor,
		timeout:   timeout,
		logger:    orDefault(logger),
	}
}

// Name returns the step name.
func (s *ExtractStep) Name() string {
	return "extract"
}

// Do executes the step.
func (s *ExtractStep) Do(ctx context.Context, ev *model.Evaluation) error {
	renderCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		renderCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	html, err := s.renderer.Render(renderCtx, ev.URL, s.source)
	if err != nil {
		s.logger.Error("feature extraction failed", "tab", ev.SessionID, "url", ev.URL, "error", err)
		return fmt.Errorf("%w: %w", features.ErrExtraction, err)
	}

	doc, err := features.ParseDocument(strings.NewReader(html))
	if err != nil {
		s.logger.Error("feature extraction failed", "tab", ev.SessionID, "url", ev.URL, "error", err)
		return err
	}

	vec, err := s.extractor.Extract(ev.URL, doc)
	if err != nil {
		s.logger.Error("feature extraction failed", "tab", ev.SessionID, "url", ev.URL, "error", err)
		return err
	}
	ev.Features = &vec
	return nil
}

// Classifier scores feature vectors.
type Classifier interface {
	Classify(v model.FeatureVector) (classifier.Result, error)
}

// ClassifyStep runs the classifier on the extracted features.
type ClassifyStep struct {
	classifier Classifier
	cache      *RecheckCache
	logger     *slog.Logger
}

// NewClassifyStep creates a ClassifyStep. Benign results are remembered in
// cache when it is enabled.
func NewClassifyStep(c Classifier, cache *RecheckCache, logger *slog.Logger) *ClassifyStep {
	return &ClassifyStep{classifier: c, cache: cache, logger: orDefault(logger)}
}

// Name returns the step name.
func (s *ClassifyStep) Name() string {
	return "classify"
}

// Do executes the step.
func (s *ClassifyStep) Do(_ context.Context, ev *model.Evaluation) error {
	if ev.Features == nil {
		return fmt.Errorf("%w: classify called without features for %s", model.ErrContractViolation, ev.URL)
	}

	res, err := s.classifier.Classify(*ev.Features)
	if err != nil {
		return fmt.Errorf("classify %s: %w", ev.URL, err)
	}
	ev.Verdict = res.Verdict
	ev.Score = res.Score
	ev.Classified = true

	if !res.Verdict.IsPhishing() {
		s.cache.MarkBenign(ev.URL)
	}
	return nil
}

// Dispatcher acts on phishing verdicts.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev *model.Evaluation, closer dispatch.Closer)
}

// DispatchStep hands phishing verdicts to the dispatcher and logs benign ones.
type DispatchStep struct {
	dispatcher Dispatcher
	session    dispatch.Closer
	logger     *slog.Logger
}

// NewDispatchStep creates a DispatchStep. session is closed by the
// dispatcher when the page is phishing.
func NewDispatchStep(d Dispatcher, session dispatch.Closer, logger *slog.Logger) *DispatchStep {
	return &DispatchStep{dispatcher: d, session: session, logger: orDefault(logger)}
}

// Name returns the step name.
func (s *DispatchStep) Name() string {
	return "dispatch"
}

// Do executes the step.
func (s *DispatchStep) Do(ctx context.Context, ev *model.Evaluation) error {
	if !ev.Classified {
		return errors.New("dispatch called before classification")
	}
	if !ev.Verdict.IsPhishing() {
		s.logger.Info("benign", "tab", ev.SessionID, "url", ev.URL, "score", ev.Score)
		return nil
	}
	s.dispatcher.Dispatch(ctx, ev, s.session)
	return nil
}

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
