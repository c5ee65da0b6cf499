package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/phishguard/internal/browser"
	"github.com/nao1215/phishguard/internal/classifier"
	"github.com/nao1215/phishguard/internal/config"
	"github.com/nao1215/phishguard/internal/features"
	pglog "github.com/nao1215/phishguard/internal/log"
	"github.com/nao1215/phishguard/internal/model"
	"github.com/nao1215/phishguard/internal/report"
)

// errCheckFailed is returned when at least one URL could not be checked.
var errCheckFailed = errors.New("check failed")

// NewCheckCmd creates the check command.
func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <url>...",
		Short: "Classify URLs without touching the browser",
		Long: `Check renders each URL, extracts its phishing features and prints the
feature vector together with the verdict. Nothing is dispatched: no alert is
raised, no tab is closed and nothing is written to the verdict log.

The session renderer needs a monitored tab and is not available here; the
http renderer is used unless --renderer headless is given.

Examples:
  # Classify a URL
  phishguard check https://example.com/login

  # Render with headless Chromium and print JSON
  phishguard check --renderer headless --json https://example.com`,
		Args: cobra.MinimumNArgs(1),
		RunE: runCheckCmd,
	}

	cmd.Flags().StringP("artifact", "a", "",
		"Classifier artifact path (default: model.json in the XDG config directory)")
	cmd.Flags().StringP("renderer", "r", config.RendererHTTP,
		"Document renderer: http or headless")
	cmd.Flags().Duration("render-timeout", config.DefaultRenderTimeout,
		"Timeout of one page render")
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy (host:port) used for rendering")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent sent by the http renderer")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .phishguard in current or home directory)")
	addOutputFlags(cmd)

	return cmd
}

// runCheckCmd executes the check command.
func runCheckCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	// The configuration file may select the session renderer for watch.
	if !cmd.Flags().Changed("renderer") {
		cfg.Renderer = config.RendererHTTP
	}
	if cfg.Renderer == config.RendererSession {
		return fmt.Errorf("%w: check cannot use the session renderer", config.ErrInvalidRenderer)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := pglog.New(cmd.ErrOrStderr(), cfg.Verbose, false)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, closeOut, err := openOutput(cmd)
	if err != nil {
		return err
	}
	defer closeOut() //nolint:errcheck // Best effort close of the report file

	writer, err := newReportWriter(cmd, out)
	if err != nil {
		return err
	}

	return runCheck(ctx, cfg, args, writer, logger)
}

// runCheck classifies every URL and writes one record per URL.
// A URL that cannot be rendered is reported on the log and skipped.
func runCheck(ctx context.Context, cfg *config.Config, urls []string, writer report.Writer, logger *slog.Logger) error {
	clf, err := classifier.Load(cfg.ArtifactPath)
	if err != nil {
		return err
	}

	renderer, closeRenderer, err := newRenderer(cfg, logger)
	if err != nil {
		return err
	}
	defer closeRenderer()

	extractor := features.NewExtractor(features.WithLogger(logger))

	failed := 0
	for _, url := range urls {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rec, err := checkURL(ctx, url, renderer, extractor, clf, cfg.RenderTimeout)
		if err != nil {
			if errors.Is(err, model.ErrContractViolation) {
				return err
			}
			failed++
			logger.Error("check failed", "url", url, "error", err)
			continue
		}

		if _, err := writer.WriteRecord(rec); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d URLs", errCheckFailed, failed, len(urls))
	}
	return nil
}

// checkURL renders, extracts and classifies a single URL.
func checkURL(ctx context.Context, url string, renderer browser.Renderer, extractor *features.Extractor, clf *classifier.Classifier, timeout time.Duration) (*model.VerdictRecord, error) {
	renderCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	html, err := renderer.Render(renderCtx, url, nil)
	if err != nil {
		return nil, err
	}

	doc, err := features.ParseDocument(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	vec, err := extractor.Extract(url, doc)
	if err != nil {
		return nil, err
	}

	result, err := clf.Classify(vec)
	if err != nil {
		return nil, err
	}

	return &model.VerdictRecord{
		Timestamp: time.Now(),
		URL:       url,
		Verdict:   result.Verdict,
		Score:     result.Score,
		Features:  vec,
	}, nil
}
