package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/phishguard/internal/browser"
	"github.com/nao1215/phishguard/internal/classifier"
	"github.com/nao1215/phishguard/internal/config"
	"github.com/nao1215/phishguard/internal/database"
	"github.com/nao1215/phishguard/internal/dispatch"
	"github.com/nao1215/phishguard/internal/features"
	pglog "github.com/nao1215/phishguard/internal/log"
	"github.com/nao1215/phishguard/internal/metrics"
	"github.com/nao1215/phishguard/internal/monitor"
	"github.com/nao1215/phishguard/internal/pipeline"
	"github.com/nao1215/phishguard/internal/whitelist"
)

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Monitor browser tabs and close phishing pages",
		Long: `Watch connects to the remote debugging endpoint of a Chromium-based browser
and sweeps its open tabs at a fixed interval. Every new page is rendered,
turned into a feature vector and classified. Pages classified as phishing
trigger alerts, are appended to the verdict log and have their tab closed.

The browser must be started with remote debugging enabled:
  chromium --remote-debugging-port=9222

Examples:
  # Monitor the local browser with default settings
  phishguard watch

  # Use a custom artifact and whitelist
  phishguard watch --artifact model.json --whitelist whitelist.txt

  # Alert only, never close tabs, expose metrics
  phishguard watch --no-close --metrics-addr 127.0.0.1:9870

  # Run one sweep and exit
  phishguard watch --once`,
		Args: cobra.NoArgs,
		RunE: runWatchCmd,
	}

	// Browser connection flags
	cmd.Flags().StringP("devtools", "d", config.DefaultDevToolsURL,
		"Remote debugging endpoint of the browser")
	cmd.Flags().DurationP("interval", "i", config.DefaultPollInterval,
		"Pause between two sweeps")
	cmd.Flags().Duration("backoff", config.DefaultErrorBackoff,
		"Pause after a sweep whose tab listing failed")
	cmd.Flags().DurationP("timeout", "t", config.DefaultCallTimeout,
		"Timeout of each DevTools call")
	cmd.Flags().Duration("render-timeout", config.DefaultRenderTimeout,
		"Timeout of one page render")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Number of tabs evaluated concurrently")

	// Evaluation flags
	cmd.Flags().StringP("artifact", "a", "",
		"Classifier artifact path (default: model.json in the XDG config directory)")
	cmd.Flags().String("whitelist", "",
		"Whitelist file path (default: whitelist.txt in the XDG config directory)")
	cmd.Flags().StringP("renderer", "r", config.RendererHeadless,
		"Document renderer: headless, http or session")
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy (host:port) used by the http renderer")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent sent by the http renderer")
	cmd.Flags().Duration("recheck", 0,
		"Skip URLs found benign less than this long ago (0 disables)")

	// Action flags
	cmd.Flags().Bool("no-close", false,
		"Do not close tabs classified as phishing")
	cmd.Flags().Bool("no-console", false,
		"Disable the console alert")
	cmd.Flags().Bool("no-desktop", false,
		"Disable desktop notifications")
	cmd.Flags().String("webhook", "",
		"URL receiving a JSON POST for each phishing verdict")
	cmd.Flags().StringP("log-file", "l", "",
		"Verdict log path (default: logs.txt in the XDG data directory)")
	cmd.Flags().Bool("no-db", false,
		"Do not record verdicts in the history database")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")

	// Service flags
	cmd.Flags().String("metrics-addr", "",
		"Listen address of the status server (e.g., 127.0.0.1:9870)")
	cmd.Flags().Bool("once", false,
		"Run a single sweep and exit")
	cmd.Flags().Bool("log-json", false,
		"Write logs as JSON")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .phishguard in current or home directory)")

	return cmd
}

// runWatchCmd executes the watch command.
func runWatchCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := pglog.New(cmd.ErrOrStderr(), cfg.Verbose, cfg.LogJSON)
	slog.SetDefault(logger)

	once, err := cmd.Flags().GetBool("once")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runWatch(ctx, cfg, once, cmd.OutOrStdout(), cmd.ErrOrStderr(), logger)
}

// buildConfig creates a Config from defaults, the configuration file and
// the flags set on the command line, in that order.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	var err error
	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// An explicitly named config file must exist; the default locations
	// are optional.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		file.Apply(cfg)
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags overlays every flag the user set explicitly onto cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	stringFlags := map[string]*string{
		"devtools":     &cfg.DevToolsURL,
		"artifact":     &cfg.ArtifactPath,
		"whitelist":    &cfg.WhitelistPath,
		"renderer":     &cfg.Renderer,
		"proxy":        &cfg.RenderProxy,
		"user-agent":   &cfg.UserAgent,
		"webhook":      &cfg.WebhookURL,
		"log-file":     &cfg.VerdictLogPath,
		"db-dir":       &cfg.DBDir,
		"metrics-addr": &cfg.MetricsAddr,
	}
	for name, dst := range stringFlags {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	durations := map[string]*time.Duration{
		"interval":       &cfg.PollInterval,
		"backoff":        &cfg.ErrorBackoff,
		"timeout":        &cfg.CallTimeout,
		"render-timeout": &cfg.RenderTimeout,
		"recheck":        &cfg.RecheckInterval,
	}
	for name, dst := range durations {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetDuration(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	// Negated switches: "--no-close" clears CloseOnPhishing.
	negated := map[string]*bool{
		"no-close":   &cfg.CloseOnPhishing,
		"no-console": &cfg.ConsoleAlerts,
		"no-desktop": &cfg.DesktopAlerts,
		"no-db":      &cfg.SaveToDB,
	}
	for name, dst := range negated {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetBool(name)
		if err != nil {
			return err
		}
		*dst = !v
	}

	if flags.Changed("workers") {
		v, err := flags.GetInt("workers")
		if err != nil {
			return err
		}
		cfg.Workers = v
	}

	if flags.Changed("log-json") {
		v, err := flags.GetBool("log-json")
		if err != nil {
			return err
		}
		cfg.LogJSON = v
	}

	return nil
}

// runWatch wires the monitor from cfg and runs it until ctx is cancelled.
// With once set it performs a single sweep and prints its summary to out.
func runWatch(ctx context.Context, cfg *config.Config, once bool, out, alertOut io.Writer, logger *slog.Logger) error {
	clf, err := classifier.Load(cfg.ArtifactPath)
	if err != nil {
		return err
	}

	wl, err := whitelist.Load(cfg.WhitelistPath, cfg.WhitelistEntries...)
	if err != nil {
		return err
	}

	client, err := browser.NewClient(cfg.DevToolsURL,
		browser.WithLogger(logger),
		browser.WithCallTimeout(cfg.CallTimeout),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}

	renderer, closeRenderer, err := newRenderer(cfg, logger)
	if err != nil {
		return err
	}
	defer closeRenderer()

	m := metrics.New()

	dispatcher := dispatch.New(
		dispatch.WithAlerters(newAlerters(cfg, alertOut)...),
		dispatch.WithVerdictLog(dispatch.NewVerdictLog(cfg.VerdictLogPath)),
		dispatch.WithCloseOnPhishing(cfg.CloseOnPhishing),
		dispatch.WithFailureHook(m.SinkFailed),
		dispatch.WithLogger(logger),
	)

	var db *database.VerdictDB
	if cfg.SaveToDB {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
	}

	var recheck *pipeline.RecheckCache
	if cfg.RecheckInterval > 0 {
		recheck = pipeline.NewRecheckCache(cfg.RecheckInterval)
	}

	factory := pipeline.Components{
		Renderer:      renderer,
		Extractor:     features.NewExtractor(features.WithLogger(logger)),
		Classifier:    clf,
		Whitelist:     wl,
		Dispatcher:    dispatcher,
		Recheck:       recheck,
		RenderTimeout: cfg.RenderTimeout,
		Logger:        logger,
	}.Factory()

	pollerOpts := []monitor.Option{
		monitor.WithPollInterval(cfg.PollInterval),
		monitor.WithErrorBackoff(cfg.ErrorBackoff),
		monitor.WithWorkers(cfg.Workers),
		monitor.WithRecheckCache(recheck),
		monitor.WithObserver(m),
		monitor.WithEvaluationCallback(m.ObserveEvaluation),
		monitor.WithLogger(logger),
	}
	if db != nil {
		pollerOpts = append(pollerOpts, monitor.WithRecorder(db))
	}
	poller := monitor.NewPoller(monitor.DevTools{Client: client}, factory, pollerOpts...)

	logger.Info("starting phishguard",
		"devtools", client.Endpoint(),
		"renderer", cfg.Renderer,
		"whitelist", wl.Len(),
		"model", clf.ModelType(),
		"features", strings.Join(clf.SelectedFeatures(), ","),
		"close_on_phishing", cfg.CloseOnPhishing,
		"save_to_db", cfg.SaveToDB,
	)

	if once {
		result, err := poller.Sweep(ctx)
		if err != nil {
			return err
		}
		printSweep(out, result)
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancel := context.WithCancel(gctx)
	defer cancel()

	g.Go(func() error {
		defer cancel()
		return poller.Run(runCtx)
	})

	if cfg.MetricsAddr != "" {
		serverOpts := []metrics.ServerOption{metrics.WithServerLogger(logger)}
		if db != nil {
			serverOpts = append(serverOpts, metrics.WithHistory(db))
		}
		server := metrics.NewServer(cfg.MetricsAddr, m, serverOpts...)
		g.Go(func() error {
			if err := server.Run(runCtx); err != nil {
				return fmt.Errorf("status server: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}

// newRenderer builds the renderer selected in cfg. The returned func
// releases its resources and is never nil.
func newRenderer(cfg *config.Config, logger *slog.Logger) (browser.Renderer, func(), error) {
	switch cfg.Renderer {
	case config.RendererSession:
		return browser.NewSessionRenderer(), func() {}, nil

	case config.RendererHTTP:
		opts := []browser.HTTPOption{
			browser.WithHTTPTimeout(cfg.RenderTimeout),
			browser.WithHTTPUserAgent(cfg.UserAgent),
			browser.WithMaxBodySize(cfg.EffectiveMaxBodySize()),
			browser.WithHTTPLogger(logger),
		}
		if cfg.RenderProxy != "" {
			opts = append(opts, browser.WithSOCKS5Proxy(cfg.RenderProxy))
		}
		r, err := browser.NewHTTPRenderer(opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", config.ErrConfiguration, err)
		}
		return r, func() {}, nil

	case config.RendererHeadless:
		opts := []browser.HeadlessOption{
			browser.WithHeadlessTimeout(cfg.RenderTimeout),
			browser.WithHeadlessLogger(logger),
		}
		if cfg.RenderProxy != "" {
			opts = append(opts, browser.WithHeadlessProxy("socks5://"+cfg.RenderProxy))
		}
		r := browser.NewHeadlessRenderer(opts...)
		return r, func() {
			if err := r.Close(); err != nil {
				logger.Warn("failed to stop headless browser", "error", err)
			}
		}, nil
	}

	return nil, nil, config.ErrInvalidRenderer
}

// newAlerters returns the alert sinks enabled in cfg.
func newAlerters(cfg *config.Config, consoleOut io.Writer) []dispatch.Alerter {
	var alerters []dispatch.Alerter
	if cfg.ConsoleAlerts {
		alerters = append(alerters, dispatch.NewConsoleAlerter(consoleOut))
	}
	if cfg.DesktopAlerts {
		alerters = append(alerters, dispatch.NewDesktopAlerter())
	}
	if cfg.WebhookURL != "" {
		alerters = append(alerters, dispatch.NewWebhookAlerter(cfg.WebhookURL, cfg.CallTimeout))
	}
	return alerters
}

// printSweep writes a one-sweep summary.
func printSweep(w io.Writer, r pipeline.SweepResult) {
	fmt.Fprintf(w, "Sweep %s completed in %s\n", r.SweepID, r.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  tabs:      %d\n", r.Listed)
	fmt.Fprintf(w, "  phishing:  %d\n", r.Phishing)
	fmt.Fprintf(w, "  benign:    %d\n", r.Benign)
	fmt.Fprintf(w, "  skipped:   %d\n", r.Skipped)
	fmt.Fprintf(w, "  failed:    %d\n", r.Failed)
	for _, ev := range r.Evaluations {
		if ev == nil || !ev.Classified {
			continue
		}
		fmt.Fprintf(w, "  %-8s %.3f %s\n", ev.Verdict, ev.Score, ev.URL)
	}
}
