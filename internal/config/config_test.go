package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestNewConfig verifies that NewConfig returns a Config with all expected default values.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default DevToolsURL is the local debugging port", func(t *testing.T) {
		t.Parallel()
		if cfg.DevToolsURL != "http://127.0.0.1:9222" {
			t.Errorf("expected DevToolsURL to be 'http://127.0.0.1:9222', got '%s'", cfg.DevToolsURL)
		}
	})

	t.Run("default PollInterval is 4 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.PollInterval != 4*time.Second {
			t.Errorf("expected PollInterval to be 4s, got %v", cfg.PollInterval)
		}
	})

	t.Run("default ErrorBackoff is 5 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.ErrorBackoff != 5*time.Second {
			t.Errorf("expected ErrorBackoff to be 5s, got %v", cfg.ErrorBackoff)
		}
	})

	t.Run("default Workers is 4", func(t *testing.T) {
		t.Parallel()
		if cfg.Workers != 4 {
			t.Errorf("expected Workers to be 4, got %d", cfg.Workers)
		}
	})

	t.Run("default Renderer is headless", func(t *testing.T) {
		t.Parallel()
		if cfg.Renderer != RendererHeadless {
			t.Errorf("expected Renderer to be %q, got %q", RendererHeadless, cfg.Renderer)
		}
	})

	t.Run("tabs are closed on phishing by default", func(t *testing.T) {
		t.Parallel()
		if !cfg.CloseOnPhishing {
			t.Error("expected CloseOnPhishing to be true")
		}
	})

	t.Run("recheck cache is disabled by default", func(t *testing.T) {
		t.Parallel()
		if cfg.RecheckInterval != 0 {
			t.Errorf("expected RecheckInterval to be 0, got %v", cfg.RecheckInterval)
		}
	})

	t.Run("paths live under XDG directories", func(t *testing.T) {
		t.Parallel()
		if cfg.VerdictLogPath != filepath.Join(XDGDataDir(), "logs.txt") {
			t.Errorf("unexpected VerdictLogPath %q", cfg.VerdictLogPath)
		}
		if cfg.ArtifactPath != filepath.Join(XDGConfigDir(), "model.json") {
			t.Errorf("unexpected ArtifactPath %q", cfg.ArtifactPath)
		}
		if cfg.WhitelistPath != filepath.Join(XDGConfigDir(), "whitelist.txt") {
			t.Errorf("unexpected WhitelistPath %q", cfg.WhitelistPath)
		}
	})

	t.Run("defaults are valid", func(t *testing.T) {
		t.Parallel()
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected defaults to validate, got %v", err)
		}
	})
}

// TestConfigValidate tests the Validate method with various configurations.
// Each test case is designed to test one specific validation rule.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{name: "empty devtools endpoint", mutate: func(c *Config) { c.DevToolsURL = "" }, wantErr: ErrInvalidDevToolsURL},
		{name: "websocket devtools endpoint", mutate: func(c *Config) { c.DevToolsURL = "ws://127.0.0.1:9222" }, wantErr: ErrInvalidDevToolsURL},
		{name: "zero poll interval", mutate: func(c *Config) { c.PollInterval = 0 }, wantErr: ErrInvalidPollInterval},
		{name: "negative error backoff", mutate: func(c *Config) { c.ErrorBackoff = -time.Second }, wantErr: ErrInvalidErrorBackoff},
		{name: "zero call timeout", mutate: func(c *Config) { c.CallTimeout = 0 }, wantErr: ErrInvalidTimeout},
		{name: "zero render timeout", mutate: func(c *Config) { c.RenderTimeout = 0 }, wantErr: ErrInvalidTimeout},
		{name: "zero workers", mutate: func(c *Config) { c.Workers = 0 }, wantErr: ErrInvalidWorkers},
		{name: "unknown renderer", mutate: func(c *Config) { c.Renderer = "firefox" }, wantErr: ErrInvalidRenderer},
		{name: "no artifact", mutate: func(c *Config) { c.ArtifactPath = "" }, wantErr: ErrNoArtifact},
		{name: "negative recheck interval", mutate: func(c *Config) { c.RecheckInterval = -time.Minute }, wantErr: ErrInvalidRecheckInterval},
		{name: "negative body size", mutate: func(c *Config) { c.MaxBodySize = -1 }, wantErr: ErrInvalidMaxBodySize},
		{name: "bad webhook", mutate: func(c *Config) { c.WebhookURL = "mailto:x@example.com" }, wantErr: ErrInvalidWebhookURL},
		{name: "http renderer", mutate: func(c *Config) { c.Renderer = RendererHTTP }},
		{name: "session renderer", mutate: func(c *Config) { c.Renderer = RendererSession }},
		{name: "https webhook", mutate: func(c *Config) { c.WebhookURL = "https://hooks.example.com/x" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("expected nil, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if !errors.Is(err, ErrConfiguration) {
				t.Errorf("expected error to wrap ErrConfiguration, got %v", err)
			}
		})
	}
}

func TestEffectiveMaxBodySize(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	cfg.MaxBodySize = 0
	if got := cfg.EffectiveMaxBodySize(); got != DefaultMaxBodySize {
		t.Errorf("expected default %d, got %d", DefaultMaxBodySize, got)
	}

	cfg.MaxBodySize = 1024
	if got := cfg.EffectiveMaxBodySize(); got != 1024 {
		t.Errorf("expected 1024, got %d", got)
	}
}

func TestFileApply(t *testing.T) {
	t.Parallel()

	t.Run("set fields override defaults", func(t *testing.T) {
		t.Parallel()

		no := false
		f := &File{
			DevTools:        "http://10.0.0.2:9333",
			PollInterval:    2 * time.Second,
			Workers:         8,
			Renderer:        RendererHTTP,
			CloseOnPhishing: &no,
			RecheckInterval: time.Minute,
			Alerts:          AlertsFile{Desktop: &no, Webhook: "https://hooks.example.com/p"},
			Whitelist:       []string{"example.com"},
		}

		cfg := NewConfig()
		f.Apply(cfg)

		if cfg.DevToolsURL != "http://10.0.0.2:9333" {
			t.Errorf("unexpected DevToolsURL %q", cfg.DevToolsURL)
		}
		if cfg.PollInterval != 2*time.Second {
			t.Errorf("unexpected PollInterval %v", cfg.PollInterval)
		}
		if cfg.Workers != 8 {
			t.Errorf("unexpected Workers %d", cfg.Workers)
		}
		if cfg.Renderer != RendererHTTP {
			t.Errorf("unexpected Renderer %q", cfg.Renderer)
		}
		if cfg.CloseOnPhishing {
			t.Error("expected CloseOnPhishing to be false")
		}
		if cfg.DesktopAlerts {
			t.Error("expected DesktopAlerts to be false")
		}
		if !cfg.ConsoleAlerts {
			t.Error("expected ConsoleAlerts to stay true")
		}
		if cfg.WebhookURL != "https://hooks.example.com/p" {
			t.Errorf("unexpected WebhookURL %q", cfg.WebhookURL)
		}
		if cfg.RecheckInterval != time.Minute {
			t.Errorf("unexpected RecheckInterval %v", cfg.RecheckInterval)
		}
		if len(cfg.WhitelistEntries) != 1 || cfg.WhitelistEntries[0] != "example.com" {
			t.Errorf("unexpected WhitelistEntries %v", cfg.WhitelistEntries)
		}
	})

	t.Run("empty file leaves config untouched", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		(&File{}).Apply(cfg)
		want := NewConfig()

		if cfg.DevToolsURL != want.DevToolsURL || cfg.PollInterval != want.PollInterval ||
			cfg.Workers != want.Workers || cfg.CloseOnPhishing != want.CloseOnPhishing {
			t.Errorf("expected defaults, got %+v", cfg)
		}
	})

	t.Run("nil file is a no-op", func(t *testing.T) {
		t.Parallel()

		var f *File
		cfg := NewConfig()
		f.Apply(cfg)
		if cfg.Workers != DefaultWorkers {
			t.Errorf("unexpected Workers %d", cfg.Workers)
		}
	})
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()

		content := strings.Join([]string{
			"devtools: http://127.0.0.1:9333",
			"pollInterval: 2s",
			"errorBackoff: 10s",
			"workers: 2",
			"renderer: session",
			"closeOnPhishing: false",
			"alerts:",
			"  console: true",
			"  desktop: false",
			"  webhook: https://hooks.example.com/phish",
			"whitelist:",
			"  - Example.com",
			"  - intranet.local",
			"",
		}, "\n")
		path := filepath.Join(t.TempDir(), ".phishguard")
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		f, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if f.DevTools != "http://127.0.0.1:9333" {
			t.Errorf("unexpected devtools %q", f.DevTools)
		}
		if f.PollInterval != 2*time.Second || f.ErrorBackoff != 10*time.Second {
			t.Errorf("unexpected durations %v %v", f.PollInterval, f.ErrorBackoff)
		}
		if f.Workers != 2 || f.Renderer != RendererSession {
			t.Errorf("unexpected workers/renderer %d %q", f.Workers, f.Renderer)
		}
		if f.CloseOnPhishing == nil || *f.CloseOnPhishing {
			t.Error("expected closeOnPhishing to be set to false")
		}
		if f.Alerts.Desktop == nil || *f.Alerts.Desktop {
			t.Error("expected alerts.desktop to be set to false")
		}
		if f.Alerts.Webhook != "https://hooks.example.com/phish" {
			t.Errorf("unexpected webhook %q", f.Alerts.Webhook)
		}
		if len(f.Whitelist) != 2 {
			t.Errorf("expected 2 whitelist entries, got %v", f.Whitelist)
		}
	})

	t.Run("returns configuration error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), ".phishguard")
		if err := os.WriteFile(path, []byte("workers: [unclosed"), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		_, err := LoadConfigFile(path)
		if !errors.Is(err, ErrConfiguration) {
			t.Errorf("expected ErrConfiguration, got %v", err)
		}
	})

	t.Run("returns configuration error for bad duration", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), ".phishguard")
		if err := os.WriteFile(path, []byte("pollInterval: soon\n"), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		_, err := LoadConfigFile(path)
		if !errors.Is(err, ErrConfiguration) {
			t.Errorf("expected ErrConfiguration, got %v", err)
		}
	})
}

func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns explicit path if exists", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(path, []byte("workers: 1\n"), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}
		if got := FindConfigFile(path); got != path {
			t.Errorf("expected %q, got %q", path, got)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		t.Parallel()

		if got := FindConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); got != "" {
			t.Errorf("expected empty path, got %q", got)
		}
	})
}

func TestXDGDirs(t *testing.T) {
	t.Parallel()

	t.Run("XDGDataDir ends with the app name", func(t *testing.T) {
		t.Parallel()
		if filepath.Base(XDGDataDir()) != AppName {
			t.Errorf("unexpected data dir %q", XDGDataDir())
		}
	})

	t.Run("XDGConfigDir ends with the app name", func(t *testing.T) {
		t.Parallel()
		if filepath.Base(XDGConfigDir()) != AppName {
			t.Errorf("unexpected config dir %q", XDGConfigDir())
		}
	})
}
