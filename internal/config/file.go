package config

import "time"

// AlertsFile configures the alert sinks in the configuration file.
type AlertsFile struct {
	// Console toggles the colored console alert.
	Console *bool `yaml:"console,omitempty"`

	// Desktop toggles desktop notifications.
	Desktop *bool `yaml:"desktop,omitempty"`

	// Webhook is a URL receiving a JSON POST per phishing verdict.
	Webhook string `yaml:"webhook,omitempty"`
}

// File represents the structure of the .phishguard configuration file.
// Unset fields leave the corresponding Config value untouched.
type File struct {
	DevTools        string        `yaml:"devtools,omitempty"`
	PollInterval    time.Duration `yaml:"pollInterval,omitempty"`
	ErrorBackoff    time.Duration `yaml:"errorBackoff,omitempty"`
	CallTimeout     time.Duration `yaml:"callTimeout,omitempty"`
	RenderTimeout   time.Duration `yaml:"renderTimeout,omitempty"`
	Workers         int           `yaml:"workers,omitempty"`
	Artifact        string        `yaml:"artifact,omitempty"`
	WhitelistFile   string        `yaml:"whitelistFile,omitempty"`
	VerdictLog      string        `yaml:"verdictLog,omitempty"`
	DBDir           string        `yaml:"dbDir,omitempty"`
	SaveToDB        *bool         `yaml:"saveToDB,omitempty"`
	Renderer        string        `yaml:"renderer,omitempty"`
	RenderProxy     string        `yaml:"renderProxy,omitempty"`
	UserAgent       string        `yaml:"userAgent,omitempty"`
	MaxBodySize     int64         `yaml:"maxBodySize,omitempty"`
	CloseOnPhishing *bool         `yaml:"closeOnPhishing,omitempty"`
	MetricsAddr     string        `yaml:"metricsAddr,omitempty"`
	RecheckInterval time.Duration `yaml:"recheckInterval,omitempty"`

	// Alerts configures the alert sinks.
	Alerts AlertsFile `yaml:"alerts,omitempty"`

	// Whitelist holds extra entries merged with the whitelist file.
	Whitelist []string `yaml:"whitelist,omitempty"`
}

// Apply overlays every field set in the file onto cfg.
func (f *File) Apply(cfg *Config) {
	if f == nil || cfg == nil {
		return
	}

	setString(&cfg.DevToolsURL, f.DevTools)
	setDuration(&cfg.PollInterval, f.PollInterval)
	setDuration(&cfg.ErrorBackoff, f.ErrorBackoff)
	setDuration(&cfg.CallTimeout, f.CallTimeout)
	setDuration(&cfg.RenderTimeout, f.RenderTimeout)
	setDuration(&cfg.RecheckInterval, f.RecheckInterval)
	setString(&cfg.ArtifactPath, f.Artifact)
	setString(&cfg.WhitelistPath, f.WhitelistFile)
	setString(&cfg.VerdictLogPath, f.VerdictLog)
	setString(&cfg.DBDir, f.DBDir)
	setString(&cfg.Renderer, f.Renderer)
	setString(&cfg.RenderProxy, f.RenderProxy)
	setString(&cfg.UserAgent, f.UserAgent)
	setString(&cfg.MetricsAddr, f.MetricsAddr)
	setString(&cfg.WebhookURL, f.Alerts.Webhook)
	setBool(&cfg.SaveToDB, f.SaveToDB)
	setBool(&cfg.CloseOnPhishing, f.CloseOnPhishing)
	setBool(&cfg.ConsoleAlerts, f.Alerts.Console)
	setBool(&cfg.DesktopAlerts, f.Alerts.Desktop)

	if f.Workers != 0 {
		cfg.Workers = f.Workers
	}
	if f.MaxBodySize != 0 {
		cfg.MaxBodySize = f.MaxBodySize
	}
	if len(f.Whitelist) > 0 {
		cfg.WhitelistEntries = append(cfg.WhitelistEntries, f.Whitelist...)
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
