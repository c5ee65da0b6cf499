package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the file name watch, check and history look for
// when --config is not given.
const DefaultConfigFile = ".phishguard"

// ErrConfigNotFound reports a missing configuration file.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadConfigFile parses the YAML settings at path. A missing file is
// ErrConfigNotFound; unreadable or malformed YAML wraps ErrConfiguration.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("%w: read %s: %w", ErrConfiguration, path, err)
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrConfiguration, path, err)
	}

	return &cf, nil
}

// FindConfigFile resolves the settings file to load, or "" when there is
// none. An explicit configPath is used only if it exists. Otherwise
// ./.phishguard wins over ~/.phishguard. Values read from the file sit
// between the built-in defaults and command-line flags.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if fileExists(configPath) {
			return configPath
		}
		return ""
	}

	var dirs []string
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, cwd)
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, home)
	}
	for _, dir := range dirs {
		if candidate := filepath.Join(dir, DefaultConfigFile); fileExists(candidate) {
			return candidate
		}
	}
	return ""
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
