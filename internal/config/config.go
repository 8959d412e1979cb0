// Package config provides configuration loading for servedeck.
//
// Configuration is layered: built-in defaults, then an optional YAML file,
// then SERVEDECK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fyrsmithlabs/servedeck/internal/logging"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Transport kinds.
const (
	TransportLocal = "local"
	TransportNATS  = "nats"
)

// Config holds the complete servedeck configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Transport TransportConfig `koanf:"transport"`
	Settings  SettingsConfig  `koanf:"settings"`
	Producers ProducersConfig `koanf:"producers"`
	Logging   LoggingConfig   `koanf:"logging"`
	Projects  []ProjectConfig `koanf:"projects"`
}

// ServerConfig holds HTTP API configuration.
type ServerConfig struct {
	Host            string   `koanf:"http_host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// TransportConfig selects how servedeck talks to its producers.
type TransportConfig struct {
	// Kind is "local" (in-process producers) or "nats".
	Kind          string `koanf:"kind"`
	NATSURL       string `koanf:"nats_url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// SettingsConfig controls how project settings are sourced.
type SettingsConfig struct {
	// ConfigFile is joined to each project path to find its config file.
	ConfigFile string `koanf:"config_file"`
}

// ProducersConfig controls the bundled producers.
type ProducersConfig struct {
	Enabled       bool     `koanf:"enabled"`
	Watch         bool     `koanf:"watch"`
	StatusCommand string   `koanf:"status_command"`
	StatusTimeout Duration `koanf:"status_timeout"`
}

// StatusArgv splits the status command into arguments.
func (p ProducersConfig) StatusArgv() []string {
	return strings.Fields(p.StatusCommand)
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Logger converts to a logging configuration.
func (l LoggingConfig) Logger() *logging.Config {
	cfg := logging.NewDefaultConfig()
	if lvl, err := logging.LevelFromString(l.Level); err == nil {
		cfg.Level = lvl
	}
	if l.Format != "" {
		cfg.Format = l.Format
	}
	return cfg
}

// ProjectConfig is a project registered at startup.
type ProjectConfig struct {
	Name string `koanf:"name"`
	Path string `koanf:"path"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.http_port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}

	switch c.Transport.Kind {
	case TransportLocal:
	case TransportNATS:
		if c.Transport.NATSURL == "" {
			errs = append(errs, errors.New("transport.nats_url is required for nats transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("transport.kind must be %q or %q, got %q", TransportLocal, TransportNATS, c.Transport.Kind))
	}
	if c.Transport.SubjectPrefix == "" {
		errs = append(errs, errors.New("transport.subject_prefix cannot be empty"))
	}

	if c.Settings.ConfigFile == "" {
		errs = append(errs, errors.New("settings.config_file cannot be empty"))
	} else if filepath.IsAbs(c.Settings.ConfigFile) {
		errs = append(errs, fmt.Errorf("settings.config_file must be relative to the project, got %q", c.Settings.ConfigFile))
	}

	if c.Producers.Enabled && len(c.Producers.StatusArgv()) == 0 {
		errs = append(errs, errors.New("producers.status_command cannot be empty"))
	}

	if _, err := logging.LevelFromString(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		errs = append(errs, fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format))
	}

	seen := make(map[string]bool, len(c.Projects))
	for i, p := range c.Projects {
		if p.Name == "" || p.Path == "" {
			errs = append(errs, fmt.Errorf("projects[%d]: name and path are required", i))
			continue
		}
		if seen[p.Path] {
			errs = append(errs, fmt.Errorf("projects[%d]: duplicate path %s", i, p.Path))
		}
		seen[p.Path] = true
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
