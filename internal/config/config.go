// Package config loads process settings from the environment, with an
// optional YAML file overlay for deployments that prefer files over
// environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	DataPath   string `envconfig:"DATA_PATH" default:"./data" yaml:"data_path"`
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8000" yaml:"listen_addr"`
	// ConfigFile, when set, points at a YAML file whose values override
	// the environment.
	ConfigFile string `envconfig:"CONFIG_FILE" default:"" yaml:"-"`

	// Shell is the program to run inside the PTY. Empty means $SHELL,
	// falling back to /bin/bash.
	Shell string `envconfig:"SHELL_CMD" default:"" yaml:"shell"`
	// IntegrationScript is an rc file sourced by the shell to install the
	// command markers.
	IntegrationScript string `envconfig:"INTEGRATION_SCRIPT" default:"" yaml:"integration_script"`

	CommandLogPath  string `envconfig:"COMMAND_LOG" default:"shell_commands.log" yaml:"command_log"`
	LogPath         string `envconfig:"LOG_PATH" default:"" yaml:"log_path"`
	ScrollbackBytes int    `envconfig:"SCROLLBACK_BYTES" default:"1048576" yaml:"scrollback_bytes"`

	// SessionLinger is how long a session survives after its client
	// disconnects. "0s" closes sessions immediately on disconnect.
	SessionLinger string `envconfig:"SESSION_LINGER" default:"0s" yaml:"session_linger"`
	// HistoryRetention is how long completed command records are kept.
	HistoryRetention string `envconfig:"HISTORY_RETENTION" default:"720h" yaml:"history_retention"`
}

var Cfg Settings

// Load populates Cfg from TERMSCRIBE_* environment variables, then overlays
// the YAML config file if one is configured.
func Load() error {
	if err := envconfig.Process("TERMSCRIBE", &Cfg); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if Cfg.ConfigFile != "" {
		data, err := os.ReadFile(Cfg.ConfigFile)
		if err != nil {
			return fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &Cfg); err != nil {
			return fmt.Errorf("parse config file %s: %w", Cfg.ConfigFile, err)
		}
	}
	if _, err := Cfg.Linger(); err != nil {
		return fmt.Errorf("invalid session_linger: %w", err)
	}
	if _, err := Cfg.Retention(); err != nil {
		return fmt.Errorf("invalid history_retention: %w", err)
	}
	return nil
}

// Linger parses the detached-session grace period.
func (s *Settings) Linger() (time.Duration, error) {
	return time.ParseDuration(s.SessionLinger)
}

// Retention parses the history retention window.
func (s *Settings) Retention() (time.Duration, error) {
	return time.ParseDuration(s.HistoryRetention)
}
