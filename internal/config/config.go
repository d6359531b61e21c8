// Copyright 2026 The Tandem Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the tandemd configuration.
//
// Sources, highest priority first: explicit overrides (command line
// flags), TANDEM_* environment variables, the YAML configuration file,
// and built-in defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/tandem-run/tandem"
)

const (
	DefaultConfigPath     = "/etc/tandem/tandem.yaml"
	DefaultName           = "tandem"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "console"
	DefaultLogMaxSize     = 100 // MB
	DefaultLogMaxBackups  = 3
	DefaultLogMaxAge      = 7 // days
	DefaultStatusListen   = "127.0.0.1:8321"
	DefaultStatusMaxConns = 16
	DefaultOutputLines    = tandem.MaxLogRecords

	// EnvPrefix prefixes every environment override, e.g. TANDEM_LOG_LEVEL.
	EnvPrefix = "TANDEM"
)

var (
	ErrBadLogLevel     = errors.New("invalid log level")
	ErrBadLogFormat    = errors.New("invalid log format")
	ErrBadStatusListen = errors.New("invalid status listen address")
)

// Config is the complete tandemd configuration.
type Config struct {
	Supervisor SupervisorConfig `mapstructure:"supervisor" yaml:"supervisor"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
	Status     StatusConfig     `mapstructure:"status" yaml:"status"`
	Processes  []ProcessConfig  `mapstructure:"processes" yaml:"processes"`
}

type SupervisorConfig struct {
	// Name is reported by the status API.
	Name string `mapstructure:"name" yaml:"name"`

	// LockFile, when set, is locked exclusively for the life of the
	// supervisor so that only one instance runs at a time.
	LockFile string `mapstructure:"lock_file" yaml:"lock_file,omitempty"`

	// LockWait is how long to wait for the lock before giving up.  Zero
	// gives up at once.
	LockWait time.Duration `mapstructure:"lock_wait" yaml:"lock_wait,omitempty"`

	// Shell overrides the argv prefix used to run command lines.
	Shell []string `mapstructure:"shell" yaml:"shell,omitempty"`

	// StopOnEscalate, when set, terminates the other processes once one of
	// them has made the supervisor fail.  Off, they run on.
	StopOnEscalate bool `mapstructure:"stop_on_escalate" yaml:"stop_on_escalate"`

	// OutputLines bounds the relayed lines kept per process for the
	// status API.
	OutputLines int `mapstructure:"output_lines" yaml:"output_lines"`
}

type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level" yaml:"level"`

	// Format is console or json.  It applies to supervisor events only;
	// relayed lines always use the bracketed console format.
	Format string `mapstructure:"format" yaml:"format"`

	// File, when set, receives a rotated copy of everything logged.
	File string `mapstructure:"file" yaml:"file,omitempty"`

	MaxSize    int  `mapstructure:"max_size" yaml:"max_size"`       // MB
	MaxBackups int  `mapstructure:"max_backups" yaml:"max_backups"` // files
	MaxAge     int  `mapstructure:"max_age" yaml:"max_age"`         // days
	Compress   bool `mapstructure:"compress" yaml:"compress"`
}

type StatusConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen   string `mapstructure:"listen" yaml:"listen"`
	MaxConns int    `mapstructure:"max_conns" yaml:"max_conns"`
}

type ProcessConfig struct {
	Name         string        `mapstructure:"name" yaml:"name"`
	Command      string        `mapstructure:"command" yaml:"command"`
	Restart      bool          `mapstructure:"restart" yaml:"restart"`
	Critical     bool          `mapstructure:"critical" yaml:"critical"`
	RestartDelay time.Duration `mapstructure:"restart_delay" yaml:"restart_delay,omitempty"`
}

// DefaultProcesses is the process table used when none is configured: a
// PostgreSQL server the container cannot live without, and an API server
// that is restarted whenever it exits.
func DefaultProcesses() []ProcessConfig {
	return []ProcessConfig{
		{
			Name:     "postgres",
			Command:  "/usr/local/bin/docker-entrypoint.sh postgres",
			Restart:  false,
			Critical: true,
		},
		{
			Name:     "api",
			Command:  "python -u /api/run.py",
			Restart:  true,
			Critical: false,
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("supervisor.name", DefaultName)
	v.SetDefault("supervisor.lock_file", "")
	v.SetDefault("supervisor.lock_wait", time.Duration(0))
	v.SetDefault("supervisor.shell", []string{})
	v.SetDefault("supervisor.stop_on_escalate", false)
	v.SetDefault("supervisor.output_lines", DefaultOutputLines)

	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", DefaultLogMaxSize)
	v.SetDefault("log.max_backups", DefaultLogMaxBackups)
	v.SetDefault("log.max_age", DefaultLogMaxAge)
	v.SetDefault("log.compress", false)

	v.SetDefault("status.enabled", false)
	v.SetDefault("status.listen", DefaultStatusListen)
	v.SetDefault("status.max_conns", DefaultStatusMaxConns)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if len(cfg.Processes) == 0 {
		cfg.Processes = DefaultProcesses()
	}
	return &cfg, nil
}

// Load reads the configuration.  The file is configPath if given, else
// $TANDEM_CONFIG, else DefaultConfigPath; a missing file is not an error.
// Overrides are applied last, keyed like the YAML (e.g. "log.level").
func Load(configPath string, overrides map[string]interface{}) (*Config, error) {
	v := newViper()

	if configPath == "" {
		configPath = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if configPath == "" {
		configPath = DefaultConfigPath
	}
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			if _, statErr := os.Stat(configPath); statErr == nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	for key, value := range overrides {
		v.Set(key, value)
	}
	return unmarshal(v)
}

// LoadFromYAML parses configuration from YAML bytes, on top of defaults
// and environment overrides.
func LoadFromYAML(data []byte) (*Config, error) {
	v := newViper()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return unmarshal(v)
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %q", ErrBadLogLevel, c.Log.Level)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("%w: %q", ErrBadLogFormat, c.Log.Format)
	}
	if c.Status.Enabled {
		if _, _, err := net.SplitHostPort(c.Status.Listen); err != nil {
			return fmt.Errorf("%w: %q: %v", ErrBadStatusListen, c.Status.Listen, err)
		}
	}
	return tandem.ValidateSpecs(c.Specs())
}

// Specs converts the process table.
func (c *Config) Specs() []tandem.ProcessSpec {
	specs := make([]tandem.ProcessSpec, 0, len(c.Processes))
	for _, p := range c.Processes {
		specs = append(specs, tandem.ProcessSpec{
			Name:         p.Name,
			Command:      p.Command,
			Restart:      p.Restart,
			Critical:     p.Critical,
			RestartDelay: p.RestartDelay,
		})
	}
	return specs
}

// ToYAML renders the configuration as YAML.
func (c *Config) ToYAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
