// Package config provides configuration loading and hot reloading for chime.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"chime/pkg/logger"
)

// Config is the root configuration structure.
type Config struct {
	Log      logger.Config  `mapstructure:"log" yaml:"log"`
	Session  SessionConfig  `mapstructure:"session" yaml:"session"`
	Inject   InjectConfig   `mapstructure:"inject" yaml:"inject"`
	Terminal TerminalConfig `mapstructure:"terminal" yaml:"terminal"`
}

// SessionConfig describes the tmux session the scheduler launches.
type SessionConfig struct {
	// Name is the well-known session name, reused across runs.
	Name string `mapstructure:"name" yaml:"name"`
	// Command is the program run as the session's active command.
	Command string `mapstructure:"command" yaml:"command"`
	// WorkDir is the session working directory, empty means inherit.
	WorkDir string `mapstructure:"workdir" yaml:"workdir,omitempty"`
}

// InjectConfig controls the delayed input injection after launch.
type InjectConfig struct {
	// Payload is the literal line written into the session.
	Payload string `mapstructure:"payload" yaml:"payload"`
	// Delay is how long after launch the payload is injected.
	Delay time.Duration `mapstructure:"delay" yaml:"delay"`
}

// TerminalConfig selects the terminal application used to attach.
type TerminalConfig struct {
	// App overrides the platform default ("Terminal" on macOS,
	// autodetected on Linux).
	App string `mapstructure:"app" yaml:"app,omitempty"`
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if c.Session.Name == "" {
		return errors.New("config: session.name must not be empty")
	}
	if strings.ContainsAny(c.Session.Name, " \t:.") {
		return fmt.Errorf("config: session.name %q contains characters tmux rejects", c.Session.Name)
	}
	if c.Session.Command == "" {
		return errors.New("config: session.command must not be empty")
	}
	if c.Inject.Delay < 0 {
		return errors.New("config: inject.delay must not be negative")
	}
	return nil
}

// Load reads configuration from path with ENV > file > defaults precedence.
// A missing file is not an error; parse failures are.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CHIME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return nil, err
		}
		v.SetConfigFile(expanded)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, err
			}
			var pathErr *os.PathError
			if !errors.As(err, &pathErr) && !os.IsNotExist(err) {
				if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
					return nil, err
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}
