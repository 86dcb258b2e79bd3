package cli

import (
	"chime/internal/config"
)

// CLIContext carries per-invocation state between commands.
type CLIContext struct {
	Manager    *config.Manager
	ConfigPath string
}

// NewCLIContext creates a CLI context.
func NewCLIContext(manager *config.Manager, configPath string) *CLIContext {
	return &CLIContext{Manager: manager, ConfigPath: configPath}
}
