package config

import (
	"time"

	"github.com/spf13/viper"
)

// Built-in defaults. The session name and payload are deliberately stable so
// re-running attaches to the same place every time.
const (
	DefaultSessionName = "claude-session"
	DefaultCommand     = "claude"
	DefaultPayload     = "hi"
	DefaultInjectDelay = 30 * time.Second
)

// setDefaults registers default values on the given viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")

	v.SetDefault("session.name", DefaultSessionName)
	v.SetDefault("session.command", DefaultCommand)
	v.SetDefault("session.workdir", "")

	v.SetDefault("inject.payload", DefaultPayload)
	v.SetDefault("inject.delay", DefaultInjectDelay)

	v.SetDefault("terminal.app", "")
}
