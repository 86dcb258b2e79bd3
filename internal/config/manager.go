package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// reloadDebounce coalesces editor save bursts (write + chmod + rename)
// into a single reload.
const reloadDebounce = 200 * time.Millisecond

// Manager holds the current configuration and reloads it when the file
// changes on disk. Settings read through Get are therefore live: a payload
// or delay edited while a schedule is armed takes effect at trigger time.
type Manager struct {
	path string
	log  zerolog.Logger

	mu   sync.RWMutex
	cfg  *Config
	subs []func(*Config)
}

// NewManager creates a manager for the config file at path.
func NewManager(path string, log zerolog.Logger) *Manager {
	return &Manager{path: path, log: log}
}

// Load reads the file and makes the result current.
func (m *Manager) Load() (*Config, error) {
	cfg, err := Load(m.path)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	return cfg, nil
}

// Get returns the current configuration. Never nil after a successful Load.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cfg == nil {
		return Default()
	}
	return m.cfg
}

// OnChange registers a callback invoked after each successful reload.
func (m *Manager) OnChange(fn func(*Config)) {
	m.mu.Lock()
	m.subs = append(m.subs, fn)
	m.mu.Unlock()
}

// Watch reloads the configuration whenever the file changes, until ctx is
// cancelled. A reload that fails to parse keeps the previous configuration.
func (m *Manager) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Watch the directory, not the file: editors commonly replace the file
	// (rename + create), which drops a direct file watch.
	dir := filepath.Dir(m.path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return err
	}

	go func() {
		defer w.Close()

		var pending *time.Timer
		reload := func() {
			cfg, err := Load(m.path)
			if err != nil {
				m.log.Warn().Err(err).Str("path", m.path).Msg("config reload failed, keeping previous")
				return
			}
			m.mu.Lock()
			m.cfg = cfg
			subs := make([]func(*Config), len(m.subs))
			copy(subs, m.subs)
			m.mu.Unlock()

			m.log.Info().Str("path", m.path).Msg("config reloaded")
			for _, fn := range subs {
				fn(cfg)
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(m.path) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if pending != nil {
					pending.Stop()
				}
				pending = time.AfterFunc(reloadDebounce, reload)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				m.log.Warn().Err(err).Msg("config watcher error")
			}
		}
	}()

	return nil
}
