package config

import (
	"fmt"
	"sync"
)

// Holder provides thread-safe access to the resolved *Config. Watch mode
// shares one Holder between the ticker loop and the file watcher, so a
// reload updates config in exactly one place.
type Holder struct {
	mu   sync.RWMutex
	cfg  *Config
	path string       // immutable after construction
	env  EnvOverrides // reapplied on every reload
}

// NewHolder creates a Holder with the initial config, its file path, and the
// environment overrides that produced it.
func NewHolder(cfg *Config, path string, env EnvOverrides) *Holder {
	return &Holder{
		cfg:  cfg,
		path: path,
		env:  env,
	}
}

// Config returns the current config snapshot. Callers must not mutate it.
func (h *Holder) Config() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.cfg
}

// Path returns the config file path.
func (h *Holder) Path() string {
	return h.path
}

// Reload re-reads the config file and swaps it in. On any error the current
// config is kept. It returns the previous and the new snapshot.
func (h *Holder) Reload() (previous, current *Config, err error) {
	cfg, err := LoadOrDefault(h.path)
	if err != nil {
		return nil, nil, fmt.Errorf("reloading %s: %w", h.path, err)
	}

	h.env.Apply(cfg)

	h.mu.Lock()
	previous = h.cfg
	h.cfg = cfg
	h.mu.Unlock()

	return previous, cfg, nil
}
