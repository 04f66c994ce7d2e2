package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Reloader re-reads a config file and hands validated edits to a callback
// as a [ConfigDiff]. Invalid edits are logged and the previous config stays
// current.
type Reloader struct {
	path     string
	interval time.Duration
	apply    func(ConfigDiff, *Config)

	mu      sync.Mutex
	current *Config
	digest  [sha256.Size]byte
}

// ReloaderOption configures a [Reloader].
type ReloaderOption func(*Reloader)

// WithInterval sets how often [Reloader.Run] re-reads the file. The default
// is 5 seconds.
func WithInterval(d time.Duration) ReloaderOption {
	return func(r *Reloader) {
		if d > 0 {
			r.interval = d
		}
	}
}

// NewReloader loads path once and returns a Reloader holding it. apply may
// be nil.
func NewReloader(path string, apply func(ConfigDiff, *Config), opts ...ReloaderOption) (*Reloader, error) {
	r := &Reloader{
		path:     path,
		interval: 5 * time.Second,
		apply:    apply,
	}
	for _, opt := range opts {
		opt(r)
	}

	cfg, digest, err := r.read()
	if err != nil {
		return nil, fmt.Errorf("config: reloader initial load: %w", err)
	}
	r.current, r.digest = cfg, digest
	return r, nil
}

// Current returns the most recently loaded valid config.
func (r *Reloader) Current() *Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Reload re-reads the file now. It reports whether a new config was
// accepted; an unchanged file is not an error. apply runs outside the lock
// so it may call [Reloader.Current].
func (r *Reloader) Reload() (bool, error) {
	cfg, digest, err := r.read()
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	if digest == r.digest {
		r.mu.Unlock()
		return false, nil
	}
	old := r.current
	r.current, r.digest = cfg, digest
	r.mu.Unlock()

	d := Diff(old, cfg)
	slog.Info("configuration reloaded", "path", r.path, "hot_reloadable", d.HotReloadable())
	if r.apply != nil {
		r.apply(d, cfg)
	}
	return true, nil
}

// Run calls [Reloader.Reload] every interval until ctx is done. It always
// returns nil so it can run in an errgroup beside the server.
func (r *Reloader) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.Reload(); err != nil {
				slog.Warn("config reload rejected, keeping previous config", "path", r.path, "err", err)
			}
		}
	}
}

func (r *Reloader) read() (*Config, [sha256.Size]byte, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, [sha256.Size]byte{}, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, [sha256.Size]byte{}, err
	}
	return cfg, sha256.Sum256(data), nil
}
