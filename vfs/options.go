package vfs

import (
	"fmt"
	"log/slog"
	"time"
)

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter) error

// WithMountHost sets the mount driver capability. Without one, Mount
// returns core.ErrMountUnavailable.
func WithMountHost(host MountHost) AdapterOption {
	return func(a *Adapter) error {
		a.host = host
		return nil
	}
}

// WithLogger sets a logger for the adapter. By default, logging is disabled.
func WithLogger(logger *slog.Logger) AdapterOption {
	return func(a *Adapter) error {
		a.logger = logger
		return nil
	}
}

// WithCallbackTimeout overrides the per-callback dispatch budget.
// Defaults to DefaultCallbackTimeout.
func WithCallbackTimeout(d time.Duration) AdapterOption {
	return func(a *Adapter) error {
		if d <= 0 {
			return fmt.Errorf("callback timeout must be positive, got %v", d)
		}
		a.timeout = d
		return nil
	}
}

// WithCreateOnWrite controls whether a write to an absent name implicitly
// creates it. Enabled by default; when disabled, such writes fail with
// core.ErrNotFound.
func WithCreateOnWrite(enabled bool) AdapterOption {
	return func(a *Adapter) error {
		a.createOnWrite = enabled
		return nil
	}
}
