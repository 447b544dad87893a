package vfs

import (
	"context"
	"fmt"
	"io/fs"
	"time"

	"github.com/quarkdrive/quarkdrive/core"
)

// Callbacks is the typed operation record the adapter hands to the mount
// driver. The driver invokes these from its own threads; every callback is
// safe for concurrent use and bounded by the adapter's dispatch timeout.
type Callbacks struct {
	Getattr  func(path string) (Attr, error)
	Readdir  func(path string) ([]string, error)
	Read     func(path string, size, offset uint64) ([]byte, error)
	Write    func(path string, data []byte, offset uint64) (int, error)
	Create   func(path string, mode fs.FileMode) error
	Unlink   func(path string) error
	Truncate func(path string, length uint64) error
}

// MountHost is the capability handle for the native mount driver. It is
// constructed once at startup; an adapter without one cannot mount.
type MountHost interface {
	// Mount attaches the callback record at mountPoint and blocks until
	// the volume is unmounted or ctx is cancelled.
	Mount(ctx context.Context, mountPoint string, callbacks *Callbacks) error

	// Unmount detaches the volume.
	Unmount(ctx context.Context) error
}

// Callbacks returns the operation record with every dispatch wrapped by
// the timeout guard.
func (a *Adapter) Callbacks() *Callbacks {
	return &Callbacks{
		Getattr: func(path string) (Attr, error) {
			return dispatch(a, "getattr", func() (Attr, error) { return a.Getattr(path) })
		},
		Readdir: func(path string) ([]string, error) {
			return dispatch(a, "readdir", func() ([]string, error) { return a.Readdir(path) })
		},
		Read: func(path string, size, offset uint64) ([]byte, error) {
			return dispatch(a, "read", func() ([]byte, error) { return a.Read(path, size, offset) })
		},
		Write: func(path string, data []byte, offset uint64) (int, error) {
			return dispatch(a, "write", func() (int, error) { return a.Write(path, data, offset) })
		},
		Create: func(path string, mode fs.FileMode) error {
			_, err := dispatch(a, "create", func() (struct{}, error) { return struct{}{}, a.Create(path, mode) })
			return err
		},
		Unlink: func(path string) error {
			_, err := dispatch(a, "unlink", func() (struct{}, error) { return struct{}{}, a.Unlink(path) })
			return err
		},
		Truncate: func(path string, length uint64) error {
			_, err := dispatch(a, "truncate", func() (struct{}, error) { return struct{}{}, a.Truncate(path, length) })
			return err
		},
	}
}

// Mount attaches the namespace at mountPoint through the configured host.
// One mount per adapter; a missing host is a configuration error.
func (a *Adapter) Mount(ctx context.Context, mountPoint string) error {
	if a.host == nil {
		return core.ErrMountUnavailable
	}

	a.mu.Lock()
	if a.mounted {
		a.mu.Unlock()
		return fmt.Errorf("already mounted: %w", core.ErrInvariant)
	}
	a.mounted = true
	a.mu.Unlock()

	a.logger.Info("mounting", "mount_point", mountPoint)
	err := a.host.Mount(ctx, mountPoint, a.Callbacks())

	a.mu.Lock()
	a.mounted = false
	a.mu.Unlock()
	return err
}

// Unmount detaches the volume through the configured host.
func (a *Adapter) Unmount(ctx context.Context) error {
	if a.host == nil {
		return core.ErrMountUnavailable
	}
	return a.host.Unmount(ctx)
}

// dispatch runs op with the adapter's timeout. An overrun returns
// core.ErrTimeout while the operation finishes in the background; its
// eventual result is discarded.
func dispatch[T any](a *Adapter, op string, fn func() (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		val, err := fn()
		ch <- result{val: val, err: err}
	}()

	timer := time.NewTimer(a.timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		return res.val, res.err
	case <-timer.C:
		a.logger.Warn("callback exceeded budget", "op", op, "timeout", a.timeout)
		var zero T
		return zero, core.ErrTimeout
	}
}
