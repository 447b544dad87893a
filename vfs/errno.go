package vfs

import (
	"errors"
	"syscall"

	"github.com/quarkdrive/quarkdrive/core"
)

// Errno translates an adapter error to the numeric code expected by the
// mount host. Timeouts and integrity failures map to the neutral EIO so
// the host retries or surfaces a generic I/O failure rather than acting on
// a misleading code.
func Errno(err error) syscall.Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, core.ErrNotFound):
		return syscall.ENOENT
	case errors.Is(err, core.ErrNotDir):
		return syscall.ENOTDIR
	default:
		return syscall.EIO
	}
}
