package quarkdrive

import "github.com/quarkdrive/quarkdrive/core"

// Sentinel errors for common failure conditions.
// Re-exported from core so callers can match without importing it.
var (
	// ErrNotFound indicates the requested path, digest, or blob was not found.
	ErrNotFound = core.ErrNotFound

	// ErrCodec indicates compression rejected its input or decompression
	// failed on a corrupt blob.
	ErrCodec = core.ErrCodec

	// ErrInvariant indicates a refcount or catalog/blob inconsistency.
	ErrInvariant = core.ErrInvariant

	// ErrTimeout indicates an operation exceeded its budget.
	ErrTimeout = core.ErrTimeout

	// ErrClosed indicates an operation was attempted on a closed engine.
	ErrClosed = core.ErrClosed

	// ErrQuarantined indicates the digest previously failed decompression.
	ErrQuarantined = core.ErrQuarantined

	// ErrMountUnavailable indicates no mount driver capability was
	// configured at startup.
	ErrMountUnavailable = core.ErrMountUnavailable
)
