// Package core provides shared data types and errors for quarkdrive.
// Interfaces that define internal contracts live next to their consumers to
// avoid exposing them as part of the public API.
package core

import (
	"errors"

	"github.com/opencontainers/go-digest"
)

// Sentinel errors for common failure conditions.
var (
	// ErrNotFound indicates the requested path, digest, or blob was not found.
	ErrNotFound = errors.New("quarkdrive: not found")

	// ErrCodec indicates compression rejected its input or decompression
	// failed on a corrupt blob.
	ErrCodec = errors.New("quarkdrive: codec failure")

	// ErrInvariant indicates a refcount or catalog/blob inconsistency.
	// Operations that hit it are not recoverable.
	ErrInvariant = errors.New("quarkdrive: invariant violation")

	// ErrTimeout indicates a mount-host callback exceeded its budget.
	ErrTimeout = errors.New("quarkdrive: operation timed out")

	// ErrClosed indicates an operation was attempted on a closed resource.
	ErrClosed = errors.New("quarkdrive: resource closed")

	// ErrQuarantined indicates the digest previously failed decompression
	// and further reads are refused until the process restarts.
	ErrQuarantined = errors.New("quarkdrive: blob quarantined")

	// ErrNotDir indicates a directory operation on a non-directory path.
	ErrNotDir = errors.New("quarkdrive: not a directory")

	// ErrMountUnavailable indicates no mount driver capability was
	// configured at startup.
	ErrMountUnavailable = errors.New("quarkdrive: mount driver unavailable")
)

// FileRecord maps a logical file path to the blob holding its contents.
type FileRecord struct {
	// ID is the surrogate key assigned by the catalog.
	ID uint64 `json:"id"`
	// Path is the unique logical path of the file.
	Path string `json:"path"`
	// Digest identifies the blob holding the file's contents.
	Digest digest.Digest `json:"digest"`
	// Size is the uncompressed size in bytes. Always equals the
	// referenced blob's SizeOriginal.
	Size uint64 `json:"size"`
}

// BlobRecord describes one unique stored byte sequence.
type BlobRecord struct {
	// Digest is the content digest and primary key.
	Digest digest.Digest `json:"digest"`
	// BlobPath is where the compressed blob file lives.
	BlobPath string `json:"blob_path"`
	// SizeOriginal is the uncompressed size in bytes.
	SizeOriginal uint64 `json:"size_original"`
	// SizeCompressed is the on-disk compressed size in bytes.
	SizeCompressed uint64 `json:"size_compressed"`
	// RefCount is the number of FileRecords referencing this blob.
	RefCount uint64 `json:"ref_count"`
}
