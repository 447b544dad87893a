// Package catalog stores the durable metadata mapping logical paths to
// blobs with reference counts, backed by an embedded bbolt store.
package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/opencontainers/go-digest"
	bolt "go.etcd.io/bbolt"

	"github.com/quarkdrive/quarkdrive/core"
)

var (
	bucketFiles = []byte("files")
	bucketBlobs = []byte("blobs")
)

// Aggregates holds the catalog-wide totals consumed by stats.
type Aggregates struct {
	// TotalFiles is the number of FileRecords.
	TotalFiles uint64
	// TotalBlobs is the number of unique BlobRecords.
	TotalBlobs uint64
	// TotalOriginalBytes is the sum of size_original * ref_count.
	TotalOriginalBytes uint64
	// TotalCompressedBytes is the sum of size_compressed.
	TotalCompressedBytes uint64
	// DuplicatedBlobs is the count of blobs with ref_count > 1.
	DuplicatedBlobs uint64
}

// Catalog is the durable files/blobs metadata store. bbolt serialises
// writers, so every mutating method is a single committed transaction.
type Catalog struct {
	db     *bolt.DB
	logger *slog.Logger
}

// Open opens (or creates) the catalog database at path.
func Open(path string, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketFiles); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketBlobs)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create catalog buckets: %w", err)
	}

	return &Catalog{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Path returns the database file path.
func (c *Catalog) Path() string {
	return c.db.Path()
}

// FileByPath returns the FileRecord for path, or core.ErrNotFound.
func (c *Catalog) FileByPath(path string) (*core.FileRecord, error) {
	var rec *core.FileRecord
	err := c.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketFiles).Get([]byte(path))
		if raw == nil {
			return fmt.Errorf("file %s: %w", path, core.ErrNotFound)
		}
		var err error
		rec, err = decodeFile(raw)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Files returns all FileRecords, in key order.
func (c *Catalog) Files() ([]core.FileRecord, error) {
	var out []core.FileRecord
	err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFiles).ForEach(func(_, raw []byte) error {
			rec, err := decodeFile(raw)
			if err != nil {
				return err
			}
			out = append(out, *rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertFile replaces any prior FileRecord for path. Refcount adjustments
// for a replaced digest are the caller's responsibility; use LinkFile to do
// both in one transaction.
func (c *Catalog) UpsertFile(path string, dgst digest.Digest, size uint64) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return upsertFile(tx, path, dgst, size)
	})
}

// LinkFile records path -> dgst and settles refcounts against any prior
// record for the same path, all in one transaction. The caller has already
// accounted one reference for dgst (a fresh insert or an IncrRef), so a
// prior record pointing at the old digest is decremented, and a prior
// record already pointing at dgst is offset to keep re-ingest idempotent.
func (c *Catalog) LinkFile(path string, dgst digest.Digest, size uint64) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketFiles).Get([]byte(path))
		if raw != nil {
			prior, err := decodeFile(raw)
			if err != nil {
				return err
			}
			if err := adjustRef(tx, prior.Digest, -1); err != nil {
				return err
			}
		}
		return upsertFile(tx, path, dgst, size)
	})
}

// DeleteFile removes the FileRecord for path and decrements its blob's
// refcount in the same transaction. Returns core.ErrNotFound if absent.
func (c *Catalog) DeleteFile(path string) (*core.FileRecord, error) {
	var rec *core.FileRecord
	err := c.db.Update(func(tx *bolt.Tx) error {
		files := tx.Bucket(bucketFiles)
		raw := files.Get([]byte(path))
		if raw == nil {
			return fmt.Errorf("file %s: %w", path, core.ErrNotFound)
		}
		var err error
		rec, err = decodeFile(raw)
		if err != nil {
			return err
		}
		if err := files.Delete([]byte(path)); err != nil {
			return err
		}
		return adjustRef(tx, rec.Digest, -1)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// InsertBlobIfAbsent creates a BlobRecord with ref_count 1. It is a no-op
// when the digest already exists.
func (c *Catalog) InsertBlobIfAbsent(dgst digest.Digest, blobPath string, sizeOriginal, sizeCompressed uint64) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		blobs := tx.Bucket(bucketBlobs)
		key := []byte(dgst.Encoded())
		if blobs.Get(key) != nil {
			return nil
		}
		raw, err := json.Marshal(core.BlobRecord{
			Digest:         dgst,
			BlobPath:       blobPath,
			SizeOriginal:   sizeOriginal,
			SizeCompressed: sizeCompressed,
			RefCount:       1,
		})
		if err != nil {
			return fmt.Errorf("marshal blob record: %w", err)
		}
		return blobs.Put(key, raw)
	})
}

// AcquireRef accounts one reference for dgst in a single transaction:
// a novel digest gets a BlobRecord with ref_count 1, an existing one is
// incremented. Racing stores of the same digest therefore settle to the
// correct total regardless of interleaving.
func (c *Catalog) AcquireRef(dgst digest.Digest, blobPath string, sizeOriginal, sizeCompressed uint64) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		blobs := tx.Bucket(bucketBlobs)
		key := []byte(dgst.Encoded())
		if blobs.Get(key) != nil {
			return adjustRef(tx, dgst, 1)
		}
		raw, err := json.Marshal(core.BlobRecord{
			Digest:         dgst,
			BlobPath:       blobPath,
			SizeOriginal:   sizeOriginal,
			SizeCompressed: sizeCompressed,
			RefCount:       1,
		})
		if err != nil {
			return fmt.Errorf("marshal blob record: %w", err)
		}
		return blobs.Put(key, raw)
	})
}

// Blob returns the BlobRecord for dgst, or core.ErrNotFound.
func (c *Catalog) Blob(dgst digest.Digest) (*core.BlobRecord, error) {
	var rec *core.BlobRecord
	err := c.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketBlobs).Get([]byte(dgst.Encoded()))
		if raw == nil {
			return fmt.Errorf("blob %s: %w", dgst.Encoded(), core.ErrNotFound)
		}
		var err error
		rec, err = decodeBlob(raw)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// IncrRef increments the refcount for dgst.
func (c *Catalog) IncrRef(dgst digest.Digest) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return adjustRef(tx, dgst, 1)
	})
}

// DecrRef decrements the refcount for dgst. Decrementing below zero fails
// with core.ErrInvariant.
func (c *Catalog) DecrRef(dgst digest.Digest) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return adjustRef(tx, dgst, -1)
	})
}

// DeleteBlob removes the BlobRecord for dgst. Deleting an absent record is
// not an error.
func (c *Catalog) DeleteBlob(dgst digest.Digest) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBlobs).Delete([]byte(dgst.Encoded()))
	})
}

// ZeroRefBlobs returns all BlobRecords whose refcount has reached zero.
// These are the candidates for the reclaim pass.
func (c *Catalog) ZeroRefBlobs() ([]core.BlobRecord, error) {
	var out []core.BlobRecord
	err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBlobs).ForEach(func(_, raw []byte) error {
			rec, err := decodeBlob(raw)
			if err != nil {
				return err
			}
			if rec.RefCount == 0 {
				out = append(out, *rec)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Aggregates computes the catalog-wide totals in one read transaction.
func (c *Catalog) Aggregates() (Aggregates, error) {
	var agg Aggregates
	err := c.db.View(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketFiles).ForEach(func(_, _ []byte) error {
			agg.TotalFiles++
			return nil
		}); err != nil {
			return err
		}
		return tx.Bucket(bucketBlobs).ForEach(func(_, raw []byte) error {
			rec, err := decodeBlob(raw)
			if err != nil {
				return err
			}
			agg.TotalBlobs++
			agg.TotalOriginalBytes += rec.SizeOriginal * rec.RefCount
			agg.TotalCompressedBytes += rec.SizeCompressed
			if rec.RefCount > 1 {
				agg.DuplicatedBlobs++
			}
			return nil
		})
	})
	if err != nil {
		return Aggregates{}, err
	}
	return agg, nil
}

// upsertFile writes the FileRecord for path inside tx, assigning a fresh
// surrogate ID for new paths and keeping the existing one on replacement.
func upsertFile(tx *bolt.Tx, path string, dgst digest.Digest, size uint64) error {
	files := tx.Bucket(bucketFiles)

	var id uint64
	if raw := files.Get([]byte(path)); raw != nil {
		prior, err := decodeFile(raw)
		if err != nil {
			return err
		}
		id = prior.ID
	} else {
		var err error
		id, err = files.NextSequence()
		if err != nil {
			return err
		}
	}

	raw, err := json.Marshal(core.FileRecord{ID: id, Path: path, Digest: dgst, Size: size})
	if err != nil {
		return fmt.Errorf("marshal file record: %w", err)
	}
	return files.Put([]byte(path), raw)
}

// adjustRef applies delta to the refcount of dgst inside tx.
func adjustRef(tx *bolt.Tx, dgst digest.Digest, delta int64) error {
	blobs := tx.Bucket(bucketBlobs)
	key := []byte(dgst.Encoded())
	raw := blobs.Get(key)
	if raw == nil {
		return fmt.Errorf("blob %s: %w", dgst.Encoded(), core.ErrNotFound)
	}

	rec, err := decodeBlob(raw)
	if err != nil {
		return err
	}
	if delta < 0 && rec.RefCount == 0 {
		return fmt.Errorf("refcount for %s already zero: %w", dgst.Encoded(), core.ErrInvariant)
	}
	rec.RefCount = uint64(int64(rec.RefCount) + delta)

	updated, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal blob record: %w", err)
	}
	return blobs.Put(key, updated)
}

func decodeFile(raw []byte) (*core.FileRecord, error) {
	var rec core.FileRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal file record: %w", err)
	}
	return &rec, nil
}

func decodeBlob(raw []byte) (*core.BlobRecord, error) {
	var rec core.BlobRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal blob record: %w", err)
	}
	return &rec, nil
}
