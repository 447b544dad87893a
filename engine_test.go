package quarkdrive

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarkdrive/quarkdrive/internal/hashing"
)

func openTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	base := t.TempDir()
	all := append([]Option{
		WithDataRoot(filepath.Join(base, "data")),
		WithCacheRoot(filepath.Join(base, "cache_ssd")),
		WithRAMBudget(1 << 20),
		WithWriteBackDelay(20 * time.Millisecond),
	}, opts...)

	eng, err := Open(all...)
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })
	return eng
}

func writeSource(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

// seqBytes returns the 256-byte sequence 0x00..0xFF.
func seqBytes() []byte {
	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i)
	}
	return data
}

func TestStoreRetrieveRoundTrip(t *testing.T) {
	t.Parallel()

	eng := openTestEngine(t)
	src := writeSource(t, "A.bin", seqBytes())

	dgst, err := eng.StoreFile(src)
	require.NoError(t, err)
	assert.Equal(t,
		"40aff2e9d2d8922e47afd4648e6967497158785fbd1da870e7110266bf944880",
		dgst.Encoded())

	rec, err := eng.Lookup(src)
	require.NoError(t, err)
	assert.Equal(t, dgst, rec.Digest)
	assert.Equal(t, uint64(256), rec.Size)

	blob, err := eng.BlobInfo(dgst)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), blob.RefCount)
	assert.Equal(t, uint64(256), blob.SizeOriginal)
	_, err = os.Stat(blob.BlobPath)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "out.bin")
	require.NoError(t, eng.RetrieveFile(src, out))
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, seqBytes(), got)
}

func TestDuplicateDetection(t *testing.T) {
	t.Parallel()

	eng := openTestEngine(t)
	a := writeSource(t, "A.bin", seqBytes())
	b := writeSource(t, "B.bin", seqBytes())

	dgstA, err := eng.StoreFile(a)
	require.NoError(t, err)
	dgstB, err := eng.StoreFile(b)
	require.NoError(t, err)
	assert.Equal(t, dgstA, dgstB)

	files, err := eng.Files()
	require.NoError(t, err)
	assert.Len(t, files, 2)

	blob, err := eng.BlobInfo(dgstA)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), blob.RefCount)

	entries, err := os.ReadDir(filepath.Dir(blob.BlobPath))
	require.NoError(t, err)
	var blobFiles int
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".zst" {
			blobFiles++
		}
	}
	assert.Equal(t, 1, blobFiles)
}

func TestUnlinkRefcountAndReclaim(t *testing.T) {
	t.Parallel()

	eng := openTestEngine(t)
	a := writeSource(t, "A.bin", seqBytes())
	b := writeSource(t, "B.bin", seqBytes())

	dgst, err := eng.StoreFile(a)
	require.NoError(t, err)
	_, err = eng.StoreFile(b)
	require.NoError(t, err)

	require.NoError(t, eng.RemoveFile(a))
	blob, err := eng.BlobInfo(dgst)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), blob.RefCount)
	_, err = os.Stat(blob.BlobPath)
	require.NoError(t, err)

	require.NoError(t, eng.RemoveFile(b))
	blob, err = eng.BlobInfo(dgst)
	require.NoError(t, err)
	assert.Zero(t, blob.RefCount)
	_, err = os.Stat(blob.BlobPath)
	require.NoError(t, err, "blob is retained until reclaim")

	res, err := eng.Reclaim(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.BlobsRemoved)

	_, err = eng.BlobInfo(dgst)
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = os.Stat(blob.BlobPath)
	assert.True(t, os.IsNotExist(err))
}

func TestReIngestIdempotence(t *testing.T) {
	t.Parallel()

	eng := openTestEngine(t)
	src := writeSource(t, "A.bin", seqBytes())

	dgst, err := eng.StoreFile(src)
	require.NoError(t, err)
	_, err = eng.StoreFile(src)
	require.NoError(t, err)

	blob, err := eng.BlobInfo(dgst)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), blob.RefCount)

	files, err := eng.Files()
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestReIngestChangedContent(t *testing.T) {
	t.Parallel()

	eng := openTestEngine(t)
	src := writeSource(t, "A.bin", []byte("first version"))

	oldDgst, err := eng.StoreFile(src)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(src, []byte("second version"), 0o600))
	newDgst, err := eng.StoreFile(src)
	require.NoError(t, err)
	require.NotEqual(t, oldDgst, newDgst)

	oldBlob, err := eng.BlobInfo(oldDgst)
	require.NoError(t, err)
	assert.Zero(t, oldBlob.RefCount)
	_, err = os.Stat(oldBlob.BlobPath)
	require.NoError(t, err, "old blob is retained until reclaim")

	newBlob, err := eng.BlobInfo(newDgst)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), newBlob.RefCount)

	res, err := eng.Reclaim(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.BlobsRemoved)
}

func TestEmptyFile(t *testing.T) {
	t.Parallel()

	eng := openTestEngine(t)
	src := writeSource(t, "empty.bin", nil)

	dgst, err := eng.StoreFile(src)
	require.NoError(t, err)
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		dgst.Encoded())

	out := filepath.Join(t.TempDir(), "out.bin")
	require.NoError(t, eng.RetrieveFile(src, out))
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFileLargerThanRAMBudget(t *testing.T) {
	t.Parallel()

	eng := openTestEngine(t, WithRAMBudget(1024))
	src := writeSource(t, "big.bin", bytes.Repeat([]byte("z"), 2048))

	_, err := eng.StoreFile(src)
	require.NoError(t, err)

	s, err := eng.CacheStats()
	require.NoError(t, err)
	assert.Zero(t, s.RAMSize, "oversized entry does not stay resident")

	out := filepath.Join(t.TempDir(), "out.bin")
	require.NoError(t, eng.RetrieveFile(src, out))
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte("z"), 2048), got)
}

func TestCachePromotion(t *testing.T) {
	t.Parallel()

	eng := openTestEngine(t, WithRAMBudget(1024))
	data := bytes.Repeat([]byte("c"), 512)
	src := writeSource(t, "C.bin", data)

	_, err := eng.StoreFile(src)
	require.NoError(t, err)

	// Ingest filled the RAM tier; wait for write-back to reach disk
	require.Eventually(t, func() bool {
		s, err := eng.CacheStats()
		return err == nil && s.DiskSize >= 512
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, eng.ClearRAMCache())

	out := filepath.Join(t.TempDir(), "out.bin")
	require.NoError(t, eng.RetrieveFile(src, out))

	s, err := eng.CacheStats()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), s.DiskHits)
	assert.Equal(t, uint64(512), s.RAMSize, "promoted back into RAM")
}

func TestRemoveMissing(t *testing.T) {
	t.Parallel()

	eng := openTestEngine(t)
	err := eng.RemoveFile("never-stored")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRetrieveMissing(t *testing.T) {
	t.Parallel()

	eng := openTestEngine(t)
	err := eng.RetrieveFile("never-stored", filepath.Join(t.TempDir(), "out"))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestCorruptBlobQuarantine(t *testing.T) {
	t.Parallel()

	eng := openTestEngine(t)
	src := writeSource(t, "A.bin", []byte("soon to be corrupted"))

	dgst, err := eng.StoreFile(src)
	require.NoError(t, err)

	blob, err := eng.BlobInfo(dgst)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(blob.BlobPath, []byte("not zstd"), 0o600))

	// Force the read to the corrupted blob
	require.NoError(t, eng.ClearRAMCache())
	require.NoError(t, eng.ClearDiskCache())

	_, err = eng.LoadBytes(src)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCodec))

	// Subsequent reads short-circuit on the quarantine
	_, err = eng.LoadBytes(src)
	assert.True(t, errors.Is(err, ErrQuarantined))
}

func TestStats(t *testing.T) {
	t.Parallel()

	eng := openTestEngine(t)
	a := writeSource(t, "A.bin", seqBytes())
	b := writeSource(t, "B.bin", seqBytes())

	_, err := eng.StoreFile(a)
	require.NoError(t, err)
	_, err = eng.StoreFile(b)
	require.NoError(t, err)

	s, err := eng.Stats()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), s.TotalFiles)
	assert.Equal(t, uint64(1), s.TotalBlobs)
	assert.Equal(t, uint64(1), s.DuplicatedBlobs)
	assert.Equal(t, uint64(512), s.TotalOriginalBytes)
	assert.Positive(t, s.TotalCompressedBytes)
	assert.Equal(t, uint64(256), s.Codec.OriginalBytes, "only one compression ran")
}

func TestStoreBytesAndLoadBytes(t *testing.T) {
	t.Parallel()

	eng := openTestEngine(t)
	data := []byte("in memory contents")

	dgst, err := eng.StoreBytes("virtual.txt", data)
	require.NoError(t, err)
	assert.Equal(t, hashing.Bytes(data), dgst)

	got, err := eng.LoadBytes("virtual.txt")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	s, err := eng.CacheStats()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), s.RAMHits, "load served from the ingest-time cache fill")
}

func TestClosedEngine(t *testing.T) {
	t.Parallel()

	eng := openTestEngine(t)
	require.NoError(t, eng.Close())

	_, err := eng.StoreFile("whatever")
	assert.True(t, errors.Is(err, ErrClosed))
	_, err = eng.LoadBytes("whatever")
	assert.True(t, errors.Is(err, ErrClosed))
	err = eng.RemoveFile("whatever")
	assert.True(t, errors.Is(err, ErrClosed))

	// Close is idempotent
	require.NoError(t, eng.Close())
}

func TestStatsCollector(t *testing.T) {
	t.Parallel()

	eng := openTestEngine(t)
	src := writeSource(t, "A.bin", seqBytes())
	_, err := eng.StoreFile(src)
	require.NoError(t, err)

	count := testutil.CollectAndCount(eng.StatsCollector())
	assert.Equal(t, 13, count)
}
