package cache

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, budget uint64) *Hybrid {
	t.Helper()
	h, err := New(Config{
		Dir:            filepath.Join(t.TempDir(), "ssd"),
		RAMBudget:      budget,
		WriteBackDelay: time.Hour, // keep the worker quiet unless a test flushes
	})
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func testDigest(data []byte) digest.Digest {
	return digest.SHA256.FromBytes(data)
}

func TestPutGetRAM(t *testing.T) {
	t.Parallel()

	h := newTestCache(t, 1024)
	data := []byte("cached bytes")
	dgst := testDigest(data)

	h.Put(dgst, data)

	got, src, ok := h.Get(dgst)
	require.True(t, ok)
	assert.Equal(t, SourceRAM, src)
	assert.Equal(t, data, got)

	s := h.Stats()
	assert.Equal(t, uint64(1), s.RAMHits)
	assert.Equal(t, uint64(len(data)), s.RAMSize)
}

func TestGetMiss(t *testing.T) {
	t.Parallel()

	h := newTestCache(t, 1024)
	_, _, ok := h.Get(testDigest([]byte("absent")))
	assert.False(t, ok)
	assert.Equal(t, uint64(1), h.Stats().Misses)
}

func TestEvictionOrder(t *testing.T) {
	t.Parallel()

	h := newTestCache(t, 1024)
	a := bytes.Repeat([]byte("a"), 512)
	b := bytes.Repeat([]byte("b"), 512)
	c := bytes.Repeat([]byte("c"), 512)

	h.Put(testDigest(a), a)
	h.Put(testDigest(b), b)
	h.Put(testDigest(c), c)

	// A was least recently used and got evicted; B and C remain
	_, _, ok := h.Get(testDigest(a))
	assert.False(t, ok)
	_, src, ok := h.Get(testDigest(b))
	require.True(t, ok)
	assert.Equal(t, SourceRAM, src)
	_, src, ok = h.Get(testDigest(c))
	require.True(t, ok)
	assert.Equal(t, SourceRAM, src)

	assert.Equal(t, uint64(1024), h.Stats().RAMSize)
}

func TestGetRefreshesRecency(t *testing.T) {
	t.Parallel()

	h := newTestCache(t, 1024)
	a := bytes.Repeat([]byte("a"), 512)
	b := bytes.Repeat([]byte("b"), 512)
	c := bytes.Repeat([]byte("c"), 512)

	h.Put(testDigest(a), a)
	h.Put(testDigest(b), b)

	// Touch A so B becomes the eviction candidate
	_, _, ok := h.Get(testDigest(a))
	require.True(t, ok)

	h.Put(testDigest(c), c)

	_, _, ok = h.Get(testDigest(b))
	assert.False(t, ok)
	_, _, ok = h.Get(testDigest(a))
	assert.True(t, ok)
}

func TestOversizedEntryDoesNotStayResident(t *testing.T) {
	t.Parallel()

	h := newTestCache(t, 1024)
	big := bytes.Repeat([]byte("x"), 2048)
	h.Put(testDigest(big), big)

	s := h.Stats()
	assert.Zero(t, s.RAMSize)

	// The write-back set only holds RAM residents (invariant 5)
	h.mu.Lock()
	assert.Empty(t, h.pending)
	h.mu.Unlock()
}

func TestDiskPromotion(t *testing.T) {
	t.Parallel()

	h := newTestCache(t, 1024)
	data := bytes.Repeat([]byte("d"), 512)
	dgst := testDigest(data)

	// Entry exists only on the disk tier
	require.NoError(t, h.writeDisk(dgst.Encoded(), data))

	got, src, ok := h.Get(dgst)
	require.True(t, ok)
	assert.Equal(t, SourceDisk, src)
	assert.Equal(t, data, got)

	s := h.Stats()
	assert.Equal(t, uint64(1), s.DiskHits)
	assert.Equal(t, uint64(512), s.RAMSize)

	// Promoted entry now serves from RAM
	_, src, ok = h.Get(dgst)
	require.True(t, ok)
	assert.Equal(t, SourceRAM, src)
}

func TestPutReplacesExisting(t *testing.T) {
	t.Parallel()

	h := newTestCache(t, 1024)
	dgst := testDigest([]byte("key"))

	h.Put(dgst, bytes.Repeat([]byte("1"), 100))
	h.Put(dgst, bytes.Repeat([]byte("2"), 300))

	got, _, ok := h.Get(dgst)
	require.True(t, ok)
	assert.Len(t, got, 300)
	assert.Equal(t, uint64(300), h.Stats().RAMSize)
}

func TestRemove(t *testing.T) {
	t.Parallel()

	h := newTestCache(t, 1024)
	data := []byte("both tiers")
	dgst := testDigest(data)

	h.Put(dgst, data)
	require.NoError(t, h.writeDisk(dgst.Encoded(), data))

	require.NoError(t, h.Remove(dgst))

	_, _, ok := h.Get(dgst)
	assert.False(t, ok)
	_, err := os.Stat(h.diskPath(dgst.Encoded()))
	assert.True(t, os.IsNotExist(err))
}

func TestClearRAM(t *testing.T) {
	t.Parallel()

	h := newTestCache(t, 1024)
	data := []byte("volatile")
	h.Put(testDigest(data), data)

	h.ClearRAM()

	s := h.Stats()
	assert.Zero(t, s.RAMSize)
	_, _, ok := h.Get(testDigest(data))
	assert.False(t, ok)
}

func TestClearDisk(t *testing.T) {
	t.Parallel()

	h := newTestCache(t, 1024)
	require.NoError(t, h.writeDisk("aaaa", []byte("persisted")))

	require.NoError(t, h.ClearDisk())

	size, err := h.DiskSize()
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestStats(t *testing.T) {
	t.Parallel()

	h := newTestCache(t, 2048)
	data := bytes.Repeat([]byte("s"), 512)
	dgst := testDigest(data)

	h.Put(dgst, data)
	h.Get(dgst)                          // RAM hit
	h.Get(testDigest([]byte("absent"))) // miss

	s := h.Stats()
	assert.Equal(t, uint64(512), s.RAMSize)
	assert.Equal(t, uint64(2048), s.RAMBudget)
	assert.InDelta(t, 25.0, s.RAMUsagePercent, 0.01)
	assert.Equal(t, uint64(1), s.Hits())
	assert.Equal(t, uint64(1), s.Misses)
	assert.InDelta(t, 50.0, s.HitRate(), 0.01)
}
