package cache

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteBackPersists(t *testing.T) {
	t.Parallel()

	h, err := New(Config{
		Dir:            filepath.Join(t.TempDir(), "ssd"),
		RAMBudget:      4096,
		WriteBackDelay: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })

	data := bytes.Repeat([]byte("w"), 256)
	dgst := testDigest(data)
	h.Put(dgst, data)

	require.Eventually(t, func() bool {
		got, err := h.readDisk(dgst.Encoded())
		return err == nil && bytes.Equal(got, data)
	}, time.Second, 10*time.Millisecond)
}

func TestWriteBackSkipsEvicted(t *testing.T) {
	t.Parallel()

	h, err := New(Config{
		Dir:            filepath.Join(t.TempDir(), "ssd"),
		RAMBudget:      512,
		WriteBackDelay: time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })

	a := bytes.Repeat([]byte("a"), 512)
	b := bytes.Repeat([]byte("b"), 512)
	h.Put(testDigest(a), a) // queued
	h.Put(testDigest(b), b) // evicts A, A leaves the queue

	h.worker.flush()

	_, err = os.Stat(h.diskPath(testDigest(a).Encoded()))
	assert.True(t, os.IsNotExist(err))

	got, err := h.readDisk(testDigest(b).Encoded())
	require.NoError(t, err)
	assert.Equal(t, b, got)
}

func TestFlushDrainsQueue(t *testing.T) {
	t.Parallel()

	h, err := New(Config{
		Dir:            filepath.Join(t.TempDir(), "ssd"),
		RAMBudget:      4096,
		WriteBackDelay: time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })

	data := []byte("drain me")
	h.Put(testDigest(data), data)

	h.worker.flush()

	h.mu.Lock()
	assert.Empty(t, h.pending)
	h.mu.Unlock()

	// A second flush with an empty queue writes nothing new
	h.worker.flush()
}

func TestCloseDrains(t *testing.T) {
	t.Parallel()

	h, err := New(Config{
		Dir:            filepath.Join(t.TempDir(), "ssd"),
		RAMBudget:      4096,
		WriteBackDelay: time.Hour, // only the close-time drain can flush
	})
	require.NoError(t, err)

	data := bytes.Repeat([]byte("c"), 128)
	dgst := testDigest(data)
	h.Put(dgst, data)

	require.NoError(t, h.Close())

	got, err := h.readDisk(dgst.Encoded())
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// Close is idempotent
	require.NoError(t, h.Close())
}
