package blobstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarkdrive/quarkdrive/core"
)

func testDigest(data []byte) digest.Digest {
	return digest.SHA256.FromBytes(data)
}

func TestNew(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "blobs")
	_, err := New(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestPutGet(t *testing.T) {
	t.Parallel()

	s, err := New(t.TempDir())
	require.NoError(t, err)

	data := []byte("compressed bytes")
	dgst := testDigest(data)
	require.NoError(t, s.Put(dgst, data))

	got, err := s.Get(dgst)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	t.Run("no temp file left behind", func(t *testing.T) {
		_, err := os.Stat(s.PathOf(dgst) + ".tmp")
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("repeated put of same digest", func(t *testing.T) {
		require.NoError(t, s.Put(dgst, data))
		got, err := s.Get(dgst)
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})
}

func TestGetMissing(t *testing.T) {
	t.Parallel()

	s, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = s.Get(testDigest([]byte("never stored")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestRemove(t *testing.T) {
	t.Parallel()

	s, err := New(t.TempDir())
	require.NoError(t, err)

	data := []byte("to be removed")
	dgst := testDigest(data)
	require.NoError(t, s.Put(dgst, data))

	require.NoError(t, s.Remove(dgst))
	_, err = s.Get(dgst)
	assert.True(t, errors.Is(err, core.ErrNotFound))

	// Removing again is not an error
	require.NoError(t, s.Remove(dgst))
}

func TestPathOf(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	dgst := testDigest([]byte("x"))
	assert.Equal(t, filepath.Join(dir, dgst.Encoded()+".zst"), s.PathOf(dgst))
}

func TestTotalSize(t *testing.T) {
	t.Parallel()

	s, err := New(t.TempDir())
	require.NoError(t, err)

	total, err := s.TotalSize()
	require.NoError(t, err)
	assert.Zero(t, total)

	require.NoError(t, s.Put(testDigest([]byte("aa")), []byte("aa")))
	require.NoError(t, s.Put(testDigest([]byte("bbbb")), []byte("bbbb")))

	total, err = s.TotalSize()
	require.NoError(t, err)
	assert.Equal(t, uint64(6), total)
}
