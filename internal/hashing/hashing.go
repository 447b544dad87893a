// Package hashing computes content digests over byte ranges and files.
package hashing

import (
	"fmt"
	"io"
	"os"

	"github.com/opencontainers/go-digest"
)

// chunkSize is the read size for streaming file digests.
const chunkSize = 4 * 1024 * 1024

// Bytes returns the SHA256 digest of buf.
func Bytes(buf []byte) digest.Digest {
	return digest.SHA256.FromBytes(buf)
}

// File returns the SHA256 digest of the file at path, reading in 4 MiB
// chunks so arbitrarily large files hash with bounded memory.
func File(path string) (digest.Digest, error) {
	//nolint:gosec // G304: callers hand us the path they want ingested
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for digest: %w", err)
	}
	defer f.Close()

	return Reader(f)
}

// Reader returns the SHA256 digest of everything readable from r.
func Reader(r io.Reader) (digest.Digest, error) {
	digester := digest.SHA256.Digester()
	h := digester.Hash()

	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			//nolint:errcheck // hash.Write never returns an error per hash.Hash contract
			h.Write(buf[:n])
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return "", fmt.Errorf("hash: %w", err)
		}
	}
	return digester.Digest(), nil
}
