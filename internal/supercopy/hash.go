package supercopy

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
)

// hashChunkSize is the streaming read size for content digests.
const hashChunkSize = 64 * 1024

// hashFile computes the SHA-256 digest of a file in fixed-size chunks.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
