package checksum

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"
)

// Prefix tags digests written into extension descriptors.
const Prefix = "blake3:"

// ComputeBlake3Hash computes the hex BLAKE3 hash of a file.
func ComputeBlake3Hash(filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return HashReader(f)
}

// HashReader computes the hex BLAKE3 hash of everything read from r.
func HashReader(r io.Reader) (string, error) {
	h := blake3.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("failed to hash stream: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Tagged returns the descriptor form of a file's digest ("blake3:<hex>").
func Tagged(filePath string) (string, error) {
	sum, err := ComputeBlake3Hash(filePath)
	if err != nil {
		return "", err
	}
	return Prefix + sum, nil
}

// VerifyFileHash verifies a file against an expected hash, tagged or bare hex.
func VerifyFileHash(filePath, expected string) error {
	want := strings.TrimPrefix(strings.TrimSpace(expected), Prefix)
	if want == "" {
		return fmt.Errorf("no expected hash for %s", filepath.Base(filePath))
	}

	actual, err := ComputeBlake3Hash(filePath)
	if err != nil {
		return fmt.Errorf("failed to compute hash: %w", err)
	}

	if actual != want {
		return fmt.Errorf("hash mismatch for %s: expected %s, got %s",
			filepath.Base(filePath), want, actual)
	}
	return nil
}
