package resource

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
)

// Fingerprint computes a SHA-256 hash of the file at path.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hash := sha256.New()
	n, err := io.Copy(hash, f)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	if n == 0 {
		return "", errors.New("resource is empty")
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
