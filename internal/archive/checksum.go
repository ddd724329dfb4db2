package archive

import (
	"crypto"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	// Ensure SHA512 available for checksum calculation.
	_ "crypto/sha512"
)

// DefaultChecksumFunction is used to checksum released archives.
const DefaultChecksumFunction = crypto.SHA512

var errHashUnavailable = errors.New("hash function unavailable")

// FileChecksum streams the file through DefaultChecksumFunction and returns
// the digest together with the number of bytes read.
func FileChecksum(path string) ([]byte, int64, error) {
	if !DefaultChecksumFunction.Available() {
		return nil, 0, fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, 0, err
	}

	defer func() {
		_ = file.Close()
	}()

	hasher := DefaultChecksumFunction.New()

	size, err := io.Copy(hasher, file)
	if err != nil {
		return nil, 0, fmt.Errorf("calculate checksum: %w", err)
	}

	return hasher.Sum(nil), size, nil
}
