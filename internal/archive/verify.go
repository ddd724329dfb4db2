package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
)

var (
	// ErrAbsoluteEntry is returned for an entry stored with an absolute path.
	ErrAbsoluteEntry = errors.New("archive entry has an absolute path")
	// ErrUnexpectedRoot is returned when entries do not share the expected top-level directory.
	ErrUnexpectedRoot = errors.New("unexpected top-level entry")
	// ErrEmptyArchive is returned for an archive without entries.
	ErrEmptyArchive = errors.New("archive is empty")
)

// TopLevelEntries lists the distinct first path components of a .tar.gz.
func TopLevelEntries(archivePath string) ([]string, error) {
	file, err := os.Open(filepath.Clean(archivePath))
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = file.Close()
	}()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("open gzip stream: %w", err)
	}

	defer func() {
		_ = gz.Close()
	}()

	roots := make(map[string]struct{})
	reader := tar.NewReader(gz)

	for {
		header, nextErr := reader.Next()
		if errors.Is(nextErr, io.EOF) {
			break
		}

		if nextErr != nil {
			return nil, fmt.Errorf("read tar entry: %w", nextErr)
		}

		name := strings.ReplaceAll(header.Name, `\`, "/")
		if path.IsAbs(name) || filepath.IsAbs(header.Name) || hasDriveLetter(name) {
			return nil, fmt.Errorf("%s: %w", header.Name, ErrAbsoluteEntry)
		}

		name = strings.TrimPrefix(path.Clean(name), "./")
		if name == "." || name == "" {
			continue
		}

		root, _, _ := strings.Cut(name, "/")
		roots[root] = struct{}{}
	}

	result := make([]string, 0, len(roots))
	for root := range roots {
		result = append(result, root)
	}

	sort.Strings(result)

	return result, nil
}

// VerifyRoot checks that every entry of the archive lives under root.
func VerifyRoot(archivePath, root string) error {
	roots, err := TopLevelEntries(archivePath)
	if err != nil {
		return err
	}

	if len(roots) == 0 {
		return ErrEmptyArchive
	}

	if len(roots) != 1 || roots[0] != root {
		return fmt.Errorf("%w: want %q, got %q", ErrUnexpectedRoot, root, roots)
	}

	return nil
}

func hasDriveLetter(name string) bool {
	return len(name) >= 2 && name[1] == ':'
}
