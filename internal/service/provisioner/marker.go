package provisioner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/conda-buildenv/internal/logger"
)

// MarkerFilename marks that a run is in progress to avoid parallel runs
// wiping each other's destination.
const MarkerFilename = "conda-buildenv-run.pid"

var errRunInProgress = errors.New("another run is in progress")

// acquireMarker creates the marker with our PID. A marker naming a live
// process blocks the run; one naming a dead process is replaced once.
func acquireMarker(ctx context.Context, path string) (func(), error) {
	logger.Debug(ctx, "Checking for the presence of a run marker")

	err := createMarker(path)
	if errors.Is(err, os.ErrExist) {
		contents, readErr := os.ReadFile(filepath.Clean(path))
		if readErr != nil {
			return nil, fmt.Errorf("read run marker: %w", readErr)
		}

		if pid, alive := markerOwner(contents); alive {
			return nil, fmt.Errorf("%w: pid %d (marker %s)", errRunInProgress, pid, path)
		}

		logger.InfoKV(ctx, "Removing stale run marker", "path", path)

		if err = os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale run marker: %w", err)
		}

		// Whoever recreates it first wins; the loser sees ErrExist.
		err = createMarker(path)
	}

	if errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("%w: marker %s appeared concurrently", errRunInProgress, path)
	}

	if err != nil {
		return nil, fmt.Errorf("write run marker: %w", err)
	}

	release := func() {
		if removeErr := os.Remove(path); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			logger.WarnKV(ctx, "Could not remove run marker", "path", path, "error", removeErr)
		}
	}

	return release, nil
}

// createMarker exclusively creates the marker and writes our PID into it.
// It fails with os.ErrExist when the marker is already present.
func createMarker(path string) error {
	file, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}

	_, err = file.WriteString(strconv.Itoa(os.Getpid()))
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(path)
	}

	return err
}

// markerOwner parses the PID in a marker and reports whether it is another live process.
func markerOwner(contents []byte) (int, bool) {
	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil || pid <= 0 || pid == os.Getpid() {
		return pid, false
	}

	process, err := ps.FindProcess(pid)
	if err != nil || process == nil {
		return pid, false
	}

	return pid, true
}
