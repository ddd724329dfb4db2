package provisioner

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/conda-buildenv/internal/logger"
)

// CondarcFilename is the name of the bundled channel configuration.
const CondarcFilename = "condarc-for-offline-installer-creation"

//go:embed condarc-for-offline-installer-creation
var bundledCondarc []byte

// condarcLocations are the well-known places conda reads configuration from.
//
//nolint:gochecknoglobals // Fixed list.
var condarcLocations = []string{
	"/etc/conda/.condarc",
	"/etc/conda/condarc",
	"/etc/conda/condarc.d/",
	"/var/lib/conda/.condarc",
	"/var/lib/conda/condarc",
	"/var/lib/conda/condarc.d/",
	"~/.conda/.condarc",
	"~/.conda/condarc",
	"~/.conda/condarc.d/",
	"~/.condarc",
}

// resolveCondarc returns the configured condarc, or writes the bundled one
// into build_temp. The result is absolute since conda may run elsewhere.
func (p *Provisioner) resolveCondarc() (string, error) {
	if p.cfg.Condarc != "" {
		if _, err := os.Stat(p.cfg.Condarc); err != nil {
			return "", fmt.Errorf("condarc: %w", err)
		}

		return filepath.Abs(p.cfg.Condarc)
	}

	path := filepath.Join(p.cfg.BuildTemp, CondarcFilename)
	if err := os.WriteFile(path, bundledCondarc, 0o600); err != nil {
		return "", fmt.Errorf("write bundled condarc: %w", err)
	}

	return filepath.Abs(path)
}

// checkCondarcPresence warns about configuration files that could change
// which channels the installation resolves against.
func (p *Provisioner) checkCondarcPresence(ctx context.Context) []string {
	home, err := p.homeDir()
	if err != nil {
		logger.DebugKV(ctx, "Home directory unknown, skipping user condarc locations", "error", err)
	}

	found := make([]string, 0, len(condarcLocations))

	for _, location := range condarcLocations {
		path, ok := expandHome(location, home)
		if !ok {
			continue
		}

		if _, statErr := os.Stat(path); statErr != nil {
			continue
		}

		logger.Warnf(ctx, "Conda configuration found in %s. This might affect installation of packages", path)

		found = append(found, path)
	}

	return found
}

// expandHome replaces a leading "~/" with home; false when home is unknown.
func expandHome(location, home string) (string, bool) {
	rest, ok := strings.CutPrefix(location, "~/")
	if !ok {
		return location, true
	}

	if home == "" {
		return "", false
	}

	return filepath.Join(home, rest), true
}
