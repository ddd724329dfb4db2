package provisioner

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/conda-buildenv/internal/archive"
	"github.com/oshokin/conda-buildenv/internal/domain/buildenv"
	"github.com/oshokin/conda-buildenv/internal/logger"
	"github.com/oshokin/conda-buildenv/internal/version"
)

// ManifestFileMode is used when writing the release manifest.
const ManifestFileMode os.FileMode = 0o644

// Manifest describes a published build environment archive.
type Manifest struct {
	// ToolVersion is the version of conda-buildenv that produced the archive.
	ToolVersion string `yaml:"tool_version"`
	// CreatedAt is the UTC time the manifest was written.
	CreatedAt time.Time `yaml:"created_at"`
	// Identity names the build.
	Identity buildenv.Identity `yaml:"identity"`
	// Installer is the installer file the environment was created from.
	Installer string `yaml:"installer"`
	// Packages are the specs installed on top of the installer.
	Packages []string `yaml:"packages"`
	// Archive describes the produced file.
	Archive ManifestArchive `yaml:"archive"`
}

// ManifestArchive holds the file name, size and checksum of the archive.
type ManifestArchive struct {
	File   string `yaml:"file"`
	Size   int64  `yaml:"size"`
	SHA512 string `yaml:"sha512"`
}

// writeManifest records the archive next to it as YAML.
func (p *Provisioner) writeManifest(ctx context.Context, archivePath string) (string, error) {
	checksum, size, err := archive.FileChecksum(archivePath)
	if err != nil {
		return "", fmt.Errorf("checksum archive: %w", err)
	}

	manifest := &Manifest{
		ToolVersion: version.Short(),
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
		Identity:    p.env.Identity,
		Installer:   p.installer.Name(),
		Packages:    append([]string(nil), p.cfg.Packages...),
		Archive: ManifestArchive{
			File:   filepath.Base(archivePath),
			Size:   size,
			SHA512: base64.StdEncoding.EncodeToString(checksum),
		},
	}

	contents, err := yaml.Marshal(manifest)
	if err != nil {
		return "", err
	}

	path := filepath.Join(filepath.Dir(archivePath), p.env.Identity.ManifestFilename())
	if err = os.WriteFile(path, contents, ManifestFileMode); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}

	logger.InfoKV(ctx, "Saved release manifest",
		"path", path, "archive_size", humanize.Bytes(uint64(size)))

	return path, nil
}
