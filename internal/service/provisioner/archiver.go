package provisioner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/conda-buildenv/internal/archive"
	"github.com/oshokin/conda-buildenv/internal/command"
	"github.com/oshokin/conda-buildenv/internal/logger"
)

// forceLocalFlag stops tar from reading "D:\..." as host:path.
const forceLocalFlag = "--force-local"

// OutputDir is the CI staging directory when set, otherwise build_temp.
// A staging variable set to an empty string means the working directory.
func (p *Provisioner) OutputDir() string {
	switch {
	case p.env.StagingDir != "":
		return p.env.StagingDir
	case p.env.StagingDirSet:
		return "."
	}

	return p.cfg.BuildTemp
}

// Archive compresses the versioned directory into a .tar.gz and verifies it.
// The archive keeps the versioned directory but not the base directory.
func (p *Provisioner) Archive(ctx context.Context) (string, error) {
	outputDir := p.OutputDir()

	if err := os.MkdirAll(outputDir, DefaultDirMode); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	absOutputDir, err := filepath.Abs(outputDir)
	if err != nil {
		return "", err
	}

	identity := p.env.Identity
	output := filepath.Join(absOutputDir, identity.ArchiveFilename())

	logger.InfoKV(ctx, "Creating archive", "path", output)

	cmd := &command.Command{
		Args: []string{"tar", "-zcf", output, identity.OutputBaseName()},
		Dir:  p.cfg.BaseDir,
	}

	if _, err = p.runner.Run(ctx, cmd); err != nil {
		if !p.host.IsWindows() {
			return "", fmt.Errorf("create archive: %w", err)
		}

		logger.WarnKV(ctx, "tar failed, retrying with local path semantics", "error", err)

		retry := &command.Command{
			Args: []string{"tar", forceLocalFlag, "-zcf", output, identity.OutputBaseName()},
			Dir:  p.cfg.BaseDir,
		}

		if _, err = p.runner.Run(ctx, retry); err != nil {
			return "", fmt.Errorf("create archive: %w", err)
		}
	}

	if err = archive.VerifyRoot(output, identity.OutputBaseName()); err != nil {
		return "", fmt.Errorf("verify archive: %w", err)
	}

	return output, nil
}
