package provisioner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"

	"github.com/oshokin/conda-buildenv/internal/command"
	"github.com/oshokin/conda-buildenv/internal/logger"
)

// DefaultDirMode is used for every directory the provisioner creates.
const DefaultDirMode os.FileMode = 0o755

// prepare wipes the previous environment and build_temp, makes sure the base
// directory is owned by the current user and recreates both directories.
func (p *Provisioner) prepare(ctx context.Context) error {
	versionedDir := p.VersionedDir()

	removeBestEffort(ctx, versionedDir)

	if !p.host.IsWindows() && !p.cfg.SkipElevation {
		p.elevateBaseDir(ctx)
	}

	if err := os.MkdirAll(versionedDir, DefaultDirMode); err != nil {
		// Leave nothing half-created behind.
		removeBestEffort(ctx, versionedDir)

		return fmt.Errorf("create %s: %w", versionedDir, err)
	}

	removeBestEffort(ctx, p.cfg.BuildTemp)

	if err := os.MkdirAll(p.cfg.BuildTemp, DefaultDirMode); err != nil {
		return fmt.Errorf("create %s: %w", p.cfg.BuildTemp, err)
	}

	condarc, err := p.resolveCondarc()
	if err != nil {
		return err
	}

	p.condarcPath = condarc

	logger.InfoKV(ctx, "Destination prepared", "directory", versionedDir, "condarc", condarc)

	return nil
}

// elevateBaseDir runs sudo mkdir/chown on the base directory. Their failures
// are only logged: the MkdirAll that follows is what decides.
func (p *Provisioner) elevateBaseDir(ctx context.Context) {
	owner := p.currentUser()

	steps := [][]string{
		{"sudo", "mkdir", "-p", p.cfg.BaseDir},
		{"sudo", "chown", owner, p.cfg.BaseDir},
	}

	for _, args := range steps {
		if _, err := p.runner.Run(ctx, &command.Command{Args: args}); err != nil {
			logger.WarnKV(ctx, "Could not prepare base directory", "error", err)
		}
	}
}

// currentUser returns $USER, falling back to the account of this process.
func (p *Provisioner) currentUser() string {
	if p.env.User != "" {
		return p.env.User
	}

	if current, err := user.Current(); err == nil {
		return current.Username
	}

	return ""
}

// removeBestEffort deletes path recursively; absence is not an error.
func removeBestEffort(ctx context.Context, path string) {
	if err := os.RemoveAll(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WarnKV(ctx, "Could not remove directory", "path", path, "error", err)
	}
}
