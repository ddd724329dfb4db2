package provisioner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/conda-buildenv/internal/command"
	"github.com/oshokin/conda-buildenv/internal/logger"
)

// nonAdminMarker is left in the prefix by a "just me" Windows install.
const nonAdminMarker = ".nonadmin"

// installArgs returns the unattended installer invocation for the host.
func (p *Provisioner) installArgs(installerPath, target string) []string {
	if p.host.IsWindows() {
		return []string{
			installerPath,
			"/S", // batch mode, no manual intervention
			"/D=" + target,
		}
	}

	return []string{
		"sh",
		installerPath,
		"-b", // batch mode, no manual intervention
		"-f", // no error if the prefix already exists
		"-p", target,
	}
}

// runInstaller runs the installer into the versioned directory. On Windows
// the installer's PATH edits are reverted afterwards, even if it failed.
func (p *Provisioner) runInstaller(ctx context.Context, installerPath string) error {
	target, err := filepath.Abs(p.VersionedDir())
	if err != nil {
		return err
	}

	if installerPath, err = filepath.Abs(installerPath); err != nil {
		return err
	}

	cmd := &command.Command{Args: p.installArgs(installerPath, target)}

	logger.InfoKV(ctx, "Running installer", "command", cmd.String())

	_, runErr := p.runner.Run(ctx, cmd)

	if p.host.IsWindows() {
		p.restoreSystemPath(ctx, target)
	}

	if runErr != nil {
		return fmt.Errorf("install miniconda: %w", runErr)
	}

	return nil
}

// restoreSystemPath removes the prefix and its Scripts folder from PATH.
// Problems are reported as warnings; the environment itself is fine.
func (p *Provisioner) restoreSystemPath(ctx context.Context, target string) {
	_, err := os.Stat(filepath.Join(target, nonAdminMarker))
	allUsers := errors.Is(err, os.ErrNotExist)

	logger.InfoKV(ctx, "Reverting installer changes to PATH", "all_users", allUsers)

	for _, dir := range []string{target, filepath.Join(target, "Scripts")} {
		if err = p.pathEditor.RemovePathEntry(ctx, dir, allUsers); err != nil {
			logger.WarnKV(ctx, "Could not remove directory from PATH", "directory", dir, "error", err)
		}
	}

	if err = p.pathEditor.NotifyEnvironmentChanged(ctx); err != nil {
		logger.WarnKV(ctx, "Could not broadcast environment change", "error", err)
	}
}
