package provisioner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/oshokin/conda-buildenv/internal/command"
	"github.com/oshokin/conda-buildenv/internal/logger"
)

const (
	packageManagerName = "conda"
	condarcVar         = "CONDARC"
	pathVar            = "PATH"
)

// condaUpdate updates every package shipped with the installer.
func (p *Provisioner) condaUpdate(ctx context.Context) error {
	return p.runPackageManager(ctx, []string{"update", "-y", "--all"})
}

// condaInstall installs the given specs, e.g. "numpy==1.9.2", "lxml".
func (p *Provisioner) condaInstall(ctx context.Context, specs ...string) error {
	return p.runPackageManager(ctx, []string{"install", "-y"}, specs...)
}

// condaCleanup removes package archives: their contents are already part of
// the installed tree and would only bloat the distributed archive.
func (p *Provisioner) condaCleanup(ctx context.Context) error {
	return p.runPackageManager(ctx, []string{"clean", "-y", "--all"})
}

// CondaExecutable is the conda binary inside the versioned directory.
func (p *Provisioner) CondaExecutable() string {
	dir := "bin"
	if p.host.IsWindows() {
		dir = "Scripts"
	}

	return filepath.Join(p.VersionedDir(), dir, packageManagerName+p.host.ExecutableExtension())
}

func (p *Provisioner) runPackageManager(ctx context.Context, extraArgs []string, specs ...string) error {
	args := make([]string, 0, 1+len(extraArgs)+len(specs))
	args = append(args, p.CondaExecutable())
	args = append(args, extraArgs...)
	args = append(args, specs...)

	env := p.packageManagerEnv()
	cmd := &command.Command{Args: args, Env: env}

	logger.InfoKV(ctx, "Running package manager", "command", cmd.String())

	if _, err := p.runner.Run(ctx, cmd); err != nil {
		logger.ErrorKV(ctx, "Package manager failed", "args", args, "env", env)

		action := strings.Join(append(extraArgs[:1:1], specs...), " ")

		return fmt.Errorf("could not %s with %s: %w", action, packageManagerName, err)
	}

	return nil
}

// packageManagerEnv is the process environment with CONDARC pointing at the
// isolated channel configuration. On Windows Library\bin goes first on PATH
// so conda finds its own native libraries.
func (p *Provisioner) packageManagerEnv() []string {
	env := setEnv(p.environ(), condarcVar, p.condarcPath, p.host.IsWindows())

	if p.host.IsWindows() {
		libraryBin := filepath.Join(p.VersionedDir(), "Library", "bin")
		current, _ := lookupEnv(env, pathVar, true)
		env = setEnv(env, pathVar, libraryBin+p.host.PathListSeparator()+current, true)
	}

	return env
}

// lookupEnv finds key in a KEY=value list. Windows keys compare case-insensitively.
func lookupEnv(env []string, key string, foldCase bool) (string, bool) {
	for i := len(env) - 1; i >= 0; i-- {
		name, value, ok := strings.Cut(env[i], "=")
		if ok && sameKey(name, key, foldCase) {
			return value, true
		}
	}

	return "", false
}

// setEnv returns a copy of env with key set to value, dropping other spellings of key.
func setEnv(env []string, key, value string, foldCase bool) []string {
	result := make([]string, 0, len(env)+1)

	for _, entry := range env {
		name, _, ok := strings.Cut(entry, "=")
		if ok && sameKey(name, key, foldCase) {
			continue
		}

		result = append(result, entry)
	}

	return append(result, key+"="+value)
}

func sameKey(a, b string, foldCase bool) bool {
	if foldCase {
		return strings.EqualFold(a, b)
	}

	return a == b
}

// cacheGlobs match package archives left in the pkgs directory.
var cacheGlobs = []string{"*.bz2", "*.conda"} //nolint:gochecknoglobals // Fixed list.

// stripPackageCaches removes package archives "conda clean" left behind.
func (p *Provisioner) stripPackageCaches(ctx context.Context) error {
	pkgsDir := filepath.Join(p.VersionedDir(), "pkgs")

	var (
		removed int
		freed   int64
	)

	for _, pattern := range cacheGlobs {
		matches, err := filepath.Glob(filepath.Join(pkgsDir, pattern))
		if err != nil {
			return err
		}

		for _, match := range matches {
			info, err := os.Lstat(match)
			if err != nil {
				return err
			}

			if info.IsDir() {
				continue
			}

			if err = os.Remove(match); err != nil {
				return err
			}

			removed++
			freed += info.Size()
		}
	}

	if removed > 0 {
		logger.InfoKV(ctx, "Removed leftover package archives",
			"count", removed, "freed", humanize.Bytes(uint64(freed)))
	}

	return nil
}
