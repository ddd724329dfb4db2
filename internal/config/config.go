package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/conda-buildenv/internal/platform"
)

// Config holds the settings of a provisioning run.
type Config struct {
	// BaseDir is the parent of every versioned build environment.
	BaseDir string `yaml:"base_dir"`
	// BuildTemp holds the installer download and, without a staging directory, the archive.
	BuildTemp string `yaml:"build_temp"`
	// InstallerURL is the folder the installer is downloaded from.
	InstallerURL string `yaml:"installer_url"`
	// InstallerSHA256 is the expected hex SHA-256 of the installer; empty skips verification.
	InstallerSHA256 string `yaml:"installer_sha256"`
	// Packages are the conda specs installed into the environment, in order.
	Packages []string `yaml:"packages"`
	// Condarc points at a channel configuration file; empty uses the bundled one.
	Condarc string `yaml:"condarc"`
	// SkipElevation disables the sudo mkdir/chown of BaseDir on non-Windows hosts.
	SkipElevation bool `yaml:"skip_elevation"`
}

const (
	// DefaultConfigFilename is read when no --config flag is given, if present.
	DefaultConfigFilename = "conda-buildenv.yaml"

	// DefaultBuildTemp is relative to the working directory.
	DefaultBuildTemp = "build_temp"

	// DefaultInstallerURL is the Miniconda download folder.
	DefaultInstallerURL = "https://repo.continuum.io/miniconda/"

	// DefaultUnixBaseDir is the base directory on Linux and macOS.
	DefaultUnixBaseDir = "/opt/ccdc/third-party/conda_buildenv"

	// DefaultWindowsBaseDir is the base directory on Windows build agents.
	DefaultWindowsBaseDir = `D:\x_mirror\buildman\tools\conda_buildenv`

	sha256HexLength = 64
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errNoPackages is returned when the package list is empty.
	errNoPackages = errors.New("at least one package must be listed")
	// errBlankPackage is returned for an empty package spec.
	errBlankPackage = errors.New("package spec must not be blank")
	// errBadChecksum is returned when installer_sha256 is not 64 hex characters.
	errBadChecksum = errors.New("installer_sha256 must be 64 hex characters")
	// errDirRequired is returned when a directory setting is empty.
	errDirRequired = errors.New("directory must be set")
)

// DefaultPackages returns the specs installed by default.
func DefaultPackages() []string {
	return []string{"conda-build", "sphinx"}
}

// Default returns the settings used when no configuration file is present.
func Default(host platform.Host) *Config {
	baseDir := DefaultUnixBaseDir
	if host.IsWindows() {
		baseDir = DefaultWindowsBaseDir
	}

	return &Config{
		BaseDir:      baseDir,
		BuildTemp:    DefaultBuildTemp,
		InstallerURL: DefaultInstallerURL,
		Packages:     DefaultPackages(),
	}
}

// Load reads configuration from path on top of the host defaults.
// An empty path reads DefaultConfigFilename and tolerates its absence;
// an explicit path must exist.
func Load(path string, host platform.Host) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFilename
	}

	cfg := Default(host)

	contents, err := os.ReadFile(filepath.Clean(path))

	switch {
	case errors.Is(err, os.ErrNotExist) && !explicit:
		return cfg, Validate(cfg)
	case err != nil:
		return nil, fmt.Errorf("read settings: %w", err)
	}

	if err = yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the provided settings for required fields and formatting.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if strings.TrimSpace(cfg.BaseDir) == "" {
		return fmt.Errorf("base_dir: %w", errDirRequired)
	}

	if strings.TrimSpace(cfg.BuildTemp) == "" {
		return fmt.Errorf("build_temp: %w", errDirRequired)
	}

	if _, err := url.ParseRequestURI(cfg.InstallerURL); err != nil {
		return fmt.Errorf("invalid installer URL: %w", err)
	}

	if len(cfg.Packages) == 0 {
		return errNoPackages
	}

	for i, spec := range cfg.Packages {
		if strings.TrimSpace(spec) == "" {
			return fmt.Errorf("packages[%d]: %w", i, errBlankPackage)
		}
	}

	if cfg.InstallerSHA256 == "" {
		return nil
	}

	if len(cfg.InstallerSHA256) != sha256HexLength {
		return errBadChecksum
	}

	if _, err := hex.DecodeString(cfg.InstallerSHA256); err != nil {
		return fmt.Errorf("%w: %w", errBadChecksum, err)
	}

	return nil
}

// InstallerChecksum decodes InstallerSHA256; nil means no verification.
func (c *Config) InstallerChecksum() []byte {
	if c.InstallerSHA256 == "" {
		return nil
	}

	sum, err := hex.DecodeString(c.InstallerSHA256)
	if err != nil {
		return nil
	}

	return sum
}
