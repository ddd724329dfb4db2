package buildenv

import (
	"errors"
	"fmt"

	"github.com/oshokin/conda-buildenv/internal/platform"
)

// Installer distribution defaults.
const (
	DefaultDistribution   = "Miniconda"
	DefaultRuntimeVersion = "3"
)

// ErrUnsupportedPlatform is returned for hosts without a published installer.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// Installer describes a downloadable Miniconda installer.
type Installer struct {
	// Distribution is "Miniconda" (or "Anaconda").
	Distribution string
	// RuntimeVersion is the Python major version marker, "3".
	RuntimeVersion string
	// Version is the installer release, e.g. "py37_4.9.2".
	Version string
	// Platform is the installer's OS label: Linux, MacOSX or Windows.
	Platform string
	// Arch is the installer's CPU label, e.g. x86_64.
	Arch string
	// Extension is "sh" or "exe".
	Extension string
}

// NewInstaller resolves the installer published for host.
func NewInstaller(host platform.Host, version string) (Installer, error) {
	if version == "" {
		return Installer{}, fmt.Errorf("%w: empty installer version", ErrUnsupportedPlatform)
	}

	label, arch, ext, err := labelsFor(host)
	if err != nil {
		return Installer{}, err
	}

	return Installer{
		Distribution:   DefaultDistribution,
		RuntimeVersion: DefaultRuntimeVersion,
		Version:        version,
		Platform:       label,
		Arch:           arch,
		Extension:      ext,
	}, nil
}

// Name renders <distribution><runtime>-<version>-<platform>-<arch>.<ext>,
// e.g. "Miniconda3-py37_4.9.2-Linux-x86_64.sh".
func (i Installer) Name() string {
	return fmt.Sprintf("%s%s-%s-%s-%s.%s",
		i.Distribution, i.RuntimeVersion, i.Version, i.Platform, i.Arch, i.Extension)
}

func labelsFor(host platform.Host) (label, arch, ext string, err error) {
	switch host.OS {
	case platform.Linux:
		label, ext = "Linux", "sh"
	case platform.Darwin:
		label, ext = "MacOSX", "sh"
	case platform.Windows:
		label, ext = "Windows", "exe"
	default:
		return "", "", "", fmt.Errorf("%w: %s", ErrUnsupportedPlatform, host)
	}

	switch {
	case host.Arch == "amd64":
		arch = "x86_64"
	case host.Arch == "arm64" && host.OS == platform.Linux:
		arch = "aarch64"
	case host.Arch == "arm64" && host.OS == platform.Darwin:
		arch = "arm64"
	default:
		return "", "", "", fmt.Errorf("%w: %s", ErrUnsupportedPlatform, host)
	}

	return label, arch, ext, nil
}
