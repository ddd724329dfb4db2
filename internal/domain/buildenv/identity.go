package buildenv

import (
	"errors"
	"fmt"
	"strings"
)

// PackageName prefixes every artifact produced by the tool.
const PackageName = "conda_buildenv"

// Environment variables that make up the identity, with developer-machine fallbacks.
const (
	InstallerVersionVar = "MINICONDA_INSTALLER_VERSION"
	BuildIDVar          = "BUILD_BUILDID"
	OSNameVar           = "BUILDOSNAME"

	DefaultInstallerVersion = "py37_4.9.2"
	DefaultBuildID          = "DEVELOPER_VERSION"
	DefaultOSName           = "for_my_developer_os"
)

// ArchiveExtension is appended to the output base name of the archive.
const ArchiveExtension = ".tar.gz"

// ErrInvalidIdentity is returned for identity components that cannot be used
// as a single path element.
var ErrInvalidIdentity = errors.New("invalid environment identity")

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Identity labels the artifacts of one build: which installer, which CI build
// and which CI operating system produced them.
type Identity struct {
	// InstallerVersion is the Miniconda release, e.g. "py37_4.9.2".
	InstallerVersion string `yaml:"installer_version"`
	// BuildID is the CI build number.
	BuildID string `yaml:"build_id"`
	// OSName is the CI label of the build agent's operating system.
	OSName string `yaml:"os_name"`
}

// IdentityFromEnv reads the identity once. A variable that is set, even to an
// empty string, wins over its fallback.
func IdentityFromEnv(lookup LookupFunc) Identity {
	return Identity{
		InstallerVersion: lookupOr(lookup, InstallerVersionVar, DefaultInstallerVersion),
		BuildID:          lookupOr(lookup, BuildIDVar, DefaultBuildID),
		OSName:           lookupOr(lookup, OSNameVar, DefaultOSName),
	}
}

// Validate checks that every component is a plain, non-blank name. The output
// base name becomes a directory that is wiped recursively, so separators and
// dot elements are rejected.
func (i Identity) Validate() error {
	components := []struct {
		name, value string
	}{
		{InstallerVersionVar, i.InstallerVersion},
		{BuildIDVar, i.BuildID},
		{OSNameVar, i.OSName},
	}

	for _, c := range components {
		value := strings.TrimSpace(c.value)

		switch {
		case value == "":
			return fmt.Errorf("%w: %s is blank", ErrInvalidIdentity, c.name)
		case value == "." || value == "..":
			return fmt.Errorf("%w: %s is %q", ErrInvalidIdentity, c.name, c.value)
		case strings.ContainsAny(c.value, `/\:`) || strings.ContainsRune(c.value, 0):
			return fmt.Errorf("%w: %s contains a path separator: %q", ErrInvalidIdentity, c.name, c.value)
		}
	}

	return nil
}

// OutputBaseName joins the package name and identity with hyphens,
// e.g. "conda_buildenv-py37_4.9.2-1234-linux64".
func (i Identity) OutputBaseName() string {
	return strings.Join([]string{PackageName, i.InstallerVersion, i.BuildID, i.OSName}, "-")
}

// ArchiveFilename is the name of the compressed archive for this identity.
func (i Identity) ArchiveFilename() string {
	return i.OutputBaseName() + ArchiveExtension
}

// ManifestFilename is the name of the release manifest written next to the archive.
func (i Identity) ManifestFilename() string {
	return i.OutputBaseName() + ".yaml"
}

func lookupOr(lookup LookupFunc, key, fallback string) string {
	if lookup == nil {
		return fallback
	}

	if value, ok := lookup(key); ok {
		return value
	}

	return fallback
}
