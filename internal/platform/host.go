package platform

import (
	"runtime"
	"strings"
)

// Operating system identifiers, as reported by runtime.GOOS.
const (
	Linux   = "linux"
	Darwin  = "darwin"
	Windows = "windows"
)

// Host identifies an operating system and CPU architecture pair.
type Host struct {
	// OS is a GOOS value such as "linux" or "windows".
	OS string
	// Arch is a GOARCH value such as "amd64" or "arm64".
	Arch string
}

// Current returns the host the binary is running on.
func Current() Host {
	return Host{OS: runtime.GOOS, Arch: runtime.GOARCH}
}

// IsWindows reports whether the host runs Windows.
func (h Host) IsWindows() bool {
	return strings.EqualFold(h.OS, Windows)
}

// ExecutableExtension returns ".exe" on Windows and "" elsewhere.
func (h Host) ExecutableExtension() string {
	if h.IsWindows() {
		return ".exe"
	}

	return ""
}

// PathListSeparator returns the PATH separator used by the host.
func (h Host) PathListSeparator() string {
	if h.IsWindows() {
		return ";"
	}

	return ":"
}

// String renders the host as "os/arch".
func (h Host) String() string {
	return h.OS + "/" + h.Arch
}
