// Package platform describes the host a build environment is produced for and
// hides the Windows-only PATH registry editing behind PathEditor.
//
// Host carries GOOS/GOARCH-style identifiers so callers can branch on the
// target platform without consulting runtime directly. PATH segment helpers
// are pure and work on any host; the registry-backed editor exists only on
// Windows, other hosts get a no-op.
package platform
