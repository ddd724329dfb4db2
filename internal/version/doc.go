// Package version exposes build metadata for conda-buildenv.
//
// Version, Commit and BuildTime are injected via -ldflags and default to
// values suitable for local builds. The version also ends up in every
// release manifest.
package version
