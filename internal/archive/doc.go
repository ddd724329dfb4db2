// Package archive inspects the produced build environment archive: it checks
// the layout of a .tar.gz and computes the checksum recorded in the release
// manifest.
package archive
