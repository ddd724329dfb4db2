// Package provisioner builds a conda build environment and archives it.
//
// The run is strictly sequential: prepare the versioned destination, fetch the
// Miniconda installer, run it unattended, update and install packages with an
// isolated condarc, strip package caches, tar the destination, verify the
// archive and write a release manifest next to it. Every step is fatal on
// failure; a new run always starts from a wiped destination.
package provisioner
