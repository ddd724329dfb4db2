// Package buildenv holds the naming model of a conda build environment:
// the environment identity taken from CI variables, the installer descriptor
// and the file names derived from both.
package buildenv
