// Package config loads the provisioning settings.
//
// Config holds the YAML-tunable parts of a run (base directory, installer
// source and checksum, package list, condarc). Environment captures, once at
// startup, the CI variables that name the artifacts.
package config
