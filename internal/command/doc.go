// Package command runs external tools (installers, conda, tar, sh) and turns
// their failures into structured errors carrying the argument vector,
// working directory, environment overrides, exit code and output tail.
package command
