package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/oshokin/conda-buildenv/internal/domain/buildenv"
)

const (
	// DefaultEnvFilename is the dotenv file loaded before reading the environment.
	DefaultEnvFilename = ".env"

	// StagingDirVar names the CI artifact staging directory.
	StagingDirVar = "BUILD_ARTIFACTSTAGINGDIRECTORY"

	// userVar names the account that should own the base directory.
	userVar = "USER"
)

// Environment is everything a run takes from process environment variables.
// It is read once and passed explicitly afterwards.
type Environment struct {
	// Identity names the produced artifacts.
	Identity buildenv.Identity
	// StagingDir is where CI collects artifacts; empty when unset.
	StagingDir string
	// StagingDirSet reports whether the staging variable was set at all,
	// so an explicitly empty value can be told apart from an absent one.
	StagingDirSet bool
	// User owns the base directory after the elevated mkdir.
	User string
}

// LoadEnvironment loads envFile (variables already set are not overridden;
// a missing file is ignored) and then reads the environment.
func LoadEnvironment(envFile string) (*Environment, error) {
	if envFile == "" {
		envFile = DefaultEnvFilename
	}

	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	return ReadEnvironment(os.LookupEnv), nil
}

// ReadEnvironment builds an Environment from lookup.
func ReadEnvironment(lookup buildenv.LookupFunc) *Environment {
	env := &Environment{
		Identity: buildenv.IdentityFromEnv(lookup),
	}

	if lookup == nil {
		return env
	}

	env.StagingDir, env.StagingDirSet = lookup(StagingDirVar)
	env.User, _ = lookup(userVar)

	return env
}
