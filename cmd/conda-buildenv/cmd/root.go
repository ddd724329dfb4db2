package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/conda-buildenv/internal/config"
	"github.com/oshokin/conda-buildenv/internal/logger"
	"github.com/oshokin/conda-buildenv/internal/service/provisioner"
	"github.com/oshokin/conda-buildenv/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// envFile to a dotenv file with CI variables.
	envFile string
	// logLevel is the minimum level of printed messages.
	logLevel string

	// rootCmd installs a conda build environment and archives it.
	rootCmd = &cobra.Command{
		Use:   "conda-buildenv",
		Short: "Create and archive a Miniconda build environment",
		Long: "Download the Miniconda installer, install it into a versioned directory, " +
			"install the build packages and pack the result into a .tar.gz for distribution.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("unknown log level %q", logLevel)
			}

			logger.SetLevel(level)

			return nil
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &provisioner.Options{
				ConfigPath: configPath,
				EnvFile:    envFile,
			}

			return provisioner.Run(ctx, options)
		},
	}
)

// Execute runs the conda-buildenv CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.ErrorKV(context.Background(), "conda-buildenv failed", "error", err)
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "",
		"path to configuration file (default "+config.DefaultConfigFilename+" if present)")
	rootCmd.Flags().StringVar(&envFile, "env-file", config.DefaultEnvFilename,
		"dotenv file with CI variables, ignored if missing")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
}
