package provisioner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/oshokin/conda-buildenv/internal/command"
	"github.com/oshokin/conda-buildenv/internal/config"
	"github.com/oshokin/conda-buildenv/internal/domain/buildenv"
	"github.com/oshokin/conda-buildenv/internal/logger"
	"github.com/oshokin/conda-buildenv/internal/platform"
)

// Options contains inputs for the provisioner entry point.
type Options struct {
	// ConfigPath is an optional YAML settings file; empty reads conda-buildenv.yaml if present.
	ConfigPath string
	// EnvFile is an optional dotenv file loaded before the environment is read.
	EnvFile string
}

// Artifacts lists the files produced by a successful run.
type Artifacts struct {
	// Archive is the absolute path of the .tar.gz.
	Archive string
	// Manifest is the absolute path of the release manifest.
	Manifest string
}

// Provisioner performs one build environment run. Construct it with New.
type Provisioner struct {
	cfg       *config.Config
	env       *config.Environment
	host      platform.Host
	installer buildenv.Installer

	runner     command.Runner
	pathEditor platform.PathEditor
	httpClient *http.Client
	environ    func() []string
	homeDir    func() (string, error)
	markerPath string

	// condarcPath is resolved during preparation.
	condarcPath string
}

// Option customises a Provisioner.
type Option func(*Provisioner)

// WithRunner replaces the external command runner.
func WithRunner(r command.Runner) Option {
	return func(p *Provisioner) {
		if r != nil {
			p.runner = r
		}
	}
}

// WithPathEditor replaces the PATH editor used after a Windows install.
func WithPathEditor(e platform.PathEditor) Option {
	return func(p *Provisioner) {
		if e != nil {
			p.pathEditor = e
		}
	}
}

// WithHost overrides the target host.
func WithHost(h platform.Host) Option {
	return func(p *Provisioner) {
		p.host = h
	}
}

// WithHTTPClient replaces the client used to download the installer.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provisioner) {
		if c != nil {
			p.httpClient = c
		}
	}
}

// WithEnviron replaces the base environment handed to conda.
func WithEnviron(environ func() []string) Option {
	return func(p *Provisioner) {
		if environ != nil {
			p.environ = environ
		}
	}
}

// WithHomeDir replaces the home directory lookup used by the condarc scan.
func WithHomeDir(home func() (string, error)) Option {
	return func(p *Provisioner) {
		if home != nil {
			p.homeDir = home
		}
	}
}

// WithMarkerPath moves the run marker file.
func WithMarkerPath(path string) Option {
	return func(p *Provisioner) {
		if path != "" {
			p.markerPath = path
		}
	}
}

var errEnvironmentNotSet = errors.New("environment is not set")

// Run loads settings and the environment, then installs and archives the
// build environment.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "conda-buildenv")

	host := platform.Current()

	cfg, err := config.Load(opts.ConfigPath, host)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	env, err := config.LoadEnvironment(opts.EnvFile)
	if err != nil {
		return fmt.Errorf("load environment: %w", err)
	}

	p, err := New(cfg, env, WithHost(host))
	if err != nil {
		return fmt.Errorf("initialize provisioner: %w", err)
	}

	artifacts, err := p.Run(ctx)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Build environment is ready",
		"archive", artifacts.Archive, "manifest", artifacts.Manifest)

	return nil
}

// New validates the settings and resolves the installer for the host.
func New(cfg *config.Config, env *config.Environment, opts ...Option) (*Provisioner, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	if env == nil {
		return nil, errEnvironmentNotSet
	}

	if err := env.Identity.Validate(); err != nil {
		return nil, err
	}

	p := &Provisioner{
		cfg:        cfg,
		env:        env,
		host:       platform.Current(),
		runner:     command.NewExecRunner(),
		pathEditor: platform.NewPathEditor(),
		httpClient: http.DefaultClient,
		environ:    os.Environ,
		homeDir:    os.UserHomeDir,
		markerPath: MarkerFilename,
	}

	for _, opt := range opts {
		opt(p)
	}

	installer, err := buildenv.NewInstaller(p.host, env.Identity.InstallerVersion)
	if err != nil {
		return nil, err
	}

	p.installer = installer

	return p, nil
}

// Run guards against a concurrent run, installs, archives and records the result.
func (p *Provisioner) Run(ctx context.Context) (*Artifacts, error) {
	release, err := acquireMarker(ctx, p.markerPath)
	if err != nil {
		return nil, err
	}

	defer release()

	if err = p.Install(ctx); err != nil {
		return nil, err
	}

	archivePath, err := p.Archive(ctx)
	if err != nil {
		return nil, err
	}

	manifestPath, err := p.writeManifest(ctx, archivePath)
	if err != nil {
		return nil, err
	}

	return &Artifacts{Archive: archivePath, Manifest: manifestPath}, nil
}

// Install wipes the destination and provisions a fresh environment into it.
func (p *Provisioner) Install(ctx context.Context) error {
	logger.Info(ctx, "Cleaning up destination and temporary build directories")

	if err := p.prepare(ctx); err != nil {
		return fmt.Errorf("prepare destination: %w", err)
	}

	logger.Info(ctx, "Getting installer")

	installerPath, err := p.fetchInstaller(ctx)
	if err != nil {
		return fmt.Errorf("fetch installer: %w", err)
	}

	logger.Info(ctx, "Checking there are no condarc files around")

	p.checkCondarcPresence(ctx)

	logger.Info(ctx, "Installing miniconda in the destination directory")

	if err = p.runInstaller(ctx, installerPath); err != nil {
		return err
	}

	logger.Info(ctx, "Downloading updates so that we can distribute them consistently")

	if err = p.condaUpdate(ctx); err != nil {
		return err
	}

	logger.Info(ctx, "Fetching packages")

	if err = p.condaInstall(ctx, p.cfg.Packages...); err != nil {
		return err
	}

	logger.Info(ctx, "Removing conda package files to reduce size")

	if err = p.condaCleanup(ctx); err != nil {
		return err
	}

	if err = p.stripPackageCaches(ctx); err != nil {
		return fmt.Errorf("strip package caches: %w", err)
	}

	return nil
}

// VersionedDir is the directory the environment is installed into.
func (p *Provisioner) VersionedDir() string {
	return filepath.Join(p.cfg.BaseDir, p.env.Identity.OutputBaseName())
}

// InstallerName is the file name of the installer for this run.
func (p *Provisioner) InstallerName() string {
	return p.installer.Name()
}
