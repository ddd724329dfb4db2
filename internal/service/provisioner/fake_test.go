package provisioner

import (
	"archive/tar"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/conda-buildenv/internal/command"
	"github.com/oshokin/conda-buildenv/internal/config"
	"github.com/oshokin/conda-buildenv/internal/domain/buildenv"
	"github.com/oshokin/conda-buildenv/internal/platform"
)

var (
	linuxHost   = platform.Host{OS: platform.Linux, Arch: "amd64"}
	windowsHost = platform.Host{OS: platform.Windows, Arch: "amd64"}

	errSimulated = errors.New("simulated failure")
)

// fakeRunner records commands and imitates the installer, conda and tar.
type fakeRunner struct {
	calls []*command.Command
	// fail returns true for commands that should exit non-zero.
	fail func(cmd *command.Command) bool
}

func (f *fakeRunner) Run(_ context.Context, cmd *command.Command) (*command.Result, error) {
	f.calls = append(f.calls, cmd)

	if f.fail != nil && f.fail(cmd) {
		return &command.Result{ExitCode: 1}, &command.Error{Command: cmd, ExitCode: 1, Err: errSimulated}
	}

	if err := simulate(cmd); err != nil {
		return &command.Result{ExitCode: 1}, &command.Error{Command: cmd, ExitCode: 1, Err: err}
	}

	return &command.Result{}, nil
}

// programs returns the base names of every recorded program.
func (f *fakeRunner) programs() []string {
	names := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		names = append(names, filepath.Base(c.Args[0]))
	}

	return names
}

// find returns the recorded commands whose program base name is name.
func (f *fakeRunner) find(name string) []*command.Command {
	var found []*command.Command

	for _, c := range f.calls {
		if filepath.Base(c.Args[0]) == name {
			found = append(found, c)
		}
	}

	return found
}

func simulate(cmd *command.Command) error {
	program := filepath.Base(cmd.Args[0])

	switch {
	case program == "sh":
		return fakeInstall(cmd.Args[len(cmd.Args)-1], filepath.Join("bin", "conda"))
	case strings.HasSuffix(program, ".exe") && len(cmd.Args) > 2 && cmd.Args[1] == "/S":
		return fakeInstall(strings.TrimPrefix(cmd.Args[2], "/D="), filepath.Join("Scripts", "conda.exe"))
	case program == "conda" || program == "conda.exe":
		return fakeConda(cmd)
	case program == "tar":
		args := cmd.Args
		return writeTarGz(cmd.Dir, args[len(args)-1], args[len(args)-2])
	}

	return nil
}

func fakeInstall(target, conda string) error {
	files := map[string]string{
		conda:                                       "#!/bin/sh\n",
		filepath.Join("pkgs", "python-3.7.tar.bz2"): "bz2",
		filepath.Join("pkgs", "urls.txt"):           "urls",
	}

	for name, body := range files {
		path := filepath.Join(target, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}

		if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
			return err
		}
	}

	return nil
}

// fakeConda leaves a .conda archive behind on install and removes only
// .tar.bz2 files on clean, so the cache stripper has work to do.
func fakeConda(cmd *command.Command) error {
	root := filepath.Dir(filepath.Dir(cmd.Args[0]))
	pkgs := filepath.Join(root, "pkgs")

	switch cmd.Args[1] {
	case "install":
		return os.WriteFile(filepath.Join(pkgs, "sphinx-3.5.conda"), []byte("conda"), 0o644)
	case "clean":
		matches, err := filepath.Glob(filepath.Join(pkgs, "*.tar.bz2"))
		if err != nil {
			return err
		}

		for _, m := range matches {
			if err = os.Remove(m); err != nil {
				return err
			}
		}
	}

	return nil
}

// writeTarGz archives dir/root the way "tar -zcf output root" run in dir would.
func writeTarGz(dir, root, output string) error {
	file, err := os.Create(output)
	if err != nil {
		return err
	}

	gz := gzip.NewWriter(file)
	tw := tar.NewWriter(gz)

	walkErr := filepath.Walk(filepath.Join(dir, root), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}

		header.Name = filepath.ToSlash(rel)
		if info.IsDir() {
			header.Name += "/"
		}

		if err = tw.WriteHeader(header); err != nil {
			return err
		}

		if info.IsDir() {
			return nil
		}

		src, err := os.Open(path)
		if err != nil {
			return err
		}

		defer src.Close()

		_, err = io.Copy(tw, src)

		return err
	})

	return errors.Join(walkErr, tw.Close(), gz.Close(), file.Close())
}

// fakePathEditor records PATH edits.
type fakePathEditor struct {
	mu        sync.Mutex
	removed   []string
	allUsers  []bool
	notified  int
	removeErr error
}

func (e *fakePathEditor) RemovePathEntry(_ context.Context, dir string, allUsers bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.removed = append(e.removed, dir)
	e.allUsers = append(e.allUsers, allUsers)

	return e.removeErr
}

func (e *fakePathEditor) AddPathEntry(context.Context, string, bool) error { return nil }

func (e *fakePathEditor) NotifyEnvironmentChanged(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.notified++

	return nil
}

// fixture bundles a provisioner wired to fakes inside a temporary directory.
type fixture struct {
	p         *Provisioner
	runner    *fakeRunner
	editor    *fakePathEditor
	cfg       *config.Config
	env       *config.Environment
	root      string
	installer []byte

	mu        sync.Mutex
	requested []string
}

// requestedPaths returns the URL paths the installer server has seen.
func (f *fixture) requestedPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.requested...)
}

func newFixture(t *testing.T, host platform.Host, opts ...Option) *fixture {
	t.Helper()

	root := t.TempDir()
	f := &fixture{
		runner:    &fakeRunner{},
		editor:    &fakePathEditor{},
		root:      root,
		installer: []byte("#!/bin/sh\necho miniconda installer\n"),
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requested = append(f.requested, r.URL.Path)
		f.mu.Unlock()

		_, _ = w.Write(f.installer)
	}))
	t.Cleanup(server.Close)

	f.cfg = config.Default(host)
	f.cfg.BaseDir = filepath.Join(root, "third-party", "conda_buildenv")
	f.cfg.BuildTemp = filepath.Join(root, "build_temp")
	f.cfg.InstallerURL = server.URL + "/miniconda/"

	f.env = &config.Environment{
		Identity: buildenv.Identity{InstallerVersion: "py37_4.9.2", BuildID: "1234", OSName: "linux64"},
		User:     "builder",
	}

	base := []Option{
		WithHost(host),
		WithRunner(f.runner),
		WithPathEditor(f.editor),
		WithHTTPClient(server.Client()),
		WithEnviron(func() []string { return []string{"HOME=/home/builder", "Path=/usr/bin"} }),
		WithHomeDir(func() (string, error) { return filepath.Join(root, "home"), nil }),
		WithMarkerPath(filepath.Join(root, MarkerFilename)),
	}

	p, err := New(f.cfg, f.env, append(base, opts...)...)
	require.NoError(t, err)

	f.p = p

	return f
}
