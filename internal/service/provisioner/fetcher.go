package provisioner

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/dustin/go-humanize"
	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/conda-buildenv/internal/logger"

	// Ensure SHA256 available for installer verification.
	_ "crypto/sha256"
)

const (
	// InstallerFileMode is applied to the downloaded installer.
	InstallerFileMode os.FileMode = 0o755

	// downloadChunkSize is the buffer used to stream the installer to disk.
	downloadChunkSize = 32 << 10
)

var errBadHTTPStatus = errors.New("unexpected http status")

// InstallerURL is where the installer for this run is downloaded from.
func (p *Provisioner) InstallerURL() (string, error) {
	base, err := url.Parse(p.cfg.InstallerURL)
	if err != nil {
		return "", err
	}

	// Use path.Join to normalize duplicate slashes when composing the URL path.
	base.Path = path.Join(base.Path, p.installer.Name())

	return base.String(), nil
}

// fetchInstaller downloads the installer into build_temp and returns its path.
// When a checksum is configured the file is only put in place if it matches.
func (p *Provisioner) fetchInstaller(ctx context.Context) (string, error) {
	installerURL, err := p.InstallerURL()
	if err != nil {
		return "", err
	}

	target := filepath.Join(p.cfg.BuildTemp, p.installer.Name())

	logger.InfoKV(ctx, "Downloading installer", "url", installerURL, "path", target)

	downloaded, err := p.download(ctx, installerURL)
	if err != nil {
		return "", err
	}

	defer func() {
		_ = os.Remove(downloaded)
	}()

	checksum := p.cfg.InstallerChecksum()
	if checksum == nil {
		logger.Warn(ctx, "No installer checksum configured, the download is not verified")
	}

	if err = applyFile(downloaded, target, checksum); err != nil {
		return "", fmt.Errorf("place installer: %w", err)
	}

	return target, nil
}

// download streams url into a temporary file inside build_temp.
func (p *Provisioner) download(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return "", err
	}

	response, err := p.httpClient.Do(req)
	if err != nil {
		return "", err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s, %s: %w", rawURL, response.Status, errBadHTTPStatus)
	}

	output, err := os.CreateTemp(p.cfg.BuildTemp, ".installer-*.part")
	if err != nil {
		return "", err
	}

	written, err := io.CopyBuffer(output, response.Body, make([]byte, downloadChunkSize))
	if closeErr := output.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(output.Name())

		return "", err
	}

	logger.InfoKV(ctx, "Downloaded installer", "size", humanize.Bytes(uint64(written)))

	return output.Name(), nil
}

// applyFile moves source over target with go-update, verifying the SHA-256
// checksum first when one is given.
func applyFile(source, target string, checksum []byte) error {
	data, err := os.Open(filepath.Clean(source))
	if err != nil {
		return err
	}

	defer func() {
		_ = data.Close()
	}()

	// go-update swaps an existing file, so the target must be present.
	createdPlaceholder := false

	if _, err = os.Stat(target); errors.Is(err, os.ErrNotExist) {
		var placeholder *os.File

		if placeholder, err = os.Create(target); err != nil {
			return err
		}

		_ = placeholder.Close()
		createdPlaceholder = true
	}

	options := goupdate.Options{
		TargetPath: target,
		TargetMode: InstallerFileMode,
		Checksum:   checksum,
		Hash:       crypto.SHA256,
	}

	if err = goupdate.Apply(data, options); err != nil {
		if createdPlaceholder {
			_ = os.Remove(target)
		}

		return err
	}

	for _, leftover := range []string{
		target + ".old",
		filepath.Join(filepath.Dir(target), "."+filepath.Base(target)+".old"),
	} {
		_ = os.Remove(leftover)
	}

	return nil
}
