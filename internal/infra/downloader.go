package infra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/version_guard/internal/domain"
)

const (
	downloadTimeout   = 10 * time.Minute
	downloadUserAgent = "verguard"
)

// HTTPDownloader implements domain.DownloadManager by fetching catalog
// installers into a local directory.
type HTTPDownloader struct {
	client  *http.Client
	destDir string
	timeout time.Duration
	logger  *zap.Logger
}

// NewHTTPDownloader creates a downloader writing into destDir.
func NewHTTPDownloader(destDir string, logger *zap.Logger) *HTTPDownloader {
	return &HTTPDownloader{
		client:  &http.Client{},
		destDir: destDir,
		timeout: downloadTimeout,
		logger:  logger,
	}
}

// NewHTTPDownloaderWithClient uses a custom HTTP client (for testing).
func NewHTTPDownloaderWithClient(client *http.Client, destDir string, logger *zap.Logger) *HTTPDownloader {
	d := NewHTTPDownloader(destDir, logger)
	d.client = client
	return d
}

// Download fetches entry's installer and returns the local path. A
// non-empty file already at the destination is reused.
func (d *HTTPDownloader) Download(ctx context.Context, entry domain.ArchiveEntry) (string, error) {
	name, err := installerName(entry.DownloadURL)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(d.destDir, name)

	if info, err := os.Stat(dest); err == nil && info.Mode().IsRegular() && info.Size() > 0 {
		d.logger.Info("installer already downloaded", zap.String("path", dest))
		return dest, nil
	}

	if err := os.MkdirAll(d.destDir, 0o755); err != nil {
		return "", fmt.Errorf("create download directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, entry.DownloadURL, nil)
	if err != nil {
		return "", fmt.Errorf("create download request: %w", err)
	}
	req.Header.Set("User-Agent", downloadUserAgent)

	d.logger.Info("downloading installer",
		zap.String("version", entry.Version),
		zap.String("url", entry.DownloadURL))

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", entry.Version, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: server returned status %d", entry.Version, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(d.destDir, ".verguard-download-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	n, err := io.Copy(tmp, resp.Body)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("write installer: %w", err)
	}
	if resp.ContentLength > 0 && n != resp.ContentLength {
		return "", fmt.Errorf("write installer: got %d of %d bytes", n, resp.ContentLength)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return "", fmt.Errorf("move installer into place: %w", err)
	}

	d.logger.Info("installer downloaded",
		zap.String("path", dest),
		zap.Int64("bytes", n))
	return dest, nil
}

// installerName derives a safe local file name from the URL path.
func installerName(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid download URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid download URL %q: unsupported scheme", raw)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" || strings.HasPrefix(name, ".") {
		return "", errors.New("download URL has no file name")
	}
	return name, nil
}

// Ensure HTTPDownloader implements domain.DownloadManager.
var _ domain.DownloadManager = (*HTTPDownloader)(nil)
