// Package fetch retrieves remote artifacts into a local staging area with
// retry, integrity checking, and guaranteed cleanup of partial files.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/forgeup/forgeup/internal/catalog"
)

const (
	// defaultTimeout bounds a single download attempt end to end.
	defaultTimeout = 5 * time.Minute
	// userAgent is sent with every request.
	userAgent = "forgeup/1.0"
	// maxRedirects bounds redirect chains from mirrors.
	maxRedirects = 10
)

// Downloader performs HTTP downloads governed by a RetryPolicy.
type Downloader struct {
	client   *http.Client
	policy   RetryPolicy
	progress io.Writer // nil disables progress rendering
}

// NewDownloader creates a downloader with the given retry policy.
func NewDownloader(policy RetryPolicy) *Downloader {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Downloader{
		client: &http.Client{
			Timeout: defaultTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		policy: policy,
	}
}

// SetProgress enables progress bar rendering on w. Pass nil to disable.
func (d *Downloader) SetProgress(w io.Writer) {
	d.progress = w
}

// SetTimeout overrides the per-attempt timeout.
func (d *Downloader) SetTimeout(timeout time.Duration) {
	d.client.Timeout = timeout
}

// Staged is a downloaded, verified, not-yet-extracted artifact. The caller
// owns it and must call Cleanup once the file is consumed or abandoned.
type Staged struct {
	Path string
	URL  string

	once sync.Once
}

// Cleanup removes the staged file. Safe to call more than once and after
// the file has already been consumed.
func (s *Staged) Cleanup() {
	s.once.Do(func() {
		_ = os.Remove(s.Path)
	})
}

// Fetch downloads an artifact into stagingDir and verifies its size and
// checksum when the catalog supplies them. On any failure no staged file
// remains on disk.
func (d *Downloader) Fetch(ctx context.Context, art *catalog.Artifact, stagingDir string) (*Staged, error) {
	dest, err := stagingPath(art.URL, stagingDir)
	if err != nil {
		return nil, &DownloadError{URL: art.URL, Attempts: 0, Cause: err}
	}

	desc := fmt.Sprintf("%s %s", art.Component.Name, art.Component.Version)
	if err := d.download(ctx, art.URL, dest, desc); err != nil {
		return nil, err
	}

	if err := verifyStaged(dest, art); err != nil {
		os.Remove(dest)
		return nil, err
	}

	return &Staged{Path: dest, URL: art.URL}, nil
}

// FetchSignature downloads an artifact's detached signature file. Returns
// nil without error when the artifact has no signature URL.
func (d *Downloader) FetchSignature(ctx context.Context, art *catalog.Artifact, stagingDir string) (*Staged, error) {
	if art.SignatureURL == "" {
		return nil, nil
	}

	dest, err := stagingPath(art.SignatureURL, stagingDir)
	if err != nil {
		return nil, &DownloadError{URL: art.SignatureURL, Attempts: 0, Cause: err}
	}

	if err := d.download(ctx, art.SignatureURL, dest, ""); err != nil {
		return nil, err
	}

	return &Staged{Path: dest, URL: art.SignatureURL}, nil
}

// download runs the retry loop around downloadOnce. Transient transport
// errors and 5xx responses are retried per the policy; anything else fails
// immediately.
func (d *Downloader) download(ctx context.Context, rawURL, dest, desc string) error {
	var lastErr error

	attempt := 0
	for attempt < d.policy.MaxAttempts {
		attempt++

		if attempt > 1 {
			select {
			case <-time.After(d.policy.Delay(attempt - 1)):
			case <-ctx.Done():
				return &DownloadError{URL: rawURL, Attempts: attempt - 1, Cause: ctx.Err()}
			}
		}

		err := d.downloadOnce(ctx, rawURL, dest, desc)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return &DownloadError{URL: rawURL, Attempts: attempt, Cause: ctx.Err()}
		}
		if !retryable(err) {
			break
		}
	}

	return &DownloadError{URL: rawURL, Attempts: attempt, Cause: lastErr}
}

// downloadOnce performs a single attempt: GET into a partial file, then
// rename into place. The partial file is removed on every failure path.
func (d *Downloader) downloadOnce(ctx context.Context, rawURL, dest, desc string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &httpStatusError{code: resp.StatusCode}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}

	partPath := dest + ".part"
	partFile, err := os.Create(partPath)
	if err != nil {
		return fmt.Errorf("create partial file: %w", err)
	}

	cleanupNeeded := true
	defer func() {
		partFile.Close()
		if cleanupNeeded {
			os.Remove(partPath)
		}
	}()

	var w io.Writer = partFile
	if d.progress != nil && resp.ContentLength > 0 {
		bar := progressbar.NewOptions64(resp.ContentLength,
			progressbar.OptionSetWriter(d.progress),
			progressbar.OptionSetDescription(desc),
			progressbar.OptionShowBytes(true),
			progressbar.OptionClearOnFinish(),
		)
		w = io.MultiWriter(partFile, bar)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		// A body truncated by the server or a dropped connection is worth
		// another attempt.
		return &transientError{cause: fmt.Errorf("copy response body: %w", err)}
	}

	if err := partFile.Close(); err != nil {
		return fmt.Errorf("close partial file: %w", err)
	}

	if err := os.Rename(partPath, dest); err != nil {
		return fmt.Errorf("rename partial file: %w", err)
	}

	cleanupNeeded = false
	return nil
}

// httpStatusError carries a non-200 response status. Server-side errors
// are retryable; client errors are not.
type httpStatusError struct {
	code int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.code)
}

func retryable(err error) bool {
	if se, ok := err.(*httpStatusError); ok {
		return se.code >= 500
	}
	return isTransient(err)
}

// stagingPath derives the local file name for a URL inside stagingDir.
func stagingPath(rawURL, stagingDir string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("url %s has no file name", rawURL)
	}
	return filepath.Join(stagingDir, name), nil
}
