package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// ErrProbeFailed is returned when the size of an asset cannot be determined
var ErrProbeFailed = errors.New("download: size probe failed")

// Prober determines the byte size of a downloadable asset
type Prober interface {
	Probe(ctx context.Context, assetURL string) (int64, error)
}

// HTTPProber asks the asset server for the size, preferring a header-only
// request and falling back to fetching and measuring the body
type HTTPProber struct {
	HTTPClient *http.Client
	// BaseURL resolves site-relative asset URLs such as /books/x/book.pdf
	BaseURL string
}

// NewHTTPProber creates a prober with a bounded client timeout
func NewHTTPProber(baseURL string) *HTTPProber {
	return &HTTPProber{
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		BaseURL: baseURL,
	}
}

// Probe returns the asset size in bytes
func (p *HTTPProber) Probe(ctx context.Context, assetURL string) (int64, error) {
	target, err := p.resolve(assetURL)
	if err != nil {
		return 0, err
	}

	size, known, err := p.head(ctx, target)
	if err != nil {
		return 0, err
	}
	if known {
		return size, nil
	}

	slog.Debug("No Content-Length on HEAD, measuring body", "url", target)
	return p.measure(ctx, target)
}

func (p *HTTPProber) resolve(assetURL string) (string, error) {
	if p.BaseURL == "" {
		return assetURL, nil
	}
	base, err := url.Parse(p.BaseURL)
	if err != nil {
		return "", fmt.Errorf("%w: invalid base URL: %v", ErrProbeFailed, err)
	}
	ref, err := url.Parse(assetURL)
	if err != nil {
		return "", fmt.Errorf("%w: invalid asset URL: %v", ErrProbeFailed, err)
	}
	return base.ResolveReference(ref).String(), nil
}

func (p *HTTPProber) head(ctx context.Context, target string) (int64, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}

	resp, err := p.client().Do(req)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, false, fmt.Errorf("%w: HEAD returned status %d", ErrProbeFailed, resp.StatusCode)
	}

	if resp.ContentLength < 0 {
		return 0, false, nil
	}
	return resp.ContentLength, true, nil
}

func (p *HTTPProber) measure(ctx context.Context, target string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}

	resp, err := p.client().Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("%w: GET returned status %d", ErrProbeFailed, resp.StatusCode)
	}

	n, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to read body: %v", ErrProbeFailed, err)
	}
	return n, nil
}

func (p *HTTPProber) client() *http.Client {
	if p.HTTPClient != nil {
		return p.HTTPClient
	}
	return http.DefaultClient
}

// FileProber stats assets on local disk. Asset URLs of the form
// /books/{slug}/{file} map to {Root}/{slug}/{file}.
type FileProber struct {
	Root string
}

// Probe returns the size of the file backing the asset URL
func (p *FileProber) Probe(ctx context.Context, assetURL string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}

	u, err := url.Parse(assetURL)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid asset URL: %v", ErrProbeFailed, err)
	}

	clean := path.Clean("/" + u.Path)
	rel, ok := strings.CutPrefix(clean, "/books/")
	if !ok {
		return 0, fmt.Errorf("%w: %s is not a book asset", ErrProbeFailed, assetURL)
	}

	info, err := os.Stat(filepath.Join(p.Root, filepath.FromSlash(rel)))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%w: %s is a directory", ErrProbeFailed, assetURL)
	}
	return info.Size(), nil
}
