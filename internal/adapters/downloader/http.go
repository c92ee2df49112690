package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"effectharvest/internal/core/domain"
)

// Options configures the asset downloader.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Referer   string
}

// HTTPDownloader implements ports.Downloader using standard HTTP.
type HTTPDownloader struct {
	client    *http.Client
	userAgent string
	referer   string
}

// NewHTTPDownloader creates a new HTTPDownloader. httpClient may be nil.
func NewHTTPDownloader(opts Options, httpClient *http.Client) *HTTPDownloader {
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Minute // Videos can be large
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &HTTPDownloader{
		client:    httpClient,
		userAgent: opts.UserAgent,
		referer:   opts.Referer,
	}
}

// Download fetches the asset from the given URL.
func (d *HTTPDownloader) Download(ctx context.Context, videoURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}
	if d.referer != "" {
		req.Header.Set("Referer", d.referer)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Op: "download", URL: videoURL, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &domain.TransportError{Op: "download", URL: videoURL, StatusCode: resp.StatusCode}
	}

	return resp.Body, nil
}
