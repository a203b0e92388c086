package resource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

const defaultMaxBytes int64 = 512 << 20

// FetchResult describes the outcome of one download attempt.
type FetchResult struct {
	ETag        string
	Size        int64
	NotModified bool
}

// HTTPFetcher downloads a resource over HTTP into a destination file,
// using the ETag of the previous download to skip unchanged content.
type HTTPFetcher struct {
	url        string
	dest       string
	client     *retryablehttp.Client
	maxBytes   int64
	maxElapsed time.Duration
	logger     zerolog.Logger
}

// NewHTTPFetcher constructs an HTTPFetcher writing url to dest.
func NewHTTPFetcher(url, dest string, timeout time.Duration, maxBytes int64, logger zerolog.Logger) (*HTTPFetcher, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("resource url must not be empty")
	}
	if strings.TrimSpace(dest) == "" {
		return nil, errors.New("resource destination must not be empty")
	}
	if timeout <= 0 {
		return nil, errors.New("timeout must be greater than zero")
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.CheckRetry = func(_ context.Context, _ *http.Response, _ error) (bool, error) {
		return false, nil
	}
	client.Logger = nil
	client.HTTPClient = &http.Client{Timeout: timeout}

	return &HTTPFetcher{
		url:        url,
		dest:       dest,
		client:     client,
		maxBytes:   maxBytes,
		maxElapsed: time.Minute,
		logger:     logger,
	}, nil
}

func (f *HTTPFetcher) etagPath() string {
	return f.dest + ".etag"
}

// Sync downloads the resource when the remote copy changed since the last
// successful download. Transient failures are retried with backoff.
func (f *HTTPFetcher) Sync(ctx context.Context) (FetchResult, error) {
	previous, err := os.ReadFile(f.etagPath())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return FetchResult{}, fmt.Errorf("read etag: %w", err)
	}
	etag := strings.TrimSpace(string(previous))
	if _, err := os.Stat(f.dest); err != nil {
		etag = ""
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = f.maxElapsed

	var result FetchResult
	operation := func() error {
		var err error
		result, err = f.Fetch(ctx, etag)
		return err
	}
	notify := func(err error, wait time.Duration) {
		f.logger.Warn().Err(err).Dur("retry_in", wait).Str("url", f.url).Msg("resource download failed, retrying")
	}
	if err := backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), notify); err != nil {
		return FetchResult{}, err
	}

	if !result.NotModified && result.ETag != "" {
		if err := os.WriteFile(f.etagPath(), []byte(result.ETag+"\n"), 0o644); err != nil {
			return result, fmt.Errorf("write etag: %w", err)
		}
	}
	return result, nil
}

// Fetch performs a single download attempt.
func (f *HTTPFetcher) Fetch(ctx context.Context, previousETag string) (FetchResult, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return FetchResult{}, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	if previousETag != "" {
		req.Header.Set("If-None-Match", previousETag)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return FetchResult{}, fmt.Errorf("fetch resource: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return FetchResult{ETag: resp.Header.Get("ETag"), NotModified: true}, nil
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return FetchResult{}, fmt.Errorf("unexpected status: %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return FetchResult{}, backoff.Permanent(fmt.Errorf("unexpected status: %s", resp.Status))
	}

	size, err := f.writeBody(resp.Body)
	if err != nil {
		return FetchResult{}, err
	}
	f.logger.Info().Str("url", f.url).Int64("bytes", size).Msg("downloaded resource")
	return FetchResult{ETag: resp.Header.Get("ETag"), Size: size}, nil
}

func (f *HTTPFetcher) writeBody(body io.Reader) (int64, error) {
	dir := filepath.Dir(f.dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, backoff.Permanent(err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.dest)+"-*")
	if err != nil {
		return 0, backoff.Permanent(err)
	}
	cleanup := func() {
		_ = os.Remove(tmp.Name())
	}

	n, err := io.Copy(tmp, io.LimitReader(body, f.maxBytes+1))
	if err != nil {
		_ = tmp.Close()
		cleanup()
		return 0, fmt.Errorf("read resource: %w", err)
	}
	if n > f.maxBytes {
		_ = tmp.Close()
		cleanup()
		return 0, backoff.Permanent(fmt.Errorf("resource exceeds %d bytes", f.maxBytes))
	}
	if n == 0 {
		_ = tmp.Close()
		cleanup()
		return 0, backoff.Permanent(errors.New("resource body is empty"))
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return 0, err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		cleanup()
		return 0, err
	}
	if err := os.Rename(tmp.Name(), f.dest); err != nil {
		cleanup()
		return 0, err
	}
	return n, nil
}
