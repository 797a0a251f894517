package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"tilegate/internal/cache"
)

const userAgent = "tilegate/1.0"

var (
	// ErrBadURL means the configured template produced an unusable URL.
	ErrBadURL = eris.New("malformed upstream url")
	// ErrUpstream covers transport failures, non-200 statuses and body
	// read errors from the tile source.
	ErrUpstream = eris.New("upstream fetch failed")
)

// fetcher performs the actual upstream tile requests. The limiter throttles
// outbound traffic toward the tile source, not inbound clients.
type fetcher struct {
	client   *http.Client
	template string
	timeout  time.Duration
	limiter  *rate.Limiter
}

func newFetcher(template string, timeout time.Duration, rps int) *fetcher {
	return &fetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		template: template,
		timeout:  timeout,
		limiter:  rate.NewLimiter(rate.Limit(rps), rps),
	}
}

func (f *fetcher) buildURL(key cache.TileKey) (string, error) {
	raw := fmt.Sprintf(f.template, key.Z, key.X, key.Y)
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", eris.Wrapf(ErrBadURL, "template produced %q", raw)
	}
	return raw, nil
}

// fetch runs on its own deadline, detached from the originating request
// context: coalesced waiters may still need the result after the first
// client disconnects.
func (f *fetcher) fetch(key cache.TileKey) ([]byte, error) {
	tileURL, err := f.buildURL(key)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrapf(ErrUpstream, "rate limiter wait: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tileURL, nil)
	if err != nil {
		return nil, eris.Wrapf(ErrBadURL, "build request: %v", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "image/png,image/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(ErrUpstream, "request %s: %v", tileURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Wrapf(ErrUpstream, "upstream status %d for %s", resp.StatusCode, tileURL)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(ErrUpstream, "read upstream body: %v", err)
	}
	return data, nil
}
