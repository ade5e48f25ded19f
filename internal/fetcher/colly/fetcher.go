// Package collyfetcher implements cache.DocumentFetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/edgelayer/cachelayer/internal/cache"
)

// DefaultTimeout bounds a single document fetch when no timeout is
// configured. It is part of the external contract.
const DefaultTimeout = 30 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher retrieves sitemap documents with a bounded timeout. It performs a
// single GET per call; retry policy, if any, belongs to the caller.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	// Clones share the visited-URL storage, and the same sitemap is fetched
	// repeatedly across previews and imports.
	c.AllowURLRevisit = true
	c.WithTransport(newHTTPTransport())
	return &Fetcher{cfg: cfg, baseCollector: c}
}

// Fetch executes a single HTTP GET and returns the raw body. Failures are
// reported as *cache.FetchError with a Timeout, HttpStatus, or
// ConnectionFailure kind.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if err := validateAbsolute(rawURL); err != nil {
		return nil, &cache.FetchError{Kind: cache.FetchConnection, URL: rawURL, Err: err}
	}

	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)

	var (
		body       []byte
		statusCode int
		fetchErr   error
	)
	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			statusCode = r.StatusCode
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return nil, &cache.FetchError{Kind: cache.FetchTimeout, URL: rawURL, Err: ctx.Err()}
	case visitErr := <-done:
		// Prefer the OnError callback error: it carries the response status.
		if fetchErr != nil {
			return nil, classify(rawURL, statusCode, fetchErr)
		}
		if visitErr != nil {
			return nil, classify(rawURL, statusCode, visitErr)
		}
	}
	return body, nil
}

func classify(url string, statusCode int, err error) *cache.FetchError {
	if statusCode >= 400 {
		return &cache.FetchError{Kind: cache.FetchHTTPStatus, URL: url, StatusCode: statusCode, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &cache.FetchError{Kind: cache.FetchTimeout, URL: url, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &cache.FetchError{Kind: cache.FetchTimeout, URL: url, Err: err}
	}
	return &cache.FetchError{Kind: cache.FetchConnection, URL: url, Err: err}
}

func validateAbsolute(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("not an absolute http(s) url: %q", rawURL)
	}
	return nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
