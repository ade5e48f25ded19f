package metrics

import (
	"context"
	"errors"

	"github.com/edgelayer/cachelayer/internal/cache"
)

// InstrumentedFetcher decorates a DocumentFetcher with fetch-result
// counters. The resolver stays metrics-free; instrumentation is applied at
// wiring time.
type InstrumentedFetcher struct {
	next cache.DocumentFetcher
}

// NewInstrumentedFetcher wraps next.
func NewInstrumentedFetcher(next cache.DocumentFetcher) *InstrumentedFetcher {
	return &InstrumentedFetcher{next: next}
}

// Fetch delegates to the wrapped fetcher and records the outcome.
func (f *InstrumentedFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	body, err := f.next.Fetch(ctx, url)
	ObserveSitemapFetch(fetchResult(err))
	return body, err
}

func fetchResult(err error) string {
	if err == nil {
		return "ok"
	}
	var fetchErr *cache.FetchError
	if errors.As(err, &fetchErr) {
		switch fetchErr.Kind {
		case cache.FetchHTTPStatus:
			return "http_error"
		case cache.FetchTimeout:
			return "timeout"
		case cache.FetchConnection:
			return "connection"
		}
	}
	return "invalid"
}
