package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edgelayer/cachelayer/internal/cache"
)

type stubFetcher struct {
	body []byte
	err  error
}

func (s stubFetcher) Fetch(context.Context, string) ([]byte, error) {
	return s.body, s.err
}

func TestInstrumentedFetcherPassesThrough(t *testing.T) {
	Init()

	f := NewInstrumentedFetcher(stubFetcher{body: []byte("<urlset/>")})
	body, err := f.Fetch(context.Background(), "https://example.com/sitemap.xml")
	require.NoError(t, err)
	require.Equal(t, []byte("<urlset/>"), body)
}

func TestFetchResultClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "ok"},
		{"http status", &cache.FetchError{Kind: cache.FetchHTTPStatus, StatusCode: 404}, "http_error"},
		{"timeout", &cache.FetchError{Kind: cache.FetchTimeout}, "timeout"},
		{"connection", &cache.FetchError{Kind: cache.FetchConnection}, "connection"},
		{"other", cache.ErrInvalidDocument, "invalid"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, fetchResult(tc.err))
		})
	}
}
