package sitemap

import (
	"context"

	"go.uber.org/zap"

	"github.com/edgelayer/cachelayer/internal/cache"
)

// Default resolution bounds. These are part of the external contract, not
// tunables that silently change behavior.
const (
	DefaultMaxDepth   = 3
	DefaultMaxEntries = 10000
)

// ResolveOptions bound a single resolution run.
type ResolveOptions struct {
	// Recursive controls whether index documents are expanded. When false
	// only the root document is ever fetched.
	Recursive bool
	// MaxDepth is the deepest index level that may be expanded. Zero means
	// DefaultMaxDepth.
	MaxDepth int
	// MaxEntries is the hard ceiling on collected entries. Zero means
	// DefaultMaxEntries.
	MaxEntries int
}

// Resolver expands a sitemap URL into a flat, deduplicated entry list. It
// walks index trees breadth-first with an explicit queue and visited set so
// depth and cycle bounds are enforced invariants rather than call-stack
// accidents.
type Resolver struct {
	fetcher cache.DocumentFetcher
	logger  *zap.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(fetcher cache.DocumentFetcher, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{fetcher: fetcher, logger: logger}
}

type queueItem struct {
	url   string
	depth int
}

// Resolve fetches the root document and, when it is an index and opts.
// Recursive is set, walks the tree under the configured bounds. A failure on
// the root aborts with *cache.ResolveError; failures on child sitemaps are
// recorded in the result and do not stop the walk. Entries are emitted in
// discovery order and deduplicated by canonical location.
func (r *Resolver) Resolve(ctx context.Context, rootURL string, opts ResolveOptions) (cache.ResolvedSet, error) {
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	maxEntries := opts.MaxEntries
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	set := cache.ResolvedSet{}
	visited := make(map[string]struct{})
	seen := make(map[string]struct{})
	queue := []queueItem{{url: rootURL, depth: 0}}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		key := dedupKey(item.url)
		if _, ok := visited[key]; ok {
			continue
		}
		visited[key] = struct{}{}
		set.VisitedSitemaps = append(set.VisitedSitemaps, item.url)

		doc, err := r.fetchDocument(ctx, item.url)
		if err != nil {
			if item.depth == 0 {
				return cache.ResolvedSet{}, &cache.ResolveError{URL: rootURL, Err: err}
			}
			r.logger.Warn("child sitemap failed",
				zap.String("url", item.url),
				zap.Int("depth", item.depth),
				zap.Error(err),
			)
			set.Errors = append(set.Errors, cache.SitemapError{
				URL:   item.url,
				Error: err.Error(),
				Depth: item.depth,
			})
			continue
		}

		switch doc.Kind {
		case cache.DocumentURLSet:
			for _, entry := range doc.Entries {
				entryKey := dedupKey(entry.Location)
				if _, dup := seen[entryKey]; dup {
					continue
				}
				seen[entryKey] = struct{}{}
				set.Entries = append(set.Entries, entry)
			}
			// The ceiling is checked between documents, not mid-batch.
			if len(set.Entries) > maxEntries {
				set.Entries = set.Entries[:maxEntries]
				set.Truncated = true
				r.logger.Warn("entry ceiling reached, stopping resolution",
					zap.String("root", rootURL),
					zap.Int("max_entries", maxEntries),
				)
				return set, nil
			}
		case cache.DocumentIndex:
			if !opts.Recursive {
				continue
			}
			if item.depth >= maxDepth {
				if len(doc.Children) > 0 {
					set.MaxDepthReached = true
				}
				continue
			}
			for _, child := range doc.Children {
				queue = append(queue, queueItem{url: child.Location, depth: item.depth + 1})
			}
		}
	}

	return set, nil
}

func (r *Resolver) fetchDocument(ctx context.Context, url string) (cache.Document, error) {
	body, err := r.fetcher.Fetch(ctx, url)
	if err != nil {
		return cache.Document{}, err
	}
	return Parse(body)
}

// dedupKey canonicalizes for duplicate detection. URLs that fail to
// normalize still participate keyed by their raw string so a bad location
// cannot be collected twice.
func dedupKey(rawURL string) string {
	canonical, err := cache.NormalizeURL(rawURL)
	if err != nil {
		return rawURL
	}
	return canonical
}
