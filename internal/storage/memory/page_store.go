package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edgelayer/cachelayer/internal/cache"
)

type pageKey struct {
	clientID uuid.UUID
	url      string
}

// PageStore keeps the page inventory in a map, preserving insertion order
// per client so listings are deterministic.
type PageStore struct {
	mu    sync.RWMutex
	pages map[pageKey]cache.Page
	order map[uuid.UUID][]string
}

// NewPageStore constructs a PageStore.
func NewPageStore() *PageStore {
	return &PageStore{
		pages: make(map[pageKey]cache.Page),
		order: make(map[uuid.UUID][]string),
	}
}

// GetPageByURL fetches a page by its (client, canonical URL) key.
func (s *PageStore) GetPageByURL(_ context.Context, clientID uuid.UUID, url string) (cache.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	page, ok := s.pages[pageKey{clientID: clientID, url: url}]
	if !ok {
		return cache.Page{}, cache.ErrNotFound
	}
	return page, nil
}

// CreatePage stores a new page; the (client_id, url) pair is unique.
func (s *PageStore) CreatePage(_ context.Context, page cache.Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pageKey{clientID: page.ClientID, url: page.URL}
	if _, exists := s.pages[key]; exists {
		return cache.ErrAlreadyExists
	}
	s.pages[key] = page
	s.order[page.ClientID] = append(s.order[page.ClientID], page.URL)
	return nil
}

// TouchPage refreshes URL metadata and bumps the version of an existing
// page without touching its content fields.
func (s *PageStore) TouchPage(_ context.Context, clientID uuid.UUID, url, urlHash string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pageKey{clientID: clientID, url: url}
	page, ok := s.pages[key]
	if !ok {
		return cache.ErrNotFound
	}
	page.URLHash = urlHash
	page.Version++
	page.UpdatedAt = at
	s.pages[key] = page
	return nil
}

// ListPages returns a page of results (newest first) plus the total count
// matching the filter.
func (s *PageStore) ListPages(_ context.Context, clientID uuid.UUID, filter cache.PageFilter) ([]cache.Page, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	urls := s.order[clientID]
	matched := make([]cache.Page, 0, len(urls))
	// Newest first: walk insertion order backwards.
	for i := len(urls) - 1; i >= 0; i-- {
		page := s.pages[pageKey{clientID: clientID, url: urls[i]}]
		if filter.HasContent != nil && page.HasContent != *filter.HasContent {
			continue
		}
		matched = append(matched, page)
	}

	total := len(matched)
	offset := filter.Offset
	if offset > total {
		offset = total
	}
	end := total
	if filter.Limit > 0 && offset+filter.Limit < end {
		end = offset + filter.Limit
	}
	out := make([]cache.Page, end-offset)
	copy(out, matched[offset:end])
	return out, total, nil
}
