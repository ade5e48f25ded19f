package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/edgelayer/cachelayer/internal/cache"
)

func TestPageStoreCreateGetTouch(t *testing.T) {
	t.Parallel()

	store := NewPageStore()
	clientID := uuid.New()
	page := cache.Page{
		ID:       uuid.New(),
		ClientID: clientID,
		URL:      "https://example.com/a",
		URLHash:  "hash-a",
		Version:  1,
	}

	require.NoError(t, store.CreatePage(context.Background(), page))
	require.ErrorIs(t, store.CreatePage(context.Background(), page), cache.ErrAlreadyExists)

	got, err := store.GetPageByURL(context.Background(), clientID, "https://example.com/a")
	require.NoError(t, err)
	require.Equal(t, "hash-a", got.URLHash)

	at := time.Unix(1700000000, 0).UTC()
	require.NoError(t, store.TouchPage(context.Background(), clientID, page.URL, "hash-b", at))
	got, err = store.GetPageByURL(context.Background(), clientID, page.URL)
	require.NoError(t, err)
	require.Equal(t, "hash-b", got.URLHash)
	require.Equal(t, 2, got.Version)
	require.Equal(t, at, got.UpdatedAt)

	require.ErrorIs(t,
		store.TouchPage(context.Background(), clientID, "https://example.com/missing", "h", at),
		cache.ErrNotFound,
	)
	_, err = store.GetPageByURL(context.Background(), uuid.New(), page.URL)
	require.ErrorIs(t, err, cache.ErrNotFound)
}

func TestPageStoreListPagination(t *testing.T) {
	t.Parallel()

	store := NewPageStore()
	clientID := uuid.New()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.CreatePage(context.Background(), cache.Page{
			ID:         uuid.New(),
			ClientID:   clientID,
			URL:        fmt.Sprintf("https://example.com/p%d", i),
			HasContent: i%2 == 0,
		}))
	}

	pages, total, err := store.ListPages(context.Background(), clientID, cache.PageFilter{Limit: 2})
	require.NoError(t, err)
	require.Equal(t, 5, total)
	require.Len(t, pages, 2)
	// Newest first.
	require.Equal(t, "https://example.com/p4", pages[0].URL)

	pages, total, err = store.ListPages(context.Background(), clientID, cache.PageFilter{Limit: 2, Offset: 4})
	require.NoError(t, err)
	require.Equal(t, 5, total)
	require.Len(t, pages, 1)
	require.Equal(t, "https://example.com/p0", pages[0].URL)

	hasContent := true
	pages, total, err = store.ListPages(context.Background(), clientID, cache.PageFilter{HasContent: &hasContent})
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, pages, 3)
}
