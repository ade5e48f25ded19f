package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/edgelayer/cachelayer/internal/cache"
)

// PageStore implements cache.PageStore using Postgres. Lookups by URL go
// through the indexed url_hash column first and confirm with a string
// comparison, so the index stays small even with very long URLs.
type PageStore struct {
	pool   Pool
	hasher cache.Hasher
}

// NewPageStore creates a PageStore on an existing pool.
func NewPageStore(pool Pool, hasher cache.Hasher) *PageStore {
	return &PageStore{pool: pool, hasher: hasher}
}

const pageColumns = `id, client_id, url, url_hash, (raw_html IS NOT NULL), version, last_scraped_at, last_processed_at, created_at, updated_at`

// GetPageByURL retrieves a page by its exact URL within a tenant.
func (s *PageStore) GetPageByURL(ctx context.Context, clientID uuid.UUID, url string) (cache.Page, error) {
	urlHash, err := s.hasher.Hash([]byte(url))
	if err != nil {
		return cache.Page{}, fmt.Errorf("hash url: %w", err)
	}
	query := `
		SELECT ` + pageColumns + `
		FROM pages
		WHERE client_id = $1 AND url_hash = $2 AND url = $3;
	`
	var page cache.Page
	err = s.pool.QueryRow(ctx, query, clientID, urlHash, url).Scan(
		&page.ID,
		&page.ClientID,
		&page.URL,
		&page.URLHash,
		&page.HasContent,
		&page.Version,
		&page.LastScrapedAt,
		&page.LastProcessedAt,
		&page.CreatedAt,
		&page.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return cache.Page{}, cache.ErrNotFound
	}
	if err != nil {
		return cache.Page{}, fmt.Errorf("get page by url: %w", err)
	}
	return page, nil
}

// CreatePage inserts a new page row. A concurrent insert of the same
// (client_id, url) pair surfaces as cache.ErrAlreadyExists.
func (s *PageStore) CreatePage(ctx context.Context, page cache.Page) error {
	query := `
		INSERT INTO pages (id, client_id, url, url_hash, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`
	_, err := s.pool.Exec(ctx, query,
		page.ID,
		page.ClientID,
		page.URL,
		page.URLHash,
		page.Version,
		page.CreatedAt,
		page.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return cache.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert page: %w", err)
	}
	return nil
}

// TouchPage bumps the version of an existing page so downstream refresh
// picks it up again.
func (s *PageStore) TouchPage(ctx context.Context, clientID uuid.UUID, url, urlHash string, at time.Time) error {
	query := `
		UPDATE pages
		SET url_hash = $1, version = version + 1, updated_at = $2
		WHERE client_id = $3 AND url = $4;
	`
	tag, err := s.pool.Exec(ctx, query, urlHash, at, clientID, url)
	if err != nil {
		return fmt.Errorf("touch page: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return cache.ErrNotFound
	}
	return nil
}

// ListPages retrieves a tenant's pages newest-first with the total count.
func (s *PageStore) ListPages(ctx context.Context, clientID uuid.UUID, filter cache.PageFilter) ([]cache.Page, int, error) {
	where := `WHERE client_id = $1`
	args := []any{clientID}
	if filter.HasContent != nil {
		if *filter.HasContent {
			where += ` AND raw_html IS NOT NULL`
		} else {
			where += ` AND raw_html IS NULL`
		}
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM pages ` + where + `;`
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count pages: %w", err)
	}

	limit := any(nil) // LIMIT NULL means no limit
	if filter.Limit > 0 {
		limit = filter.Limit
	}
	query := fmt.Sprintf(`
		SELECT `+pageColumns+`
		FROM pages
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3;
	`, where)
	rows, err := s.pool.Query(ctx, query, clientID, limit, filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	var pages []cache.Page
	for rows.Next() {
		var page cache.Page
		err := rows.Scan(
			&page.ID,
			&page.ClientID,
			&page.URL,
			&page.URLHash,
			&page.HasContent,
			&page.Version,
			&page.LastScrapedAt,
			&page.LastProcessedAt,
			&page.CreatedAt,
			&page.UpdatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan page row: %w", err)
		}
		pages = append(pages, page)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate page rows: %w", err)
	}
	return pages, total, nil
}
