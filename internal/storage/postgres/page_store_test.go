package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/edgelayer/cachelayer/internal/cache"
	"github.com/edgelayer/cachelayer/internal/hash/sha256"
)

var pageColumnNames = []string{
	"id", "client_id", "url", "url_hash", "has_content", "version",
	"last_scraped_at", "last_processed_at", "created_at", "updated_at",
}

func testPage() cache.Page {
	now := time.Unix(1700000000, 0).UTC()
	url := "https://acme.example.com/pricing"
	urlHash, _ := sha256.New().Hash([]byte(url))
	return cache.Page{
		ID:        uuid.MustParse("0190b5e8-0000-7000-8000-000000000010"),
		ClientID:  uuid.MustParse("0190b5e8-0000-7000-8000-000000000001"),
		URL:       url,
		URLHash:   urlHash,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func pageRow(page cache.Page) *pgxmock.Rows {
	return pgxmock.NewRows(pageColumnNames).AddRow(
		page.ID, page.ClientID, page.URL, page.URLHash, page.HasContent, page.Version,
		page.LastScrapedAt, page.LastProcessedAt, page.CreatedAt, page.UpdatedAt,
	)
}

func TestGetPageByURLFiltersOnHash(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	page := testPage()

	mock.ExpectQuery("SELECT (.+) FROM pages").
		WithArgs(page.ClientID, page.URLHash, page.URL).
		WillReturnRows(pageRow(page))

	store := NewPageStore(mock, sha256.New())
	got, err := store.GetPageByURL(context.Background(), page.ClientID, page.URL)
	require.NoError(t, err)
	require.Equal(t, page, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPageByURLNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	page := testPage()

	mock.ExpectQuery("SELECT (.+) FROM pages").
		WithArgs(page.ClientID, page.URLHash, page.URL).
		WillReturnRows(pgxmock.NewRows(pageColumnNames))

	store := NewPageStore(mock, sha256.New())
	_, err = store.GetPageByURL(context.Background(), page.ClientID, page.URL)
	require.ErrorIs(t, err, cache.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePageInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	page := testPage()

	mock.ExpectExec("INSERT INTO pages").
		WithArgs(
			page.ID,
			page.ClientID,
			page.URL,
			page.URLHash,
			page.Version,
			page.CreatedAt,
			page.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := NewPageStore(mock, sha256.New())
	require.NoError(t, store.CreatePage(context.Background(), page))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePageDuplicateURL(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	page := testPage()

	mock.ExpectExec("INSERT INTO pages").
		WithArgs(
			page.ID,
			page.ClientID,
			page.URL,
			page.URLHash,
			page.Version,
			page.CreatedAt,
			page.UpdatedAt,
		).
		WillReturnError(&pgconn.PgError{Code: uniqueViolationCode, ConstraintName: "pages_client_id_url_key"})

	store := NewPageStore(mock, sha256.New())
	err = store.CreatePage(context.Background(), page)
	require.ErrorIs(t, err, cache.ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTouchPageBumpsVersion(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	page := testPage()
	at := time.Unix(1700003600, 0).UTC()

	mock.ExpectExec("UPDATE pages").
		WithArgs(page.URLHash, at, page.ClientID, page.URL).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	store := NewPageStore(mock, sha256.New())
	require.NoError(t, store.TouchPage(context.Background(), page.ClientID, page.URL, page.URLHash, at))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTouchPageMissingRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	page := testPage()
	at := time.Unix(1700003600, 0).UTC()

	mock.ExpectExec("UPDATE pages").
		WithArgs(page.URLHash, at, page.ClientID, page.URL).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	store := NewPageStore(mock, sha256.New())
	err = store.TouchPage(context.Background(), page.ClientID, page.URL, page.URLHash, at)
	require.ErrorIs(t, err, cache.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListPagesReturnsRowsAndTotal(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	page := testPage()

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(page.ClientID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(42))

	mock.ExpectQuery("SELECT (.+) FROM pages").
		WithArgs(page.ClientID, 10, 0).
		WillReturnRows(pageRow(page))

	store := NewPageStore(mock, sha256.New())
	pages, total, err := store.ListPages(context.Background(), page.ClientID, cache.PageFilter{Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 42, total)
	require.Equal(t, []cache.Page{page}, pages)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListPagesHasContentFilter(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	page := testPage()
	yes := true

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM pages WHERE client_id = \$1 AND raw_html IS NOT NULL`).
		WithArgs(page.ClientID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))

	mock.ExpectQuery("SELECT (.+) FROM pages").
		WithArgs(page.ClientID, 100, 0).
		WillReturnRows(pgxmock.NewRows(pageColumnNames))

	store := NewPageStore(mock, sha256.New())
	pages, total, err := store.ListPages(context.Background(), page.ClientID, cache.PageFilter{Limit: 100, HasContent: &yes})
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, pages)
	require.NoError(t, mock.ExpectationsWereMet())
}
