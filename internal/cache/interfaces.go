package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DocumentFetcher retrieves a sitemap document body over HTTP.
type DocumentFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ClientStore persists tenant records.
type ClientStore interface {
	CreateClient(ctx context.Context, client Client) error
	GetClient(ctx context.Context, id uuid.UUID) (Client, error)
	ListClients(ctx context.Context) ([]Client, error)
	UpdateClient(ctx context.Context, client Client) error
	DeleteClient(ctx context.Context, id uuid.UUID) error
}

// PageFilter narrows ListPages results.
type PageFilter struct {
	Limit      int
	Offset     int
	HasContent *bool
}

// PageStore persists the tenant-scoped page inventory. Lookups are keyed by
// (client_id, canonical URL); URLHash is an indexed pre-filter only.
type PageStore interface {
	GetPageByURL(ctx context.Context, clientID uuid.UUID, url string) (Page, error)
	CreatePage(ctx context.Context, page Page) error
	TouchPage(ctx context.Context, clientID uuid.UUID, url, urlHash string, at time.Time) error
	ListPages(ctx context.Context, clientID uuid.UUID, filter PageFilter) ([]Page, int, error)
}

// Publisher pushes import events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests for URL identity.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces record IDs (UUIDs).
type IDGenerator interface {
	NewRawID() (uuid.UUID, error)
}

// SecretBox encrypts and decrypts tenant credentials at rest.
type SecretBox interface {
	Encrypt(plaintext string) ([]byte, error)
	Decrypt(ciphertext []byte) (string, error)
}
