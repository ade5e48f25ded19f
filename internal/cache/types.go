package cache

import (
	"time"

	"github.com/google/uuid"
)

// Client represents a tenant: one website/domain with its own edge
// credentials. Secrets are stored encrypted and decrypted on demand.
type Client struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	Domain            string    `json:"domain"`
	AccountID         string    `json:"account_id,omitempty"`
	KVNamespaceID     string    `json:"kv_namespace_id,omitempty"`
	APITokenEncrypted []byte    `json:"-"`
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Page is one row of the tenant-scoped page inventory. The content columns
// (scraped HTML, markdown, KV keys) are owned by the downstream processing
// pipeline; this engine only manages URL identity and versioning.
type Page struct {
	ID              uuid.UUID  `json:"id"`
	ClientID        uuid.UUID  `json:"client_id"`
	URL             string     `json:"url"`
	URLHash         string     `json:"url_hash"`
	HasContent      bool       `json:"has_content"`
	Version         int        `json:"version"`
	LastScrapedAt   *time.Time `json:"last_scraped_at,omitempty"`
	LastProcessedAt *time.Time `json:"last_processed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// SitemapEntry is one discovered URL with its optional sitemap metadata.
// Entries are transient: they live for a single resolution run.
type SitemapEntry struct {
	Location   string   `json:"loc"`
	LastMod    string   `json:"lastmod,omitempty"`
	ChangeFreq string   `json:"changefreq,omitempty"`
	Priority   *float64 `json:"priority,omitempty"`
}

// IndexEntry is one child reference inside a sitemap index document.
type IndexEntry struct {
	Location string
	LastMod  string
}

// DocumentKind tags a parsed sitemap document.
type DocumentKind string

// Sitemap document kinds per the standard XML schema root elements.
const (
	DocumentIndex  DocumentKind = "sitemapindex"
	DocumentURLSet DocumentKind = "urlset"
)

// Document is a classified sitemap document: either an index of further
// sitemaps or a leaf URL-set. Exactly one of Children/Entries is populated.
type Document struct {
	Kind     DocumentKind
	Children []IndexEntry
	Entries  []SitemapEntry
}

// SitemapError records a child-sitemap failure encountered during
// resolution. Root failures abort the call instead.
type SitemapError struct {
	URL   string `json:"url"`
	Error string `json:"error"`
	Depth int    `json:"depth"`
}

// ResolvedSet is the deduplicated, depth-bounded output of the tree
// resolver. Entries keep discovery order (breadth-first).
type ResolvedSet struct {
	Entries         []SitemapEntry
	VisitedSitemaps []string
	Errors          []SitemapError
	Truncated       bool
	MaxDepthReached bool
}

// Outcome tags the result of reconciling a single entry.
type Outcome string

// Per-entry reconciliation outcomes.
const (
	OutcomeCreated Outcome = "created"
	OutcomeSkipped Outcome = "skipped"
	OutcomeUpdated Outcome = "updated"
	OutcomeFailed  Outcome = "failed"
)

// EntryError ties a failed entry to the reason it failed.
type EntryError struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// ImportSummary aggregates one reconciliation run. TotalURLs always equals
// the number of entries passed in, whatever their individual outcomes.
type ImportSummary struct {
	TotalURLs int          `json:"total_urls"`
	Created   int          `json:"created"`
	Skipped   int          `json:"skipped"`
	Updated   int          `json:"updated"`
	Errors    int          `json:"errors"`
	Failed    []EntryError `json:"failed,omitempty"`
}

// PageEvent is published after a successful import so the downstream
// content pipeline can schedule scraping for new inventory.
type PageEvent struct {
	ClientID   uuid.UUID     `json:"client_id"`
	Domain     string        `json:"domain"`
	SitemapURL string        `json:"sitemap_url"`
	Summary    ImportSummary `json:"summary"`
	OccurredAt time.Time     `json:"occurred_at"`
}
