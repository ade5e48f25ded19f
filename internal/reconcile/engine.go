// Package reconcile applies discovered sitemap entries to the tenant page
// inventory using a create/skip/update policy.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edgelayer/cachelayer/internal/cache"
)

// Options select the reconciliation policy for one run.
type Options struct {
	// Overwrite refreshes the URL metadata of pages that already exist.
	// Existing content is never clobbered by default.
	Overwrite bool
	// CreatePages materializes missing pages. When false the run is a dry
	// discovery: nothing is persisted and missing pages count as skipped.
	CreatePages bool
}

// Engine compares normalized sitemap entries against the stored inventory
// for one tenant. Each entry is its own atomic write; one bad entry never
// discards the rest of the run.
type Engine struct {
	pages  cache.PageStore
	hasher cache.Hasher
	clock  cache.Clock
	ids    cache.IDGenerator
	logger *zap.Logger
}

// NewEngine constructs an Engine.
func NewEngine(
	pages cache.PageStore,
	hasher cache.Hasher,
	clock cache.Clock,
	ids cache.IDGenerator,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		pages:  pages,
		hasher: hasher,
		clock:  clock,
		ids:    ids,
		logger: logger,
	}
}

// Reconcile walks the entries in discovery order and applies the policy.
// TotalURLs always equals len(entries); created+skipped+updated+errors adds
// up to the same number. Storage failures are recorded per entry in the
// ledger and never abort the run.
func (e *Engine) Reconcile(
	ctx context.Context,
	clientID uuid.UUID,
	entries []cache.SitemapEntry,
	opts Options,
) cache.ImportSummary {
	summary := cache.ImportSummary{TotalURLs: len(entries)}

	for _, entry := range entries {
		outcome, err := e.reconcileEntry(ctx, clientID, entry, opts)
		switch outcome {
		case cache.OutcomeCreated:
			summary.Created++
		case cache.OutcomeSkipped:
			summary.Skipped++
		case cache.OutcomeUpdated:
			summary.Updated++
		case cache.OutcomeFailed:
			summary.Errors++
			summary.Failed = append(summary.Failed, cache.EntryError{
				URL:   entry.Location,
				Error: err.Error(),
			})
			e.logger.Warn("entry reconciliation failed",
				zap.String("client_id", clientID.String()),
				zap.String("url", entry.Location),
				zap.Error(err),
			)
		}
	}

	return summary
}

func (e *Engine) reconcileEntry(
	ctx context.Context,
	clientID uuid.UUID,
	entry cache.SitemapEntry,
	opts Options,
) (cache.Outcome, error) {
	canonical, err := cache.NormalizeURL(entry.Location)
	if err != nil {
		return cache.OutcomeFailed, fmt.Errorf("normalize url: %w", err)
	}
	urlHash, err := e.hasher.Hash([]byte(canonical))
	if err != nil {
		return cache.OutcomeFailed, fmt.Errorf("hash url: %w", err)
	}

	existing, err := e.pages.GetPageByURL(ctx, clientID, canonical)
	switch {
	case errors.Is(err, cache.ErrNotFound):
		if !opts.CreatePages {
			return cache.OutcomeSkipped, nil
		}
		return e.createPage(ctx, clientID, canonical, urlHash)
	case err != nil:
		return cache.OutcomeFailed, fmt.Errorf("lookup page: %w", err)
	}

	if !opts.Overwrite {
		return cache.OutcomeSkipped, nil
	}
	if err := e.pages.TouchPage(ctx, clientID, existing.URL, urlHash, e.clock.Now()); err != nil {
		return cache.OutcomeFailed, fmt.Errorf("update page: %w", err)
	}
	return cache.OutcomeUpdated, nil
}

func (e *Engine) createPage(ctx context.Context, clientID uuid.UUID, canonical, urlHash string) (cache.Outcome, error) {
	id, err := e.ids.NewRawID()
	if err != nil {
		return cache.OutcomeFailed, fmt.Errorf("generate page id: %w", err)
	}
	now := e.clock.Now()
	page := cache.Page{
		ID:        id,
		ClientID:  clientID,
		URL:       canonical,
		URLHash:   urlHash,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = e.pages.CreatePage(ctx, page)
	if errors.Is(err, cache.ErrAlreadyExists) {
		// A concurrent import won the race on (client_id, url); the page is
		// there, which is all this run needs.
		return cache.OutcomeSkipped, nil
	}
	if err != nil {
		return cache.OutcomeFailed, fmt.Errorf("create page: %w", err)
	}
	return cache.OutcomeCreated, nil
}
