package api

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/edgelayer/cachelayer/internal/cache"
	"github.com/edgelayer/cachelayer/internal/metrics"
	"github.com/edgelayer/cachelayer/internal/reconcile"
	"github.com/edgelayer/cachelayer/internal/sitemap"
)

// previewURLCap bounds the URL sample returned by the preview endpoint. The
// full count is always reported in total_urls.
const previewURLCap = 100

type previewRequest struct {
	URL       string `json:"sitemap_url"`
	Recursive *bool  `json:"recursive"`
	MaxDepth  int    `json:"max_depth"`
}

type importRequest struct {
	ClientID    string `json:"client_id"`
	URL         string `json:"sitemap_url"`
	Recursive   *bool  `json:"recursive"`
	MaxDepth    int    `json:"max_depth"`
	CreatePages *bool  `json:"create_pages"`
	Overwrite   bool   `json:"overwrite"`
}

func (s *Server) resolveOptions(recursive *bool, maxDepth int) sitemap.ResolveOptions {
	opts := sitemap.ResolveOptions{
		Recursive:  true,
		MaxDepth:   s.cfg.Sitemap.MaxDepthDefault,
		MaxEntries: s.cfg.Sitemap.MaxEntries,
	}
	if recursive != nil {
		opts.Recursive = *recursive
	}
	if maxDepth > 0 && maxDepth <= s.cfg.Sitemap.MaxDepthDefault {
		opts.MaxDepth = maxDepth
	}
	return opts
}

// previewSitemap resolves a sitemap without touching storage so an operator
// can inspect what an import would ingest.
func (s *Server) previewSitemap(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "sitemap_url is required")
		return
	}

	set, err := s.resolver.Resolve(r.Context(), req.URL, s.resolveOptions(req.Recursive, req.MaxDepth))
	if err != nil {
		writeResolveError(w, err)
		return
	}
	metrics.ObserveResolution(len(set.Entries))

	urls := set.Entries
	if len(urls) > previewURLCap {
		urls = urls[:previewURLCap]
	}

	resp := map[string]any{
		"sitemap_url":       req.URL,
		"total_urls":        len(set.Entries),
		"urls":              urls,
		"urls_truncated":    len(set.Entries) > previewURLCap,
		"truncated":         set.Truncated,
		"max_depth_reached": set.MaxDepthReached,
		"visited_sitemaps":  set.VisitedSitemaps,
	}
	if len(set.Errors) > 0 {
		resp["sitemap_errors"] = set.Errors
	}
	writeJSON(w, http.StatusOK, resp)
}

// importSitemap resolves a sitemap and reconciles the result into the
// tenant's page inventory.
func (s *Server) importSitemap(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "sitemap_url is required")
		return
	}
	clientID, err := parseClientIDString(req.ClientID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	client, err := s.clients.GetClient(r.Context(), clientID)
	if errors.Is(err, cache.ErrNotFound) {
		writeError(w, http.StatusNotFound, "client not found")
		return
	}
	if err != nil {
		s.logger.Error("load client failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load client")
		return
	}

	set, err := s.resolver.Resolve(r.Context(), req.URL, s.resolveOptions(req.Recursive, req.MaxDepth))
	if err != nil {
		writeResolveError(w, err)
		return
	}
	metrics.ObserveResolution(len(set.Entries))

	createPages := true
	if req.CreatePages != nil {
		createPages = *req.CreatePages
	}
	summary := s.engine.Reconcile(r.Context(), clientID, set.Entries, reconcile.Options{
		Overwrite:   req.Overwrite,
		CreatePages: createPages,
	})
	metrics.ObserveImportOutcome("created", summary.Created)
	metrics.ObserveImportOutcome("skipped", summary.Skipped)
	metrics.ObserveImportOutcome("updated", summary.Updated)
	metrics.ObserveImportOutcome("failed", summary.Errors)

	s.publishPageEvent(r, client, req.URL, summary)

	resp := map[string]any{
		"message":     "sitemap imported successfully",
		"sitemap_url": req.URL,
		"client": map[string]string{
			"id":     client.ID.String(),
			"name":   client.Name,
			"domain": client.Domain,
		},
		"summary":   summary,
		"truncated": set.Truncated,
	}
	if len(set.Errors) > 0 {
		resp["sitemap_errors"] = set.Errors
		resp["warning"] = fmt.Sprintf("%d sitemap(s) could not be processed", len(set.Errors))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) publishPageEvent(r *http.Request, client cache.Client, sitemapURL string, summary cache.ImportSummary) {
	if s.publisher == nil {
		return
	}
	event := cache.PageEvent{
		ClientID:   client.ID,
		Domain:     client.Domain,
		SitemapURL: sitemapURL,
		Summary:    summary,
		OccurredAt: s.clock.Now(),
	}
	if _, err := s.publisher.Publish(r.Context(), s.cfg.PubSub.TopicName, event); err != nil {
		// The import already committed; the event is advisory.
		s.logger.Warn("publish page event failed", zap.Error(err))
		metrics.ObservePageEvent("error")
		return
	}
	metrics.ObservePageEvent("ok")
}

// writeResolveError maps resolution failures onto HTTP statuses. Root fetch
// and parse failures are client-visible 400s with the cause attached.
func writeResolveError(w http.ResponseWriter, err error) {
	var resolveErr *cache.ResolveError
	if errors.As(err, &resolveErr) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":   "failed to fetch sitemap",
			"message": err.Error(),
		})
		return
	}
	writeError(w, http.StatusInternalServerError, "sitemap resolution failed")
}
