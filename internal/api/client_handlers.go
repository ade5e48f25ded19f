package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edgelayer/cachelayer/internal/cache"
)

const (
	defaultPageLimit = 100
	maxPageLimit     = 1000
)

type clientRequest struct {
	Name          string `json:"name"`
	Domain        string `json:"domain"`
	AccountID     string `json:"account_id"`
	KVNamespaceID string `json:"kv_namespace_id"`
	APIToken      string `json:"api_token"`
	IsActive      *bool  `json:"is_active"`
}

type clientDTO struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Domain        string    `json:"domain"`
	AccountID     string    `json:"account_id,omitempty"`
	KVNamespaceID string    `json:"kv_namespace_id,omitempty"`
	HasAPIToken   bool      `json:"has_api_token"`
	APIToken      string    `json:"api_token,omitempty"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toClientDTO(c cache.Client) clientDTO {
	return clientDTO{
		ID:            c.ID.String(),
		Name:          c.Name,
		Domain:        c.Domain,
		AccountID:     c.AccountID,
		KVNamespaceID: c.KVNamespaceID,
		HasAPIToken:   len(c.APITokenEncrypted) > 0,
		IsActive:      c.IsActive,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func (s *Server) createClient(w http.ResponseWriter, r *http.Request) {
	var req clientRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Name == "" || req.Domain == "" {
		writeError(w, http.StatusBadRequest, "name and domain are required")
		return
	}

	id, err := s.idGen.NewRawID()
	if err != nil {
		s.logger.Error("generate client id failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create client")
		return
	}
	now := s.clock.Now()
	client := cache.Client{
		ID:            id,
		Name:          req.Name,
		Domain:        req.Domain,
		AccountID:     req.AccountID,
		KVNamespaceID: req.KVNamespaceID,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if req.IsActive != nil {
		client.IsActive = *req.IsActive
	}
	if req.APIToken != "" {
		sealed, err := s.sealToken(req.APIToken)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		client.APITokenEncrypted = sealed
	}

	if err := s.clients.CreateClient(r.Context(), client); err != nil {
		if errors.Is(err, cache.ErrAlreadyExists) {
			writeError(w, http.StatusConflict, "client with this name or domain already exists")
			return
		}
		s.logger.Error("create client failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create client")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"client": toClientDTO(client)})
}

func (s *Server) listClients(w http.ResponseWriter, r *http.Request) {
	clients, err := s.clients.ListClients(r.Context())
	if err != nil {
		s.logger.Error("list clients failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list clients")
		return
	}
	dtos := make([]clientDTO, 0, len(clients))
	for _, c := range clients {
		dtos = append(dtos, toClientDTO(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"clients": dtos})
}

func (s *Server) getClient(w http.ResponseWriter, r *http.Request) {
	id, err := parseClientID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	client, err := s.clients.GetClient(r.Context(), id)
	if errors.Is(err, cache.ErrNotFound) {
		writeError(w, http.StatusNotFound, "client not found")
		return
	}
	if err != nil {
		s.logger.Error("get client failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load client")
		return
	}

	dto := toClientDTO(client)
	if include, _ := strconv.ParseBool(r.URL.Query().Get("include_secrets")); include {
		if err := s.revealToken(client, &dto); err != nil {
			s.logger.Error("decrypt api token failed", zap.String("client_id", client.ID.String()), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to decrypt api token")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"client": dto})
}

// revealToken decrypts the stored API token into the DTO. Clients without a
// token and servers without a secret box are left as-is.
func (s *Server) revealToken(client cache.Client, dto *clientDTO) error {
	if len(client.APITokenEncrypted) == 0 || s.box == nil {
		return nil
	}
	token, err := s.box.Decrypt(client.APITokenEncrypted)
	if err != nil {
		return err
	}
	dto.APIToken = token
	return nil
}

func (s *Server) updateClient(w http.ResponseWriter, r *http.Request) {
	id, err := parseClientID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req clientRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	client, err := s.clients.GetClient(r.Context(), id)
	if errors.Is(err, cache.ErrNotFound) {
		writeError(w, http.StatusNotFound, "client not found")
		return
	}
	if err != nil {
		s.logger.Error("get client failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load client")
		return
	}

	if req.Name != "" {
		client.Name = req.Name
	}
	if req.Domain != "" {
		client.Domain = req.Domain
	}
	if req.AccountID != "" {
		client.AccountID = req.AccountID
	}
	if req.KVNamespaceID != "" {
		client.KVNamespaceID = req.KVNamespaceID
	}
	if req.IsActive != nil {
		client.IsActive = *req.IsActive
	}
	if req.APIToken != "" {
		sealed, err := s.sealToken(req.APIToken)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		client.APITokenEncrypted = sealed
	}
	client.UpdatedAt = s.clock.Now()

	if err := s.clients.UpdateClient(r.Context(), client); err != nil {
		if errors.Is(err, cache.ErrAlreadyExists) {
			writeError(w, http.StatusConflict, "client with this name or domain already exists")
			return
		}
		if errors.Is(err, cache.ErrNotFound) {
			writeError(w, http.StatusNotFound, "client not found")
			return
		}
		s.logger.Error("update client failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update client")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"client": toClientDTO(client)})
}

func (s *Server) deleteClient(w http.ResponseWriter, r *http.Request) {
	id, err := parseClientID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.clients.DeleteClient(r.Context(), id); err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			writeError(w, http.StatusNotFound, "client not found")
			return
		}
		s.logger.Error("delete client failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete client")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type pageDTO struct {
	ID              string     `json:"id"`
	URL             string     `json:"url"`
	URLHash         string     `json:"url_hash"`
	HasContent      bool       `json:"has_content"`
	Version         int        `json:"version"`
	LastScrapedAt   *time.Time `json:"last_scraped_at,omitempty"`
	LastProcessedAt *time.Time `json:"last_processed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (s *Server) listClientPages(w http.ResponseWriter, r *http.Request) {
	id, err := parseClientID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.clients.GetClient(r.Context(), id); err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			writeError(w, http.StatusNotFound, "client not found")
			return
		}
		s.logger.Error("get client failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load client")
		return
	}

	filter, err := parsePageFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	pages, total, err := s.pages.ListPages(r.Context(), id, filter)
	if err != nil {
		s.logger.Error("list pages failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list pages")
		return
	}

	dtos := make([]pageDTO, 0, len(pages))
	for _, p := range pages {
		dtos = append(dtos, pageDTO{
			ID:              p.ID.String(),
			URL:             p.URL,
			URLHash:         p.URLHash,
			HasContent:      p.HasContent,
			Version:         p.Version,
			LastScrapedAt:   p.LastScrapedAt,
			LastProcessedAt: p.LastProcessedAt,
			CreatedAt:       p.CreatedAt,
			UpdatedAt:       p.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pages":  dtos,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

func parsePageFilter(r *http.Request) (cache.PageFilter, error) {
	q := r.URL.Query()
	filter := cache.PageFilter{Limit: defaultPageLimit}

	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return cache.PageFilter{}, errors.New("invalid limit")
		}
		if val > maxPageLimit {
			val = maxPageLimit
		}
		filter.Limit = val
	}
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return cache.PageFilter{}, errors.New("invalid offset")
		}
		filter.Offset = val
	}
	if hcStr := q.Get("has_content"); hcStr != "" {
		val, err := strconv.ParseBool(hcStr)
		if err != nil {
			return cache.PageFilter{}, errors.New("invalid has_content")
		}
		filter.HasContent = &val
	}
	return filter, nil
}

func (s *Server) sealToken(token string) ([]byte, error) {
	if s.box == nil {
		return nil, errors.New("credential sealing is not configured")
	}
	sealed, err := s.box.Encrypt(token)
	if err != nil {
		return nil, fmt.Errorf("seal api token: %w", err)
	}
	return sealed, nil
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

func parseClientIDString(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.UUID{}, errors.New("client_id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, errors.New("invalid client_id")
	}
	return id, nil
}
