package api

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/edgelayer/cachelayer/internal/cache"
)

func TestCreateClientStoresSealedToken(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/v1/clients/", map[string]any{
		"name":            "Acme",
		"domain":          "acme.example.com",
		"account_id":      "cf-1",
		"kv_namespace_id": "kv-1",
		"api_token":       "super-secret",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	dto := body["client"].(map[string]any)
	require.Equal(t, "Acme", dto["name"])
	require.Equal(t, true, dto["has_api_token"])
	require.NotContains(t, rec.Body.String(), "super-secret")

	// Token is sealed in the store, not plaintext.
	id := uuid.MustParse(dto["id"].(string))
	stored, err := env.clients.GetClient(context.Background(), id)
	require.NoError(t, err)
	require.NotEmpty(t, stored.APITokenEncrypted)
	require.NotContains(t, string(stored.APITokenEncrypted), "super-secret")

	plaintext, err := env.server.box.Decrypt(stored.APITokenEncrypted)
	require.NoError(t, err)
	require.Equal(t, "super-secret", plaintext)
}

func TestGetClientIncludeSecrets(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/v1/clients/", map[string]any{
		"name":      "Acme",
		"domain":    "acme.example.com",
		"api_token": "super-secret",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBody(t, rec)["client"].(map[string]any)["id"].(string)

	// Default response keeps the token sealed.
	rec = env.do(t, http.MethodGet, "/v1/clients/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dto := decodeBody(t, rec)["client"].(map[string]any)
	require.Equal(t, true, dto["has_api_token"])
	require.NotContains(t, dto, "api_token")

	rec = env.do(t, http.MethodGet, "/v1/clients/"+id+"?include_secrets=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dto = decodeBody(t, rec)["client"].(map[string]any)
	require.Equal(t, "super-secret", dto["api_token"])
}

func TestCreateClientValidation(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/v1/clients/", map[string]any{"name": "Acme"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateClientDuplicateConflict(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	env.mustCreateClient(t, "Acme", "acme.example.com")

	rec := env.do(t, http.MethodPost, "/v1/clients/", map[string]any{
		"name":   "Acme",
		"domain": "other.example.com",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestClientCRUDRoundTrip(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	id := env.mustCreateClient(t, "Acme", "acme.example.com")

	rec := env.do(t, http.MethodGet, "/v1/clients/"+id.String()+"/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPut, "/v1/clients/"+id.String()+"/", map[string]any{
		"name":      "Acme Renamed",
		"is_active": false,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	dto := decodeBody(t, rec)["client"].(map[string]any)
	require.Equal(t, "Acme Renamed", dto["name"])
	require.Equal(t, false, dto["is_active"])
	require.Equal(t, "acme.example.com", dto["domain"])

	rec = env.do(t, http.MethodDelete, "/v1/clients/"+id.String()+"/", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/clients/"+id.String()+"/", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetClientInvalidID(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/v1/clients/not-a-uuid/", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListClientPagesPagination(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	id := env.mustCreateClient(t, "Acme", "acme.example.com")

	now := time.Unix(1700000000, 0).UTC()
	for i := 0; i < 5; i++ {
		url := fmt.Sprintf("https://acme.example.com/page-%d", i)
		require.NoError(t, env.pages.CreatePage(context.Background(), cache.Page{
			ID:        uuid.New(),
			ClientID:  id,
			URL:       url,
			URLHash:   fmt.Sprintf("hash-%d", i),
			Version:   1,
			CreatedAt: now.Add(time.Duration(i) * time.Minute),
			UpdatedAt: now.Add(time.Duration(i) * time.Minute),
		}))
	}

	rec := env.do(t, http.MethodGet, "/v1/clients/"+id.String()+"/pages?limit=2&offset=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	require.EqualValues(t, 5, body["total"])
	require.EqualValues(t, 2, body["limit"])
	require.EqualValues(t, 1, body["offset"])

	pages := body["pages"].([]any)
	require.Len(t, pages, 2)
	// Newest first, so offset 1 starts at page-3.
	require.Equal(t, "https://acme.example.com/page-3", pages[0].(map[string]any)["url"])
	require.Equal(t, "https://acme.example.com/page-2", pages[1].(map[string]any)["url"])
}

func TestListClientPagesInvalidFilters(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	id := env.mustCreateClient(t, "Acme", "acme.example.com")

	for _, query := range []string{"?limit=0", "?limit=abc", "?offset=-1", "?has_content=maybe"} {
		rec := env.do(t, http.MethodGet, "/v1/clients/"+id.String()+"/pages"+query, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}

func TestListClientPagesUnknownClient(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/v1/clients/"+uuid.NewString()+"/pages", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
