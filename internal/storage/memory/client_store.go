// Package memory provides in-memory store implementations for development
// and testing.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/edgelayer/cachelayer/internal/cache"
)

// ClientStore keeps tenant records in a map.
type ClientStore struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]cache.Client
}

// NewClientStore constructs a ClientStore.
func NewClientStore() *ClientStore {
	return &ClientStore{clients: make(map[uuid.UUID]cache.Client)}
}

// CreateClient stores a new client.
func (s *ClientStore) CreateClient(_ context.Context, client cache.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.clients[client.ID]; exists {
		return cache.ErrAlreadyExists
	}
	for _, existing := range s.clients {
		if existing.Name == client.Name || existing.Domain == client.Domain {
			return cache.ErrAlreadyExists
		}
	}
	s.clients[client.ID] = client
	return nil
}

// GetClient fetches a client by ID.
func (s *ClientStore) GetClient(_ context.Context, id uuid.UUID) (cache.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	client, ok := s.clients[id]
	if !ok {
		return cache.Client{}, cache.ErrNotFound
	}
	return client, nil
}

// ListClients returns all clients ordered by name.
func (s *ClientStore) ListClients(_ context.Context) ([]cache.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]cache.Client, 0, len(s.clients))
	for _, client := range s.clients {
		out = append(out, client)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// UpdateClient replaces an existing client record.
func (s *ClientStore) UpdateClient(_ context.Context, client cache.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[client.ID]; !ok {
		return cache.ErrNotFound
	}
	s.clients[client.ID] = client
	return nil
}

// DeleteClient removes a client.
func (s *ClientStore) DeleteClient(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[id]; !ok {
		return cache.ErrNotFound
	}
	delete(s.clients, id)
	return nil
}
