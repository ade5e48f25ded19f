// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edgelayer/cachelayer/internal/cache"
)

const uniqueViolationCode = "23505"

// Pool is the subset of pgxpool.Pool the stores rely on. pgxmock satisfies
// it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PoolConfig sizes the pgx connection pool.
type PoolConfig struct {
	DSN      string
	MaxConns int32
	MinConns int32
}

// NewPool creates a pgx connection pool from a DSN.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	return pool, nil
}

// ClientStore implements cache.ClientStore using Postgres.
type ClientStore struct {
	pool Pool
}

// NewClientStore creates a ClientStore on an existing pool.
func NewClientStore(pool Pool) *ClientStore {
	return &ClientStore{pool: pool}
}

// Close releases the underlying pool resources.
func (s *ClientStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// CreateClient inserts a new tenant row.
func (s *ClientStore) CreateClient(ctx context.Context, client cache.Client) error {
	query := `
		INSERT INTO clients (id, name, domain, account_id, kv_namespace_id, api_token_encrypted, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
	`
	_, err := s.pool.Exec(ctx, query,
		client.ID,
		client.Name,
		client.Domain,
		client.AccountID,
		client.KVNamespaceID,
		client.APITokenEncrypted,
		client.IsActive,
		client.CreatedAt,
		client.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return cache.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert client: %w", err)
	}
	return nil
}

// GetClient retrieves a tenant by ID.
func (s *ClientStore) GetClient(ctx context.Context, id uuid.UUID) (cache.Client, error) {
	query := `
		SELECT id, name, domain, account_id, kv_namespace_id, api_token_encrypted, is_active, created_at, updated_at
		FROM clients
		WHERE id = $1;
	`
	var client cache.Client
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&client.ID,
		&client.Name,
		&client.Domain,
		&client.AccountID,
		&client.KVNamespaceID,
		&client.APITokenEncrypted,
		&client.IsActive,
		&client.CreatedAt,
		&client.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return cache.Client{}, cache.ErrNotFound
	}
	if err != nil {
		return cache.Client{}, fmt.Errorf("get client: %w", err)
	}
	return client, nil
}

// ListClients retrieves all tenants ordered by name.
func (s *ClientStore) ListClients(ctx context.Context) ([]cache.Client, error) {
	query := `
		SELECT id, name, domain, account_id, kv_namespace_id, api_token_encrypted, is_active, created_at, updated_at
		FROM clients
		ORDER BY name;
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var clients []cache.Client
	for rows.Next() {
		var client cache.Client
		err := rows.Scan(
			&client.ID,
			&client.Name,
			&client.Domain,
			&client.AccountID,
			&client.KVNamespaceID,
			&client.APITokenEncrypted,
			&client.IsActive,
			&client.CreatedAt,
			&client.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan client row: %w", err)
		}
		clients = append(clients, client)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate client rows: %w", err)
	}
	return clients, nil
}

// UpdateClient replaces the mutable fields of a tenant row.
func (s *ClientStore) UpdateClient(ctx context.Context, client cache.Client) error {
	query := `
		UPDATE clients
		SET name = $1, domain = $2, account_id = $3, kv_namespace_id = $4,
			api_token_encrypted = $5, is_active = $6, updated_at = $7
		WHERE id = $8;
	`
	tag, err := s.pool.Exec(ctx, query,
		client.Name,
		client.Domain,
		client.AccountID,
		client.KVNamespaceID,
		client.APITokenEncrypted,
		client.IsActive,
		client.UpdatedAt,
		client.ID,
	)
	if isUniqueViolation(err) {
		return cache.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("update client: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return cache.ErrNotFound
	}
	return nil
}

// DeleteClient removes a tenant and, via ON DELETE CASCADE, its pages.
func (s *ClientStore) DeleteClient(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM clients WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return cache.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
