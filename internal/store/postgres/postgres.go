// Package postgres implements internal/store.SessionStore on top of a
// Postgres table, for deployments that want session persistence shared
// across multiple agentcored processes instead of one file tree per host.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opencode-ai/agentcore/internal/store"
	"github.com/opencode-ai/agentcore/pkg/types"
)

// Store persists sessions in a single "sessions" table, keyed by id,
// with the full SessionData snapshot stored as JSONB.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn and returns a ready Store. Run Migrate before
// first use against a fresh database.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() { s.pool.Close() }

func (s *Store) Save(ctx context.Context, data types.SessionData) error {
	buf, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("postgres store: marshal: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO sessions (id, parent_id, updated_at_ms, data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET parent_id = EXCLUDED.parent_id,
		    updated_at_ms = EXCLUDED.updated_at_ms,
		    data = EXCLUDED.data
	`, data.ID, nullableString(data.ParentID), data.UpdatedAt, buf)
	if err != nil {
		return fmt.Errorf("postgres store: upsert: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, id string) (types.SessionData, error) {
	var buf []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM sessions WHERE id = $1`, id).Scan(&buf)
	if err != nil {
		if err == pgx.ErrNoRows {
			return types.SessionData{}, store.ErrNotFound
		}
		return types.SessionData{}, fmt.Errorf("postgres store: query: %w", err)
	}
	var sd types.SessionData
	if err := json.Unmarshal(buf, &sd); err != nil {
		return types.SessionData{}, fmt.Errorf("postgres store: unmarshal: %w", err)
	}
	return sd, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres store: delete: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM sessions ORDER BY updated_at_ms DESC`)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres store: scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) Exists(ctx context.Context, id string) bool {
	var exists bool
	_ = s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM sessions WHERE id = $1)`, id).Scan(&exists)
	return exists
}

func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) BackendName() string { return "postgres" }

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
