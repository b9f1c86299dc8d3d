// Package store defines the SessionStore contract and its backends:
// in-memory (tests, ephemeral sessions), file (one JSON file per
// session; default), and
// Postgres (internal/store/postgres).
package store

import (
	"context"
	"errors"

	"github.com/opencode-ai/agentcore/pkg/types"
)

// ErrNotFound is returned by Load when no session exists for an id.
var ErrNotFound = errors.New("store: session not found")

// SessionStore persists session snapshots. Implementations must be safe
// for concurrent use across sessions (not necessarily across concurrent
// writers of the *same* session, which callers serialize themselves).
type SessionStore interface {
	Save(ctx context.Context, data types.SessionData) error
	Load(ctx context.Context, id string) (types.SessionData, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]string, error)
	Exists(ctx context.Context, id string) bool
	HealthCheck(ctx context.Context) error
	BackendName() string
}
