// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"

	"github.com/mmynk/splitlive/internal/models"
)

// UpdateFunc mutates a loaded session. Returning an error aborts the update
// and nothing is written.
type UpdateFunc func(s *models.Session) error

// Store defines the interface for session storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the session layer.
type Store interface {
	// CreateSession persists a new session with everything nested under it.
	// The session.ID field will be populated by the store if empty.
	CreateSession(ctx context.Context, s *models.Session) error

	// GetSession retrieves a session by its ID.
	// Returns an error wrapping common.ErrNotFound if it does not exist.
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)

	// UpdateSession loads a session, applies fn and writes the result back
	// in one transaction. Concurrent updates of the same session are
	// serialized, so fn always sees the latest committed state.
	UpdateSession(ctx context.Context, sessionID string, fn UpdateFunc) (*models.Session, error)

	// DeleteSession removes a session and everything it owns.
	DeleteSession(ctx context.Context, sessionID string) error

	// DeleteExpired removes every session whose ExpiresAt is at or before
	// now (Unix seconds) and returns how many were removed.
	DeleteExpired(ctx context.Context, now int64) (int64, error)

	// Close releases any resources held by the store.
	Close() error
}
