package ports

import (
	"context"

	"github.com/aretw0/quill/pkg/domain"
)

// SessionStore persists the state of refinement sessions so they can be inspected
// or resumed after the process that ran them is gone.
type SessionStore interface {
	// Save persists the state for a given session ID, replacing any previous copy.
	Save(ctx context.Context, sessionID string, state *domain.State) error

	// Load retrieves the state for a given session ID.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.State, error)

	// Delete removes the state for a given session ID. Deleting an unknown session is not an error.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of all stored sessions.
	List(ctx context.Context) ([]string, error)
}
