package driven

import (
	"context"
	"errors"

	"github.com/looplabs/loopgate/internal/domain/model"
)

// ErrLoopNotFound is returned when no loop exists for the given identifier.
var ErrLoopNotFound = errors.New("loop not found")

// ErrLoopAlreadyExists is returned when creating a loop for a repository
// that already has one.
var ErrLoopAlreadyExists = errors.New("loop already exists")

// LoopStore defines the driven port for loop persistence.
type LoopStore interface {
	// Create persists a new loop and returns it with its assigned ID.
	Create(ctx context.Context, loop model.Loop) (model.Loop, error)
	// GetByID returns the loop with the given ID, or ErrLoopNotFound.
	GetByID(ctx context.Context, id int64) (model.Loop, error)
	// ListAll returns every loop ordered by creation time.
	ListAll(ctx context.Context) ([]model.Loop, error)
}
