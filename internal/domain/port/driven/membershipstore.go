package driven

import (
	"context"
	"errors"

	"github.com/looplabs/loopgate/internal/domain/model"
)

// ErrAlreadyMember is returned by Add when the user already holds a
// membership row for the loop. Callers treat it as success: joins must be
// idempotent under concurrent double-submission.
var ErrAlreadyMember = errors.New("already a member")

// MembershipStore defines the driven port for membership persistence.
// Rows are written only after a fresh verification returned CanJoin=true.
type MembershipStore interface {
	// Add inserts a membership row, returning ErrAlreadyMember on duplicate.
	Add(ctx context.Context, m model.Membership) error
	// Exists reports whether username is a member of the loop.
	Exists(ctx context.Context, loopID int64, username string) (bool, error)
	// ListByLoop returns the loop's members ordered by join time.
	ListByLoop(ctx context.Context, loopID int64) ([]model.Membership, error)
}
