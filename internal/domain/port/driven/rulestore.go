package driven

import (
	"context"

	"github.com/looplabs/loopgate/internal/domain/model"
)

// RuleStore defines the driven port for rule persistence. The engine reads
// rules; only the loop owner writes them.
type RuleStore interface {
	// Add persists a new rule and returns it with its assigned ID.
	Add(ctx context.Context, rule model.Rule) (model.Rule, error)
	// ListByLoop returns the loop's rules in insertion order. Result
	// ordering matters: verification results are rendered in the same
	// order the rules were authored.
	ListByLoop(ctx context.Context, loopID int64) ([]model.Rule, error)
	// Delete removes a rule by ID.
	Delete(ctx context.Context, id int64) error
}
