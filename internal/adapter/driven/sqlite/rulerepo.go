package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/looplabs/loopgate/internal/domain/model"
	"github.com/looplabs/loopgate/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RuleStore = (*RuleRepo)(nil)

// RuleRepo is the SQLite implementation of the RuleStore port interface.
// Thresholds are stored as text and decoded by the engine at evaluation time.
type RuleRepo struct {
	db *DB
}

// NewRuleRepo creates a new RuleRepo backed by the given DB.
func NewRuleRepo(db *DB) *RuleRepo {
	return &RuleRepo{db: db}
}

// Add inserts a new rule and returns it with its assigned ID.
func (r *RuleRepo) Add(ctx context.Context, rule model.Rule) (model.Rule, error) {
	const query = `INSERT INTO rules (loop_id, criteria_type, threshold, created_at) VALUES (?, ?, ?, ?)`

	createdAt := rule.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	result, err := r.db.Writer.ExecContext(ctx, query, rule.LoopID, string(rule.CriteriaType), rule.Threshold, createdAt.Format(time.RFC3339))
	if err != nil {
		return model.Rule{}, fmt.Errorf("add rule for loop %d: %w", rule.LoopID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return model.Rule{}, fmt.Errorf("last insert id for rule: %w", err)
	}

	rule.ID = id
	rule.CreatedAt = createdAt
	return rule, nil
}

// ListByLoop returns the loop's rules in insertion order. Verification
// results are rendered in this same order, so it must be stable.
func (r *RuleRepo) ListByLoop(ctx context.Context, loopID int64) ([]model.Rule, error) {
	const query = `SELECT id, loop_id, criteria_type, threshold, created_at FROM rules WHERE loop_id = ? ORDER BY id`

	rows, err := r.db.Reader.QueryContext(ctx, query, loopID)
	if err != nil {
		return nil, fmt.Errorf("list rules for loop %d: %w", loopID, err)
	}
	defer rows.Close()

	var rules []model.Rule
	for rows.Next() {
		var rule model.Rule
		var criteriaType, createdAt string

		if err := rows.Scan(&rule.ID, &rule.LoopID, &criteriaType, &rule.Threshold, &createdAt); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}

		rule.CriteriaType = model.CriteriaType(criteriaType)
		rule.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}

		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}

	return rules, nil
}

// Delete removes a rule by ID. Deleting a missing rule is not an error.
func (r *RuleRepo) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM rules WHERE id = ?`

	if _, err := r.db.Writer.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete rule %d: %w", id, err)
	}
	return nil
}
