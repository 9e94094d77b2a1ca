package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/looplabs/loopgate/internal/domain/model"
	"github.com/looplabs/loopgate/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.MembershipStore = (*MembershipRepo)(nil)

// MembershipRepo is the SQLite implementation of the MembershipStore port interface.
type MembershipRepo struct {
	db *DB
}

// NewMembershipRepo creates a new MembershipRepo backed by the given DB.
func NewMembershipRepo(db *DB) *MembershipRepo {
	return &MembershipRepo{db: db}
}

// Add inserts a membership row. The (loop_id, username) primary key turns a
// concurrent double-submission into a constraint violation, reported as
// ErrAlreadyMember so the join flow can treat it as success.
func (r *MembershipRepo) Add(ctx context.Context, m model.Membership) error {
	const query = `INSERT INTO memberships (loop_id, username, joined_at) VALUES (?, ?, ?)`

	joinedAt := m.JoinedAt
	if joinedAt.IsZero() {
		joinedAt = time.Now().UTC()
	}

	_, err := r.db.Writer.ExecContext(ctx, query, m.LoopID, m.Username, joinedAt.Format(time.RFC3339))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") || strings.Contains(err.Error(), "PRIMARY KEY constraint") {
			return fmt.Errorf("add membership %s/loop %d: %w", m.Username, m.LoopID, driven.ErrAlreadyMember)
		}
		return fmt.Errorf("add membership %s/loop %d: %w", m.Username, m.LoopID, err)
	}

	return nil
}

// Exists reports whether username is a member of the loop.
func (r *MembershipRepo) Exists(ctx context.Context, loopID int64, username string) (bool, error) {
	const query = `SELECT COUNT(1) FROM memberships WHERE loop_id = ? AND username = ?`

	var count int
	if err := r.db.Reader.QueryRowContext(ctx, query, loopID, username).Scan(&count); err != nil {
		return false, fmt.Errorf("check membership %s/loop %d: %w", username, loopID, err)
	}

	return count > 0, nil
}

// ListByLoop returns the loop's members ordered by join time.
func (r *MembershipRepo) ListByLoop(ctx context.Context, loopID int64) ([]model.Membership, error) {
	const query = `SELECT loop_id, username, joined_at FROM memberships WHERE loop_id = ? ORDER BY joined_at, username`

	rows, err := r.db.Reader.QueryContext(ctx, query, loopID)
	if err != nil {
		return nil, fmt.Errorf("list memberships for loop %d: %w", loopID, err)
	}
	defer rows.Close()

	var members []model.Membership
	for rows.Next() {
		var m model.Membership
		var joinedAt string

		if err := rows.Scan(&m.LoopID, &m.Username, &joinedAt); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}

		m.JoinedAt, err = parseTime(joinedAt)
		if err != nil {
			return nil, fmt.Errorf("parse joined_at: %w", err)
		}

		members = append(members, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memberships: %w", err)
	}

	return members, nil
}
