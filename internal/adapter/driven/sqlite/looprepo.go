package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/looplabs/loopgate/internal/domain/model"
	"github.com/looplabs/loopgate/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.LoopStore = (*LoopRepo)(nil)

// LoopRepo is the SQLite implementation of the LoopStore port interface.
type LoopRepo struct {
	db *DB
}

// NewLoopRepo creates a new LoopRepo backed by the given DB.
func NewLoopRepo(db *DB) *LoopRepo {
	return &LoopRepo{db: db}
}

// Create inserts a new loop and returns it with its assigned ID. A repository
// can back at most one loop; a second loop for the same repo_id fails with
// ErrLoopAlreadyExists.
func (r *LoopRepo) Create(ctx context.Context, loop model.Loop) (model.Loop, error) {
	const query = `INSERT INTO loops (name, repo_id, owner_login, created_at) VALUES (?, ?, ?, ?)`

	createdAt := loop.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	result, err := r.db.Writer.ExecContext(ctx, query, loop.Name, loop.RepoID, loop.OwnerLogin, createdAt.Format(time.RFC3339))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return model.Loop{}, fmt.Errorf("create loop for repo %d: %w", loop.RepoID, driven.ErrLoopAlreadyExists)
		}
		return model.Loop{}, fmt.Errorf("create loop %q: %w", loop.Name, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return model.Loop{}, fmt.Errorf("last insert id for loop %q: %w", loop.Name, err)
	}

	loop.ID = id
	loop.CreatedAt = createdAt
	return loop, nil
}

// GetByID retrieves a loop by its ID, or ErrLoopNotFound.
func (r *LoopRepo) GetByID(ctx context.Context, id int64) (model.Loop, error) {
	const query = `SELECT id, name, repo_id, owner_login, created_at FROM loops WHERE id = ?`

	loop, err := scanLoop(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Loop{}, fmt.Errorf("get loop %d: %w", id, driven.ErrLoopNotFound)
	}
	if err != nil {
		return model.Loop{}, fmt.Errorf("get loop %d: %w", id, err)
	}

	return loop, nil
}

// ListAll returns all loops ordered by creation time.
func (r *LoopRepo) ListAll(ctx context.Context) ([]model.Loop, error) {
	const query = `SELECT id, name, repo_id, owner_login, created_at FROM loops ORDER BY created_at, id`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list loops: %w", err)
	}
	defer rows.Close()

	var loops []model.Loop
	for rows.Next() {
		loop, err := scanLoop(rows)
		if err != nil {
			return nil, fmt.Errorf("scan loop: %w", err)
		}
		loops = append(loops, loop)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate loops: %w", err)
	}

	return loops, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanLoop(s scanner) (model.Loop, error) {
	var loop model.Loop
	var createdAt string

	err := s.Scan(&loop.ID, &loop.Name, &loop.RepoID, &loop.OwnerLogin, &createdAt)
	if err != nil {
		return model.Loop{}, err
	}

	loop.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return model.Loop{}, fmt.Errorf("parse created_at: %w", err)
	}

	return loop, nil
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
