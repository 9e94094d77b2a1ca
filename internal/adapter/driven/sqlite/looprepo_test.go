package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplabs/loopgate/internal/domain/model"
	"github.com/looplabs/loopgate/internal/domain/port/driven"
)

func TestLoopRepo_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLoopRepo(db)

	created, err := repo.Create(context.Background(), model.Loop{
		Name:       "gophers",
		RepoID:     42,
		OwnerLogin: "octocat",
		CreatedAt:  time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	got, err := repo.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "gophers", got.Name)
	assert.Equal(t, int64(42), got.RepoID)
	assert.Equal(t, "octocat", got.OwnerLogin)
	assert.Equal(t, created.CreatedAt, got.CreatedAt)
}

func TestLoopRepo_GetByID_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLoopRepo(db)

	_, err := repo.GetByID(context.Background(), 999)
	assert.ErrorIs(t, err, driven.ErrLoopNotFound)
}

func TestLoopRepo_Create_DuplicateRepoID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLoopRepo(db)

	_, err := repo.Create(context.Background(), model.Loop{Name: "first", RepoID: 42, OwnerLogin: "octocat"})
	require.NoError(t, err)

	_, err = repo.Create(context.Background(), model.Loop{Name: "second", RepoID: 42, OwnerLogin: "octocat"})
	assert.ErrorIs(t, err, driven.ErrLoopAlreadyExists)
}

func TestLoopRepo_ListAll(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLoopRepo(db)

	_, err := repo.Create(context.Background(), model.Loop{
		Name: "first", RepoID: 1, OwnerLogin: "octocat",
		CreatedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	_, err = repo.Create(context.Background(), model.Loop{
		Name: "second", RepoID: 2, OwnerLogin: "octocat",
		CreatedAt: time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	loops, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, loops, 2)
	assert.Equal(t, "first", loops[0].Name)
	assert.Equal(t, "second", loops[1].Name)
}
