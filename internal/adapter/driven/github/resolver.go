package github

import (
	"context"
	"fmt"

	"github.com/looplabs/loopgate/internal/domain/model"
	"github.com/looplabs/loopgate/internal/domain/port/driven"
)

// ResolveRepository looks up the repository's current owner/name coordinates
// from its durable numeric ID via the by-ID endpoint. Resolving by ID rather
// than by a stored name keeps loops durable across repository renames and
// ownership transfers. Any failure (deleted repository, credential without
// access, timeout) wraps ErrRepositoryUnresolvable.
func (c *Client) ResolveRepository(ctx context.Context, repoID int64) (model.RepositoryCoordinates, error) {
	repo, resp, err := c.gh.Repositories.GetByID(ctx, repoID)
	if err != nil {
		return model.RepositoryCoordinates{}, fmt.Errorf("%w: repository %d: %v", driven.ErrRepositoryUnresolvable, repoID, err)
	}

	logRateLimit(resp, "repositories/by-id", 0, 1)

	owner := repo.GetOwner().GetLogin()
	name := repo.GetName()
	if owner == "" || name == "" {
		return model.RepositoryCoordinates{}, fmt.Errorf("%w: repository %d returned incomplete coordinates", driven.ErrRepositoryUnresolvable, repoID)
	}

	return model.RepositoryCoordinates{Owner: owner, Name: name}, nil
}

// IsCollaborator reports whether username holds collaborator standing on
// the repository. go-github maps the endpoint's 204/404 responses to a
// boolean, so a plain "not a collaborator" is not an error.
func (c *Client) IsCollaborator(ctx context.Context, coords model.RepositoryCoordinates, username string) (bool, error) {
	isCollab, resp, err := c.gh.Repositories.IsCollaborator(ctx, coords.Owner, coords.Name, username)
	if err != nil {
		return false, fmt.Errorf("checking collaborator %s on %s: %w", username, coords.FullName(), err)
	}

	logRateLimit(resp, coords.FullName()+"/collaborators", 0, 1)

	return isCollab, nil
}
