package driven

import (
	"context"
	"errors"

	"github.com/looplabs/loopgate/internal/domain/model"
)

// ErrMissingCredential is returned before any hosting-API call is attempted
// when no usable access token is available for the verification.
var ErrMissingCredential = errors.New("missing github credential")

// ErrRepositoryUnresolvable is returned when the durable repository ID no
// longer resolves: the repository was deleted, made inaccessible to the
// credential, or the lookup timed out. It is terminal for the whole
// verification; evaluators never run without valid coordinates.
var ErrRepositoryUnresolvable = errors.New("repository unresolvable")

// GitHubClient defines the driven port for the hosting API. All methods are
// read-only; the engine never performs write operations against the
// repository. Every method is bound by the context's deadline.
type GitHubClient interface {
	// ResolveRepository looks up the repository's current owner/name
	// coordinates from its durable numeric ID. Failures wrap
	// ErrRepositoryUnresolvable.
	ResolveRepository(ctx context.Context, repoID int64) (model.RepositoryCoordinates, error)

	// IsCollaborator reports whether username holds collaborator standing
	// on the repository at coords.
	IsCollaborator(ctx context.Context, coords model.RepositoryCoordinates, username string) (bool, error)

	// CountMergedPullRequests counts merged pull requests authored by
	// username against the repository, stopping early once the running
	// count reaches cap. The returned count never exceeds cap.
	CountMergedPullRequests(ctx context.Context, coords model.RepositoryCoordinates, username string, cap int) (int, error)

	// CountCommits counts commits authored by username on the repository's
	// default branch, stopping early once the running count reaches cap.
	CountCommits(ctx context.Context, coords model.RepositoryCoordinates, username string, cap int) (int, error)

	// CountIssuesCreated counts issues (excluding pull requests) created by
	// username on the repository, stopping early once the running count
	// reaches cap.
	CountIssuesCreated(ctx context.Context, coords model.RepositoryCoordinates, username string, cap int) (int, error)
}

// GitHubClientFactory builds a GitHubClient bound to a single access
// credential. Each verification call carries the candidate's (or loop
// owner's) token, so clients are constructed per call rather than held
// as long-lived application state.
type GitHubClientFactory interface {
	// ClientFor returns a client authenticated with the given bearer token.
	// An empty token fails with ErrMissingCredential.
	ClientFor(token string) (GitHubClient, error)
}
