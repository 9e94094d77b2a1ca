package model

import "time"

// Loop is a gated collaboration space tied to one source-code repository.
// RepoID is the hosting platform's immutable numeric repository identifier;
// it is the only stable reference to the repository, since owner/name
// coordinates drift under renames and ownership transfers.
type Loop struct {
	ID         int64
	Name       string
	RepoID     int64
	OwnerLogin string
	CreatedAt  time.Time
}

// Membership records a user admitted to a loop. Written by the join flow
// only after a fresh verification returned CanJoin=true.
type Membership struct {
	LoopID   int64
	Username string
	JoinedAt time.Time
}
