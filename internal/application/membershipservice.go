package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/looplabs/loopgate/internal/domain/model"
	"github.com/looplabs/loopgate/internal/domain/port/driven"
)

// AccessVerifier is the slice of the access engine the join flow depends on.
type AccessVerifier interface {
	EvaluateForJoin(ctx context.Context, token string, loopID int64, username string) (model.AccessDecision, error)
}

// MembershipService drives the join flow: a fresh eligibility evaluation at
// the moment of join, followed by the membership write only when the fresh
// decision allows it.
type MembershipService struct {
	access  AccessVerifier
	members driven.MembershipStore
	logger  *slog.Logger
}

// NewMembershipService creates a new MembershipService.
func NewMembershipService(access AccessVerifier, members driven.MembershipStore) *MembershipService {
	return &MembershipService{
		access:  access,
		members: members,
		logger:  slog.Default(),
	}
}

// Join evaluates username against the loop's rules and, if admitted, writes
// the membership row. A duplicate insert is treated as already-a-member
// success rather than an error, so concurrent double-submission is safe.
// The returned decision reflects the evaluation that gated the write.
func (s *MembershipService) Join(ctx context.Context, token string, loopID int64, username string) (model.AccessDecision, error) {
	decision, err := s.access.EvaluateForJoin(ctx, token, loopID, username)
	if err != nil {
		return model.AccessDecision{}, err
	}

	if decision.IsMember || !decision.CanJoin {
		return decision, nil
	}

	err = s.members.Add(ctx, model.Membership{
		LoopID:   loopID,
		Username: username,
		JoinedAt: time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, driven.ErrAlreadyMember) {
			decision.IsMember = true
			decision.Message = "already a member of this loop"
			return decision, nil
		}
		return model.AccessDecision{}, fmt.Errorf("recording membership for %s in loop %d: %w", username, loopID, err)
	}

	s.logger.Info("member joined loop", "loop_id", loopID, "username", username,
		"collaborator_bypass", decision.IsCollaborator)

	decision.IsMember = true
	return decision, nil
}

// Members returns the loop's current membership roster.
func (s *MembershipService) Members(ctx context.Context, loopID int64) ([]model.Membership, error) {
	return s.members.ListByLoop(ctx, loopID)
}
