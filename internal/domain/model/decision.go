package model

import "fmt"

// RepositoryCoordinates is the resolved owner/name pair for a durable
// repository ID at the moment of a verification call. Coordinates are a
// derived, non-authoritative view: they are recomputed on every call and
// never persisted, so a renamed or transferred repository cannot grant or
// deny access based on stale data.
type RepositoryCoordinates struct {
	Owner string
	Name  string
}

// FullName returns the coordinates in "owner/name" form.
func (c RepositoryCoordinates) FullName() string {
	return c.Owner + "/" + c.Name
}

// VerificationResult is the per-rule outcome of a verification pass.
// Actual is the observed contribution count, capped at Required by the
// bounded-counting evaluators: once a count reaches the threshold the
// evaluator stops paginating, so Actual never exceeds Required.
type VerificationResult struct {
	CriteriaType CriteriaType
	Required     int
	Actual       int
	Passed       bool
	Message      string
}

// Explain composes the human-readable per-rule message from the counts.
func (r VerificationResult) Explain() string {
	if r.Passed {
		return fmt.Sprintf("requirement met: %d/%d %s", r.Actual, r.Required, r.CriteriaType.Label())
	}
	return fmt.Sprintf("requirement not met: %d/%d %s", r.Actual, r.Required, r.CriteriaType.Label())
}

// AccessDecision is the aggregate output of one verification call.
// Constructed once per call, returned, and discarded; never persisted.
//
// Unresolvable distinguishes "could not determine eligibility" (the durable
// repository ID no longer resolves, or a criterion's API call failed) from
// a genuine "requirements not met". The former implies the check should be
// retried later; the latter means the user must contribute more.
type AccessDecision struct {
	IsMember       bool
	CanJoin        bool
	IsCollaborator bool
	Unresolvable   bool
	Message        string
	Results        []VerificationResult
}
