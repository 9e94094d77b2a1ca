package model

import "time"

// Rule is an owner-authored requirement attached to a loop. A candidate
// must satisfy every rule to join, unless they hold collaborator standing
// on the linked repository. The threshold is persisted as text and decoded
// by ParseThreshold at evaluation time.
type Rule struct {
	ID           int64
	LoopID       int64
	CriteriaType CriteriaType
	Threshold    string
	CreatedAt    time.Time
}

// DecodedThreshold returns the rule's numeric threshold, or an error
// wrapping ErrInvalidThreshold when the persisted value is malformed.
func (r Rule) DecodedThreshold() (int, error) {
	return ParseThreshold(r.Threshold)
}
