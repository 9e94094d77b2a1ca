package model

// CriteriaType identifies which kind of contribution a rule counts.
// The vocabulary is closed: pull requests, commits, and issues are the
// only contribution signals the hosting platform exposes that an owner
// can gate on.
type CriteriaType string

const (
	CriteriaPRCount     CriteriaType = "PR_COUNT"
	CriteriaCommitCount CriteriaType = "COMMIT_COUNT"
	CriteriaIssueCount  CriteriaType = "ISSUE_COUNT"
)

// Valid reports whether t is one of the known criteria types.
func (t CriteriaType) Valid() bool {
	switch t {
	case CriteriaPRCount, CriteriaCommitCount, CriteriaIssueCount:
		return true
	}
	return false
}

// Label returns a short human-readable name for the criteria type,
// used when composing per-rule explanation messages.
func (t CriteriaType) Label() string {
	switch t {
	case CriteriaPRCount:
		return "merged pull requests"
	case CriteriaCommitCount:
		return "commits"
	case CriteriaIssueCount:
		return "issues created"
	default:
		return string(t)
	}
}
