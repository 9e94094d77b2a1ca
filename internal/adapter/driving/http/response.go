package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/looplabs/loopgate/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// LoopResponse is the JSON representation of a loop.
type LoopResponse struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	RepoID     int64  `json:"repo_id"`
	OwnerLogin string `json:"owner_login"`
	CreatedAt  string `json:"created_at"`
}

// RuleResponse is the JSON representation of a membership rule.
type RuleResponse struct {
	ID           int64  `json:"id"`
	LoopID       int64  `json:"loop_id"`
	CriteriaType string `json:"criteria_type"`
	Threshold    string `json:"threshold"`
	CreatedAt    string `json:"created_at"`
}

// MemberResponse is the JSON representation of a loop membership.
type MemberResponse struct {
	LoopID   int64  `json:"loop_id"`
	Username string `json:"username"`
	JoinedAt string `json:"joined_at"`
}

// VerificationResultResponse is the per-rule outcome of a verification.
type VerificationResultResponse struct {
	CriteriaType string `json:"criteria_type"`
	Required     int    `json:"required"`
	Actual       int    `json:"actual"`
	Passed       bool   `json:"passed"`
	Message      string `json:"message"`
}

// DecisionResponse is the JSON representation of an access decision.
type DecisionResponse struct {
	IsMember       bool                         `json:"is_member"`
	CanJoin        bool                         `json:"can_join"`
	IsCollaborator bool                         `json:"is_collaborator"`
	Unresolvable   bool                         `json:"unresolvable"`
	Message        string                       `json:"message"`
	Results        []VerificationResultResponse `json:"results"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// CreateLoopRequest is the JSON body for the create loop endpoint.
type CreateLoopRequest struct {
	Name       string `json:"name"`
	RepoID     int64  `json:"repo_id"`
	OwnerLogin string `json:"owner_login"`
}

// AddRuleRequest is the JSON body for the add rule endpoint.
type AddRuleRequest struct {
	CriteriaType string `json:"criteria_type"`
	Threshold    string `json:"threshold"`
}

// JoinRequest is the JSON body for the join endpoint.
type JoinRequest struct {
	Username string `json:"username"`
}

// toLoopResponse converts a domain Loop to its JSON response representation.
func toLoopResponse(loop model.Loop) LoopResponse {
	return LoopResponse{
		ID:         loop.ID,
		Name:       loop.Name,
		RepoID:     loop.RepoID,
		OwnerLogin: loop.OwnerLogin,
		CreatedAt:  loop.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// toRuleResponse converts a domain Rule to its JSON response representation.
func toRuleResponse(rule model.Rule) RuleResponse {
	return RuleResponse{
		ID:           rule.ID,
		LoopID:       rule.LoopID,
		CriteriaType: string(rule.CriteriaType),
		Threshold:    rule.Threshold,
		CreatedAt:    rule.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// toMemberResponse converts a domain Membership to its JSON response representation.
func toMemberResponse(m model.Membership) MemberResponse {
	return MemberResponse{
		LoopID:   m.LoopID,
		Username: m.Username,
		JoinedAt: m.JoinedAt.UTC().Format(time.RFC3339),
	}
}

// toDecisionResponse converts a domain AccessDecision to its JSON response
// representation. Results preserve the rule ordering produced by the engine.
func toDecisionResponse(d model.AccessDecision) DecisionResponse {
	results := make([]VerificationResultResponse, 0, len(d.Results))
	for _, r := range d.Results {
		results = append(results, VerificationResultResponse{
			CriteriaType: string(r.CriteriaType),
			Required:     r.Required,
			Actual:       r.Actual,
			Passed:       r.Passed,
			Message:      r.Message,
		})
	}

	return DecisionResponse{
		IsMember:       d.IsMember,
		CanJoin:        d.CanJoin,
		IsCollaborator: d.IsCollaborator,
		Unresolvable:   d.Unresolvable,
		Message:        d.Message,
		Results:        results,
	}
}
