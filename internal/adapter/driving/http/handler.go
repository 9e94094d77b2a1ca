// Package httphandler is the HTTP driving adapter serving the REST API.
package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/looplabs/loopgate/internal/application"
	"github.com/looplabs/loopgate/internal/domain/model"
	"github.com/looplabs/loopgate/internal/domain/port/driven"
)

// Handler is the HTTP driving adapter that serves the REST API. Loop and
// rule management is thin CRUD over the stores; eligibility and join calls
// go through the access engine.
type Handler struct {
	loopStore     driven.LoopStore
	ruleStore     driven.RuleStore
	accessSvc     *application.AccessService
	membershipSvc *application.MembershipService
	fallbackToken string
	logger        *slog.Logger
}

// NewHandler creates a Handler with all required dependencies. fallbackToken
// is used for requests carrying no bearer token of their own; it may be empty,
// in which case such requests fail with 401 before any hosting-API call.
func NewHandler(
	loopStore driven.LoopStore,
	ruleStore driven.RuleStore,
	accessSvc *application.AccessService,
	membershipSvc *application.MembershipService,
	fallbackToken string,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		loopStore:     loopStore,
		ruleStore:     ruleStore,
		accessSvc:     accessSvc,
		membershipSvc: membershipSvc,
		fallbackToken: fallbackToken,
		logger:        logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/loops", h.CreateLoop)
	mux.HandleFunc("GET /api/v1/loops", h.ListLoops)
	mux.HandleFunc("GET /api/v1/loops/{id}", h.GetLoop)
	mux.HandleFunc("POST /api/v1/loops/{id}/rules", h.AddRule)
	mux.HandleFunc("GET /api/v1/loops/{id}/rules", h.ListRules)
	mux.HandleFunc("DELETE /api/v1/loops/{id}/rules/{ruleID}", h.DeleteRule)
	mux.HandleFunc("GET /api/v1/loops/{id}/eligibility/{username}", h.CheckEligibility)
	mux.HandleFunc("POST /api/v1/loops/{id}/members", h.Join)
	mux.HandleFunc("GET /api/v1/loops/{id}/members", h.ListMembers)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// CreateLoop creates a new loop gated on the given durable repository ID.
func (h *Handler) CreateLoop(w http.ResponseWriter, r *http.Request) {
	var req CreateLoopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" || req.RepoID <= 0 || req.OwnerLogin == "" {
		writeError(w, http.StatusBadRequest, "name, repo_id, and owner_login are required")
		return
	}

	loop, err := h.loopStore.Create(r.Context(), model.Loop{
		Name:       req.Name,
		RepoID:     req.RepoID,
		OwnerLogin: req.OwnerLogin,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, driven.ErrLoopAlreadyExists) {
			writeError(w, http.StatusConflict, "a loop already exists for this repository")
			return
		}
		h.logger.Error("failed to create loop", "repo_id", req.RepoID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, toLoopResponse(loop))
}

// ListLoops returns all loops.
func (h *Handler) ListLoops(w http.ResponseWriter, r *http.Request) {
	loops, err := h.loopStore.ListAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list loops", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]LoopResponse, 0, len(loops))
	for _, loop := range loops {
		resp = append(resp, toLoopResponse(loop))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetLoop returns a single loop by ID.
func (h *Handler) GetLoop(w http.ResponseWriter, r *http.Request) {
	id, ok := h.loopID(w, r)
	if !ok {
		return
	}

	loop, err := h.loopStore.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, driven.ErrLoopNotFound) {
			writeError(w, http.StatusNotFound, "loop not found")
			return
		}
		h.logger.Error("failed to get loop", "loop_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toLoopResponse(loop))
}

// AddRule attaches a new membership rule to a loop. The threshold must decode
// to a positive integer; malformed or non-positive values are rejected here
// so the engine never loads them.
func (h *Handler) AddRule(w http.ResponseWriter, r *http.Request) {
	id, ok := h.loopID(w, r)
	if !ok {
		return
	}

	var req AddRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	criteria := model.CriteriaType(req.CriteriaType)
	if !criteria.Valid() {
		writeError(w, http.StatusBadRequest, "criteria_type must be one of PR_COUNT, COMMIT_COUNT, ISSUE_COUNT")
		return
	}

	n, err := model.ParseThreshold(req.Threshold)
	if err != nil || n <= 0 {
		writeError(w, http.StatusBadRequest, "threshold must be a positive base-10 integer")
		return
	}

	if _, err := h.loopStore.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, driven.ErrLoopNotFound) {
			writeError(w, http.StatusNotFound, "loop not found")
			return
		}
		h.logger.Error("failed to get loop", "loop_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	rule, err := h.ruleStore.Add(r.Context(), model.Rule{
		LoopID:       id,
		CriteriaType: criteria,
		Threshold:    req.Threshold,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		h.logger.Error("failed to add rule", "loop_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, toRuleResponse(rule))
}

// ListRules returns the loop's rules in insertion order.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	id, ok := h.loopID(w, r)
	if !ok {
		return
	}

	rules, err := h.ruleStore.ListByLoop(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to list rules", "loop_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]RuleResponse, 0, len(rules))
	for _, rule := range rules {
		resp = append(resp, toRuleResponse(rule))
	}

	writeJSON(w, http.StatusOK, resp)
}

// DeleteRule removes a rule from a loop.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	ruleID, err := strconv.ParseInt(r.PathValue("ruleID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid rule id")
		return
	}

	if err := h.ruleStore.Delete(r.Context(), ruleID); err != nil {
		h.logger.Error("failed to delete rule", "rule_id", ruleID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CheckEligibility runs a read-only eligibility check for the given username.
// It never mutates membership state.
func (h *Handler) CheckEligibility(w http.ResponseWriter, r *http.Request) {
	id, ok := h.loopID(w, r)
	if !ok {
		return
	}

	username := r.PathValue("username")
	if username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	decision, err := h.accessSvc.Verify(r.Context(), h.bearerToken(r), id, username)
	if err != nil {
		h.writeDecisionError(w, id, username, err)
		return
	}

	writeJSON(w, http.StatusOK, toDecisionResponse(decision))
}

// Join re-evaluates eligibility at the moment of join and writes the
// membership row only if the fresh decision allows it.
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	id, ok := h.loopID(w, r)
	if !ok {
		return
	}

	var req JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	decision, err := h.membershipSvc.Join(r.Context(), h.bearerToken(r), id, req.Username)
	if err != nil {
		h.writeDecisionError(w, id, req.Username, err)
		return
	}

	status := http.StatusOK
	if decision.IsMember && decision.CanJoin {
		status = http.StatusCreated
	}
	if !decision.IsMember && !decision.CanJoin {
		status = http.StatusForbidden
	}

	writeJSON(w, status, toDecisionResponse(decision))
}

// ListMembers returns the loop's membership roster.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	id, ok := h.loopID(w, r)
	if !ok {
		return
	}

	members, err := h.membershipSvc.Members(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to list members", "loop_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]MemberResponse, 0, len(members))
	for _, m := range members {
		resp = append(resp, toMemberResponse(m))
	}

	writeJSON(w, http.StatusOK, resp)
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// loopID parses the {id} path value, writing a 400 response on failure.
func (h *Handler) loopID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid loop id")
		return 0, false
	}
	return id, true
}

// bearerToken extracts the caller's credential from the Authorization header,
// falling back to the configured server token when the header is absent.
func (h *Handler) bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok && token != "" {
		return token
	}
	return h.fallbackToken
}

// writeDecisionError maps verification errors to HTTP status codes.
func (h *Handler) writeDecisionError(w http.ResponseWriter, loopID int64, username string, err error) {
	switch {
	case errors.Is(err, driven.ErrLoopNotFound):
		writeError(w, http.StatusNotFound, "loop not found")
	case errors.Is(err, driven.ErrMissingCredential):
		writeError(w, http.StatusUnauthorized, "missing github credential")
	default:
		h.logger.Error("verification failed", "loop_id", loopID, "username", username, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
