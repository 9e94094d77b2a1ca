// Package application contains use-case orchestration services.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/looplabs/loopgate/internal/domain/model"
	"github.com/looplabs/loopgate/internal/domain/port/driven"
)

// AccessService is the contribution-gated access control engine. It resolves
// a loop's repository coordinates from the durable repository ID, determines
// collaborator bypass, fans the rule set out to the criterion evaluators
// concurrently, and shapes the aggregate decision.
type AccessService struct {
	clients     driven.GitHubClientFactory
	loopStore   driven.LoopStore
	ruleStore   driven.RuleStore
	memberStore driven.MembershipStore
	timeout     time.Duration
	logger      *slog.Logger
}

// NewAccessService creates a new AccessService. timeout bounds all outbound
// hosting-API calls within a single verification pass.
func NewAccessService(
	clients driven.GitHubClientFactory,
	loopStore driven.LoopStore,
	ruleStore driven.RuleStore,
	memberStore driven.MembershipStore,
	timeout time.Duration,
) *AccessService {
	return &AccessService{
		clients:     clients,
		loopStore:   loopStore,
		ruleStore:   ruleStore,
		memberStore: memberStore,
		timeout:     timeout,
		logger:      slog.Default(),
	}
}

// Verify runs a read-only eligibility check for username against the loop's
// rule set. It never mutates membership state. The token is the candidate's
// access credential; verification is idempotent and side-effect-free against
// the hosting API, so callers may re-invoke it at any time.
func (s *AccessService) Verify(ctx context.Context, token string, loopID int64, username string) (model.AccessDecision, error) {
	loop, err := s.loopStore.GetByID(ctx, loopID)
	if err != nil {
		return model.AccessDecision{}, err
	}

	isMember, err := s.memberStore.Exists(ctx, loopID, username)
	if err != nil {
		return model.AccessDecision{}, fmt.Errorf("checking membership for %s in loop %d: %w", username, loopID, err)
	}
	if isMember {
		return model.AccessDecision{
			IsMember: true,
			Message:  "already a member of this loop",
			Results:  []model.VerificationResult{},
		}, nil
	}

	rules, err := s.ruleStore.ListByLoop(ctx, loopID)
	if err != nil {
		return model.AccessDecision{}, fmt.Errorf("loading rules for loop %d: %w", loopID, err)
	}

	return s.VerifyAccess(ctx, token, loop.RepoID, username, rules)
}

// EvaluateForJoin runs the identical evaluation at the moment of join, so a
// stale earlier "eligible" result is never trusted. The membership write in
// the join flow proceeds only if this fresh decision's CanJoin is true.
func (s *AccessService) EvaluateForJoin(ctx context.Context, token string, loopID int64, username string) (model.AccessDecision, error) {
	return s.Verify(ctx, token, loopID, username)
}

// VerifyAccess is the verification orchestrator: resolve coordinates, check
// collaborator bypass, then dispatch every rule to its criterion evaluator
// concurrently and aggregate. All failures below the credential level are
// translated into a well-formed AccessDecision, never a raw transport error.
func (s *AccessService) VerifyAccess(ctx context.Context, token string, repoID int64, username string, rules []model.Rule) (model.AccessDecision, error) {
	client, err := s.clients.ClientFor(token)
	if err != nil {
		// No usable credential: fatal, no partial decision.
		return model.AccessDecision{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	coords, err := client.ResolveRepository(ctx, repoID)
	if err != nil {
		// Terminal for the whole verification: "could not verify" is
		// reported, never conflated with "requirements not met".
		s.logger.Warn("repository unresolvable", "repo_id", repoID, "error", err)
		return model.AccessDecision{
			Unresolvable: true,
			Message:      fmt.Sprintf("could not verify: repository %d is unresolvable (deleted, renamed out of reach, or inaccessible)", repoID),
			Results:      []model.VerificationResult{},
		}, nil
	}

	isCollab, err := client.IsCollaborator(ctx, coords, username)
	if err != nil {
		// A collaborator-check failure forfeits the bypass shortcut but
		// must never itself grant or deny access.
		s.logger.Warn("collaborator check failed, falling back to rule evaluation",
			"repo", coords.FullName(), "username", username, "error", err)
		isCollab = false
	}
	if isCollab {
		return model.AccessDecision{
			CanJoin:        true,
			IsCollaborator: true,
			Message:        fmt.Sprintf("collaborator on %s; all requirements bypassed", coords.FullName()),
			Results:        []model.VerificationResult{},
		}, nil
	}

	rules = evaluableRules(rules, s.logger)
	if len(rules) == 0 {
		return model.AccessDecision{
			CanJoin: true,
			Message: "no requirements configured; open to everyone",
			Results: []model.VerificationResult{},
		}, nil
	}

	results := s.evaluateRules(ctx, client, coords, username, rules)

	allPassed := true
	anyEvalFailure := false
	for _, r := range results {
		if !r.Passed {
			allPassed = false
		}
		if r.failedEvaluation {
			anyEvalFailure = true
		}
	}

	decision := model.AccessDecision{
		CanJoin: allPassed,
		Results: stripInternal(results),
	}
	switch {
	case allPassed:
		decision.Message = "all requirements met"
	case anyEvalFailure:
		// One or more criteria could not be determined; surface the whole
		// decision as "could not verify" rather than "ineligible".
		decision.Unresolvable = true
		decision.Message = "could not verify: one or more requirements could not be evaluated"
	default:
		decision.Message = "requirements not yet met"
	}

	return decision, nil
}

// ruleResult pairs a VerificationResult with an internal flag marking hard
// evaluation failures (API errors), which the aggregate distinguishes from
// cleanly-failed rules.
type ruleResult struct {
	model.VerificationResult
	failedEvaluation bool
}

// evaluateRules dispatches one concurrent task per rule and collects results
// in rule order (not completion order) so the caller renders a stable rule
// ordering regardless of which external call returned first. Tasks share the
// resolved coordinates and credential read-only; a single task's failure
// never cancels its siblings.
func (s *AccessService) evaluateRules(
	ctx context.Context,
	client driven.GitHubClient,
	coords model.RepositoryCoordinates,
	username string,
	rules []model.Rule,
) []ruleResult {
	results := make([]ruleResult, len(rules))

	var g errgroup.Group
	for i, rule := range rules {
		g.Go(func() error {
			results[i] = s.evaluateRule(ctx, client, coords, username, rule)
			return nil
		})
	}
	// Tasks never return errors; Wait is a wait-for-all barrier.
	_ = g.Wait()

	return results
}

// evaluateRule runs a single criterion evaluator with the rule's threshold
// as the counting cap.
func (s *AccessService) evaluateRule(
	ctx context.Context,
	client driven.GitHubClient,
	coords model.RepositoryCoordinates,
	username string,
	rule model.Rule,
) ruleResult {
	// Rule sets are pre-filtered by evaluableRules; a decode failure here
	// means the rule mutated mid-call, which the data model rules out.
	required, err := rule.DecodedThreshold()
	if err != nil {
		required = 0
	}

	actual, err := s.countFor(ctx, client, coords, username, rule.CriteriaType, required)
	if err != nil {
		s.logger.Warn("rule evaluation failed",
			"repo", coords.FullName(),
			"username", username,
			"criteria", rule.CriteriaType,
			"error", err,
		)
		return ruleResult{
			VerificationResult: model.VerificationResult{
				CriteriaType: rule.CriteriaType,
				Required:     required,
				Actual:       0,
				Passed:       false,
				Message:      fmt.Sprintf("could not evaluate %s requirement", rule.CriteriaType.Label()),
			},
			failedEvaluation: true,
		}
	}

	result := model.VerificationResult{
		CriteriaType: rule.CriteriaType,
		Required:     required,
		Actual:       actual,
		Passed:       actual >= required,
	}
	result.Message = result.Explain()
	return ruleResult{VerificationResult: result}
}

// countFor dispatches the criteria type to its evaluator. The vocabulary is
// closed; an unknown type is a data integrity problem, reported as an error.
func (s *AccessService) countFor(
	ctx context.Context,
	client driven.GitHubClient,
	coords model.RepositoryCoordinates,
	username string,
	criteria model.CriteriaType,
	cap int,
) (int, error) {
	switch criteria {
	case model.CriteriaPRCount:
		return client.CountMergedPullRequests(ctx, coords, username, cap)
	case model.CriteriaCommitCount:
		return client.CountCommits(ctx, coords, username, cap)
	case model.CriteriaIssueCount:
		return client.CountIssuesCreated(ctx, coords, username, cap)
	default:
		return 0, fmt.Errorf("unknown criteria type %q", criteria)
	}
}

// evaluableRules filters the persisted rule set down to rules the engine
// should evaluate: malformed thresholds are an owner-data integrity issue
// and are skipped, and non-positive thresholds are trivially satisfied so
// they never reach the evaluators.
func evaluableRules(rules []model.Rule, logger *slog.Logger) []model.Rule {
	out := make([]model.Rule, 0, len(rules))
	for _, rule := range rules {
		n, err := rule.DecodedThreshold()
		if err != nil {
			logger.Warn("excluding rule with malformed threshold", "rule_id", rule.ID, "threshold", rule.Threshold)
			continue
		}
		if n <= 0 {
			continue
		}
		out = append(out, rule)
	}
	return out
}

// stripInternal drops the internal evaluation-failure flag before results
// leave the engine.
func stripInternal(results []ruleResult) []model.VerificationResult {
	out := make([]model.VerificationResult, len(results))
	for i, r := range results {
		out[i] = r.VerificationResult
	}
	return out
}
