package httphandler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httphandler "github.com/looplabs/loopgate/internal/adapter/driving/http"
	"github.com/looplabs/loopgate/internal/application"
	"github.com/looplabs/loopgate/internal/domain/model"
	"github.com/looplabs/loopgate/internal/domain/port/driven"
)

// --- Mock implementations ---

type mockLoopStore struct {
	loops     map[int64]model.Loop
	createErr error
	nextID    int64
}

func newMockLoopStore() *mockLoopStore {
	return &mockLoopStore{loops: map[int64]model.Loop{}, nextID: 1}
}

func (m *mockLoopStore) Create(_ context.Context, loop model.Loop) (model.Loop, error) {
	if m.createErr != nil {
		return model.Loop{}, m.createErr
	}
	loop.ID = m.nextID
	m.nextID++
	m.loops[loop.ID] = loop
	return loop, nil
}

func (m *mockLoopStore) GetByID(_ context.Context, id int64) (model.Loop, error) {
	loop, ok := m.loops[id]
	if !ok {
		return model.Loop{}, driven.ErrLoopNotFound
	}
	return loop, nil
}

func (m *mockLoopStore) ListAll(_ context.Context) ([]model.Loop, error) {
	var out []model.Loop
	for _, loop := range m.loops {
		out = append(out, loop)
	}
	return out, nil
}

type mockRuleStore struct {
	rules  []model.Rule
	nextID int64
}

func (m *mockRuleStore) Add(_ context.Context, rule model.Rule) (model.Rule, error) {
	m.nextID++
	rule.ID = m.nextID
	m.rules = append(m.rules, rule)
	return rule, nil
}

func (m *mockRuleStore) ListByLoop(_ context.Context, loopID int64) ([]model.Rule, error) {
	var out []model.Rule
	for _, rule := range m.rules {
		if rule.LoopID == loopID {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (m *mockRuleStore) Delete(_ context.Context, id int64) error {
	out := m.rules[:0]
	for _, rule := range m.rules {
		if rule.ID != id {
			out = append(out, rule)
		}
	}
	m.rules = out
	return nil
}

type mockMembershipStore struct {
	members map[string]bool
}

func newMockMembershipStore() *mockMembershipStore {
	return &mockMembershipStore{members: map[string]bool{}}
}

func memberKey(loopID int64, username string) string {
	return fmt.Sprintf("%d/%s", loopID, username)
}

func (m *mockMembershipStore) Add(_ context.Context, membership model.Membership) error {
	key := memberKey(membership.LoopID, membership.Username)
	if m.members[key] {
		return driven.ErrAlreadyMember
	}
	m.members[key] = true
	return nil
}

func (m *mockMembershipStore) Exists(_ context.Context, loopID int64, username string) (bool, error) {
	return m.members[memberKey(loopID, username)], nil
}

func (m *mockMembershipStore) ListByLoop(_ context.Context, _ int64) ([]model.Membership, error) {
	return nil, nil
}

// mockGitHubClient is a fixed-count hosting API client.
type mockGitHubClient struct {
	coords       model.RepositoryCoordinates
	resolveErr   error
	collaborator bool
	prCount      int
	commitCount  int
	issueCount   int
}

func (m *mockGitHubClient) ResolveRepository(_ context.Context, _ int64) (model.RepositoryCoordinates, error) {
	if m.resolveErr != nil {
		return model.RepositoryCoordinates{}, m.resolveErr
	}
	return m.coords, nil
}

func (m *mockGitHubClient) IsCollaborator(_ context.Context, _ model.RepositoryCoordinates, _ string) (bool, error) {
	return m.collaborator, nil
}

func (m *mockGitHubClient) CountMergedPullRequests(_ context.Context, _ model.RepositoryCoordinates, _ string, cap int) (int, error) {
	return minInt(m.prCount, cap), nil
}

func (m *mockGitHubClient) CountCommits(_ context.Context, _ model.RepositoryCoordinates, _ string, cap int) (int, error) {
	return minInt(m.commitCount, cap), nil
}

func (m *mockGitHubClient) CountIssuesCreated(_ context.Context, _ model.RepositoryCoordinates, _ string, cap int) (int, error) {
	return minInt(m.issueCount, cap), nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// mockFactory records the tokens it was handed.
type mockFactory struct {
	client driven.GitHubClient
	tokens []string
}

func (f *mockFactory) ClientFor(token string) (driven.GitHubClient, error) {
	if token == "" {
		return nil, driven.ErrMissingCredential
	}
	f.tokens = append(f.tokens, token)
	return f.client, nil
}

// --- Test fixture ---

type fixture struct {
	handler http.Handler
	loops   *mockLoopStore
	rules   *mockRuleStore
	members *mockMembershipStore
	factory *mockFactory
}

func newFixture(t *testing.T, client driven.GitHubClient, fallbackToken string) *fixture {
	t.Helper()

	loops := newMockLoopStore()
	rules := &mockRuleStore{}
	members := newMockMembershipStore()
	factory := &mockFactory{client: client}

	accessSvc := application.NewAccessService(factory, loops, rules, members, 5*time.Second)
	membershipSvc := application.NewMembershipService(accessSvc, members)

	h := httphandler.NewHandler(loops, rules, accessSvc, membershipSvc, fallbackToken, slog.Default())

	return &fixture{
		handler: httphandler.NewServeMux(h, slog.Default()),
		loops:   loops,
		rules:   rules,
		members: members,
		factory: factory,
	}
}

func (f *fixture) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) seedLoop(t *testing.T) model.Loop {
	t.Helper()
	loop, err := f.loops.Create(context.Background(), model.Loop{Name: "gophers", RepoID: 42, OwnerLogin: "octocat"})
	require.NoError(t, err)
	return loop
}

// --- Loop endpoints ---

func TestCreateLoop(t *testing.T) {
	f := newFixture(t, &mockGitHubClient{}, "")

	rec := f.do(http.MethodPost, "/api/v1/loops",
		`{"name":"gophers","repo_id":42,"owner_login":"octocat"}`, nil)

	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp httphandler.LoopResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "gophers", resp.Name)
	assert.Equal(t, int64(42), resp.RepoID)
	assert.NotZero(t, resp.ID)
}

func TestCreateLoop_InvalidBody(t *testing.T) {
	f := newFixture(t, &mockGitHubClient{}, "")

	rec := f.do(http.MethodPost, "/api/v1/loops", `{not json`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateLoop_MissingFields(t *testing.T) {
	f := newFixture(t, &mockGitHubClient{}, "")

	rec := f.do(http.MethodPost, "/api/v1/loops", `{"name":"gophers"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetLoop_NotFound(t *testing.T) {
	f := newFixture(t, &mockGitHubClient{}, "")

	rec := f.do(http.MethodGet, "/api/v1/loops/99", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// --- Rule endpoints ---

func TestAddRule(t *testing.T) {
	f := newFixture(t, &mockGitHubClient{}, "")
	loop := f.seedLoop(t)

	rec := f.do(http.MethodPost, "/api/v1/loops/1/rules",
		`{"criteria_type":"PR_COUNT","threshold":"3"}`, nil)

	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp httphandler.RuleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, loop.ID, resp.LoopID)
	assert.Equal(t, "PR_COUNT", resp.CriteriaType)
	assert.Equal(t, "3", resp.Threshold)
}

func TestAddRule_UnknownCriteria(t *testing.T) {
	f := newFixture(t, &mockGitHubClient{}, "")
	f.seedLoop(t)

	rec := f.do(http.MethodPost, "/api/v1/loops/1/rules",
		`{"criteria_type":"STAR_COUNT","threshold":"3"}`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddRule_InvalidThreshold(t *testing.T) {
	f := newFixture(t, &mockGitHubClient{}, "")
	f.seedLoop(t)

	for _, threshold := range []string{"abc", "-1", "0", "3.5"} {
		rec := f.do(http.MethodPost, "/api/v1/loops/1/rules",
			`{"criteria_type":"PR_COUNT","threshold":"`+threshold+`"}`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "threshold %q must be rejected", threshold)
	}
}

// --- Eligibility endpoint ---

func TestCheckEligibility(t *testing.T) {
	client := &mockGitHubClient{
		coords:  model.RepositoryCoordinates{Owner: "octocat", Name: "hello-world"},
		prCount: 5,
	}
	f := newFixture(t, client, "")
	loop := f.seedLoop(t)
	_, err := f.rules.Add(context.Background(), model.Rule{
		LoopID: loop.ID, CriteriaType: model.CriteriaPRCount, Threshold: "3",
	})
	require.NoError(t, err)

	rec := f.do(http.MethodGet, "/api/v1/loops/1/eligibility/alice", "",
		map[string]string{"Authorization": "Bearer user-token"})

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp httphandler.DecisionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.CanJoin)
	require.Len(t, resp.Results, 1)
	assert.True(t, resp.Results[0].Passed)
	assert.Equal(t, 3, resp.Results[0].Actual)

	// The bearer token from the request, not the fallback, reaches the factory.
	assert.Equal(t, []string{"user-token"}, f.factory.tokens)
}

func TestCheckEligibility_MissingCredential(t *testing.T) {
	f := newFixture(t, &mockGitHubClient{}, "")
	f.seedLoop(t)

	rec := f.do(http.MethodGet, "/api/v1/loops/1/eligibility/alice", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheckEligibility_FallbackToken(t *testing.T) {
	client := &mockGitHubClient{coords: model.RepositoryCoordinates{Owner: "o", Name: "r"}}
	f := newFixture(t, client, "server-token")
	f.seedLoop(t)

	rec := f.do(http.MethodGet, "/api/v1/loops/1/eligibility/alice", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"server-token"}, f.factory.tokens)
}

func TestCheckEligibility_LoopNotFound(t *testing.T) {
	f := newFixture(t, &mockGitHubClient{}, "server-token")

	rec := f.do(http.MethodGet, "/api/v1/loops/99/eligibility/alice", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckEligibility_UnresolvableRepository(t *testing.T) {
	client := &mockGitHubClient{resolveErr: driven.ErrRepositoryUnresolvable}
	f := newFixture(t, client, "server-token")
	f.seedLoop(t)

	rec := f.do(http.MethodGet, "/api/v1/loops/1/eligibility/alice", "", nil)

	// Still a well-formed decision, not a transport error.
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp httphandler.DecisionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.CanJoin)
	assert.True(t, resp.Unresolvable)
	assert.Empty(t, resp.Results)
}

// --- Join endpoint ---

func TestJoin_Eligible(t *testing.T) {
	client := &mockGitHubClient{
		coords:  model.RepositoryCoordinates{Owner: "octocat", Name: "hello-world"},
		prCount: 5,
	}
	f := newFixture(t, client, "")
	loop := f.seedLoop(t)
	_, err := f.rules.Add(context.Background(), model.Rule{
		LoopID: loop.ID, CriteriaType: model.CriteriaPRCount, Threshold: "3",
	})
	require.NoError(t, err)

	rec := f.do(http.MethodPost, "/api/v1/loops/1/members", `{"username":"alice"}`,
		map[string]string{"Authorization": "Bearer user-token"})

	assert.Equal(t, http.StatusCreated, rec.Code)

	exists, err := f.members.Exists(context.Background(), loop.ID, "alice")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestJoin_NotEligible(t *testing.T) {
	client := &mockGitHubClient{
		coords:  model.RepositoryCoordinates{Owner: "octocat", Name: "hello-world"},
		prCount: 1,
	}
	f := newFixture(t, client, "")
	loop := f.seedLoop(t)
	_, err := f.rules.Add(context.Background(), model.Rule{
		LoopID: loop.ID, CriteriaType: model.CriteriaPRCount, Threshold: "3",
	})
	require.NoError(t, err)

	rec := f.do(http.MethodPost, "/api/v1/loops/1/members", `{"username":"alice"}`,
		map[string]string{"Authorization": "Bearer user-token"})

	assert.Equal(t, http.StatusForbidden, rec.Code)

	exists, err := f.members.Exists(context.Background(), loop.ID, "alice")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestJoin_CollaboratorBypass(t *testing.T) {
	client := &mockGitHubClient{
		coords:       model.RepositoryCoordinates{Owner: "octocat", Name: "hello-world"},
		collaborator: true,
	}
	f := newFixture(t, client, "")
	loop := f.seedLoop(t)
	_, err := f.rules.Add(context.Background(), model.Rule{
		LoopID: loop.ID, CriteriaType: model.CriteriaPRCount, Threshold: "100",
	})
	require.NoError(t, err)

	rec := f.do(http.MethodPost, "/api/v1/loops/1/members", `{"username":"alice"}`,
		map[string]string{"Authorization": "Bearer user-token"})

	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp httphandler.DecisionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.IsCollaborator)
	assert.Empty(t, resp.Results)
}

func TestJoin_AlreadyMember(t *testing.T) {
	client := &mockGitHubClient{
		coords:  model.RepositoryCoordinates{Owner: "octocat", Name: "hello-world"},
		prCount: 5,
	}
	f := newFixture(t, client, "")
	loop := f.seedLoop(t)
	require.NoError(t, f.members.Add(context.Background(), model.Membership{LoopID: loop.ID, Username: "alice"}))

	rec := f.do(http.MethodPost, "/api/v1/loops/1/members", `{"username":"alice"}`,
		map[string]string{"Authorization": "Bearer user-token"})

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp httphandler.DecisionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.IsMember)
}

func TestJoin_MissingUsername(t *testing.T) {
	f := newFixture(t, &mockGitHubClient{}, "")
	f.seedLoop(t)

	rec := f.do(http.MethodPost, "/api/v1/loops/1/members", `{}`,
		map[string]string{"Authorization": "Bearer user-token"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- Health ---

func TestHealth(t *testing.T) {
	f := newFixture(t, &mockGitHubClient{}, "")

	rec := f.do(http.MethodGet, "/api/v1/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp httphandler.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}
