package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"catalog-service/internal/model"
	"catalog-service/internal/roster"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAgentReader struct {
	agents []model.PublishedAgent
}

func (f *fakeAgentReader) List(ctx context.Context) ([]model.PublishedAgent, error) {
	return f.agents, nil
}

func (f *fakeAgentReader) Get(ctx context.Context, id string) (*model.PublishedAgent, error) {
	for i := range f.agents {
		if f.agents[i].ID == id {
			return &f.agents[i], nil
		}
	}
	return nil, nil
}

type fakeTenantReader struct {
	tenants map[string]*model.Tenant
}

func (f *fakeTenantReader) Get(ctx context.Context, id string) (*model.Tenant, error) {
	return f.tenants[id], nil
}

type fakeUserStore struct {
	users   map[string]*model.UserProfile
	created int
}

func (f *fakeUserStore) Get(ctx context.Context, id string) (*model.UserProfile, error) {
	return f.users[id], nil
}

func (f *fakeUserStore) Create(ctx context.Context, user *model.UserProfile) error {
	if f.users == nil {
		f.users = map[string]*model.UserProfile{}
	}
	f.users[user.ID] = user
	f.created++
	return nil
}

func (f *fakeUserStore) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) (int64, error) {
	if _, ok := f.users[id]; !ok {
		return 0, nil
	}
	return 1, nil
}

type fakeIssuer struct {
	calls int
}

func (f *fakeIssuer) CreateSessionToken(ctx context.Context, agentID string) (*roster.SessionToken, error) {
	f.calls++
	return &roster.SessionToken{Token: "tok-" + agentID}, nil
}

func newContext(t *testing.T, method, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestCreateSessionDeniedWithoutEntitlement(t *testing.T) {
	agents := &fakeAgentReader{agents: []model.PublishedAgent{
		{ID: "premium-1", SourceID: "premium-1", Name: "Premium", Tier: model.TierPremium},
	}}
	users := &fakeUserStore{users: map[string]*model.UserProfile{
		"u1": {ID: "u1", Email: "u1@example.com"},
	}}
	issuer := &fakeIssuer{}
	h := NewSessionHandler(issuer, agents, &fakeTenantReader{}, users)

	c, rec := newContext(t, http.MethodPost, "/api/sessions", `{"agent_id":"premium-1"}`)
	c.Set("user_id", "u1")

	require.NoError(t, h.CreateSession(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, issuer.calls)
}

func TestCreateSessionIssuesTokenForEntitledUser(t *testing.T) {
	agents := &fakeAgentReader{agents: []model.PublishedAgent{
		{ID: "pub-1", SourceID: "pub-1", Name: "Public", Tier: model.TierPublic},
	}}
	users := &fakeUserStore{users: map[string]*model.UserProfile{
		"u1": {ID: "u1", Email: "u1@example.com"},
	}}
	issuer := &fakeIssuer{}
	h := NewSessionHandler(issuer, agents, &fakeTenantReader{}, users)

	c, rec := newContext(t, http.MethodPost, "/api/sessions", `{"agent_id":"pub-1"}`)
	c.Set("user_id", "u1")

	require.NoError(t, h.CreateSession(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, issuer.calls)

	var token roster.SessionToken
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &token))
	assert.Equal(t, "tok-pub-1", token.Token)
}

func TestCreateSessionUnknownAgent(t *testing.T) {
	h := NewSessionHandler(&fakeIssuer{}, &fakeAgentReader{}, &fakeTenantReader{}, &fakeUserStore{})

	c, rec := newContext(t, http.MethodPost, "/api/sessions", `{"agent_id":"ghost"}`)
	c.Set("user_id", "u1")

	require.NoError(t, h.CreateSession(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetProfileProvisionsOnFirstSight(t *testing.T) {
	users := &fakeUserStore{users: map[string]*model.UserProfile{}}
	h := NewProfileHandler(users, &fakeTenantReader{})

	c, rec := newContext(t, http.MethodGet, "/api/profile", "")
	c.Set("user_id", "new-user")
	c.Set("email", "new@example.com")

	require.NoError(t, h.GetProfile(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, users.created)

	stored := users.users["new-user"]
	require.NotNil(t, stored)
	assert.Equal(t, "new@example.com", stored.Email)
	assert.Nil(t, stored.TenantID)
	assert.Empty(t, stored.PersonalAgentIDs)

	// Second request reuses the stored profile
	c2, rec2 := newContext(t, http.MethodGet, "/api/profile", "")
	c2.Set("user_id", "new-user")
	c2.Set("email", "new@example.com")
	require.NoError(t, h.GetProfile(c2))
	assert.Equal(t, http.StatusOK, rec2.Code)
	assert.Equal(t, 1, users.created)
}

func TestListAgentsFiltersByEntitlement(t *testing.T) {
	agents := &fakeAgentReader{agents: []model.PublishedAgent{
		{ID: "a", Tier: model.TierPublic},
		{ID: "b", Tier: model.TierBasic},
		{ID: "c", Tier: model.TierPremium},
	}}
	tenantID := "t1"
	users := &fakeUserStore{users: map[string]*model.UserProfile{
		"u1": {ID: "u1", TenantID: &tenantID},
	}}
	tenants := &fakeTenantReader{tenants: map[string]*model.Tenant{
		"t1": {ID: "t1", Plan: model.PlanBasic},
	}}
	h := NewAgentHandler(agents, tenants, users)

	c, rec := newContext(t, http.MethodGet, "/api/agents", "")
	c.Set("user_id", "u1")

	require.NoError(t, h.ListAgents(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Agents []model.PublishedAgent `json:"agents"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Agents, 2)
	assert.Equal(t, "a", resp.Agents[0].ID)
	assert.Equal(t, "b", resp.Agents[1].ID)
}
