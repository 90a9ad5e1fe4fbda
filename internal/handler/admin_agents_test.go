package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"catalog-service/internal/catalog"
	"catalog-service/internal/cleanup"
	"catalog-service/internal/model"
	"catalog-service/internal/roster"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCatalogStore struct {
	agents map[string]model.PublishedAgent
}

func newFakeCatalogStore() *fakeCatalogStore {
	return &fakeCatalogStore{agents: map[string]model.PublishedAgent{}}
}

func (f *fakeCatalogStore) List(ctx context.Context) ([]model.PublishedAgent, error) {
	out := make([]model.PublishedAgent, 0, len(f.agents))
	for _, a := range f.agents {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeCatalogStore) Get(ctx context.Context, id string) (*model.PublishedAgent, error) {
	if a, ok := f.agents[id]; ok {
		return &a, nil
	}
	return nil, nil
}

func (f *fakeCatalogStore) Upsert(ctx context.Context, agent *model.PublishedAgent) error {
	f.agents[agent.ID] = *agent
	return nil
}

func (f *fakeCatalogStore) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) (int64, error) {
	if _, ok := f.agents[id]; !ok {
		return 0, nil
	}
	return 1, nil
}

func (f *fakeCatalogStore) Delete(ctx context.Context, id string) error {
	delete(f.agents, id)
	return nil
}

func (f *fakeCatalogStore) Count(ctx context.Context) (int64, error) {
	return int64(len(f.agents)), nil
}

type fakeRoster struct {
	entries []roster.Entry
}

func (f *fakeRoster) ListAgents(ctx context.Context) ([]roster.Entry, error) {
	return f.entries, nil
}

type noopCleaner struct{}

func (noopCleaner) CleanupAgentReference(ctx context.Context, agentID string) (cleanup.Result, error) {
	return cleanup.Result{}, nil
}

func newAdminAgentHandler(store *fakeCatalogStore, rosterClient *fakeRoster) *AdminAgentHandler {
	manager := catalog.NewManager(store, noopCleaner{}, zap.NewNop())
	return NewAdminAgentHandler(rosterClient, manager, store, store)
}

func TestPublishRequiresName(t *testing.T) {
	store := newFakeCatalogStore()
	h := newAdminAgentHandler(store, &fakeRoster{entries: []roster.Entry{{ID: "r1"}}})

	c, rec := newContext(t, http.MethodPost, "/api/admin/agents", `{"source_id":"r1","name":"   "}`)
	require.NoError(t, h.Publish(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, store.agents)
}

func TestPublishUnknownRosterEntry(t *testing.T) {
	h := newAdminAgentHandler(newFakeCatalogStore(), &fakeRoster{})

	c, rec := newContext(t, http.MethodPost, "/api/admin/agents", `{"source_id":"ghost","name":"Ghost"}`)
	require.NoError(t, h.Publish(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPublishCopiesRosterEntry(t *testing.T) {
	store := newFakeCatalogStore()
	h := newAdminAgentHandler(store, &fakeRoster{entries: []roster.Entry{
		{ID: "r1", Name: "Mentor", SystemPrompt: "You are a mentor."},
	}})

	c, rec := newContext(t, http.MethodPost, "/api/admin/agents", `{"source_id":"r1","name":"Mentor","tier":"basic"}`)
	require.NoError(t, h.Publish(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	agent, ok := store.agents["r1"]
	require.True(t, ok)
	assert.Equal(t, "Mentor", agent.Name)
	assert.Equal(t, model.TierBasic, agent.Tier)
	assert.Equal(t, "You are a mentor.", agent.Description)
}

func TestSyncRemovesOrphans(t *testing.T) {
	store := newFakeCatalogStore()
	store.agents["keep"] = model.PublishedAgent{ID: "keep", SourceID: "keep"}
	store.agents["gone"] = model.PublishedAgent{ID: "gone", SourceID: "gone"}
	h := newAdminAgentHandler(store, &fakeRoster{entries: []roster.Entry{{ID: "keep"}}})

	c, rec := newContext(t, http.MethodPost, "/api/admin/agents/sync", "")
	require.NoError(t, h.Sync(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var report catalog.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.False(t, report.Skipped)
	assert.Equal(t, 1, report.Removed)
	_, kept := store.agents["keep"]
	assert.True(t, kept)
	_, gone := store.agents["gone"]
	assert.False(t, gone)
}

func TestSyncSurvivesCallerDisconnect(t *testing.T) {
	store := newFakeCatalogStore()
	store.agents["gone"] = model.PublishedAgent{ID: "gone", SourceID: "gone"}
	h := newAdminAgentHandler(store, &fakeRoster{entries: []roster.Entry{{ID: "keep"}}})

	// The caller disconnects before the shared pass runs; the pass must
	// still complete for any piggy-backed requests.
	c, rec := newContext(t, http.MethodPost, "/api/admin/agents/sync", "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.SetRequest(c.Request().WithContext(ctx))

	require.NoError(t, h.Sync(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	_, gone := store.agents["gone"]
	assert.False(t, gone)
}

func TestSyncSkipsOnEmptyRoster(t *testing.T) {
	store := newFakeCatalogStore()
	store.agents["keep"] = model.PublishedAgent{ID: "keep", SourceID: "keep"}
	h := newAdminAgentHandler(store, &fakeRoster{})

	c, rec := newContext(t, http.MethodPost, "/api/admin/agents/sync", "")
	require.NoError(t, h.Sync(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var report catalog.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.True(t, report.Skipped)
	assert.Len(t, store.agents, 1)
}
