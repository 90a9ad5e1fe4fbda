package handler

import (
	"context"
	"net/http"
	"testing"

	"catalog-service/internal/cleanup"
	"catalog-service/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTenantStore struct {
	tenants map[string]*model.Tenant
	deletes int
}

func newFakeTenantStore(tenants ...*model.Tenant) *fakeTenantStore {
	s := &fakeTenantStore{tenants: map[string]*model.Tenant{}}
	for _, tn := range tenants {
		s.tenants[tn.ID] = tn
	}
	return s
}

func (f *fakeTenantStore) List(ctx context.Context) ([]model.Tenant, error) {
	out := make([]model.Tenant, 0, len(f.tenants))
	for _, tn := range f.tenants {
		out = append(out, *tn)
	}
	return out, nil
}

func (f *fakeTenantStore) Get(ctx context.Context, id string) (*model.Tenant, error) {
	return f.tenants[id], nil
}

func (f *fakeTenantStore) Upsert(ctx context.Context, tenant *model.Tenant) error {
	f.tenants[tenant.ID] = tenant
	return nil
}

func (f *fakeTenantStore) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) (int64, error) {
	if _, ok := f.tenants[id]; !ok {
		return 0, nil
	}
	return 1, nil
}

func (f *fakeTenantStore) Delete(ctx context.Context, id string) error {
	delete(f.tenants, id)
	f.deletes++
	return nil
}

func (f *fakeTenantStore) Count(ctx context.Context) (int64, error) {
	return int64(len(f.tenants)), nil
}

// ctxCleaner fails when the context it receives is already cancelled,
// the way the real coordinator stops between per-entity writes.
type ctxCleaner struct {
	calls int
}

func (f *ctxCleaner) CleanupTenantReference(ctx context.Context, tenantID string) (cleanup.Result, error) {
	if err := ctx.Err(); err != nil {
		return cleanup.Result{}, err
	}
	f.calls++
	return cleanup.Result{UsersUpdated: 2}, nil
}

func TestCreateTenantRequiresName(t *testing.T) {
	store := newFakeTenantStore()
	h := NewAdminTenantHandler(store, &ctxCleaner{})

	c, rec := newContext(t, http.MethodPost, "/api/admin/tenants", `{"name":"  "}`)
	require.NoError(t, h.CreateTenant(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, store.tenants)
}

func TestDeleteTenantCascades(t *testing.T) {
	store := newFakeTenantStore(&model.Tenant{ID: "t1", Name: "Acme"})
	cleaner := &ctxCleaner{}
	h := NewAdminTenantHandler(store, cleaner)

	c, rec := newContext(t, http.MethodDelete, "/api/admin/tenants/t1", "")
	c.SetParamNames("id")
	c.SetParamValues("t1")

	require.NoError(t, h.DeleteTenant(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, store.tenants)
	assert.Equal(t, 1, cleaner.calls)
}

func TestDeleteTenantSurvivesCallerDisconnect(t *testing.T) {
	store := newFakeTenantStore(&model.Tenant{ID: "t1", Name: "Acme"})
	cleaner := &ctxCleaner{}
	h := NewAdminTenantHandler(store, cleaner)

	c, rec := newContext(t, http.MethodDelete, "/api/admin/tenants/t1", "")
	c.SetParamNames("id")
	c.SetParamValues("t1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.SetRequest(c.Request().WithContext(ctx))

	require.NoError(t, h.DeleteTenant(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, cleaner.calls)
}
