package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"catalog-service/internal/model"
	"catalog-service/prometheus"
)

// Tenants persists tenant documents.
type Tenants struct {
	db *gorm.DB
}

// NewTenants creates the tenants store.
func NewTenants(db *gorm.DB) *Tenants {
	return &Tenants{db: db}
}

// List returns every tenant.
func (s *Tenants) List(ctx context.Context) ([]model.Tenant, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())
	var tenants []model.Tenant
	if err := s.db.WithContext(ctx).Order("name").Find(&tenants).Error; err != nil {
		return nil, err
	}
	return tenants, nil
}

// Get returns the tenant with the given id, or nil when absent.
func (s *Tenants) Get(ctx context.Context, id string) (*model.Tenant, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())
	var tenant model.Tenant
	err := s.db.WithContext(ctx).First(&tenant, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

// Upsert writes the whole tenant document.
func (s *Tenants) Upsert(ctx context.Context, tenant *model.Tenant) error {
	defer prometheus.TrackDBOperation("upsert")(time.Now())
	return s.db.WithContext(ctx).Save(tenant).Error
}

// UpdateFields applies a partial update and reports how many documents
// matched.
func (s *Tenants) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) (int64, error) {
	defer prometheus.TrackDBOperation("update")(time.Now())
	result := s.db.WithContext(ctx).Model(&model.Tenant{}).Where("id = ?", id).Updates(fields)
	return result.RowsAffected, result.Error
}

// Delete removes the tenant document. Cascading the dangling references is
// the cleanup coordinator's job, not the store's.
func (s *Tenants) Delete(ctx context.Context, id string) error {
	defer prometheus.TrackDBOperation("delete")(time.Now())
	return s.db.WithContext(ctx).Delete(&model.Tenant{}, "id = ?", id).Error
}

// RemoveCustomAgent removes agentID from the tenant's custom grant list by
// rewriting only that field. An id not present, or a tenant already gone,
// is a no-op.
func (s *Tenants) RemoveCustomAgent(ctx context.Context, tenantID, agentID string) error {
	defer prometheus.TrackDBOperation("update")(time.Now())

	tenant, err := s.Get(ctx, tenantID)
	if err != nil {
		return err
	}
	if tenant == nil || !tenant.CustomAgentIDs.Contains(agentID) {
		return nil
	}
	return s.db.WithContext(ctx).Model(&model.Tenant{}).Where("id = ?", tenantID).
		Update("custom_agent_ids", tenant.CustomAgentIDs.Without(agentID)).Error
}

// Count returns the number of tenants, for the tenants gauge.
func (s *Tenants) Count(ctx context.Context) (int64, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Tenant{}).Count(&count).Error
	return count, err
}
