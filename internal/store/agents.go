// Package store implements the persistence surfaces the engine packages
// declare, backed by gorm. Each type wraps one collection; there are no
// cross-collection transactions, matching what the engine assumes.
package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"catalog-service/internal/model"
	"catalog-service/prometheus"
)

// Agents persists published catalog entries.
type Agents struct {
	db *gorm.DB
}

// NewAgents creates the agents store.
func NewAgents(db *gorm.DB) *Agents {
	return &Agents{db: db}
}

// List returns every published catalog entry.
func (s *Agents) List(ctx context.Context) ([]model.PublishedAgent, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())
	var agents []model.PublishedAgent
	if err := s.db.WithContext(ctx).Order("name").Find(&agents).Error; err != nil {
		return nil, err
	}
	return agents, nil
}

// Get returns the entry with the given id, or nil when absent.
func (s *Agents) Get(ctx context.Context, id string) (*model.PublishedAgent, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())
	var agent model.PublishedAgent
	err := s.db.WithContext(ctx).First(&agent, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

// Upsert writes the whole document, creating or replacing it.
func (s *Agents) Upsert(ctx context.Context, agent *model.PublishedAgent) error {
	defer prometheus.TrackDBOperation("upsert")(time.Now())
	return s.db.WithContext(ctx).Save(agent).Error
}

// UpdateFields applies a partial update and reports how many documents
// matched.
func (s *Agents) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) (int64, error) {
	defer prometheus.TrackDBOperation("update")(time.Now())
	result := s.db.WithContext(ctx).Model(&model.PublishedAgent{}).Where("id = ?", id).Updates(fields)
	return result.RowsAffected, result.Error
}

// Delete removes the entry. Deleting an absent id is not an error.
func (s *Agents) Delete(ctx context.Context, id string) error {
	defer prometheus.TrackDBOperation("delete")(time.Now())
	return s.db.WithContext(ctx).Delete(&model.PublishedAgent{}, "id = ?", id).Error
}

// Count returns the number of published entries, for the catalog gauge.
func (s *Agents) Count(ctx context.Context) (int64, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())
	var count int64
	err := s.db.WithContext(ctx).Model(&model.PublishedAgent{}).Count(&count).Error
	return count, err
}
