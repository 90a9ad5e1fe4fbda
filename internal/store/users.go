package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"catalog-service/internal/model"
	"catalog-service/prometheus"
)

// Users persists user profile documents.
type Users struct {
	db *gorm.DB
}

// NewUsers creates the users store.
func NewUsers(db *gorm.DB) *Users {
	return &Users{db: db}
}

// List returns every user profile.
func (s *Users) List(ctx context.Context) ([]model.UserProfile, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())
	var users []model.UserProfile
	if err := s.db.WithContext(ctx).Order("email").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// ListByTenant returns the profiles referencing the given tenant.
func (s *Users) ListByTenant(ctx context.Context, tenantID string) ([]model.UserProfile, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())
	var users []model.UserProfile
	if err := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// Get returns the profile with the given id, or nil when absent.
func (s *Users) Get(ctx context.Context, id string) (*model.UserProfile, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())
	var user model.UserProfile
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Create inserts a new profile document.
func (s *Users) Create(ctx context.Context, user *model.UserProfile) error {
	defer prometheus.TrackDBOperation("insert")(time.Now())
	return s.db.WithContext(ctx).Create(user).Error
}

// UpdateFields applies a partial update and reports how many documents
// matched.
func (s *Users) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) (int64, error) {
	defer prometheus.TrackDBOperation("update")(time.Now())
	result := s.db.WithContext(ctx).Model(&model.UserProfile{}).Where("id = ?", id).Updates(fields)
	return result.RowsAffected, result.Error
}

// RemovePersonalAgent removes agentID from the user's personal grant list
// by rewriting only that field.
func (s *Users) RemovePersonalAgent(ctx context.Context, userID, agentID string) error {
	defer prometheus.TrackDBOperation("update")(time.Now())

	user, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil || !user.PersonalAgentIDs.Contains(agentID) {
		return nil
	}
	return s.db.WithContext(ctx).Model(&model.UserProfile{}).Where("id = ?", userID).
		Update("personal_agent_ids", user.PersonalAgentIDs.Without(agentID)).Error
}

// ClearTenant nulls the user's tenant reference.
func (s *Users) ClearTenant(ctx context.Context, userID string) error {
	defer prometheus.TrackDBOperation("update")(time.Now())
	return s.db.WithContext(ctx).Model(&model.UserProfile{}).Where("id = ?", userID).
		Update("tenant_id", nil).Error
}
