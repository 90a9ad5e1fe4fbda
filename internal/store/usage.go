package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"catalog-service/internal/model"
	"catalog-service/prometheus"
)

// UsageSessions persists the append-only usage records.
type UsageSessions struct {
	db *gorm.DB
}

// NewUsageSessions creates the usage store.
func NewUsageSessions(db *gorm.DB) *UsageSessions {
	return &UsageSessions{db: db}
}

// Append inserts a new session record.
func (s *UsageSessions) Append(ctx context.Context, session *model.UsageSession) error {
	defer prometheus.TrackDBOperation("insert")(time.Now())
	return s.db.WithContext(ctx).Create(session).Error
}

// Get returns the session with the given id, or nil when absent.
func (s *UsageSessions) Get(ctx context.Context, id string) (*model.UsageSession, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())
	var session model.UsageSession
	err := s.db.WithContext(ctx).First(&session, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// UpdateFields applies a partial update (used to close a session) and
// reports how many documents matched.
func (s *UsageSessions) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) (int64, error) {
	defer prometheus.TrackDBOperation("update")(time.Now())
	result := s.db.WithContext(ctx).Model(&model.UsageSession{}).Where("id = ?", id).Updates(fields)
	return result.RowsAffected, result.Error
}

// ListByUser returns every session recorded for the user.
func (s *UsageSessions) ListByUser(ctx context.Context, userID string) ([]model.UsageSession, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())
	var sessions []model.UsageSession
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("started_at desc").Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}
