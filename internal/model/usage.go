package model

import (
	"time"
)

// UsageSession is an append-only record of one interactive session with an
// agent. EndedAt and DurationSeconds stay null until the session ends; only
// completed sessions with a positive duration count toward usage reports.
type UsageSession struct {
	ID              string     `json:"id" gorm:"primaryKey;type:varchar(64)"`
	UserID          string     `json:"user_id" gorm:"type:varchar(64);index;not null"`
	AgentID         string     `json:"agent_id" gorm:"type:varchar(64);index;not null"`
	AgentName       string     `json:"agent_name" gorm:"type:varchar(100)"`
	StartedAt       time.Time  `json:"started_at" gorm:"not null"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationSeconds *int64     `json:"duration_seconds,omitempty"`
}

// Completed reports whether the session has a usable duration.
func (s *UsageSession) Completed() bool {
	return s.DurationSeconds != nil && *s.DurationSeconds > 0
}
