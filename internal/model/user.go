package model

import (
	"time"
)

// UserProfile represents an individual end user. Profiles are created lazily
// on the first authenticated request with defaults (no tenant, no personal
// grants). TenantID is a plain denormalized reference; deleting a tenant
// must clear it on every referencing profile.
type UserProfile struct {
	ID               string     `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Email            string     `json:"email" gorm:"type:varchar(100);uniqueIndex"`
	Name             string     `json:"name" gorm:"type:varchar(100)"`
	TenantID         *string    `json:"tenant_id,omitempty" gorm:"type:varchar(64);index"`
	PersonalAgentIDs StringList `json:"personal_agent_ids" gorm:"type:jsonb"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}
