package model

import (
	"time"
)

// AgentTier is the access class of a published agent. Tiers below "custom"
// are unlocked cumulatively by a tenant's subscription plan; "custom" agents
// are only reachable through explicit tenant or user grants.
type AgentTier string

const (
	TierPublic  AgentTier = "public"
	TierBasic   AgentTier = "basic"
	TierPremium AgentTier = "premium"
	TierCustom  AgentTier = "custom"
)

// Valid reports whether the tier is one of the known values.
func (t AgentTier) Valid() bool {
	switch t {
	case TierPublic, TierBasic, TierPremium, TierCustom:
		return true
	}
	return false
}

// PublishedAgent represents an agent profile published into the catalog.
// While published, ID equals the external roster id (SourceID); an entry
// whose source id no longer appears in the roster is an orphan and gets
// removed by reconciliation.
type PublishedAgent struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	SourceID    string    `json:"source_id" gorm:"type:varchar(64);index"`
	Name        string    `json:"name" gorm:"type:varchar(100);not null"`
	Title       string    `json:"title" gorm:"type:varchar(150)"`
	Description string    `json:"description" gorm:"type:text"`
	AvatarURL   string    `json:"avatar_url" gorm:"type:text"`
	Tier        AgentTier `json:"tier" gorm:"type:varchar(20);index;default:'public'"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
