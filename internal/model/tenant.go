package model

import (
	"time"
)

// SubscriptionPlan determines which agent tiers a tenant's users unlock.
type SubscriptionPlan string

const (
	PlanFree    SubscriptionPlan = "free"
	PlanBasic   SubscriptionPlan = "basic"
	PlanPremium SubscriptionPlan = "premium"
)

// AllowedTiers returns the cumulative set of agent tiers the plan unlocks.
// Plans are strictly ordered: free < basic < premium. Unknown or malformed
// plan values degrade to free rather than failing.
func (p SubscriptionPlan) AllowedTiers() []AgentTier {
	switch p {
	case PlanPremium:
		return []AgentTier{TierPublic, TierBasic, TierPremium}
	case PlanBasic:
		return []AgentTier{TierPublic, TierBasic}
	default:
		return []AgentTier{TierPublic}
	}
}

// Valid reports whether the plan is one of the known values.
func (p SubscriptionPlan) Valid() bool {
	switch p {
	case PlanFree, PlanBasic, PlanPremium:
		return true
	}
	return false
}

// Tenant represents an organizational account. CustomAgentIDs is a
// denormalized list of catalog entry ids granted on top of the plan tiers;
// nothing in the store enforces that those ids still exist, which is why
// catalog removals cascade through the cleanup coordinator.
type Tenant struct {
	ID             string           `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Name           string           `json:"name" gorm:"type:varchar(100);not null"`
	Plan           SubscriptionPlan `json:"plan" gorm:"type:varchar(20);default:'free'"`
	CustomAgentIDs StringList       `json:"custom_agent_ids" gorm:"type:jsonb"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}
