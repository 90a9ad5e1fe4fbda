// Package entitlement computes which catalog entries a user may access.
// Resolution is a pure function over current state and runs on every catalog
// read, so it must stay side-effect free.
package entitlement

import (
	"catalog-service/internal/model"
)

// AccessibleIDs returns the set of published agent ids the user is entitled
// to: agents whose tier is unlocked by the tenant's plan, plus the tenant's
// custom grants, plus the user's personal grants. A user without a tenant
// resolves against the free plan. The result is a set; input order and
// duplicate grants are irrelevant.
func AccessibleIDs(agents []model.PublishedAgent, tenant *model.Tenant, user *model.UserProfile) map[string]bool {
	plan := model.PlanFree
	if tenant != nil {
		plan = tenant.Plan
	}

	allowed := make(map[model.AgentTier]bool)
	for _, tier := range plan.AllowedTiers() {
		allowed[tier] = true
	}

	ids := make(map[string]bool)
	for _, agent := range agents {
		if allowed[agent.Tier] {
			ids[agent.ID] = true
		}
	}
	if tenant != nil {
		for _, id := range tenant.CustomAgentIDs {
			ids[id] = true
		}
	}
	if user != nil {
		for _, id := range user.PersonalAgentIDs {
			ids[id] = true
		}
	}
	return ids
}

// Filter returns the subset of agents the user may access, preserving the
// catalog's order.
func Filter(agents []model.PublishedAgent, tenant *model.Tenant, user *model.UserProfile) []model.PublishedAgent {
	ids := AccessibleIDs(agents, tenant, user)
	out := make([]model.PublishedAgent, 0, len(agents))
	for _, agent := range agents {
		if ids[agent.ID] {
			out = append(out, agent)
		}
	}
	return out
}
