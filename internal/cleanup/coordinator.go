// Package cleanup restores referential consistency after a deletion. The
// store keeps agent grants as denormalized id lists with no foreign keys, so
// removing a catalog entry or a tenant leaves dangling references behind;
// the coordinator is the sole mechanism that sweeps them out.
package cleanup

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"catalog-service/internal/model"
)

// TenantStore is the tenant persistence surface the coordinator needs.
// RemoveCustomAgent rewrites only the custom agent id field, not the whole
// document.
type TenantStore interface {
	List(ctx context.Context) ([]model.Tenant, error)
	RemoveCustomAgent(ctx context.Context, tenantID, agentID string) error
}

// UserStore is the user persistence surface the coordinator needs.
type UserStore interface {
	List(ctx context.Context) ([]model.UserProfile, error)
	ListByTenant(ctx context.Context, tenantID string) ([]model.UserProfile, error)
	RemovePersonalAgent(ctx context.Context, userID, agentID string) error
	ClearTenant(ctx context.Context, userID string) error
}

// Failure records one entity whose update failed during a sweep.
type Failure struct {
	Collection string `json:"collection"`
	DocumentID string `json:"document_id"`
	Err        error  `json:"-"`
	Detail     string `json:"detail"`
}

// Result reports what one cleanup pass accomplished. A pass that finds
// nothing to do reports zero updates, which is how callers observe
// idempotence.
type Result struct {
	TenantsUpdated int       `json:"tenants_updated"`
	UsersUpdated   int       `json:"users_updated"`
	Failures       []Failure `json:"failures,omitempty"`
}

// Coordinator sweeps dangling references out of tenant and user documents.
// Every step is independently idempotent, so a pass interrupted between
// steps leaves valid state that the next pass finishes.
type Coordinator struct {
	tenants TenantStore
	users   UserStore
	log     *zap.Logger
}

// NewCoordinator creates a cleanup coordinator.
func NewCoordinator(tenants TenantStore, users UserStore, log *zap.Logger) *Coordinator {
	return &Coordinator{tenants: tenants, users: users, log: log}
}

// CleanupAgentReference removes agentID from every tenant custom list and
// every user personal list that contains it. A failing update is recorded
// and the sweep continues; best-effort coverage beats aborting, since the
// store offers no cross-document atomicity anyway. The scan stops early only
// when ctx is cancelled, returning what it accomplished so far.
func (c *Coordinator) CleanupAgentReference(ctx context.Context, agentID string) (Result, error) {
	var result Result

	tenants, err := c.tenants.List(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to scan tenants: %w", err)
	}
	for i := range tenants {
		tenant := &tenants[i]
		if !tenant.CustomAgentIDs.Contains(agentID) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := c.tenants.RemoveCustomAgent(ctx, tenant.ID, agentID); err != nil {
			c.log.Warn("Failed to remove agent reference from tenant",
				zap.String("tenant_id", tenant.ID),
				zap.String("agent_id", agentID),
				zap.Error(err))
			result.Failures = append(result.Failures, Failure{
				Collection: "tenants",
				DocumentID: tenant.ID,
				Err:        err,
				Detail:     err.Error(),
			})
			continue
		}
		result.TenantsUpdated++
	}

	users, err := c.users.List(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to scan users: %w", err)
	}
	for i := range users {
		user := &users[i]
		if !user.PersonalAgentIDs.Contains(agentID) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := c.users.RemovePersonalAgent(ctx, user.ID, agentID); err != nil {
			c.log.Warn("Failed to remove agent reference from user",
				zap.String("user_id", user.ID),
				zap.String("agent_id", agentID),
				zap.Error(err))
			result.Failures = append(result.Failures, Failure{
				Collection: "users",
				DocumentID: user.ID,
				Err:        err,
				Detail:     err.Error(),
			})
			continue
		}
		result.UsersUpdated++
	}

	c.log.Info("Agent reference cleanup finished",
		zap.String("agent_id", agentID),
		zap.Int("tenants_updated", result.TenantsUpdated),
		zap.Int("users_updated", result.UsersUpdated),
		zap.Int("failures", len(result.Failures)))
	return result, nil
}

// CleanupTenantReference clears the tenant reference on every user profile
// pointing at tenantID. Same failure policy as the agent sweep.
func (c *Coordinator) CleanupTenantReference(ctx context.Context, tenantID string) (Result, error) {
	var result Result

	users, err := c.users.ListByTenant(ctx, tenantID)
	if err != nil {
		return result, fmt.Errorf("failed to scan users by tenant: %w", err)
	}
	for i := range users {
		user := &users[i]
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := c.users.ClearTenant(ctx, user.ID); err != nil {
			c.log.Warn("Failed to clear tenant reference on user",
				zap.String("user_id", user.ID),
				zap.String("tenant_id", tenantID),
				zap.Error(err))
			result.Failures = append(result.Failures, Failure{
				Collection: "users",
				DocumentID: user.ID,
				Err:        err,
				Detail:     err.Error(),
			})
			continue
		}
		result.UsersUpdated++
	}

	c.log.Info("Tenant reference cleanup finished",
		zap.String("tenant_id", tenantID),
		zap.Int("users_updated", result.UsersUpdated),
		zap.Int("failures", len(result.Failures)))
	return result, nil
}
