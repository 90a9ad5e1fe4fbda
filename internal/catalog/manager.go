// Package catalog manages the published agent catalog: publishing roster
// entries, editing them, and reconciling the catalog against the external
// roster.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"catalog-service/internal/cleanup"
	"catalog-service/internal/model"
	"catalog-service/internal/roster"
)

// descriptionLimit caps the description derived from a roster prompt.
const descriptionLimit = 200

// Domain errors returned by the Manager.
var (
	ErrNameRequired = errors.New("agent name is required")
	ErrNotFound     = errors.New("catalog entry not found")
)

// AgentStore is the catalog persistence surface.
type AgentStore interface {
	List(ctx context.Context) ([]model.PublishedAgent, error)
	Get(ctx context.Context, id string) (*model.PublishedAgent, error)
	Upsert(ctx context.Context, agent *model.PublishedAgent) error
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) (int64, error)
	Delete(ctx context.Context, id string) error
}

// ReferenceCleaner cascades the removal of a catalog id through every
// grant list that references it.
type ReferenceCleaner interface {
	CleanupAgentReference(ctx context.Context, agentID string) (cleanup.Result, error)
}

// PublishForm carries the operator's publish input. Empty fields fall back
// to values derived from the roster entry.
type PublishForm struct {
	Name        string          `json:"name"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Tier        model.AgentTier `json:"tier"`
	AvatarURL   string          `json:"avatar_url"`
}

// UpdateForm carries in-place edits to a published entry.
type UpdateForm struct {
	Name        string          `json:"name"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Tier        model.AgentTier `json:"tier"`
	AvatarURL   string          `json:"avatar_url"`
}

// Report describes one reconciliation pass. A pass that found nothing to do
// reports InSync; a pass that declined to act reports Skipped with the
// reason. Both are distinct from a pass that removed orphans.
type Report struct {
	Skipped         bool              `json:"skipped"`
	SkipReason      string            `json:"skip_reason,omitempty"`
	InSync          bool              `json:"in_sync"`
	Orphaned        []string          `json:"orphaned,omitempty"`
	Removed         int               `json:"removed"`
	TenantsUpdated  int               `json:"tenants_updated"`
	UsersUpdated    int               `json:"users_updated"`
	CleanupFailures []cleanup.Failure `json:"cleanup_failures,omitempty"`
}

// Manager implements the catalog operations.
type Manager struct {
	agents  AgentStore
	cleaner ReferenceCleaner
	log     *zap.Logger
}

// NewManager creates a catalog manager.
func NewManager(agents AgentStore, cleaner ReferenceCleaner, log *zap.Logger) *Manager {
	return &Manager{agents: agents, cleaner: cleaner, log: log}
}

// Publish copies a roster entry into the catalog under the operator's
// settings. The entry keeps the roster id as its own id. The description
// defaults to the first 200 characters of the roster prompt, and the image
// to the first match in the raw entry's candidate fields.
func (m *Manager) Publish(ctx context.Context, entry roster.Entry, form PublishForm) (*model.PublishedAgent, error) {
	name := strings.TrimSpace(form.Name)
	if name == "" {
		return nil, ErrNameRequired
	}

	tier := form.Tier
	if !tier.Valid() {
		tier = model.TierPublic
	}

	description := strings.TrimSpace(form.Description)
	if description == "" {
		// Truncate on rune boundaries; prompts are routinely non-ASCII and
		// a byte slice could split a multi-byte character.
		description = entry.SystemPrompt
		if runes := []rune(description); len(runes) > descriptionLimit {
			description = string(runes[:descriptionLimit])
		}
	}

	avatarURL := strings.TrimSpace(form.AvatarURL)
	if avatarURL == "" {
		avatarURL = ExtractImage(entry.Raw)
	}

	agent := &model.PublishedAgent{
		ID:          entry.ID,
		SourceID:    entry.ID,
		Name:        name,
		Title:       strings.TrimSpace(form.Title),
		Description: description,
		AvatarURL:   avatarURL,
		Tier:        tier,
	}
	if err := m.agents.Upsert(ctx, agent); err != nil {
		return nil, fmt.Errorf("failed to publish agent: %w", err)
	}

	m.log.Info("Agent published",
		zap.String("agent_id", agent.ID),
		zap.String("name", agent.Name),
		zap.String("tier", string(agent.Tier)))
	return agent, nil
}

// Update overwrites the editable fields of a published entry in place. It
// never touches the external roster. Updating a missing entry fails with
// ErrNotFound.
func (m *Manager) Update(ctx context.Context, id string, form UpdateForm) error {
	name := strings.TrimSpace(form.Name)
	if name == "" {
		return ErrNameRequired
	}
	tier := form.Tier
	if !tier.Valid() {
		tier = model.TierPublic
	}

	rows, err := m.agents.UpdateFields(ctx, id, map[string]interface{}{
		"name":        name,
		"title":       strings.TrimSpace(form.Title),
		"description": strings.TrimSpace(form.Description),
		"tier":        tier,
		"avatar_url":  strings.TrimSpace(form.AvatarURL),
	})
	if err != nil {
		return fmt.Errorf("failed to update agent: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	m.log.Info("Agent updated", zap.String("agent_id", id))
	return nil
}

// Unpublish removes an entry from the catalog and cascades the removal
// through every tenant and user grant list. Unpublishing an id that is
// already gone still runs the cascade, which makes the operation safe to
// retry after a partial failure.
func (m *Manager) Unpublish(ctx context.Context, id string) (cleanup.Result, error) {
	if err := m.agents.Delete(ctx, id); err != nil {
		return cleanup.Result{}, fmt.Errorf("failed to delete agent: %w", err)
	}

	result, err := m.cleaner.CleanupAgentReference(ctx, id)
	if err != nil {
		return result, fmt.Errorf("cleanup after unpublish: %w", err)
	}

	m.log.Info("Agent unpublished",
		zap.String("agent_id", id),
		zap.Int("tenants_updated", result.TenantsUpdated),
		zap.Int("users_updated", result.UsersUpdated))
	return result, nil
}

// Reconcile compares the published catalog against the roster and removes
// entries whose roster source no longer exists, cascading each removal.
// An empty roster alongside a non-empty catalog is treated as a provider
// fault and skipped: orphaning the whole catalog on a transient outage is
// worse than lagging a real mass-removal by one pass. Re-running reconcile
// after a completed pass finds nothing to do.
func (m *Manager) Reconcile(ctx context.Context, rosterEntries []roster.Entry, published []model.PublishedAgent) (Report, error) {
	if len(rosterEntries) == 0 && len(published) > 0 {
		m.log.Warn("Roster returned no entries while catalog is non-empty, skipping reconciliation",
			zap.Int("published", len(published)))
		return Report{Skipped: true, SkipReason: "roster returned zero entries"}, nil
	}

	sourceIDs := make(map[string]bool, len(rosterEntries))
	for _, entry := range rosterEntries {
		sourceIDs[entry.ID] = true
	}

	var report Report
	for i := range published {
		if !sourceIDs[published[i].ID] {
			report.Orphaned = append(report.Orphaned, published[i].ID)
		}
	}

	if len(report.Orphaned) == 0 {
		report.InSync = true
		m.log.Info("Catalog in sync with roster", zap.Int("published", len(published)))
		return report, nil
	}

	for _, id := range report.Orphaned {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := m.agents.Delete(ctx, id); err != nil {
			report.CleanupFailures = append(report.CleanupFailures, cleanup.Failure{
				Collection: "agents",
				DocumentID: id,
				Err:        err,
				Detail:     err.Error(),
			})
			continue
		}
		result, err := m.cleaner.CleanupAgentReference(ctx, id)
		report.TenantsUpdated += result.TenantsUpdated
		report.UsersUpdated += result.UsersUpdated
		report.CleanupFailures = append(report.CleanupFailures, result.Failures...)
		if err != nil {
			return report, err
		}
		report.Removed++
	}

	m.log.Info("Reconciliation removed orphaned agents",
		zap.Int("removed", report.Removed),
		zap.Strings("orphaned", report.Orphaned),
		zap.Int("cleanup_failures", len(report.CleanupFailures)))
	return report, nil
}
