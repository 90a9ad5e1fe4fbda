package handler

import (
	"context"
	"errors"
	"net/http"

	"catalog-service/internal/catalog"
	"catalog-service/internal/cleanup"
	"catalog-service/internal/roster"
	"catalog-service/pkg/logger"
	"catalog-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// RosterLister fetches the provider's current agent roster.
type RosterLister interface {
	ListAgents(ctx context.Context) ([]roster.Entry, error)
}

// AgentCounter counts published catalog entries, for the gauge.
type AgentCounter interface {
	Count(ctx context.Context) (int64, error)
}

// AdminAgentHandler serves the operator catalog endpoints. Destructive
// actions are serialized per target through a singleflight group so that
// concurrent operator clicks collapse into one pass.
type AdminAgentHandler struct {
	roster  RosterLister
	manager *catalog.Manager
	agents  AgentReader
	counter AgentCounter
	group   singleflight.Group
}

// NewAdminAgentHandler creates the operator catalog handler.
func NewAdminAgentHandler(rosterClient RosterLister, manager *catalog.Manager, agents AgentReader, counter AgentCounter) *AdminAgentHandler {
	return &AdminAgentHandler{roster: rosterClient, manager: manager, agents: agents, counter: counter}
}

// ListRoster returns the provider's current roster alongside which entries
// are already published.
func (h *AdminAgentHandler) ListRoster(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordCatalogOperation("list_roster")

	ctx := c.Request().Context()

	entries, err := h.roster.ListAgents(ctx)
	if err != nil {
		prometheus.RecordRosterRequest("error")
		var statusErr *roster.StatusError
		if errors.As(err, &statusErr) {
			log.Error("Roster provider rejected listing", zap.Int("status", statusErr.Status))
			return c.JSON(http.StatusBadGateway, echo.Map{"error": "roster provider error"})
		}
		log.Error("Failed to reach roster provider", zap.Error(err))
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "roster provider unreachable"})
	}
	prometheus.RecordRosterRequest("ok")

	published, err := h.agents.List(ctx)
	if err != nil {
		log.Error("Failed to list catalog entries", zap.Error(err))
		prometheus.RecordError("db_error")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load catalog"})
	}

	publishedIDs := make(map[string]bool, len(published))
	for _, p := range published {
		publishedIDs[p.SourceID] = true
	}

	type rosterView struct {
		ID           string                 `json:"id"`
		Name         string                 `json:"name"`
		SystemPrompt string                 `json:"system_prompt,omitempty"`
		Published    bool                   `json:"published"`
		Raw          map[string]interface{} `json:"raw,omitempty"`
	}
	views := make([]rosterView, 0, len(entries))
	for _, e := range entries {
		views = append(views, rosterView{
			ID:           e.ID,
			Name:         e.Name,
			SystemPrompt: e.SystemPrompt,
			Published:    publishedIDs[e.ID],
			Raw:          e.Raw,
		})
	}

	return c.JSON(http.StatusOK, echo.Map{"roster": views})
}

// ListPublished returns every published catalog entry without entitlement
// filtering.
func (h *AdminAgentHandler) ListPublished(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordCatalogOperation("list_published")

	agents, err := h.agents.List(c.Request().Context())
	if err != nil {
		log.Error("Failed to list catalog entries", zap.Error(err))
		prometheus.RecordError("db_error")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load catalog"})
	}

	return c.JSON(http.StatusOK, echo.Map{"agents": agents})
}

// Publish copies a roster entry into the catalog.
func (h *AdminAgentHandler) Publish(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordCatalogOperation("publish")

	var req struct {
		SourceID string `json:"source_id"`
		catalog.PublishForm
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse publish request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.SourceID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "source_id is required"})
	}

	ctx := c.Request().Context()

	entries, err := h.roster.ListAgents(ctx)
	if err != nil {
		prometheus.RecordRosterRequest("error")
		log.Error("Failed to fetch roster for publish", zap.Error(err))
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "roster provider unreachable"})
	}
	prometheus.RecordRosterRequest("ok")

	var entry *roster.Entry
	for i := range entries {
		if entries[i].ID == req.SourceID {
			entry = &entries[i]
			break
		}
	}
	if entry == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "roster entry not found"})
	}

	agent, err := h.manager.Publish(ctx, *entry, req.PublishForm)
	if err != nil {
		if errors.Is(err, catalog.ErrNameRequired) {
			prometheus.RecordError("validation")
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
		}
		log.Error("Failed to publish agent", zap.String("source_id", req.SourceID), zap.Error(err))
		prometheus.RecordError("db_error")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "publish failed"})
	}

	h.refreshGauge(ctx)
	log.Info("Agent published",
		zap.String("agent_id", agent.ID),
		zap.String("name", agent.Name),
		zap.String("tier", string(agent.Tier)))

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "agent published",
		"agent":   agent,
	})
}

// Update edits a published entry in place.
func (h *AdminAgentHandler) Update(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordCatalogOperation("update")

	agentID := c.Param("id")

	var form catalog.UpdateForm
	if err := c.Bind(&form); err != nil {
		log.Error("Failed to parse update request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if err := h.manager.Update(c.Request().Context(), agentID, form); err != nil {
		switch {
		case errors.Is(err, catalog.ErrNameRequired):
			prometheus.RecordError("validation")
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
		case errors.Is(err, catalog.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "agent not found"})
		default:
			log.Error("Failed to update agent", zap.String("agent_id", agentID), zap.Error(err))
			prometheus.RecordError("db_error")
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
		}
	}

	log.Info("Agent updated", zap.String("agent_id", agentID))
	return c.JSON(http.StatusOK, echo.Map{"message": "agent updated"})
}

// Unpublish removes a catalog entry and cascades the reference cleanup.
// Concurrent unpublishes of the same entry share one pass.
func (h *AdminAgentHandler) Unpublish(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordCatalogOperation("unpublish")

	agentID := c.Param("id")
	// The pass may be shared with piggy-backed callers, so it must not die
	// with the first caller's request.
	ctx := context.WithoutCancel(c.Request().Context())

	v, err, shared := h.group.Do("unpublish:"+agentID, func() (interface{}, error) {
		result, err := h.manager.Unpublish(ctx, agentID)
		return result, err
	})
	if err != nil {
		log.Error("Failed to unpublish agent", zap.String("agent_id", agentID), zap.Error(err))
		prometheus.RecordError("db_error")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "unpublish failed"})
	}
	result := v.(cleanup.Result)

	h.refreshGauge(ctx)
	prometheus.RecordCleanupFailures("grants", len(result.Failures))
	log.Info("Agent unpublished",
		zap.String("agent_id", agentID),
		zap.Bool("shared", shared),
		zap.Int("tenants_updated", result.TenantsUpdated),
		zap.Int("users_updated", result.UsersUpdated))

	return c.JSON(http.StatusOK, echo.Map{
		"message": "agent unpublished",
		"cleanup": result,
	})
}

// Sync reconciles the catalog against the provider roster. Concurrent sync
// requests collapse into a single reconciliation pass.
func (h *AdminAgentHandler) Sync(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordCatalogOperation("sync")

	// Concurrent sync requests share one pass; detach it from the first
	// caller's request so a disconnect does not fail the piggy-backers.
	ctx := context.WithoutCancel(c.Request().Context())

	v, err, shared := h.group.Do("sync", func() (interface{}, error) {
		entries, err := h.roster.ListAgents(ctx)
		if err != nil {
			prometheus.RecordRosterRequest("error")
			return nil, err
		}
		prometheus.RecordRosterRequest("ok")

		published, err := h.agents.List(ctx)
		if err != nil {
			return nil, err
		}

		return h.manager.Reconcile(ctx, entries, published)
	})
	if err != nil {
		var statusErr *roster.StatusError
		if errors.As(err, &statusErr) {
			log.Error("Roster provider rejected sync listing", zap.Int("status", statusErr.Status))
			return c.JSON(http.StatusBadGateway, echo.Map{"error": "roster provider error"})
		}
		log.Error("Sync failed", zap.Error(err))
		prometheus.RecordError("db_error")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "sync failed"})
	}
	report := v.(catalog.Report)

	switch {
	case report.Skipped:
		prometheus.RecordSyncOutcome("skipped")
	case report.InSync:
		prometheus.RecordSyncOutcome("in_sync")
	default:
		prometheus.RecordSyncOutcome("removed_orphans")
		prometheus.OrphansRemovedCounter.Add(float64(report.Removed))
	}
	prometheus.RecordCleanupFailures("grants", len(report.CleanupFailures))

	h.refreshGauge(ctx)
	log.Info("Sync completed",
		zap.Bool("shared", shared),
		zap.Bool("skipped", report.Skipped),
		zap.Bool("in_sync", report.InSync),
		zap.Int("removed", report.Removed))

	return c.JSON(http.StatusOK, report)
}

func (h *AdminAgentHandler) refreshGauge(ctx context.Context) {
	if h.counter == nil {
		return
	}
	if count, err := h.counter.Count(ctx); err == nil {
		prometheus.UpdatePublishedAgents(count)
	}
}
