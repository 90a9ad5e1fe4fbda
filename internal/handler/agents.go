package handler

import (
	"context"
	"net/http"

	"catalog-service/internal/entitlement"
	"catalog-service/internal/model"
	"catalog-service/pkg/logger"
	"catalog-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AgentReader lists and looks up published catalog entries.
type AgentReader interface {
	List(ctx context.Context) ([]model.PublishedAgent, error)
	Get(ctx context.Context, id string) (*model.PublishedAgent, error)
}

// TenantReader looks up tenants.
type TenantReader interface {
	Get(ctx context.Context, id string) (*model.Tenant, error)
}

// UserReader looks up user profiles.
type UserReader interface {
	Get(ctx context.Context, id string) (*model.UserProfile, error)
}

// AgentHandler serves the user-facing catalog views.
type AgentHandler struct {
	agents  AgentReader
	tenants TenantReader
	users   UserReader
}

// NewAgentHandler creates the user-facing catalog handler.
func NewAgentHandler(agents AgentReader, tenants TenantReader, users UserReader) *AgentHandler {
	return &AgentHandler{agents: agents, tenants: tenants, users: users}
}

// ListAgents returns the catalog entries the authenticated user may access,
// in catalog order.
func (h *AgentHandler) ListAgents(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordCatalogOperation("list")

	userID, _ := c.Get("user_id").(string)
	ctx := c.Request().Context()

	agents, err := h.agents.List(ctx)
	if err != nil {
		log.Error("Failed to list catalog entries", zap.Error(err))
		prometheus.RecordError("db_error")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load catalog"})
	}

	user, tenant, err := h.resolveContext(ctx, userID)
	if err != nil {
		log.Error("Failed to resolve entitlement context", zap.Error(err))
		prometheus.RecordError("db_error")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load catalog"})
	}

	visible := entitlement.Filter(agents, tenant, user)

	log.Info("Catalog listed",
		zap.String("user_id", userID),
		zap.Int("total", len(agents)),
		zap.Int("visible", len(visible)))

	return c.JSON(http.StatusOK, echo.Map{"agents": visible})
}

// GetAgent returns one catalog entry if the user is entitled to it.
func (h *AgentHandler) GetAgent(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordCatalogOperation("get")

	userID, _ := c.Get("user_id").(string)
	agentID := c.Param("id")
	ctx := c.Request().Context()

	agent, err := h.agents.Get(ctx, agentID)
	if err != nil {
		log.Error("Failed to load catalog entry", zap.String("agent_id", agentID), zap.Error(err))
		prometheus.RecordError("db_error")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load agent"})
	}
	if agent == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "agent not found"})
	}

	user, tenant, err := h.resolveContext(ctx, userID)
	if err != nil {
		log.Error("Failed to resolve entitlement context", zap.Error(err))
		prometheus.RecordError("db_error")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load agent"})
	}

	accessible := entitlement.AccessibleIDs([]model.PublishedAgent{*agent}, tenant, user)
	if !accessible[agent.ID] {
		log.Warn("Entitlement denied",
			zap.String("user_id", userID),
			zap.String("agent_id", agentID))
		return c.JSON(http.StatusForbidden, echo.Map{"error": "access denied"})
	}

	return c.JSON(http.StatusOK, agent)
}

// resolveContext loads the user profile and its tenant. A missing profile
// or tenant resolves to nil, which the entitlement rules treat as the
// free-plan default.
func (h *AgentHandler) resolveContext(ctx context.Context, userID string) (*model.UserProfile, *model.Tenant, error) {
	if userID == "" {
		return nil, nil, nil
	}
	user, err := h.users.Get(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil || user.TenantID == nil {
		return user, nil, nil
	}
	tenant, err := h.tenants.Get(ctx, *user.TenantID)
	if err != nil {
		return nil, nil, err
	}
	return user, tenant, nil
}
