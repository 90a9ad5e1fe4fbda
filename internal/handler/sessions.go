package handler

import (
	"context"
	"errors"
	"net/http"

	"catalog-service/internal/entitlement"
	"catalog-service/internal/model"
	"catalog-service/internal/roster"
	"catalog-service/pkg/logger"
	"catalog-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// TokenIssuer requests a session credential from the roster provider.
type TokenIssuer interface {
	CreateSessionToken(ctx context.Context, agentID string) (*roster.SessionToken, error)
}

// SessionHandler brokers live-session tokens, gating them on entitlement.
type SessionHandler struct {
	issuer  TokenIssuer
	agents  AgentReader
	tenants TenantReader
	users   UserReader
}

// NewSessionHandler creates the session token handler.
func NewSessionHandler(issuer TokenIssuer, agents AgentReader, tenants TenantReader, users UserReader) *SessionHandler {
	return &SessionHandler{issuer: issuer, agents: agents, tenants: tenants, users: users}
}

// CreateSession issues a provider session token for an agent the caller is
// entitled to. The token is passed through untouched.
func (h *SessionHandler) CreateSession(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordUsageSession("token_requested")

	userID, _ := c.Get("user_id").(string)
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		AgentID string `json:"agent_id"`
	}
	if err := c.Bind(&req); err != nil || req.AgentID == "" {
		log.Error("Invalid session request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "agent_id is required"})
	}

	ctx := c.Request().Context()

	agent, err := h.agents.Get(ctx, req.AgentID)
	if err != nil {
		log.Error("Failed to load catalog entry", zap.Error(err))
		prometheus.RecordError("db_error")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start session"})
	}
	if agent == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "agent not found"})
	}

	user, tenant, err := h.resolveContext(ctx, userID)
	if err != nil {
		log.Error("Failed to resolve entitlement context", zap.Error(err))
		prometheus.RecordError("db_error")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start session"})
	}

	accessible := entitlement.AccessibleIDs([]model.PublishedAgent{*agent}, tenant, user)
	if !accessible[agent.ID] {
		log.Warn("Session denied by entitlement",
			zap.String("user_id", userID),
			zap.String("agent_id", req.AgentID))
		return c.JSON(http.StatusForbidden, echo.Map{"error": "access denied"})
	}

	token, err := h.issuer.CreateSessionToken(ctx, agent.SourceID)
	if err != nil {
		var statusErr *roster.StatusError
		if errors.As(err, &statusErr) {
			log.Error("Roster provider rejected token request",
				zap.Int("status", statusErr.Status))
			prometheus.RecordRosterRequest("error")
			return c.JSON(http.StatusBadGateway, echo.Map{"error": "session provider error"})
		}
		log.Error("Failed to reach roster provider", zap.Error(err))
		prometheus.RecordRosterRequest("error")
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "session provider unreachable"})
	}
	prometheus.RecordRosterRequest("ok")

	log.Info("Session token issued",
		zap.String("user_id", userID),
		zap.String("agent_id", agent.ID))

	return c.JSON(http.StatusOK, token)
}

func (h *SessionHandler) resolveContext(ctx context.Context, userID string) (*model.UserProfile, *model.Tenant, error) {
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
