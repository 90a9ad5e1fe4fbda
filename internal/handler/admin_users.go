package handler

import (
	"context"
	"net/http"

	"catalog-service/internal/model"
	"catalog-service/pkg/logger"
	"catalog-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// UserAdminStore is the user persistence surface the admin handler needs.
type UserAdminStore interface {
	List(ctx context.Context) ([]model.UserProfile, error)
	Get(ctx context.Context, id string) (*model.UserProfile, error)
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) (int64, error)
}

// AdminUserHandler serves the operator user-management endpoints.
type AdminUserHandler struct {
	users   UserAdminStore
	tenants TenantReader
}

// NewAdminUserHandler creates the operator user handler.
func NewAdminUserHandler(users UserAdminStore, tenants TenantReader) *AdminUserHandler {
	return &AdminUserHandler{users: users, tenants: tenants}
}

// ListUsers returns every user profile.
func (h *AdminUserHandler) ListUsers(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordUserOperation("list")

	users, err := h.users.List(c.Request().Context())
	if err != nil {
		log.Error("Failed to list users", zap.Error(err))
		prometheus.RecordError("db_error")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load users"})
	}

	return c.JSON(http.StatusOK, echo.Map{"users": users})
}

// AssignTenant sets or clears a user's tenant membership. An empty
// tenant_id clears it.
func (h *AdminUserHandler) AssignTenant(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordUserOperation("assign_tenant")

	userID := c.Param("id")

	var req struct {
		TenantID string `json:"tenant_id"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse tenant assignment request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	ctx := c.Request().Context()

	var tenantRef interface{}
	if req.TenantID != "" {
		tenant, err := h.tenants.Get(ctx, req.TenantID)
		if err != nil {
			log.Error("Failed to load tenant", zap.Error(err))
			prometheus.RecordError("db_error")
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load tenant"})
		}
		if tenant == nil {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "tenant not found"})
		}
		tenantRef = req.TenantID
	} else {
		tenantRef = nil
	}

	rows, err := h.users.UpdateFields(ctx, userID, map[string]interface{}{"tenant_id": tenantRef})
	if err != nil {
		log.Error("Failed to assign tenant", zap.Error(err))
		prometheus.RecordError("db_error")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "assignment failed"})
	}
	if rows == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	log.Info("Tenant assignment updated",
		zap.String("user_id", userID),
		zap.String("tenant_id", req.TenantID))

	return c.JSON(http.StatusOK, echo.Map{"message": "tenant assignment updated"})
}

// GrantAgent toggles a personal agent grant on a user profile.
func (h *AdminUserHandler) GrantAgent(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordUserOperation("grant_agent")

	userID := c.Param("id")

	var req struct {
		AgentID string `json:"agent_id"`
		Granted bool   `json:"granted"`
	}
	if err := c.Bind(&req); err != nil || req.AgentID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "agent_id is required"})
	}

	ctx := c.Request().Context()

	user, err := h.users.Get(ctx, userID)
	if err != nil {
		log.Error("Failed to load user", zap.Error(err))
		prometheus.RecordError("db_error")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load user"})
	}
	if user == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	grants := user.PersonalAgentIDs
	if req.Granted && !grants.Contains(req.AgentID) {
		grants = append(grants, req.AgentID)
	} else if !req.Granted {
		grants = grants.Without(req.AgentID)
	}

	if _, err := h.users.UpdateFields(ctx, userID, map[string]interface{}{"personal_agent_ids": grants}); err != nil {
		log.Error("Failed to update user grants", zap.Error(err))
		prometheus.RecordError("db_error")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "grant update failed"})
	}

	log.Info("Personal grant toggled",
		zap.String("user_id", userID),
		zap.String("agent_id", req.AgentID),
		zap.Bool("granted", req.Granted))

	return c.JSON(http.StatusOK, echo.Map{
		"message":            "grants updated",
		"personal_agent_ids": grants,
	})
}
