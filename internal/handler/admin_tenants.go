package handler

import (
	"context"
	"net/http"
	"strings"

	"catalog-service/internal/cleanup"
	"catalog-service/internal/model"
	"catalog-service/pkg/logger"
	"catalog-service/prometheus"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// TenantStore is the tenant persistence surface the admin handler needs.
type TenantStore interface {
	List(ctx context.Context) ([]model.Tenant, error)
	Get(ctx context.Context, id string) (*model.Tenant, error)
	Upsert(ctx context.Context, tenant *model.Tenant) error
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) (int64, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

// TenantCleaner clears dangling tenant references after a delete.
type TenantCleaner interface {
	CleanupTenantReference(ctx context.Context, tenantID string) (cleanup.Result, error)
}

// AdminTenantHandler serves the operator tenant endpoints.
type AdminTenantHandler struct {
	tenants TenantStore
	cleaner TenantCleaner
	group   singleflight.Group
}

// NewAdminTenantHandler creates the operator tenant handler.
func NewAdminTenantHandler(tenants TenantStore, cleaner TenantCleaner) *AdminTenantHandler {
	return &AdminTenantHandler{tenants: tenants, cleaner: cleaner}
}

// ListTenants returns every tenant.
func (h *AdminTenantHandler) ListTenants(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordTenantOperation("list")

	tenants, err := h.tenants.List(c.Request().Context())
	if err != nil {
		log.Error("Failed to list tenants", zap.Error(err))
		prometheus.RecordError("db_error")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load tenants"})
	}

	return c.JSON(http.StatusOK, echo.Map{"tenants": tenants})
}

// GetTenant returns one tenant.
func (h *AdminTenantHandler) GetTenant(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordTenantOperation("get")

	tenant, err := h.tenants.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		log.Error("Failed to load tenant", zap.Error(err))
		prometheus.RecordError("db_error")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load tenant"})
	}
	if tenant == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "tenant not found"})
	}

	return c.JSON(http.StatusOK, tenant)
}

// CreateTenant creates a tenant on the free plan unless a plan is given.
func (h *AdminTenantHandler) CreateTenant(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordTenantOperation("create")

	var req struct {
		Name string                 `json:"name"`
		Plan model.SubscriptionPlan `json:"plan"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse tenant creation request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		prometheus.RecordError("validation")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}
	if !req.Plan.Valid() {
		req.Plan = model.PlanFree
	}

	tenant := &model.Tenant{
		ID:             uuid.New().String(),
		Name:           req.Name,
		Plan:           req.Plan,
		CustomAgentIDs: model.StringList{},
	}
	if err := h.tenants.Upsert(c.Request().Context(), tenant); err != nil {
		log.Error("Failed to create tenant", zap.Error(err))
		prometheus.RecordError("db_error")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "tenant creation failed"})
	}

	h.refreshGauge(c.Request().Context())
	log.Info("Tenant created",
		zap.String("tenant_id", tenant.ID),
		zap.String("name", tenant.Name),
		zap.String("plan", string(tenant.Plan)))

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "tenant created",
		"tenant":  tenant,
	})
}

// UpdateTenant changes a tenant's name or plan.
func (h *AdminTenantHandler) UpdateTenant(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordTenantOperation("update")

	tenantID := c.Param("id")

	var req struct {
		Name string                 `json:"name"`
		Plan model.SubscriptionPlan `json:"plan"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse tenant update request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	fields := map[string]interface{}{}
	if name := strings.TrimSpace(req.Name); name != "" {
		fields["name"] = name
	}
	if req.Plan != "" {
		if !req.Plan.Valid() {
			prometheus.RecordError("validation")
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown plan"})
		}
		fields["plan"] = req.Plan
	}
	if len(fields) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "nothing to update"})
	}

	rows, err := h.tenants.UpdateFields(c.Request().Context(), tenantID, fields)
	if err != nil {
		log.Error("Failed to update tenant", zap.Error(err))
		prometheus.RecordError("db_error")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "tenant update failed"})
	}
	if rows == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "tenant not found"})
	}

	log.Info("Tenant updated", zap.String("tenant_id", tenantID))
	return c.JSON(http.StatusOK, echo.Map{"message": "tenant updated"})
}

// GrantAgent toggles a custom-agent grant on a tenant.
func (h *AdminTenantHandler) GrantAgent(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordTenantOperation("grant_agent")

	tenantID := c.Param("id")

	var req struct {
		AgentID string `json:"agent_id"`
		Granted bool   `json:"granted"`
	}
	if err := c.Bind(&req); err != nil || req.AgentID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "agent_id is required"})
	}

	ctx := c.Request().Context()

	tenant, err := h.tenants.Get(ctx, tenantID)
	if err != nil {
		log.Error("Failed to load tenant", zap.Error(err))
		prometheus.RecordError("db_error")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load tenant"})
	}
	if tenant == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "tenant not found"})
	}

	grants := tenant.CustomAgentIDs
	if req.Granted && !grants.Contains(req.AgentID) {
		grants = append(grants, req.AgentID)
	} else if !req.Granted {
		grants = grants.Without(req.AgentID)
	}

	if _, err := h.tenants.UpdateFields(ctx, tenantID, map[string]interface{}{"custom_agent_ids": grants}); err != nil {
		log.Error("Failed to update tenant grants", zap.Error(err))
		prometheus.RecordError("db_error")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "grant update failed"})
	}

	log.Info("Tenant grant toggled",
		zap.String("tenant_id", tenantID),
		zap.String("agent_id", req.AgentID),
		zap.Bool("granted", req.Granted))

	return c.JSON(http.StatusOK, echo.Map{
		"message":          "grants updated",
		"custom_agent_ids": grants,
	})
}

// DeleteTenant removes a tenant and clears the reference on every profile
// that pointed at it. Concurrent deletes of the same tenant share one pass.
func (h *AdminTenantHandler) DeleteTenant(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordTenantOperation("delete")

	tenantID := c.Param("id")
	// The delete pass may be shared with piggy-backed callers, so it must
	// not die with the first caller's request.
	ctx := context.WithoutCancel(c.Request().Context())

	v, err, shared := h.group.Do("delete:"+tenantID, func() (interface{}, error) {
		if err := h.tenants.Delete(ctx, tenantID); err != nil {
			return nil, err
		}
		return h.cleaner.CleanupTenantReference(ctx, tenantID)
	})
	if err != nil {
		log.Error("Failed to delete tenant", zap.String("tenant_id", tenantID), zap.Error(err))
		prometheus.RecordError("db_error")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "tenant deletion failed"})
	}
	result := v.(cleanup.Result)

	h.refreshGauge(ctx)
	prometheus.RecordCleanupFailures("users", len(result.Failures))
	log.Info("Tenant deleted",
		zap.String("tenant_id", tenantID),
		zap.Bool("shared", shared),
		zap.Int("users_updated", result.UsersUpdated))

	return c.JSON(http.StatusOK, echo.Map{
		"message": "tenant deleted",
		"cleanup": result,
	})
}

func (h *AdminTenantHandler) refreshGauge(ctx context.Context) {
	if count, err := h.tenants.Count(ctx); err == nil {
		prometheus.UpdateTenants(count)
	}
}
