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

// ProfileStore is the user persistence surface the profile handler needs.
type ProfileStore interface {
	Get(ctx context.Context, id string) (*model.UserProfile, error)
	Create(ctx context.Context, user *model.UserProfile) error
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) (int64, error)
}

// ProfileHandler serves the authenticated user's own profile.
type ProfileHandler struct {
	users   ProfileStore
	tenants TenantReader
}

// NewProfileHandler creates the profile handler.
func NewProfileHandler(users ProfileStore, tenants TenantReader) *ProfileHandler {
	return &ProfileHandler{users: users, tenants: tenants}
}

// GetProfile returns the caller's profile, creating it with defaults on
// first sight.
func (h *ProfileHandler) GetProfile(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordUserOperation("get_profile")

	userID, _ := c.Get("user_id").(string)
	email, _ := c.Get("email").(string)
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	ctx := c.Request().Context()

	user, err := h.users.Get(ctx, userID)
	if err != nil {
		log.Error("Failed to load profile", zap.Error(err))
		prometheus.RecordError("db_error")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load profile"})
	}

	if user == nil {
		user = &model.UserProfile{
			ID:               userID,
			Email:            email,
			PersonalAgentIDs: model.StringList{},
		}
		if err := h.users.Create(ctx, user); err != nil {
			log.Error("Failed to provision profile", zap.Error(err))
			prometheus.RecordError("db_error")
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create profile"})
		}
		prometheus.RecordUserOperation("provision_profile")
		log.Info("Profile provisioned", zap.String("user_id", userID), zap.String("email", email))
	}

	var tenant *model.Tenant
	if user.TenantID != nil {
		tenant, err = h.tenants.Get(ctx, *user.TenantID)
		if err != nil {
			log.Error("Failed to load tenant", zap.Error(err))
			prometheus.RecordError("db_error")
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load profile"})
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"profile": user,
		"tenant":  tenant,
	})
}

// UpdateProfile lets the caller change their display name.
func (h *ProfileHandler) UpdateProfile(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordUserOperation("update_profile")

	userID, _ := c.Get("user_id").(string)
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse profile update request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	rows, err := h.users.UpdateFields(c.Request().Context(), userID, map[string]interface{}{"name": req.Name})
	if err != nil {
		log.Error("Failed to update profile", zap.Error(err))
		prometheus.RecordError("db_error")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update profile"})
	}
	if rows == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "profile not found"})
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "profile updated"})
}
