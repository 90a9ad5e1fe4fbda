package handler

import (
	"errors"
	"net/http"

	"catalog-service/internal/usage"
	"catalog-service/pkg/logger"
	"catalog-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// UsageHandler records usage sessions and serves the aggregated summary.
type UsageHandler struct {
	recorder   *usage.Recorder
	agents     AgentReader
	windowDays int
}

// NewUsageHandler creates the usage handler.
func NewUsageHandler(recorder *usage.Recorder, agents AgentReader, windowDays int) *UsageHandler {
	if windowDays <= 0 {
		windowDays = usage.DefaultWindowDays
	}
	return &UsageHandler{recorder: recorder, agents: agents, windowDays: windowDays}
}

// StartSession opens a usage session for the caller.
func (h *UsageHandler) StartSession(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordUsageSession("started")

	userID, _ := c.Get("user_id").(string)
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		AgentID string `json:"agent_id"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse session start request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	ctx := c.Request().Context()

	// The display name is denormalized onto the session so aggregation
	// survives the catalog entry being unpublished later.
	agentName := ""
	if req.AgentID != "" {
		agent, err := h.agents.Get(ctx, req.AgentID)
		if err != nil {
			log.Error("Failed to load catalog entry", zap.Error(err))
			prometheus.RecordError("db_error")
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start session"})
		}
		if agent != nil {
			agentName = agent.Name
		}
	}

	session, err := h.recorder.Start(ctx, userID, req.AgentID, agentName)
	if err != nil {
		if errors.Is(err, usage.ErrAgentRequired) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "agent_id is required"})
		}
		log.Error("Failed to start usage session", zap.Error(err))
		prometheus.RecordError("db_error")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start session"})
	}

	log.Info("Usage session started",
		zap.String("session_id", session.ID),
		zap.String("user_id", userID),
		zap.String("agent_id", req.AgentID))

	return c.JSON(http.StatusCreated, session)
}

// EndSession closes a usage session and records its duration. Ending an
// already-ended session returns the stored record unchanged.
func (h *UsageHandler) EndSession(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordUsageSession("ended")

	userID, _ := c.Get("user_id").(string)
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	sessionID := c.Param("id")

	session, err := h.recorder.End(c.Request().Context(), userID, sessionID)
	if err != nil {
		switch {
		case errors.Is(err, usage.ErrSessionNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
		case errors.Is(err, usage.ErrNotSessionOwner):
			log.Warn("Cross-user session end attempt",
				zap.String("user_id", userID),
				zap.String("session_id", sessionID))
			return c.JSON(http.StatusForbidden, echo.Map{"error": "access denied"})
		default:
			log.Error("Failed to end usage session", zap.Error(err))
			prometheus.RecordError("db_error")
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to end session"})
		}
	}

	return c.JSON(http.StatusOK, session)
}

// GetSummary returns the caller's aggregated usage for the retained window.
func (h *UsageHandler) GetSummary(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordUserOperation("usage_summary")

	userID, _ := c.Get("user_id").(string)
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	summary, err := h.recorder.Summary(c.Request().Context(), userID, h.windowDays)
	if err != nil {
		log.Error("Failed to aggregate usage", zap.Error(err))
		prometheus.RecordError("db_error")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load usage"})
	}

	return c.JSON(http.StatusOK, summary)
}
