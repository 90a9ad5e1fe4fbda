package main

import (
	"catalog-service/internal/catalog"
	"catalog-service/internal/cleanup"
	"catalog-service/internal/handler"
	"catalog-service/internal/middleware"
	"catalog-service/internal/roster"
	"catalog-service/internal/store"
	"catalog-service/internal/usage"
	"catalog-service/pkg/config"
	"catalog-service/pkg/database"
	"catalog-service/pkg/jwtutil"
	"catalog-service/pkg/logger"
	"catalog-service/prometheus"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	logger.InitLogger(cfg)
	log := logger.GetLogger()
	log.Info("Starting catalog service...", zap.String("environment", cfg.Server.Env))

	// Initialize database (includes migrations)
	if err := database.InitDB(cfg, log); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established and migrations completed")

	// Configure JWT validation with the shared signing key
	jwtutil.Initialize(&cfg.JWT)
	middleware.SetOperatorEmails(cfg.Operator.Emails)

	// Usage timestamps bucket in the configured timezone
	loc, err := time.LoadLocation(cfg.Usage.Timezone)
	if err != nil {
		log.Warn("Unknown usage timezone, falling back to UTC",
			zap.String("timezone", cfg.Usage.Timezone))
		loc = time.UTC
	}

	// Stores
	db := database.GetDB()
	agents := store.NewAgents(db)
	tenants := store.NewTenants(db)
	users := store.NewUsers(db)
	usageSessions := store.NewUsageSessions(db)

	// Domain services
	coordinator := cleanup.NewCoordinator(tenants, users, log)
	manager := catalog.NewManager(agents, coordinator, log)
	recorder := usage.NewRecorder(usageSessions, loc, log)
	rosterClient := roster.NewClient(cfg.Roster.BaseURL, cfg.Roster.APIKey, cfg.Roster.Timeout, log)

	// Handlers
	agentHandler := handler.NewAgentHandler(agents, tenants, users)
	profileHandler := handler.NewProfileHandler(users, tenants)
	sessionHandler := handler.NewSessionHandler(rosterClient, agents, tenants, users)
	usageHandler := handler.NewUsageHandler(recorder, agents, cfg.Usage.WindowDays)
	adminAgentHandler := handler.NewAdminAgentHandler(rosterClient, manager, agents, agents)
	adminTenantHandler := handler.NewAdminTenantHandler(tenants, coordinator)
	adminUserHandler := handler.NewAdminUserHandler(users, tenants)

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/health", handler.Health)
	e.GET("/metrics", echo.WrapHandler(prometheus.GetPrometheusHandler()))

	// Authenticated routes
	api := e.Group("/api")
	api.Use(middleware.AuthMiddleware)

	api.GET("/agents", agentHandler.ListAgents)
	api.GET("/agents/:id", agentHandler.GetAgent)
	api.GET("/profile", profileHandler.GetProfile)
	api.PUT("/profile", profileHandler.UpdateProfile)
	api.POST("/sessions", sessionHandler.CreateSession)
	api.POST("/usage/sessions", usageHandler.StartSession)
	api.POST("/usage/sessions/:id/end", usageHandler.EndSession)
	api.GET("/usage/summary", usageHandler.GetSummary)

	// Operator routes
	admin := api.Group("/admin")
	admin.Use(middleware.RequireOperator)

	admin.GET("/roster", adminAgentHandler.ListRoster)
	admin.GET("/agents", adminAgentHandler.ListPublished)
	admin.POST("/agents", adminAgentHandler.Publish)
	admin.PUT("/agents/:id", adminAgentHandler.Update)
	admin.DELETE("/agents/:id", adminAgentHandler.Unpublish)
	admin.POST("/agents/sync", adminAgentHandler.Sync)

	admin.GET("/tenants", adminTenantHandler.ListTenants)
	admin.GET("/tenants/:id", adminTenantHandler.GetTenant)
	admin.POST("/tenants", adminTenantHandler.CreateTenant)
	admin.PUT("/tenants/:id", adminTenantHandler.UpdateTenant)
	admin.PUT("/tenants/:id/agents", adminTenantHandler.GrantAgent)
	admin.DELETE("/tenants/:id", adminTenantHandler.DeleteTenant)

	admin.GET("/users", adminUserHandler.ListUsers)
	admin.PUT("/users/:id/tenant", adminUserHandler.AssignTenant)
	admin.PUT("/users/:id/agents", adminUserHandler.GrantAgent)

	// Start server
	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
