package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"carillon/internal/alert"
	"carillon/internal/api/handlers"
	"carillon/internal/api/middleware"
	"carillon/internal/auth"
	"carillon/internal/holiday"
	"carillon/internal/notify"
	"carillon/internal/schedule"
	"carillon/internal/store"
)

// RouterConfig holds dependencies for the API router
type RouterConfig struct {
	Store     *store.Store
	Scheduler *schedule.Scheduler
	Resolver  *holiday.Resolver
	Alerts    *alert.Controller
	Sessions  *auth.SessionManager
	Notifier  *notify.Notifier
	MP3Dir    string
	Logger    *slog.Logger
}

// NewRouter creates and configures the Gin router
func NewRouter(config RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(config.Logger))
	router.Use(middleware.SessionAuth(config.Sessions))
	router.Use(middleware.Logging(config.Logger))

	// Health check (no auth)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authHandler := handlers.NewAuthHandler(config.Store, config.Sessions, config.Logger)
	statusHandler := handlers.NewStatusHandler(config.Scheduler, config.Alerts)
	planningHandler := handlers.NewPlanningHandler(config.Scheduler, config.Logger)
	alertHandler := handlers.NewAlertHandler(config.Alerts, config.Store, config.Notifier, config.Logger)
	calendarHandler := handlers.NewCalendarHandler(config.Resolver, config.Store, config.Scheduler)
	configHandler := handlers.NewConfigHandler(config.Store, config.Scheduler, config.Resolver, config.MP3Dir, config.Logger)
	usersHandler := handlers.NewUsersHandler(config.Store, config.Sessions, config.Logger)

	perm := func(name string) gin.HandlerFunc {
		return middleware.RequirePermission(config.Store, name)
	}

	api := router.Group("/api")
	{
		api.POST("/login", authHandler.Login)
		api.POST("/logout", authHandler.Logout)

		api.GET("/status", middleware.RequireAuth(), statusHandler.GetStatus)
		api.GET("/calendar_view", middleware.RequireAuth(), calendarHandler.CalendarView)
		api.GET("/daily_schedule", middleware.RequireAuth(), calendarHandler.DailySchedule)

		api.POST("/planning/activate", perm("control:planning"), planningHandler.Activate)
		api.POST("/planning/deactivate", perm("control:planning"), planningHandler.Deactivate)

		api.POST("/alert/trigger/:filename", perm("control:alert_trigger_any"), alertHandler.Trigger)
		api.POST("/alert/stop", perm("control:alert_stop"), alertHandler.Stop)
		api.POST("/alert/end", perm("control:alert_stop"), alertHandler.End)

		cfg := api.Group("/config")
		{
			cfg.POST("/reload", perm("control:config_reload"), configHandler.Reload)
			cfg.GET("/settings", middleware.RequireAuth(), configHandler.Settings)

			cfg.GET("/general_and_alerts", middleware.RequireAuth(), configHandler.GetGeneral)
			cfg.POST("/general_and_alerts", perm("page:general_alertes"), configHandler.SetGeneral)

			cfg.GET("/weekly_schedule", middleware.RequireAuth(), configHandler.GetWeekly)
			cfg.POST("/weekly_schedule", perm("page:planning_hebdomadaire"), configHandler.SetWeekly)

			cfg.GET("/day_types", middleware.RequireAuth(), configHandler.ListDayTypes)
			cfg.POST("/day_types", perm("page:journees_types"), configHandler.CreateDayType)
			cfg.PUT("/day_types/:name", perm("page:journees_types"), configHandler.UpdateDayType)
			cfg.DELETE("/day_types/:name", perm("page:journees_types"), configHandler.DeleteDayType)

			cfg.GET("/exceptions", middleware.RequireAuth(), configHandler.ListExceptions)
			cfg.PUT("/exceptions/:date", perm("page:exceptions"), configHandler.SetException)
			cfg.DELETE("/exceptions/:date", perm("page:exceptions"), configHandler.DeleteException)

			cfg.GET("/sounds", middleware.RequireAuth(), configHandler.ListSounds)
		}

		api.GET("/users", perm("page:utilisateurs"), usersHandler.List)
		api.POST("/users/:username", perm("page:utilisateurs"), usersHandler.Create)
		api.PUT("/users/:username", perm("page:utilisateurs"), usersHandler.Update)
		api.DELETE("/users/:username", perm("page:utilisateurs"), usersHandler.Delete)
		api.DELETE("/users/:username/custom_permissions", perm("page:utilisateurs"), usersHandler.DeleteCustomPermissions)

		api.GET("/roles_config", perm("page:utilisateurs"), usersHandler.GetRoles)
		api.PUT("/roles_config", perm("page:utilisateurs"), usersHandler.SetRoles)
	}

	return router
}
