package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/civic-report-api/internal/middleware"
	"github.com/noah-isme/civic-report-api/internal/models"
)

// Routes collects the handlers and guards mounted on the router.
type Routes struct {
	APIPrefix         string
	BackendConfigured bool
	APIKey            string
	Identifier        middleware.Identifier
	AuditRecorder     middleware.AuditRecorder
	Logger            *zap.Logger

	Auth      *AuthHandler
	Issues    *IssueHandler
	Dashboard *DashboardHandler
	Geocode   *GeocodeHandler
	Metrics   *MetricsHandler
}

// Register mounts every route. Without a configured backend the backend
// routes still exist but answer 503 BACKEND_UNAVAILABLE.
func (r Routes) Register(engine *gin.Engine) {
	prefix := r.APIPrefix
	if prefix == "" {
		prefix = "/api/v1"
	}

	engine.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusTemporaryRedirect, "/dashboard")
	})
	if r.Metrics != nil {
		engine.GET("/health", r.Metrics.Health)
		engine.GET("/metrics", r.Metrics.Prometheus)
	}

	guards := []gin.HandlerFunc{middleware.RequireBackend(r.BackendConfigured)}
	if r.APIKey != "" {
		guards = append(guards, middleware.APIKey(r.APIKey))
	}
	guards = append(guards, middleware.WithResponseMeta())
	backend := engine.Group("/", guards...)

	backend.POST("/login", r.Auth.Login)
	backend.POST("/register", r.Auth.Register)
	backend.POST("/auth/refresh", r.Auth.Refresh)

	authed := backend.Group("/", middleware.Session(r.Identifier))
	authed.POST("/logout", r.Auth.Logout)
	authed.GET("/auth/me", r.Auth.Me)
	authed.POST("/report", r.Issues.Submit)
	authed.GET("/dashboard", r.Dashboard.Snapshot)
	authed.GET("/dashboard/live", r.Dashboard.Live)

	api := authed.Group(prefix)
	api.GET("/issues", r.Issues.List)
	api.GET("/issues/:id", r.Issues.Get)
	api.GET("/geocode", r.Geocode.Reverse)

	admin := api.Group("", middleware.RequireAdmin())
	admin.PATCH("/issues/:id/status", r.audited(models.AuditActionStatusUpdate, r.Issues.UpdateStatus)...)
	admin.GET("/issues/export", r.audited(models.AuditActionExport, r.Issues.Export)...)
	if r.Metrics != nil {
		admin.GET("/system/metrics", r.Metrics.Summary)
	}
}

func (r Routes) audited(action string, handler gin.HandlerFunc) []gin.HandlerFunc {
	if r.AuditRecorder == nil {
		return []gin.HandlerFunc{handler}
	}
	return []gin.HandlerFunc{middleware.Audit(r.AuditRecorder, action, "issue", r.Logger), handler}
}
