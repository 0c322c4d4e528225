package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"freelancehub/internal/handler"
	"freelancehub/internal/service/auth"
	otelpkg "freelancehub/pkg/otel"
	"freelancehub/pkg/rbac"
)

// ReadinessCheck reports whether one dependency is ready to serve.
type ReadinessCheck func(ctx context.Context) error

type Handlers struct {
	Auth           *handler.AuthHandler
	Project        *handler.ProjectHandler
	Proposal       *handler.ProposalHandler
	Recommendation *handler.RecommendationHandler
	Notification   *handler.NotificationHandler
	Dashboard      *handler.DashboardHandler
	Admin          *handler.AdminHandler
}

type RouterConfig struct {
	Authorizer *auth.Authorizer
	AdminToken string
	// Checks 的 key 会出现在 /readyz 的失败响应里，如 db / redis
	Checks map[string]ReadinessCheck
	Logger *zap.Logger
}

func NewRouter(h Handlers, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(TraceMiddleware())
	r.Use(otelpkg.GinMiddleware())
	r.Use(AccessLogMiddleware(cfg.Logger))

	// Health endpoints (放在最前面)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		for name, check := range cfg.Checks {
			if err := check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": name + "_not_ready", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public
	r.POST("/register", h.Auth.Register)
	r.POST("/login", h.Auth.Login)

	// Admin
	admin := r.Group("/admin")
	admin.Use(AdminTokenMiddleware(cfg.AdminToken))
	{
		admin.POST("/outbox/replay", h.Admin.ReplayOutboxEvent)
		admin.POST("/outbox/replay-failed", h.Admin.ReplayFailedEvents)
	}

	// Protected
	api := r.Group("/api")
	api.Use(AuthMiddleware(cfg.Authorizer))
	{
		api.POST("/projects", RequirePermission(rbac.PermissionCreateProject), h.Project.Create)
		api.GET("/projects/available", RequirePermission(rbac.PermissionBrowseAvailable), h.Project.Available)
		api.GET("/projects/client", RequirePermission(rbac.PermissionListOwnProjects), h.Project.Mine)
		api.GET("/projects/:id", h.Project.Get)
		api.POST("/projects/:id/proposals", RequirePermission(rbac.PermissionSubmitProposal), h.Proposal.Submit)
		api.GET("/projects/:id/proposals", RequirePermission(rbac.PermissionViewProposals), h.Project.Proposals)
		api.PUT("/projects/:id/complete", RequirePermission(rbac.PermissionCompleteProject), h.Project.Complete)
		api.POST("/projects/:id/rating", RequirePermission(rbac.PermissionRateFreelancer), h.Project.Rate)

		api.GET("/proposals/my", RequirePermission(rbac.PermissionListOwnProposals), h.Proposal.Mine)
		api.PUT("/proposals/:id/accept", RequirePermission(rbac.PermissionDecideProposal), h.Proposal.Accept)
		api.PUT("/proposals/:id/reject", RequirePermission(rbac.PermissionDecideProposal), h.Proposal.Reject)
		api.DELETE("/proposals/:id", RequirePermission(rbac.PermissionWithdrawProposal), h.Proposal.Withdraw)

		api.GET("/recommendations/projects", RequirePermission(rbac.PermissionRecommendations), h.Recommendation.Projects)
		api.POST("/recommendations/preferences", RequirePermission(rbac.PermissionSetPreferences), h.Recommendation.Preferences)

		api.GET("/notifications", h.Notification.List)
		api.PUT("/notifications/:id/read", h.Notification.MarkRead)

		api.GET("/dashboard/stats", h.Dashboard.Stats)
		api.GET("/dashboard/activity", h.Dashboard.Activity)
	}

	return r
}
