package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"freelancehub/internal/service/catalog"
)

type DashboardHandler struct {
	catalog *catalog.Service
	logger  *zap.Logger
}

func NewDashboardHandler(catalog *catalog.Service, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{catalog: catalog, logger: logger}
}

// Stats handles GET /api/dashboard/stats
func (h *DashboardHandler) Stats(c *gin.Context) {
	caller, ok := mustIdentity(c)
	if !ok {
		return
	}
	stats, err := h.catalog.Dashboard(c.Request.Context(), caller)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Activity handles GET /api/dashboard/activity?limit=5
func (h *DashboardHandler) Activity(c *gin.Context) {
	caller, ok := mustIdentity(c)
	if !ok {
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	items, err := h.catalog.RecentActivity(c.Request.Context(), caller, limit)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activity": items})
}
