package inventory

import (
	"net/http"

	"rewardvault/pkg/middleware"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	reporter *Reporter
}

func NewHandler(r *Reporter) *Handler {
	return &Handler{reporter: r}
}

func RegisterRoutes(r *gin.Engine, h *Handler) {
	h.Register(r)
}

func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/v1/inventory", middleware.Actor())
	g.GET("/stats", h.stats)
	g.GET("/analytics", h.analytics)
}

func (h *Handler) stats(c *gin.Context) {
	st, err := h.reporter.GetInventoryStats(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) analytics(c *gin.Context) {
	a, err := h.reporter.GetDistributionAnalytics(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, a)
}
