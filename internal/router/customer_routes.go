package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ims-api/internal/handler"
	"github.com/iliyamo/ims-api/internal/middleware"
)

// RegisterCustomers registers the customer endpoints.  They do not require
// a session; when one is presented it is resolved so audit events carry the
// actor.
func RegisterCustomers(api *echo.Group, h *handler.CustomerHandler, sessions middleware.SessionValidator) {
	g := api.Group("/customers", middleware.OptionalSession(sessions))
	g.GET("/:id", h.Get)
	g.POST("/:id/credit", h.UpdateCredit)
}

// RegisterDashboard registers the public analytics endpoints behind the
// response cache.
func RegisterDashboard(api *echo.Group, h *handler.DashboardHandler, cache echo.MiddlewareFunc) {
	g := api.Group("/dashboard", cache)
	g.GET("/revenue-trend", h.RevenueTrend)
	g.GET("/category-performance", h.CategoryPerformance)
	g.GET("/daily-sales", h.DailySales)
	g.GET("/inventory-status", h.InventoryStatus)
	g.GET("/enhanced-stats", h.EnhancedStats)
}
