package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ims-api/internal/apierror"
	"github.com/iliyamo/ims-api/internal/repository"
)

// DashboardStore is implemented by repository.DashboardRepo.
type DashboardStore interface {
	RevenueTrend(ctx context.Context, since time.Time) ([]repository.RevenuePoint, error)
	CategoryPerformance(ctx context.Context, since time.Time) ([]repository.CategoryStat, error)
	DailySales(ctx context.Context, day time.Time) (*repository.DailySales, error)
	InventoryStatus(ctx context.Context) (*repository.InventoryStatus, error)
	EnhancedStats(ctx context.Context, now time.Time) (*repository.EnhancedStats, error)
}

// DashboardHandler serves the read-only analytics endpoints.
type DashboardHandler struct {
	Stats DashboardStore
	Now   func() time.Time
}

func NewDashboardHandler(stats DashboardStore) *DashboardHandler {
	if stats == nil {
		panic("nil store passed to NewDashboardHandler")
	}
	return &DashboardHandler{Stats: stats, Now: time.Now}
}

const (
	defaultTrendDays = 30
	maxTrendDays     = 365
)

func invalidParam(name string) error {
	return apierror.Validation("invalid_param", "invalid "+name)
}

// parseDays reads ?days=N, 1..365, default 30.
func parseDays(c echo.Context) (int, error) {
	raw := strings.TrimSpace(c.QueryParam("days"))
	if raw == "" {
		return defaultTrendDays, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxTrendDays {
		return 0, invalidParam("days")
	}
	return n, nil
}

// windowStart is midnight UTC of the first day of an n-day window ending today.
func windowStart(now time.Time, days int) time.Time {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return today.AddDate(0, 0, -(days - 1))
}

type trendResp struct {
	Days   int                       `json:"days"`
	Since  string                    `json:"since"`
	Points []repository.RevenuePoint `json:"points"`
}

// RevenueTrend: GET /dashboard/revenue-trend?days=N
func (h *DashboardHandler) RevenueTrend(c echo.Context) error {
	days, err := parseDays(c)
	if err != nil {
		return err
	}
	since := windowStart(h.Now(), days)
	ctx, cancel := withTimeout(c)
	defer cancel()

	points, err := h.Stats.RevenueTrend(ctx, since)
	if err != nil {
		return apierror.Storage("db_error", err)
	}
	return respond(c, http.StatusOK, trendResp{Days: days, Since: since.Format(time.DateOnly), Points: points})
}

type categoryResp struct {
	Days       int                       `json:"days"`
	Since      string                    `json:"since"`
	Categories []repository.CategoryStat `json:"categories"`
}

// CategoryPerformance: GET /dashboard/category-performance?days=N
func (h *DashboardHandler) CategoryPerformance(c echo.Context) error {
	days, err := parseDays(c)
	if err != nil {
		return err
	}
	since := windowStart(h.Now(), days)
	ctx, cancel := withTimeout(c)
	defer cancel()

	cats, err := h.Stats.CategoryPerformance(ctx, since)
	if err != nil {
		return apierror.Storage("db_error", err)
	}
	return respond(c, http.StatusOK, categoryResp{Days: days, Since: since.Format(time.DateOnly), Categories: cats})
}

// DailySales: GET /dashboard/daily-sales?date=YYYY-MM-DD (default today)
func (h *DashboardHandler) DailySales(c echo.Context) error {
	day := h.Now().UTC()
	if raw := strings.TrimSpace(c.QueryParam("date")); raw != "" {
		d, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return invalidParam("date")
		}
		day = d
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	out, err := h.Stats.DailySales(ctx, day)
	if err != nil {
		return apierror.Storage("db_error", err)
	}
	return respond(c, http.StatusOK, out)
}

// InventoryStatus: GET /dashboard/inventory-status
func (h *DashboardHandler) InventoryStatus(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	out, err := h.Stats.InventoryStatus(ctx)
	if err != nil {
		return apierror.Storage("db_error", err)
	}
	return respond(c, http.StatusOK, out)
}

// EnhancedStats: GET /dashboard/enhanced-stats
func (h *DashboardHandler) EnhancedStats(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	out, err := h.Stats.EnhancedStats(ctx, h.Now())
	if err != nil {
		return apierror.Storage("db_error", err)
	}
	return respond(c, http.StatusOK, out)
}
