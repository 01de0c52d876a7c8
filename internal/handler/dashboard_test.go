package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ims-api/internal/repository"
)

type stubDashboard struct {
	since time.Time
	day   time.Time
	err   error
}

func (s *stubDashboard) RevenueTrend(_ context.Context, since time.Time) ([]repository.RevenuePoint, error) {
	s.since = since
	return []repository.RevenuePoint{{Date: since.Format(time.DateOnly), Revenue: decimal.NewFromInt(10), Orders: 1}}, s.err
}

func (s *stubDashboard) CategoryPerformance(_ context.Context, since time.Time) ([]repository.CategoryStat, error) {
	s.since = since
	return []repository.CategoryStat{}, s.err
}

func (s *stubDashboard) DailySales(_ context.Context, day time.Time) (*repository.DailySales, error) {
	s.day = day
	return &repository.DailySales{Date: day.Format(time.DateOnly)}, s.err
}

func (s *stubDashboard) InventoryStatus(context.Context) (*repository.InventoryStatus, error) {
	return &repository.InventoryStatus{TotalProducts: 3}, s.err
}

func (s *stubDashboard) EnhancedStats(context.Context, time.Time) (*repository.EnhancedStats, error) {
	return &repository.EnhancedStats{ActiveUsers: 2}, s.err
}

var fixedNow = time.Date(2024, 6, 15, 18, 30, 0, 0, time.UTC)

func newDashboard(store *stubDashboard) *DashboardHandler {
	h := NewDashboardHandler(store)
	h.Now = func() time.Time { return fixedNow }
	return h
}

func TestRevenueTrendWindow(t *testing.T) {
	store := &stubDashboard{}
	h := newDashboard(store)

	rec, env := do(t, h.RevenueTrend, call{method: http.MethodGet, route: "/dashboard/revenue-trend", target: "/dashboard/revenue-trend?days=7"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC), store.since)

	var data trendResp
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, 7, data.Days)
	assert.Equal(t, "2024-06-09", data.Since)
	assert.Len(t, data.Points, 1)
}

func TestRevenueTrendDefaultsTo30Days(t *testing.T) {
	store := &stubDashboard{}
	h := newDashboard(store)

	rec, _ := do(t, h.RevenueTrend, call{method: http.MethodGet, route: "/r", target: "/r"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC), store.since)
}

func TestDashboardInvalidParams(t *testing.T) {
	h := newDashboard(&stubDashboard{})
	for _, target := range []string{"/r?days=0", "/r?days=366", "/r?days=abc"} {
		rec, env := do(t, h.CategoryPerformance, call{method: http.MethodGet, route: "/r", target: target})
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Equal(t, "invalid_param", env.Error.Code, target)
	}

	rec, env := do(t, h.DailySales, call{method: http.MethodGet, route: "/d", target: "/d?date=15-06-2024"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_param", env.Error.Code)
}

func TestDailySalesDate(t *testing.T) {
	store := &stubDashboard{}
	h := newDashboard(store)

	rec, _ := do(t, h.DailySales, call{method: http.MethodGet, route: "/d", target: "/d?date=2024-02-29"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-02-29", store.day.Format(time.DateOnly))

	rec, _ = do(t, h.DailySales, call{method: http.MethodGet, route: "/d", target: "/d"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-06-15", store.day.Format(time.DateOnly))
}

func TestDashboardStorageFailure(t *testing.T) {
	h := newDashboard(&stubDashboard{err: errors.New("timeout")})
	for _, fn := range []func() (int, string){
		func() (int, string) {
			rec, env := do(t, h.InventoryStatus, call{method: http.MethodGet, route: "/i", target: "/i"})
			return rec.Code, env.Error.Code
		},
		func() (int, string) {
			rec, env := do(t, h.EnhancedStats, call{method: http.MethodGet, route: "/e", target: "/e"})
			return rec.Code, env.Error.Code
		},
	} {
		status, code := fn()
		assert.Equal(t, http.StatusInternalServerError, status)
		assert.Equal(t, "db_error", code)
	}
}
