package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ims-api/internal/config"
	"github.com/iliyamo/ims-api/internal/metrics"
)

func TestBuildRateKeyStrategies(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/auth/login")

	cfg := config.RateLimitConfig{Prefix: "ims:rl", KeyStrategy: "ip_route"}
	assert.Equal(t, "ims:rl:ip:10.0.0.1:route:POST /auth/login", buildRateKey(cfg, c))

	cfg.KeyStrategy = "user"
	assert.Equal(t, "ims:rl:user:anon", buildRateKey(cfg, c))

	c.Set(ContextUserID, "7")
	cfg.KeyStrategy = "IP_USER"
	assert.Equal(t, "ims:rl:ip:10.0.0.1:user:7", buildRateKey(cfg, c))
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 0, retryAfterSeconds(0))
	assert.Equal(t, 1, retryAfterSeconds(1))
	assert.Equal(t, 6, retryAfterSeconds(5001))
}

func TestDisabledMiddlewaresPassThrough(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	calls := 0
	next := func(echo.Context) error { calls++; return nil }
	require.NoError(t, NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil)(next)(c))
	require.NoError(t, NewRedisCache(config.CacheConfig{Enabled: true}, nil)(next)(c))
	assert.Equal(t, 2, calls)
}

func TestCachePayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"success":true}`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, `{"success":true}`, string(body))

	_, _, _, ok = decodePayload(bs[:5])
	assert.False(t, ok)
}

func TestCachedHeadersDropRequestID(t *testing.T) {
	live := http.Header{}
	live.Set(echo.HeaderContentType, "application/json")
	live.Set(echo.HeaderXRequestID, "first-request")
	live.Set("X-Cache", "MISS")
	live.Set(echo.HeaderContentLength, "17")

	stored := storedHeader(live)
	assert.Equal(t, "application/json", stored.Get(echo.HeaderContentType))
	assert.Empty(t, stored.Get(echo.HeaderXRequestID))
	assert.Empty(t, stored.Get("X-Cache"))
	assert.Equal(t, "first-request", live.Get(echo.HeaderXRequestID))

	// entries written before the filter existed still carry the old id
	dst := http.Header{}
	dst.Set(echo.HeaderXRequestID, "second-request")
	replayHeader(dst, live)
	assert.Equal(t, []string{"second-request"}, dst.Values(echo.HeaderXRequestID))
	assert.Empty(t, dst.Get(echo.HeaderContentLength))
	assert.Equal(t, "application/json", dst.Get(echo.HeaderContentType))
}

func TestCacheKeyDependsOnQuery(t *testing.T) {
	e := echo.New()
	cfg := config.CacheConfig{Prefix: "ims:cache", KeyStrategy: "route_query"}
	key := func(target string) string {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
		c.SetPath("/dashboard/revenue-trend")
		return cacheKeyFrom(cfg, c)
	}
	assert.NotEqual(t, key("/dashboard/revenue-trend?days=7"), key("/dashboard/revenue-trend?days=30"))
	assert.Equal(t, key("/dashboard/revenue-trend?days=7"), key("/dashboard/revenue-trend?days=7"))
	assert.Contains(t, key("/x"), "ims:cache:")
}

func TestCaptureWriterLimit(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 4}
	_, _ = cw.Write([]byte("abcdef"))
	assert.Equal(t, "abcd", cw.buf.String())
	assert.Equal(t, "abcdef", rec.Body.String())
	assert.True(t, cw.truncated())
}

func TestMetricsMiddlewareCountsErrors(t *testing.T) {
	reg := metrics.NewRegistry()
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/users", nil), httptest.NewRecorder())
	c.SetPath("/users")

	err := Metrics(reg)(func(echo.Context) error { return ErrForbidden })(c)
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.RequestsTotal.WithLabelValues(http.MethodGet, "/users", "403")))
}
