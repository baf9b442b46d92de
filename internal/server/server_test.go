package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/coah80/yoinkgram/internal/config"
	"github.com/coah80/yoinkgram/internal/services"
)

type fakeStats struct{ s services.Stats }

func (f fakeStats) Stats() services.Stats { return f.s }

type fakePending int

func (f fakePending) Len() int { return int(f) }

func testRouter(t *testing.T, secret string) http.Handler {
	t.Helper()
	cfg := &config.Config{ScratchDir: t.TempDir(), StatsSecret: secret}
	return NewRouter(cfg, zap.NewNop(), Deps{
		Registry: fakeStats{services.Stats{TotalUsers: 3, NewUsersToday: 1, TotalDownloads: 9, LastResetDate: "2024-05-01"}},
		Sessions: fakePending(2),
	})
}

func get(h http.Handler, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := get(testRouter(t, "s3cret"), "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(2), body["pendingSessions"])
	assert.Equal(t, config.Version, body["version"])
}

func TestStatsRequiresBearer(t *testing.T) {
	h := testRouter(t, "s3cret")

	assert.Equal(t, http.StatusUnauthorized, get(h, "/api/stats", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(h, "/api/stats", "Bearer wrong").Code)
	assert.Equal(t, http.StatusUnauthorized, get(h, "/api/stats", "s3cret").Code)

	rec := get(h, "/api/stats", "Bearer s3cret")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(3), body["totalUsers"])
	assert.Equal(t, float64(9), body["totalDownloads"])
	assert.Equal(t, "2024-05-01", body["lastResetDate"])
}

func TestStatsDisabledWithoutSecret(t *testing.T) {
	rec := get(testRouter(t, ""), "/api/stats", "Bearer anything")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatsIsRateLimited(t *testing.T) {
	h := testRouter(t, "s3cret")
	var last int
	for i := 0; i <= config.RateLimitMax; i++ {
		last = get(h, "/api/stats", "Bearer s3cret").Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
	assert.Equal(t, http.StatusOK, get(h, "/health", "").Code)
}
