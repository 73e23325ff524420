package middleware

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/studymate/internal/pkg/errcode"
)

func newTestLimiter(now *time.Time) *rateLimiter {
	return &rateLimiter{
		window:        10 * time.Second,
		last:          make(map[string]time.Time),
		sweepInterval: 10 * time.Second,
		now: func() time.Time {
			return *now
		},
	}
}

func TestRateLimiterBlocksWithinWindow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Now()
	limiter := newTestLimiter(&now)

	c1, _ := gin.CreateTestContext(httptest.NewRecorder())
	c1.Request = httptest.NewRequest("POST", "/api/v1/ai/chat", nil)
	limiter.handle(c1)
	require.False(t, c1.IsAborted())

	rec := httptest.NewRecorder()
	c2, _ := gin.CreateTestContext(rec)
	c2.Request = httptest.NewRequest("POST", "/api/v1/ai/chat", nil)
	limiter.handle(c2)
	require.True(t, c2.IsAborted())

	var body struct {
		Code int `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, errcode.ErrTooMany, body.Code)
}

func TestRateLimiterAllowsAfterWindow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Now()
	limiter := newTestLimiter(&now)

	c1, _ := gin.CreateTestContext(httptest.NewRecorder())
	c1.Request = httptest.NewRequest("POST", "/api/v1/ai/chat", nil)
	limiter.handle(c1)

	now = now.Add(11 * time.Second)
	c2, _ := gin.CreateTestContext(httptest.NewRecorder())
	c2.Request = httptest.NewRequest("POST", "/api/v1/ai/chat", nil)
	limiter.handle(c2)
	require.False(t, c2.IsAborted())
}

func TestRateLimiterKeysByUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Now()
	limiter := newTestLimiter(&now)

	for _, uid := range []string{"u1", "u2"} {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("POST", "/api/v1/ai/explain-concept", nil)
		c.Set(ContextUserIDKey, uid)
		limiter.handle(c)
		require.False(t, c.IsAborted(), uid)
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := &rateLimiter{last: make(map[string]time.Time), now: time.Now}
	for i := 0; i < 3; i++ {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("POST", "/api/v1/ai/chat", nil)
		limiter.handle(c)
		require.False(t, c.IsAborted())
	}
}

func TestRateLimiterCleanupRemovesExpiredEntries(t *testing.T) {
	base := time.Now()
	limiter := newTestLimiter(&base)
	limiter.last["expired"] = base.Add(-20 * time.Second)
	limiter.last["active"] = base.Add(-2 * time.Second)

	limiter.mu.Lock()
	limiter.cleanupExpiredLocked(base)
	limiter.mu.Unlock()

	require.NotContains(t, limiter.last, "expired")
	require.Contains(t, limiter.last, "active")
	require.False(t, limiter.lastSweep.IsZero())
}
