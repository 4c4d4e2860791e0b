package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/service"
	"github.com/noah-isme/timetable-api/pkg/ratelimit"
)

type recordingLimiter struct {
	keys []string
	err  error
}

func (l *recordingLimiter) Allow(_ context.Context, key string) (ratelimit.Decision, error) {
	l.keys = append(l.keys, key)
	return ratelimit.Decision{Allowed: true, Limit: 5, Remaining: 4}, l.err
}

func newRateLimitedRouter(limiter ratelimit.Limiter, metrics *service.MetricsService, claims *models.JWTClaims) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if claims != nil {
			c.Set(ContextUserKey, claims)
		}
		c.Next()
	})
	router.Use(RateLimit("generate", limiter, metrics, nil))
	router.POST("/schedules/generate", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func TestRateLimitRejectsWhenBucketEmpty(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(ratelimit.Config{Capacity: 2, Refill: 10 * time.Second}, ratelimit.MemoryOptions{})
	metrics := service.NewMetricsService()
	router := newRateLimitedRouter(limiter, metrics, &models.JWTClaims{UserID: "u-1", Role: models.RoleStudent})

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/schedules/generate", nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/schedules/generate", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "10", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "TOO_MANY_REQUESTS")
	assert.Equal(t, uint64(1), metrics.Snapshot().RateLimitedTotal)
}

func TestRateLimitKeysByUserThenIP(t *testing.T) {
	limiter := &recordingLimiter{}
	router := newRateLimitedRouter(limiter, nil, &models.JWTClaims{UserID: "u-7"})
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/schedules/generate", nil))

	anonymous := newRateLimitedRouter(limiter, nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/schedules/generate", nil)
	req.RemoteAddr = "203.0.113.9:5555"
	anonymous.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, []string{"generate:user:u-7", "generate:ip:203.0.113.9"}, limiter.keys)
}

func TestRateLimitFailsOpen(t *testing.T) {
	limiter := &recordingLimiter{err: errors.New("redis: connection refused")}
	router := newRateLimitedRouter(limiter, service.NewMetricsService(), nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/schedules/generate", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}
