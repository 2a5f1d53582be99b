package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apierrors "github.com/untron/untron-v3-engine/internal/api/shared/errors"
	"github.com/untron/untron-v3-engine/internal/api/shared/constants"
	"github.com/untron/untron-v3-engine/internal/logger"
	"github.com/untron/untron-v3-engine/internal/metrics"
)

// RequestID assigns every request an id, reusing a well-formed incoming X-Request-ID.
// The id is echoed in the response header and attached to the request context for logging.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(constants.REQUEST_ID_HEADER)
		if _, err := ulid.ParseStrict(id); err != nil {
			id = ulid.Make().String()
		}

		c.Header(constants.REQUEST_ID_HEADER, id)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// Logger returns a gin middleware for structured logging using zap
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		duration := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(duration.Seconds())

		logger.InfoCtx(c.Request.Context(), "API request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", status),
			zap.Duration("duration", duration),
			zap.String("client_ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
		)
	}
}

// Recovery returns a gin middleware for panic recovery with logging
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.ErrorCtx(c.Request.Context(), fmt.Errorf("panic recovered: %v", err),
					zap.String("path", c.Request.URL.Path),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					apierrors.NewInternalError("Internal server error"))
			}
		}()
		c.Next()
	}
}

// RateLimitConfig configures the per-client token bucket
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// RateLimit throttles requests per client IP. A non-positive rate disables it.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.RequestsPerSecond <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)

	return func(c *gin.Context) {
		ip := c.ClientIP()

		mu.Lock()
		limiter, ok := limiters[ip]
		if !ok {
			limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
			limiters[ip] = limiter
		}
		mu.Unlock()

		if !limiter.Allow() {
			logger.WarnCtx(c.Request.Context(), "Rate limit exceeded",
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", ip),
			)
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				apierrors.NewRateLimitedError("Too many requests"))
			return
		}

		c.Next()
	}
}
