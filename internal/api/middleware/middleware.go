package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/rail-service/deposit_monitor/pkg/auth"
	"github.com/rail-service/deposit_monitor/pkg/logger"
)

const (
	MaxRequestSize = 1 << 20 // 1MB
)

// RequestID adds a unique request ID to each request
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// RequestSizeLimit limits the size of incoming requests
func RequestSizeLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxRequestSize)
		c.Next()
	}
}

// Logger logs HTTP requests with structured logging
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		requestLogger := log.ForRequest(c.GetString("request_id"), c.Request.Method, path)
		c.Set("logger", requestLogger)

		c.Next()

		requestLogger.Infow("HTTP Request",
			"status_code", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
			"response_size", c.Writer.Size(),
		)
	}
}

// Recovery handles panics and returns 500 errors
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				requestID := c.GetString("request_id")
				log.ForRequest(requestID, c.Request.Method, c.Request.URL.Path).Errorw("Panic recovered",
					"error", err,
					"stack", string(debug.Stack()),
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"code":       "INTERNAL_ERROR",
					"message":    "Internal server error",
					"request_id": requestID,
				})
			}
		}()
		c.Next()
	}
}

// RateLimiter stores rate limiters for different IPs. Limiters whose bucket
// has refilled completely behave like new ones and are pruned periodically.
type RateLimiter struct {
	limiters  map[string]*rate.Limiter
	mu        sync.RWMutex
	rate      int
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

// limiterSweepInterval bounds how often idle limiters are pruned
const limiterSweepInterval = time.Minute

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	return &RateLimiter{
		limiters:  make(map[string]*rate.Limiter),
		rate:      requestsPerMinute,
		burst:     requestsPerMinute,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// GetLimiter returns the rate limiter for a specific IP
func (rl *RateLimiter) GetLimiter(ip string) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.limiters[ip]
	rl.mu.RUnlock()
	if exists {
		return limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if limiter, exists = rl.limiters[ip]; !exists {
		if now := rl.now(); now.Sub(rl.lastSweep) >= limiterSweepInterval {
			rl.sweepLocked(now)
		}
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rl.rate)), rl.burst)
		rl.limiters[ip] = limiter
	}
	return limiter
}

// Len returns the number of tracked IPs
func (rl *RateLimiter) Len() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.limiters)
}

func (rl *RateLimiter) sweepLocked(now time.Time) {
	for ip, limiter := range rl.limiters {
		if limiter.TokensAt(now) >= float64(rl.burst) {
			delete(rl.limiters, ip)
		}
	}
	rl.lastSweep = now
}

// RateLimit applies rate limiting per IP
func RateLimit(requestsPerMinute int) gin.HandlerFunc {
	limiter := NewRateLimiter(requestsPerMinute)

	return func(c *gin.Context) {
		if !limiter.GetLimiter(c.ClientIP()).Allow() {
			abort(c, http.StatusTooManyRequests, "RATE_LIMITED", "Rate limit exceeded")
			return
		}
		c.Next()
	}
}

// SecurityHeaders adds security headers to responses
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Content-Security-Policy", "default-src 'none'")
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}

// AdminAuth requires a bearer token signed with secret whose role is admin
// or super_admin
func AdminAuth(secret, issuer string, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authorization header required")
			return
		}

		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || strings.TrimSpace(tokenString) == "" {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid authorization format")
			return
		}

		claims, err := auth.ValidateToken(strings.TrimSpace(tokenString), secret, issuer)
		if err != nil {
			if !errors.Is(err, auth.ErrInvalidToken) {
				log.Warn("Token validation failed", "error", err, "request_id", c.GetString("request_id"))
			}
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
			return
		}

		if !claims.IsAdmin() {
			log.Warn("Non-admin token rejected",
				"subject", claims.Subject,
				"role", claims.Role,
				"request_id", c.GetString("request_id"))
			abort(c, http.StatusForbidden, "FORBIDDEN", "Admin access required")
			return
		}

		c.Set("admin_subject", claims.Subject)
		c.Set("admin_role", claims.Role)
		c.Next()
	}
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"code":       code,
		"message":    message,
		"request_id": c.GetString("request_id"),
	})
}
