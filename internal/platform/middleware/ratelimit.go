package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/janisto/account-lifecycle/internal/platform/auth"
	applog "github.com/janisto/account-lifecycle/internal/platform/logging"
	"github.com/janisto/account-lifecycle/internal/platform/metrics"
)

// RateLimiterConfig configures a per-user token bucket.
type RateLimiterConfig struct {
	Rate            rate.Limit
	Burst           int
	CleanupInterval time.Duration
}

// PerMinute builds a config allowing perMinute requests per user per minute.
func PerMinute(perMinute float64, burst int) RateLimiterConfig {
	return RateLimiterConfig{
		Rate:            rate.Limit(perMinute / 60.0),
		Burst:           burst,
		CleanupInterval: 5 * time.Minute,
	}
}

type userLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter keeps one token bucket per authenticated user. It guards the
// password-checking operations against guessing.
type RateLimiter struct {
	config  RateLimiterConfig
	metrics metrics.Recorder

	mu       sync.Mutex
	limiters map[string]*userLimiter

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRateLimiter creates a limiter and starts its background cleanup.
// Call Stop to release it.
func NewRateLimiter(cfg RateLimiterConfig, rec metrics.Recorder) *RateLimiter {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	rl := &RateLimiter{
		config:   cfg,
		metrics:  rec,
		limiters: make(map[string]*userLimiter),
		stopCh:   make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Allow reports whether userID may proceed now.
func (rl *RateLimiter) Allow(userID string) bool {
	return rl.limiterFor(userID).Allow()
}

// Len returns the number of tracked users.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// Middleware returns Huma middleware limiting the operations whose IDs are
// listed. It runs after authentication; unauthenticated requests pass through
// and are rejected by the operation itself.
func (rl *RateLimiter) Middleware(api huma.API, operationIDs ...string) func(huma.Context, func(huma.Context)) {
	limited := make(map[string]struct{}, len(operationIDs))
	for _, id := range operationIDs {
		limited[id] = struct{}{}
	}

	return func(ctx huma.Context, next func(huma.Context)) {
		opID := ctx.Operation().OperationID
		if _, ok := limited[opID]; !ok {
			next(ctx)
			return
		}
		user := auth.UserFromContext(ctx.Context())
		if user == nil {
			next(ctx)
			return
		}

		if !rl.Allow(user.UID) {
			applog.LogWarn(ctx.Context(), "rate limit exceeded",
				zap.String("userId", user.UID),
				zap.String("operation", opID),
			)
			rl.metrics.RecordRateLimited(opID)
			ctx.SetHeader("Retry-After", strconv.Itoa(retryAfterSeconds(rl.config.Rate)))
			_ = huma.WriteErr(api, ctx, http.StatusTooManyRequests, "too many requests, try again later")
			return
		}
		next(ctx)
	}
}

func (rl *RateLimiter) limiterFor(userID string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if ul, ok := rl.limiters[userID]; ok {
		ul.lastAccess = time.Now()
		return ul.limiter
	}
	ul := &userLimiter{
		limiter:    rate.NewLimiter(rl.config.Rate, rl.config.Burst),
		lastAccess: time.Now(),
	}
	rl.limiters[userID] = ul
	return ul.limiter
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup drops users idle for more than two cleanup intervals.
func (rl *RateLimiter) cleanup(now time.Time) {
	ttl := rl.config.CleanupInterval * 2

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for id, ul := range rl.limiters {
		if now.Sub(ul.lastAccess) > ttl {
			delete(rl.limiters, id)
		}
	}
}

// retryAfterSeconds estimates the time until one token is refilled.
func retryAfterSeconds(r rate.Limit) int {
	if r <= 0 {
		return 60
	}
	return max(int(math.Ceil(1.0/float64(r))), 1)
}
