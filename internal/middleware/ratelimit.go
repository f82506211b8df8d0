package middleware

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/superrpg-core/internal/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	// RequestsPerSecond 每秒请求数，<=0 表示不限流
	RequestsPerSecond float64
	// Burst 突发容量
	Burst int
	// PerIP 是否按 IP 限流
	PerIP bool
	// SkipPaths 跳过的路径
	SkipPaths []string
}

// RateLimiter 令牌桶限流器
type RateLimiter struct {
	cfg    RateLimitConfig
	global *rate.Limiter
	log    *zap.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRateLimiter 创建限流器
func NewRateLimiter(cfg RateLimitConfig, log *zap.Logger) *RateLimiter {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &RateLimiter{
		cfg:      cfg,
		global:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		log:      log,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow 检查是否允许请求，key 为空时使用全局限流器
func (rl *RateLimiter) Allow(key string) bool {
	if rl.cfg.RequestsPerSecond <= 0 {
		return true
	}
	if key == "" {
		return rl.global.Allow()
	}
	return rl.limiter(key).Allow()
}

// Len 当前按键限流器数量
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	l, ok := rl.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Limit(rl.cfg.RequestsPerSecond), rl.cfg.Burst)
		rl.limiters[key] = l
	}
	return l
}

// RateLimit 限流中间件
func RateLimit(rl *RateLimiter) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(rl.cfg.SkipPaths))
	for _, p := range rl.cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if _, ok := skip[path]; ok {
			c.Next()
			return
		}

		var key string
		if rl.cfg.PerIP {
			key = "ip:" + c.ClientIP()
		}
		if !rl.Allow(key) {
			rl.log.Warn("请求过于频繁", zap.String("key", key), zap.String("path", path))
			c.Header("Retry-After", strconv.Itoa(1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				errors.NewErrorResponse(errors.New(errors.ErrRateLimited), c.GetHeader("X-Request-ID")))
			return
		}
		c.Next()
	}
}
