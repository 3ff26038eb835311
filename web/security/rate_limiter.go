// Package security 令牌桶限速，按来源键(IP 或 chat ID)各自计数
package security

import (
	"net/http"
	"sync"
	"time"

	"github.com/mayugoro/xray/logger"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	PerSecond float64
	Burst     int
	// 超过该时长未活动的键会被清理
	IdleTTL time.Duration
}

var DefaultRateLimitConfig = RateLimitConfig{
	PerSecond: 5,
	Burst:     10,
	IdleTTL:   time.Hour,
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter 每个键一个令牌桶
type RateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*clientLimiter
	whitelist map[string]bool
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	now       func() time.Time
}

func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.PerSecond <= 0 {
		cfg.PerSecond = DefaultRateLimitConfig.PerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultRateLimitConfig.Burst
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultRateLimitConfig.IdleTTL
	}
	return &RateLimiter{
		limiters:  make(map[string]*clientLimiter),
		whitelist: make(map[string]bool),
		limit:     rate.Limit(cfg.PerSecond),
		burst:     cfg.Burst,
		idleTTL:   cfg.IdleTTL,
		now:       time.Now,
	}
}

// Allow 检查该键是否还有令牌
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.whitelist[key] {
		return true
	}
	now := rl.now()
	client, ok := rl.limiters[key]
	if !ok {
		client = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[key] = client
	}
	client.lastSeen = now
	return client.limiter.AllowN(now, 1)
}

func (rl *RateLimiter) AddWhitelist(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.whitelist[key] = true
}

// Cleanup 删除闲置的键，返回删除数量
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	threshold := rl.now().Add(-rl.idleTTL)
	removed := 0
	for key, client := range rl.limiters {
		if client.lastSeen.Before(threshold) {
			delete(rl.limiters, key)
			removed++
		}
	}
	return removed
}

func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// Middleware 按客户端 IP 限速，超限返回 429
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !rl.Allow(ip) {
			logger.Warningf("rate limit: rejected request from %s to %s", ip, c.Request.URL.Path)
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}
		c.Next()
	}
}
