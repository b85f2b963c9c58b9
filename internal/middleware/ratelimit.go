package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"tinylink/internal/config"
	redisx "tinylink/pkg/redis"
)

const rateWindow = time.Minute

// RateLimit 按客户端 IP 限流
// 配置了 Redis 时使用固定窗口计数，多实例共享；否则使用进程内令牌桶
func RateLimit(client *redis.Client, limitConfig *config.Limit, logger *zap.Logger) gin.HandlerFunc {
	if limitConfig == nil || !limitConfig.Enabled || limitConfig.Requests <= 0 {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	var allow func(c *gin.Context) bool
	if client != nil {
		allow = redisAllow(client, limitConfig.Requests, logger)
	} else {
		allow = newIPLimiters(limitConfig.Requests, limitConfig.Burst).allow
	}

	return func(c *gin.Context) {
		// 跳过特定路径
		for _, path := range limitConfig.SkipPaths {
			if strings.HasPrefix(c.Request.URL.Path, path) {
				c.Next()
				return
			}
		}

		if !allow(c) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests",
			})
			return
		}

		c.Next()
	}
}

func redisAllow(client *redis.Client, perMinute int64, logger *zap.Logger) func(c *gin.Context) bool {
	return func(c *gin.Context) bool {
		window := time.Now().Unix() / int64(rateWindow.Seconds())
		key := fmt.Sprintf("ratelimit:%s:%d", c.ClientIP(), window)

		n, err := redisx.WindowCount(c.Request.Context(), client, key, rateWindow)
		if err != nil {
			// Redis 故障时放行
			logger.Warn("限流计数失败", zap.String("key", key), zap.Error(err))
			return true
		}
		return n <= perMinute
	}
}

// ipLimiters 每个客户端 IP 一个令牌桶
type ipLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newIPLimiters(perMinute, burst int64) *ipLimiters {
	if burst <= 0 {
		burst = 1
	}
	return &ipLimiters{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Every(rateWindow / time.Duration(perMinute)),
		burst:    int(burst),
	}
}

func (l *ipLimiters) allow(c *gin.Context) bool {
	ip := c.ClientIP()

	l.mu.Lock()
	limiter, ok := l.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[ip] = limiter
	}
	l.mu.Unlock()

	return limiter.Allow()
}
