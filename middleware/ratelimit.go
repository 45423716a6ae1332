package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// KeyFunc 从请求中取限流键
type KeyFunc func(c *gin.Context) string

// ClientIPKey 按客户端 IP 限流
func ClientIPKey(c *gin.Context) string {
	return c.ClientIP()
}

// SlidingWindow 滑动窗口计数器，窗口内每个键最多 limit 次
type SlidingWindow struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	hits map[string][]time.Time
}

// NewSlidingWindow 创建滑动窗口计数器
func NewSlidingWindow(limit int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{
		limit:  limit,
		window: window,
		now:    time.Now,
		hits:   make(map[string][]time.Time),
	}
}

// Allow 记录一次访问，超出限额返回 false（超限的访问不计入）
func (w *SlidingWindow) Allow(key string) bool {
	now := w.now()
	w.mu.Lock()
	defer w.mu.Unlock()

	hits := prune(w.hits[key], now.Add(-w.window))
	if len(hits) >= w.limit {
		w.hits[key] = hits
		return false
	}
	w.hits[key] = append(hits, now)
	return true
}

// Sweep 清理所有过期记录，返回剩余键数
func (w *SlidingWindow) Sweep() int {
	cutoff := w.now().Add(-w.window)
	w.mu.Lock()
	defer w.mu.Unlock()

	for key, hits := range w.hits {
		if hits = prune(hits, cutoff); len(hits) == 0 {
			delete(w.hits, key)
		} else {
			w.hits[key] = hits
		}
	}
	return len(w.hits)
}

func prune(hits []time.Time, cutoff time.Time) []time.Time {
	kept := hits[:0]
	for _, t := range hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

// RateLimit 限流中间件，超限返回 429
func RateLimit(w *SlidingWindow, key KeyFunc, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !w.Allow(key(c)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    http.StatusTooManyRequests,
				"message": message,
			})
			return
		}
		c.Next()
	}
}

// RunSweeper 每隔 interval 清理一次过期记录，ctx 取消后返回
func (w *SlidingWindow) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep()
		}
	}
}

// LoginRateLimit 登录接口限流：每 IP 在 window 内最多 maxAttempts 次
// 后台清理协程随 ctx 结束
func LoginRateLimit(ctx context.Context, maxAttempts int, window time.Duration) gin.HandlerFunc {
	w := NewSlidingWindow(maxAttempts, window)
	go w.RunSweeper(ctx, time.Minute)
	return RateLimit(w, ClientIPKey, "登录尝试过于频繁，请稍后再试")
}
