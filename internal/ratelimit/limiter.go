// Package ratelimit provides per-key token bucket rate limiting for the
// schelling MCP tools.
package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// Limiter implements a per-key token bucket. Each key gets its own bucket
// with the configured rate and burst. It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64 // tokens per second
	burst   int     // bucket capacity, also the initial token count
	nowFunc func() time.Time
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// NewLimiter creates a limiter refilling rate tokens per second up to burst.
func NewLimiter(rate float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   burst,
		nowFunc: time.Now,
	}
}

// Allow takes one token from key's bucket.
func (l *Limiter) Allow(key string) bool {
	return l.AllowN(key, 1)
}

// AllowN takes n tokens from key's bucket, or none if fewer are available.
// A request larger than the burst can never succeed.
func (l *Limiter) AllowN(key string, n int) bool {
	if n <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.burst), lastCheck: now}
		l.buckets[key] = b
	}

	if elapsed := now.Sub(b.lastCheck).Seconds(); elapsed > 0 {
		b.tokens = min(b.tokens+l.rate*elapsed, float64(l.burst))
		b.lastCheck = now
	}

	if b.tokens < float64(n) {
		return false
	}
	b.tokens -= float64(n)
	return true
}

// Burst returns the bucket capacity.
func (l *Limiter) Burst() int {
	return l.burst
}

// ToolLimiters maps tool names to their limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters creates the default per-tool limiters, one per MCP tool.
// schelling_step is charged per step requested, the other tools per call.
func NewToolLimiters() ToolLimiters {
	return ToolLimiters{
		"schelling_create":  NewLimiter(20.0/60.0, 5), // 20/minute, burst 5
		"schelling_step":    NewLimiter(50.0, 1000),   // 50 steps/s, burst 1000 steps
		"schelling_cell":    NewLimiter(20.0, 100),    // 1200/minute, burst 100
		"schelling_grid":    NewLimiter(2.0, 20),      // 120/minute, burst 20
		"schelling_run":     NewLimiter(10.0/60.0, 3), // 10/minute, burst 3
		"schelling_destroy": NewLimiter(1.0, 10),      // 60/minute, burst 10
		"schelling_history": NewLimiter(2.0, 20),      // 120/minute, burst 20
	}
}

// CheckLimit charges one token to toolName.
func CheckLimit(limiters ToolLimiters, toolName string) error {
	return CheckLimitN(limiters, toolName, 1)
}

// CheckLimitN charges n tokens to toolName. Tools without a limiter are
// always allowed.
func CheckLimitN(limiters ToolLimiters, toolName string, n int) error {
	limiter, ok := limiters[toolName]
	if !ok {
		return nil
	}

	if n > limiter.Burst() {
		return fmt.Errorf("%s request of %d exceeds the per-call limit of %d", toolName, n, limiter.Burst())
	}
	if !limiter.AllowN(toolName, n) {
		return fmt.Errorf("rate limit exceeded for %s, please try again shortly", toolName)
	}

	return nil
}
