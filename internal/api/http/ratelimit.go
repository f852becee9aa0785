package http

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"

	apperrors "github.com/spec-kit/token-authority/pkg/util"
)

const (
	limiterGCThreshold = 1000
	limiterIdleTTL     = 10 * time.Minute
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles a route per client IP with a token bucket.
type RateLimiter struct {
	perMinute int
	mu        sync.Mutex
	clients   map[string]*clientLimiter
}

// NewRateLimiter allows perMinute requests per client, bursting up to the same
// amount. A non-positive value disables limiting.
func NewRateLimiter(perMinute int) *RateLimiter {
	return &RateLimiter{
		perMinute: perMinute,
		clients:   map[string]*clientLimiter{},
	}
}

// Handler returns the fiber middleware.
func (m *RateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if m.perMinute <= 0 {
			return c.Next()
		}
		if !m.getLimiter(c.IP()).Allow() {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int((time.Minute / time.Duration(m.perMinute)).Seconds())+1))
			return apperrors.NewTooManyRequests("too many requests")
		}
		return c.Next()
	}
}

func (m *RateLimiter) getLimiter(clientIP string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if entry, exists := m.clients[clientIP]; exists {
		entry.lastSeen = now
		return entry.limiter
	}

	entry := &clientLimiter{
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(m.perMinute)), m.perMinute),
		lastSeen: now,
	}
	m.clients[clientIP] = entry
	m.gcLocked(now)
	return entry.limiter
}

func (m *RateLimiter) gcLocked(now time.Time) {
	if len(m.clients) < limiterGCThreshold {
		return
	}
	cutoff := now.Add(-limiterIdleTTL)
	for ip, entry := range m.clients {
		if entry.lastSeen.Before(cutoff) {
			delete(m.clients, ip)
		}
	}
}
