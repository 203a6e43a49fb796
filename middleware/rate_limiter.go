package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter is a fixed-window in-memory limiter. The bucket key is produced
// per request by keyFunc, so limiters can count by source address or by the
// acting user.
type RateLimiter struct {
	mu           sync.Mutex
	requestCount map[string]int
	limit        int
	window       time.Duration
	keyFunc      func(*gin.Context) string
}

// NewRateLimiter builds a limiter keyed by client IP.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return newRateLimiter(limit, window, clientKey)
}

// NewActorRateLimiter builds a limiter keyed by the actor_id carried in the
// request's JSON body. Requests without one fall back to the client key, so
// the decision and escalation endpoints count per approver rather than per
// office NAT.
func NewActorRateLimiter(limit int, window time.Duration) *RateLimiter {
	return newRateLimiter(limit, window, actorKey)
}

func newRateLimiter(limit int, window time.Duration, keyFunc func(*gin.Context) string) *RateLimiter {
	rl := &RateLimiter{
		requestCount: make(map[string]int),
		limit:        limit,
		window:       window,
		keyFunc:      keyFunc,
	}

	// Periodically clean up old entries
	go func() {
		for {
			time.Sleep(window)
			rl.mu.Lock()
			rl.requestCount = make(map[string]int)
			rl.mu.Unlock()
		}
	}()

	return rl
}

func clientKey(c *gin.Context) string {
	ip, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.ClientIP()
	}
	return ip
}

// actorKey reads the actor_id field out of a JSON body, restoring the body so
// the handler's own binding still sees it.
func actorKey(c *gin.Context) string {
	if c.Request.Body == nil {
		return clientKey(c)
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return clientKey(c)
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	var fields struct {
		ActorID string `json:"actor_id"`
	}
	if err := json.Unmarshal(body, &fields); err == nil && fields.ActorID != "" {
		return "actor:" + fields.ActorID
	}
	return clientKey(c)
}

func (rl *RateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rl.keyFunc(c)

		rl.mu.Lock()
		rl.requestCount[key]++
		over := rl.requestCount[key] > rl.limit
		rl.mu.Unlock()

		if over {
			c.JSON(429, gin.H{
				"error":   "Too Many Requests",
				"message": "Rate limit exceeded. Please wait before making more requests.",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// Global rate limiter instances for different endpoints
var (
	GlobalRateLimiter = NewRateLimiter(100, 1*time.Minute)     // 100 requests per minute, per client
	StrictRateLimiter = NewActorRateLimiter(20, 1*time.Minute) // 20 decisions/escalations per minute, per actor
)
