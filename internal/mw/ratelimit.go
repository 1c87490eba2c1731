package mw

import (
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// KeyRateLimiter stores a rate limiter per admission key.
type KeyRateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       *sync.RWMutex
	r        rate.Limit
	b        int
}

// NewKeyRateLimiter creates a new KeyRateLimiter.
func NewKeyRateLimiter(r rate.Limit, b int) *KeyRateLimiter {
	return &KeyRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		mu:       &sync.RWMutex{},
		r:        r,
		b:        b,
	}
}

// add creates a new rate limiter for a key.
func (k *KeyRateLimiter) add(key string) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()

	limiter := rate.NewLimiter(k.r, k.b)
	k.limiters[key] = limiter
	return limiter
}

// GetLimiter returns the rate limiter for a key.
func (k *KeyRateLimiter) GetLimiter(key string) *rate.Limiter {
	k.mu.RLock()
	limiter, exists := k.limiters[key]
	k.mu.RUnlock()

	if !exists {
		return k.add(key)
	}
	return limiter
}

// AdmissionKey derives the rate-limit bucket key for a principal or client
// IP. Buckets are keyed by sha1("rate_limit|" + id).
func AdmissionKey(id string) string {
	sum := sha1.Sum([]byte("rate_limit|" + id))
	return hex.EncodeToString(sum[:])
}

// RateLimiter is the admission gate in front of the booking engine: each
// principal (falling back to the client IP for anonymous requests) gets
// perMinute requests per rolling minute window. Exceeding it yields 429
// before any engine logic runs.
func RateLimiter(perMinute int) gin.HandlerFunc {
	limiter := NewKeyRateLimiter(rate.Limit(float64(perMinute)/60.0), perMinute)
	return func(c *gin.Context) {
		id := c.ClientIP()
		if principal, ok := PrincipalFrom(c); ok {
			id = strconv.FormatInt(principal.UserID, 10)
		}

		if !limiter.GetLimiter(AdmissionKey(id)).Allow() {
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}
		c.Next()
	}
}
