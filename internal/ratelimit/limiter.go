// Package ratelimit implements token-bucket admission control keyed by
// caller identity.
package ratelimit

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"net"
	"sync"
	"time"

	"github.com/securedocflow/securedoc-proxy/internal/config"
)

// Decision is the outcome of one admission attempt.
type Decision struct {
	Allowed bool
	// RetryAfter is the suggested wait before the next attempt, set only
	// when the request was rejected. Never below one second.
	RetryAfter time.Duration
}

// Limiter owns the per-identity bucket table. It is shared across all
// requests and safe for concurrent use.
type Limiter struct {
	enabled bool
	rate    float64 // tokens per second
	burst   float64 // bucket capacity

	// addrSalt is generated once per process and never persisted, so
	// network addresses cannot be correlated across restarts.
	addrSalt string

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// New creates a limiter from configuration. A non-numeric rate or burst is a
// configuration error and fails closed; a non-positive value disables the
// limiter entirely.
func New(cfg config.RateLimitConfig) (*Limiter, error) {
	if !cfg.Enabled {
		return &Limiter{enabled: false}, nil
	}

	rate, burst, err := cfg.RateLimitValues()
	if err != nil {
		return nil, fmt.Errorf("rate limiter misconfigured: %w", err)
	}

	if rate <= 0 || burst <= 0 {
		return &Limiter{enabled: false}, nil
	}

	var salt [16]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return nil, fmt.Errorf("generate address salt: %w", err)
	}

	l := &Limiter{
		enabled:  true,
		rate:     rate,
		burst:    burst,
		addrSalt: hex.EncodeToString(salt[:]),
		buckets:  make(map[string]*bucket),
	}
	go l.cleanup()
	return l, nil
}

// Admit consumes one token from the identity's bucket if available.
func (l *Limiter) Admit(identity string) Decision {
	if !l.enabled {
		return Decision{Allowed: true}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[identity]
	if !ok {
		b = &bucket{tokens: l.burst, lastRefill: now}
		l.buckets[identity] = b
	}

	// Continuous refill, capped at capacity.
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens = math.Min(l.burst, b.tokens+elapsed*l.rate)
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return Decision{Allowed: true}
	}

	retry := math.Ceil((1 - b.tokens) / l.rate)
	if retry < 1 {
		retry = 1
	}
	return Decision{RetryAfter: time.Duration(retry) * time.Second}
}

// Identity selects the rate-limit key for a caller: the credential when one
// is present, otherwise a salted truncated hash of the network address. The
// raw address is never stored.
func (l *Limiter) Identity(apiKey, remoteAddr string) string {
	if apiKey != "" {
		return "key:" + apiKey
	}

	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	sum := sha256.Sum256([]byte(l.addrSalt + host))
	return "addr:" + hex.EncodeToString(sum[:])[:16]
}

// Enabled reports whether admission control is active.
func (l *Limiter) Enabled() bool { return l.enabled }

// cleanup periodically drops buckets idle long enough to be full again,
// bounding the table under identity churn.
func (l *Limiter) cleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		l.mu.Lock()
		cutoff := time.Now().Add(-time.Hour)
		for id, b := range l.buckets {
			if b.lastRefill.Before(cutoff) {
				delete(l.buckets, id)
			}
		}
		l.mu.Unlock()
	}
}
