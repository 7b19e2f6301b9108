// Package gateway is the circuit-breaker-guarded client for the persistence
// API. Writes share one breaker; reads retry independently and fall back.
package gateway

import (
	"sync"
	"time"
)

// Breaker is the shared write guard. Closed until failureCount reaches the
// threshold; open for the cooldown from the moment the threshold is crossed;
// the first attempt after the cooldown probes the backend again.
type Breaker struct {
	mu           sync.Mutex
	threshold    int
	cooldown     time.Duration
	failureCount int
	openedAt     time.Time
	now          func() time.Time
}

func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 3
	}
	return &Breaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Allow reports whether an attempt may reach the network. While open and
// inside the cooldown it short-circuits; once the cooldown has elapsed the
// breaker closes again and the next attempt goes through.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failureCount < b.threshold {
		return true
	}
	if b.now().Sub(b.openedAt) < b.cooldown {
		return false
	}
	// Cooldown elapsed: close and let the next attempt probe.
	b.failureCount = 0
	b.openedAt = time.Time{}
	return true
}

// Success resets the failure count.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount = 0
	b.openedAt = time.Time{}
}

// Failure records one retry-exhausted attempt. Crossing the threshold opens
// the breaker from that moment.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount++
	if b.failureCount == b.threshold {
		b.openedAt = b.now()
	}
}

// Open reports whether writes are currently short-circuited.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failureCount >= b.threshold && b.now().Sub(b.openedAt) < b.cooldown
}
