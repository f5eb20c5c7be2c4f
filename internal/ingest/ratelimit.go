package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"time"
)

// CounterStore is the external keyed-counter backend (Redis in production).
// Increments across concurrent requests need not be perfectly linearizable;
// a small over-admission under bursts is acceptable.
type CounterStore interface {
	Counts(ctx context.Context, keys []string) ([]int64, error)
	IncrementAll(ctx context.Context, keys []string, ttls []time.Duration) error
}

type RateLimits struct {
	PerMinute int
	PerHour   int
	PerDay    int
}

func DefaultRateLimits() RateLimits {
	return RateLimits{PerMinute: 10, PerHour: 30, PerDay: 100}
}

// HashIP derives the client fingerprint. Raw addresses never appear in
// counter keys.
func HashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:])
}

type Limiter struct {
	store  CounterStore
	limits RateLimits
	now    func() time.Time
}

func NewLimiter(store CounterStore, limits RateLimits) *Limiter {
	if limits.PerMinute <= 0 || limits.PerHour <= 0 || limits.PerDay <= 0 {
		limits = DefaultRateLimits()
	}
	return &Limiter{store: store, limits: limits, now: time.Now}
}

// windowKeys buckets the fingerprint into the current minute, hour and day.
func (l *Limiter) windowKeys(fingerprint string) []string {
	now := l.now().UTC()
	return []string{
		fingerprint + ":m:" + now.Format("2006-01-02T15:04"),
		fingerprint + ":h:" + now.Format("2006-01-02T15"),
		fingerprint + ":d:" + now.Format("2006-01-02"),
	}
}

// windowTTLs expire each bucket one period past its window, which replaces a
// separate pruning job.
func windowTTLs() []time.Duration {
	return []time.Duration{2 * time.Minute, 2 * time.Hour, 48 * time.Hour}
}

// Allow reports whether the client is under all three ceilings. If the
// counter store is unreachable the limiter fails open.
func (l *Limiter) Allow(ctx context.Context, fingerprint string) bool {
	if l.store == nil {
		return true
	}

	counts, err := l.store.Counts(ctx, l.windowKeys(fingerprint))
	if err != nil {
		log.Printf("rate limit check failed, allowing request: %v", err)
		return true
	}
	if len(counts) != 3 {
		return true
	}

	ceilings := []int64{int64(l.limits.PerMinute), int64(l.limits.PerHour), int64(l.limits.PerDay)}
	for i, count := range counts {
		if count >= ceilings[i] {
			return false
		}
	}
	return true
}

// Record increments all three window counters for an accepted request.
// Failures are logged and swallowed; they must never block ingestion.
func (l *Limiter) Record(ctx context.Context, fingerprint string) {
	if l.store == nil {
		return
	}
	if err := l.store.IncrementAll(ctx, l.windowKeys(fingerprint), windowTTLs()); err != nil {
		log.Printf("rate limit increment failed: %v", err)
	}
}
