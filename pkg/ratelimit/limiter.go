package ratelimit

import (
	"sync"
	"time"
)

// Limiter defines the interface for rate limiting.
type Limiter interface {
	// Allow reports whether a request may proceed right now, claiming the
	// slot if so.
	Allow() bool
	// Wait blocks until the rate limit grants another request.
	Wait()
	// Reset resets the rate limiter state.
	Reset()
}

// Interval enforces a minimum gap between consecutive requests. The mutex
// is held across the whole read-compute-sleep-update sequence so that
// concurrent callers are granted slots strictly one interval apart; without
// that, two workers could both compute a short wait and fire together.
type Interval struct {
	minGap time.Duration
	last   time.Time
	mu     sync.Mutex
}

// NewInterval creates an interval limiter with the given minimum gap.
func NewInterval(minGap time.Duration) *Interval {
	return &Interval{minGap: minGap}
}

// Allow claims a slot if the interval has elapsed, without blocking.
func (l *Interval) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if !l.last.IsZero() && now.Sub(l.last) < l.minGap {
		return false
	}
	l.last = now
	return true
}

// Wait blocks until at least minGap has elapsed since the last granted
// request, then claims the slot.
func (l *Interval) Wait() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.last.IsZero() {
		if wait := l.minGap - time.Since(l.last); wait > 0 {
			time.Sleep(wait)
		}
	}
	l.last = time.Now()
}

// Reset clears the last-request timestamp.
func (l *Interval) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last = time.Time{}
}

// PerSource hands out one shared limiter per source so all workers hitting
// the same origin serialize on the same interval.
type PerSource struct {
	minGap   time.Duration
	limiters map[string]*Interval
	mu       sync.Mutex
}

// NewPerSource creates a registry of interval limiters keyed by source.
func NewPerSource(minGap time.Duration) *PerSource {
	return &PerSource{
		minGap:   minGap,
		limiters: make(map[string]*Interval),
	}
}

// Acquire blocks until the source's limiter grants a slot.
func (p *PerSource) Acquire(sourceID string) {
	p.limiter(sourceID).Wait()
}

// Limiter returns the shared limiter for a source, creating it on first use.
func (p *PerSource) Limiter(sourceID string) Limiter {
	return p.limiter(sourceID)
}

func (p *PerSource) limiter(sourceID string) *Interval {
	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.limiters[sourceID]
	if !ok {
		l = NewInterval(p.minGap)
		p.limiters[sourceID] = l
	}
	return l
}
