package host

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"payrecorder.mini/prm/internal/identity"
)

// minSweepSize is the bucket count at which idle buckets are first dropped.
const minSweepSize = 1024

// callerLimiter keeps one token bucket per caller. A nil limiter allows
// everything. Full buckets are dropped once the map grows past sweepAt.
type callerLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clock   func() time.Time
	sweepAt int
	buckets map[identity.AccountID]*rate.Limiter
}

func newCallerLimiter(perSecond float64, burst int) *callerLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &callerLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		clock:   time.Now,
		sweepAt: minSweepSize,
		buckets: make(map[identity.AccountID]*rate.Limiter),
	}
}

func (c *callerLimiter) allow(id identity.AccountID) bool {
	if c == nil {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	l, ok := c.buckets[id]
	if !ok {
		if len(c.buckets) >= c.sweepAt {
			c.sweep(now)
		}
		l = rate.NewLimiter(c.limit, c.burst)
		c.buckets[id] = l
	}
	return l.AllowN(now, 1)
}

// sweep drops full buckets. Caller must hold c.mu.
func (c *callerLimiter) sweep(now time.Time) {
	for id, l := range c.buckets {
		if l.TokensAt(now) >= float64(c.burst) {
			delete(c.buckets, id)
		}
	}
	c.sweepAt = max(2*len(c.buckets), minSweepSize)
}

// MemoryJournal is an in-process Journal.
type MemoryJournal struct {
	mu      sync.Mutex
	applied map[journalKey]uint64
}

type journalKey struct {
	sender identity.AccountID
	id     string
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{applied: make(map[journalKey]uint64)}
}

func (j *MemoryJournal) IsApplied(_ context.Context, sender identity.AccountID, txID string) (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, ok := j.applied[journalKey{sender, txID}]
	return ok, nil
}

func (j *MemoryJournal) MarkApplied(_ context.Context, sender identity.AccountID, txID string, appliedAt uint64) (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	key := journalKey{sender, txID}
	if _, ok := j.applied[key]; ok {
		return false, nil
	}
	j.applied[key] = appliedAt
	return true, nil
}
