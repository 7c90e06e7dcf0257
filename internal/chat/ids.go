package chat

import (
	"sync/atomic"
	"time"
)

// IDGenerator hands out message identities. Values follow the wall clock in
// milliseconds but never repeat: a second call within the same millisecond
// (or after the clock went backwards) gets last+1.
type IDGenerator struct {
	last atomic.Int64
	now  func() time.Time
}

func NewIDGenerator(now func() time.Time) *IDGenerator {
	if now == nil {
		now = time.Now
	}
	return &IDGenerator{now: now}
}

// Next returns a fresh identity
func (g *IDGenerator) Next() int64 {
	for {
		last := g.last.Load()
		next := g.now().UnixMilli()
		if next <= last {
			next = last + 1
		}
		if g.last.CompareAndSwap(last, next) {
			return next
		}
	}
}
