package fixtures

import (
	"context"
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
)

// FakeClock is a settable domain.Clock.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// FakeSleeper records requested delays and returns immediately.
// When Clock is set, each sleep advances it. OnSleep runs after recording.
type FakeSleeper struct {
	mu      sync.Mutex
	slept   []time.Duration
	Clock   *FakeClock
	OnSleep func(d time.Duration)
}

func (s *FakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.slept = append(s.slept, d)
	hook := s.OnSleep
	s.mu.Unlock()

	if s.Clock != nil {
		s.Clock.Advance(d)
	}
	if hook != nil {
		hook(d)
	}
	return ctx.Err()
}

// Slept returns every recorded delay in order.
func (s *FakeSleeper) Slept() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.slept...)
}

// Count returns how many times d was slept.
func (s *FakeSleeper) Count(d time.Duration) int {
	n := 0
	for _, x := range s.Slept() {
		if x == d {
			n++
		}
	}
	return n
}

var (
	_ domain.Clock   = (*FakeClock)(nil)
	_ domain.Sleeper = (*FakeSleeper)(nil)
)
