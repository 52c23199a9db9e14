package infra

import (
	"context"
	"time"

	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
)

// SystemClock implements domain.Clock with wall-clock time in a fixed location.
type SystemClock struct {
	loc *time.Location
}

// NewSystemClock returns a clock reporting time in loc (local time if nil).
func NewSystemClock(loc *time.Location) *SystemClock {
	if loc == nil {
		loc = time.Local
	}
	return &SystemClock{loc: loc}
}

func (c *SystemClock) Now() time.Time {
	return time.Now().In(c.loc)
}

// TimerSleeper implements domain.Sleeper with a timer that aborts on ctx.
type TimerSleeper struct{}

// Sleep blocks for d or until ctx is done, whichever comes first.
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var (
	_ domain.Clock   = (*SystemClock)(nil)
	_ domain.Sleeper = TimerSleeper{}
)
