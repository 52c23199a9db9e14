package usecase

import (
	"fmt"
	"time"

	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
	"github.com/eliteGoblin/focusd/chat_mon/internal/settings"
)

// Window is the allowed sending period [Start, End) in minutes after
// midnight. Start > End wraps past midnight; Start == End allows the whole day.
type Window struct {
	Start    int
	End      int
	Enforced bool
}

// WindowOf builds the window of a campaign config.
func WindowOf(cfg domain.CampaignConfig) (Window, error) {
	start, err := settings.ParseClock(cfg.WindowStart)
	if err != nil {
		return Window{}, err
	}
	end, err := settings.ParseClock(cfg.WindowEnd)
	if err != nil {
		return Window{}, err
	}
	return Window{Start: start, End: end, Enforced: cfg.EnforceWindow}, nil
}

// Contains reports whether t (already in the configured zone) may be used
// for sending. An unenforced window contains every instant.
func (w Window) Contains(t time.Time) bool {
	if !w.Enforced || w.Start == w.End {
		return true
	}
	m := t.Hour()*60 + t.Minute()
	if w.Start < w.End {
		return m >= w.Start && m < w.End
	}
	return m >= w.Start || m < w.End
}

func (w Window) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", w.Start/60, w.Start%60, w.End/60, w.End%60)
}
