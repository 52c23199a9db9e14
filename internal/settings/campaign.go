package settings

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
)

// CampaignKey is the KeyValueStore document of the outreach campaign.
const CampaignKey = "campaign-config"

// Accepted ranges for the pacing knobs.
const (
	MinItemDelay  = 10 * time.Second
	MaxItemDelay  = 300 * time.Second
	MinBatchSize  = 1
	MaxBatchSize  = 100
	MinBatchDelay = 60 * time.Second
	MaxBatchDelay = 3600 * time.Second
)

var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

// Campaign is the outreach agent's persisted campaign configuration.
type Campaign = Document[domain.CampaignConfig]

// LoadCampaign loads the campaign config, falling back to defaults when the
// stored document is unreadable or out of range.
func LoadCampaign(store domain.KeyValueStore, logger *zap.Logger) *Campaign {
	return load[domain.CampaignConfig](store, CampaignKey, domain.DefaultCampaignConfig(), ValidateCampaign, logger.Named("campaign_config"))
}

// ParseClock parses "HH:MM" into minutes after midnight.
func ParseClock(s string) (int, error) {
	m := clockPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, &domain.ValidationError{Reason: fmt.Sprintf("invalid time %q", s), Usage: "HH:MM, e.g. 08:00"}
	}
	h, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	return h*60 + mm, nil
}

// ValidateCampaign checks pacing ranges and the window format.
func ValidateCampaign(c domain.CampaignConfig) error {
	if d := c.ItemDelay(); d < MinItemDelay || d > MaxItemDelay {
		return &domain.ValidationError{Reason: fmt.Sprintf("delay must be between %d and %d seconds",
			int(MinItemDelay.Seconds()), int(MaxItemDelay.Seconds()))}
	}
	if c.BatchSize < MinBatchSize || c.BatchSize > MaxBatchSize {
		return &domain.ValidationError{Reason: fmt.Sprintf("batch size must be between %d and %d",
			MinBatchSize, MaxBatchSize)}
	}
	if d := c.BatchDelay(); d < MinBatchDelay || d > MaxBatchDelay {
		return &domain.ValidationError{Reason: fmt.Sprintf("batch delay must be between %d and %d seconds",
			int(MinBatchDelay.Seconds()), int(MaxBatchDelay.Seconds()))}
	}
	if c.MessageDelayMs < 0 {
		return &domain.ValidationError{Reason: "message delay must not be negative"}
	}
	if _, err := ParseClock(c.WindowStart); err != nil {
		return err
	}
	if _, err := ParseClock(c.WindowEnd); err != nil {
		return err
	}
	return nil
}
