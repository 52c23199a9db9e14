package usecase

import (
	"fmt"
	"strings"
	"time"

	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
)

// AdminNoticeSuffix marks the private copy of an alert sent to each admin.
const AdminNoticeSuffix = "\n\n_private admin notification_"

const alertTimeLayout = "02/01/2006 15:04"

// AlertText renders the detection alert: the custom template when set,
// otherwise the stock alert.
func AlertText(cfg domain.ResponderConfig, det domain.Detection, at time.Time) string {
	stamp := at.Format(alertTimeLayout)

	if cfg.CustomMessage != "" {
		return strings.NewReplacer(
			"{group}", det.GroupName,
			"{name}", det.DisplayName,
			"{number}", string(det.Identity),
			"{time}", stamp,
		).Replace(cfg.CustomMessage)
	}

	var b strings.Builder
	b.WriteString("*COMPETITOR DETECTED*\n\n")
	fmt.Fprintf(&b, "*Group:* %s\n", det.GroupName)
	fmt.Fprintf(&b, "*Name:* %s\n", det.DisplayName)
	fmt.Fprintf(&b, "*Number:* +%s\n", det.Identity)
	if det.IsGroupAdmin {
		b.WriteString("\n*This member is a group ADMIN and is exempt from removal.*\n")
	}
	fmt.Fprintf(&b, "\n_%s_", stamp)
	return b.String()
}

// GroupCampaignText is the group-link outreach message.
func GroupCampaignText(cfg domain.CampaignConfig) string {
	return cfg.GroupMessage + "\n" + cfg.GroupLink
}

// ChannelCampaignText is the channel-link outreach message.
func ChannelCampaignText(cfg domain.CampaignConfig) string {
	return cfg.ChannelMessage + "\n" + cfg.ChannelLink + cfg.Footer
}

// WrapUpText is the per-group notice sent after a sweep.
func WrapUpText(found int) string {
	if found == 0 {
		return "*Daily sweep complete.* No competitors found in this group."
	}
	return fmt.Sprintf("*Daily sweep complete.* %d competitor(s) handled in this group.", found)
}
