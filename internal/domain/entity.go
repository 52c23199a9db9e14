// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import "time"

// Role identifies which agent a process runs.
type Role string

const (
	RoleWatchdog Role = "watchdog"
	RoleOutreach Role = "outreach"
)

// Instance represents a running agent process.
type Instance struct {
	PID        int
	Role       Role
	StartedAt  time.Time
	AppVersion string
}

// InstanceEntry is the persisted form of the instance registry.
// Both agents register here so `chatmon status` can report liveness.
type InstanceEntry struct {
	Version       int    `json:"version"`
	WatchdogPID   int    `json:"watchdog_pid"`
	WatchdogSince int64  `json:"watchdog_since"`
	OutreachPID   int    `json:"outreach_pid"`
	OutreachSince int64  `json:"outreach_since"`
	AppVersion    string `json:"app_version,omitempty"`
}

// PID returns the registered process ID for role (0 if none).
func (e *InstanceEntry) PID(role Role) int {
	switch role {
	case RoleWatchdog:
		return e.WatchdogPID
	case RoleOutreach:
		return e.OutreachPID
	}
	return 0
}

// Identity is a normalized, digits-only account identifier (e.g. "258840000001").
type Identity string

func (i Identity) String() string { return string(i) }

// Group is a chat group the bot account belongs to.
type Group struct {
	ID   string
	Name string
}

// Member is one participant of a group snapshot. ID is the platform identifier
// (e.g. "258840000001@s.whatsapp.net").
type Member struct {
	ID           string
	IsAdmin      bool
	IsSuperAdmin bool
}

// Privileged reports whether the member holds group-admin capability.
func (m Member) Privileged() bool {
	return m.IsAdmin || m.IsSuperAdmin
}

// GroupSnapshot is the membership of a group at one point in time.
type GroupSnapshot struct {
	Group
	Members []Member
}

// Admins returns the members holding admin or super-admin capability.
func (s *GroupSnapshot) Admins() []Member {
	admins := make([]Member, 0)
	for _, m := range s.Members {
		if m.Privileged() {
			admins = append(admins, m)
		}
	}
	return admins
}

// Contact is the best-effort profile of an account.
type Contact struct {
	PushName string
	Name     string
}

// Detection is a flagged identity found in a group.
type Detection struct {
	GroupID      string
	GroupName    string
	MemberID     string
	Identity     Identity
	DisplayName  string
	IsGroupAdmin bool
}

// DetectionSource tells which path produced a detection.
type DetectionSource string

const (
	SourceJoin  DetectionSource = "join"
	SourceSweep DetectionSource = "sweep"
)

// Action texts written to the detection log.
const (
	ActionAdminExempt   = "notify-only, admin exempt"
	ActionRemoved       = "removed + notified"
	ActionRemovalFailed = "removal failed, notified"
	ActionNotifiedOnly  = "notified only (auto-remove disabled)"
)

// DetectionRecord is one entry of the append-only detection audit log.
type DetectionRecord struct {
	Timestamp   time.Time       `json:"timestamp"`
	GroupID     string          `json:"group_id"`
	GroupName   string          `json:"group_name"`
	Identity    Identity        `json:"identity"`
	DisplayName string          `json:"display_name"`
	Action      string          `json:"action"`
	Source      DetectionSource `json:"source,omitempty"`
}

// ResponderConfig controls how the watchdog reacts to detections.
type ResponderConfig struct {
	NotifyAdmins          bool   `json:"notify_admins"`
	NotifyGroup           bool   `json:"notify_group"`
	AutoRemove            bool   `json:"auto_remove"`
	NotifyOnSweepComplete bool   `json:"notify_on_sweep_complete"`
	CustomMessage         string `json:"custom_message,omitempty"`
}

// DefaultResponderConfig returns the out-of-the-box responder policy.
func DefaultResponderConfig() ResponderConfig {
	return ResponderConfig{
		NotifyAdmins: true,
		NotifyGroup:  true,
	}
}

// CampaignType is the idempotence namespace of an outreach campaign.
type CampaignType string

const (
	CampaignGroupLink   CampaignType = "groupLink"
	CampaignChannelLink CampaignType = "channelLink"
	CampaignBoth        CampaignType = "both"
)

// CampaignTypes lists every campaign type in display order.
var CampaignTypes = []CampaignType{CampaignGroupLink, CampaignChannelLink, CampaignBoth}

// Valid reports whether t is a known campaign type.
func (t CampaignType) Valid() bool {
	switch t {
	case CampaignGroupLink, CampaignChannelLink, CampaignBoth:
		return true
	}
	return false
}

// IncludesGroup reports whether the campaign sends the group-link message.
func (t CampaignType) IncludesGroup() bool {
	return t == CampaignGroupLink || t == CampaignBoth
}

// IncludesChannel reports whether the campaign sends the channel-link message.
func (t CampaignType) IncludesChannel() bool {
	return t == CampaignChannelLink || t == CampaignBoth
}

// DeliveryStatus is the outcome of one delivery attempt.
type DeliveryStatus string

const (
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
	DeliveryInvalid DeliveryStatus = "invalid"
)

// DeliveryRecord is one entry of the append-only outreach delivery log.
type DeliveryRecord struct {
	Timestamp    time.Time      `json:"timestamp"`
	Identity     Identity       `json:"identity"`
	Status       DeliveryStatus `json:"status"`
	CampaignType CampaignType   `json:"campaign_type"`
	Detail       string         `json:"detail,omitempty"`
}

// CampaignConfig holds outreach templates, pacing and the sending window.
// Durations are persisted in milliseconds.
type CampaignConfig struct {
	GroupMessage   string `json:"group_message"`
	GroupLink      string `json:"group_link"`
	ChannelMessage string `json:"channel_message"`
	ChannelLink    string `json:"channel_link"`
	Footer         string `json:"footer"`

	MessageDelayMs int64 `json:"message_delay_ms"` // between the two messages of "both"
	ItemDelayMs    int64 `json:"item_delay_ms"`    // between targets
	BatchDelayMs   int64 `json:"batch_delay_ms"`   // after each full batch
	BatchSize      int   `json:"batch_size"`

	WindowStart   string `json:"window_start"` // HH:MM, inclusive
	WindowEnd     string `json:"window_end"`   // HH:MM, exclusive
	EnforceWindow bool   `json:"enforce_window"`
}

func (c CampaignConfig) MessageDelay() time.Duration {
	return time.Duration(c.MessageDelayMs) * time.Millisecond
}

func (c CampaignConfig) ItemDelay() time.Duration {
	return time.Duration(c.ItemDelayMs) * time.Millisecond
}

func (c CampaignConfig) BatchDelay() time.Duration {
	return time.Duration(c.BatchDelayMs) * time.Millisecond
}

// DefaultCampaignConfig returns the stock outreach campaign.
func DefaultCampaignConfig() CampaignConfig {
	return CampaignConfig{
		GroupMessage: "*NEW FOR RESELLERS!*\n\n" +
			"Do you resell data bundles and want faster, simpler purchasing?\n\n" +
			"- Automatic sales system, 24/7\n" +
			"- Instant bundle purchases\n" +
			"- Dedicated support\n" +
			"- Competitive reseller prices\n\n" +
			"Join our group and start buying the fast, automated way:",
		GroupLink:      "https://chat.whatsapp.com/your-group-invite",
		ChannelMessage: "*AUTOMATIC SALES SYSTEM*\n\nFollow our channel for news, promotions and exclusive updates.\n\n*Channel link:*",
		ChannelLink:    "https://whatsapp.com/channel/your-channel",
		Footer:         "\n_Automate your bundle sales with us!_",
		MessageDelayMs: 5_000,
		ItemDelayMs:    30_000,
		BatchDelayMs:   300_000,
		BatchSize:      20,
		WindowStart:    "08:00",
		WindowEnd:      "22:00",
		EnforceWindow:  true,
	}
}
