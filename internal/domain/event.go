package domain

import "time"

// Event is an inbound platform event delivered by a MessagingClient.
// Concrete types: *JoinEvent, *MessageEvent.
type Event interface {
	EventKind() string
}

// JoinEvent reports members added to (or joining) a group.
type JoinEvent struct {
	GroupID   string
	MemberIDs []string
	At        time.Time
}

func (*JoinEvent) EventKind() string { return "join" }

// MessageEvent is an inbound text message.
type MessageEvent struct {
	ID       string
	ChatID   string // group ID for group messages, sender chat for direct messages
	SenderID string
	PushName string
	Text     string
	IsGroup  bool
	FromMe   bool

	// Set when the message quotes (replies to) another message.
	QuotedID       string
	QuotedSenderID string

	At time.Time
}

func (*MessageEvent) EventKind() string { return "message" }
