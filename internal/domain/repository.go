package domain

import (
	"context"
	"time"
)

// GroupDirectory answers membership questions about the bot's groups.
type GroupDirectory interface {
	// Groups lists every group the bot account belongs to.
	Groups(ctx context.Context) ([]Group, error)

	// GroupSnapshot fetches current membership with per-member admin flags.
	GroupSnapshot(ctx context.Context, groupID string) (*GroupSnapshot, error)

	// ResolveContact returns the best-effort profile of a member.
	ResolveContact(ctx context.Context, memberID string) (Contact, error)
}

// Messenger sends messages to groups or direct chats.
type Messenger interface {
	// SendText sends a plain text message to a group or direct chat ID.
	SendText(ctx context.Context, chatID, text string) error

	// SendMention sends text that mentions (tags) every listed member.
	SendMention(ctx context.Context, chatID, text string, memberIDs []string) error
}

// Moderator performs group moderation actions. Requires the bot to be admin.
type Moderator interface {
	RemoveMember(ctx context.Context, groupID, memberID string) error
	SetAdminsOnly(ctx context.Context, groupID string, adminsOnly bool) error
	DeleteMessage(ctx context.Context, chatID, senderID, messageID string) error
}

// AccountResolver checks whether an identity is a registered platform account.
type AccountResolver interface {
	// ResolveAccount returns the direct chat ID for identity. ok is false when
	// the identity has no account on the platform.
	ResolveAccount(ctx context.Context, id Identity) (chatID string, ok bool, err error)
}

// MessagingClient is the full platform capability consumed by both agents.
// Implementation: whatsmeow (internal/whatsapp). Failures are *TransportError.
type MessagingClient interface {
	GroupDirectory
	Messenger
	Moderator
	AccountResolver

	// Connect authenticates (pairing on first run) and opens the session.
	Connect(ctx context.Context) error

	// Events streams inbound platform events until Close.
	Events() <-chan Event

	// SelfID returns the bot account's own identity ("" before pairing).
	SelfID() Identity

	// Close ends the platform session.
	Close() error
}

// KeyValueStore persists JSON documents by key.
// Implementations: JSON files (infra.JSONStore), SQLCipher (infra.EncryptedStore).
type KeyValueStore interface {
	// Load decodes the document stored under key into v.
	// found is false (and err nil) when nothing is stored yet.
	Load(key string, v any) (found bool, err error)

	// Save encodes v and stores it under key. Must be durable on return.
	Save(key string, v any) error
}

// Sleeper blocks for a pacing delay. Sleep returns ctx.Err() if the context
// ends first.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Clock abstracts wall-clock time for window checks and day-keyed guards.
type Clock interface {
	Now() time.Time
}

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}

// InstanceRegistry records which agent processes are running.
// Implementation: hidden JSON file next to the data directory.
type InstanceRegistry interface {
	// Register saves the current instance's PID for its role.
	Register(instance Instance) error

	// ClaimIfFree registers instance only when no other live process holds
	// its role, atomically. It returns the holder's PID when refused.
	ClaimIfFree(instance Instance) (holder int, err error)

	// Unregister clears the role's entry if it still belongs to pid.
	Unregister(role Role, pid int) error

	// IsAlive checks whether the registered process for role is running.
	IsAlive(role Role) (bool, error)

	// GetAll returns full registry state (for status command).
	GetAll() (*InstanceEntry, error)
}

// KeyProvider abstracts the source of encryption keys.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}
