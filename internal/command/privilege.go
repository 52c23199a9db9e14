package command

import (
	"context"
	"fmt"

	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
	"github.com/eliteGoblin/focusd/chat_mon/internal/identity"
)

// Privilege decides whether the sender of msg may run privileged commands.
type Privilege interface {
	IsPrivileged(ctx context.Context, msg *domain.MessageEvent) (bool, error)
}

// GroupPrivilege allows group admins and super-admins.
type GroupPrivilege struct {
	Directory domain.GroupDirectory
}

func (p GroupPrivilege) IsPrivileged(ctx context.Context, msg *domain.MessageEvent) (bool, error) {
	snap, err := p.Directory.GroupSnapshot(ctx, msg.ChatID)
	if err != nil {
		return false, fmt.Errorf("load group %s: %w", msg.ChatID, err)
	}
	sender := identity.Normalize(msg.SenderID)
	for _, m := range snap.Members {
		if identity.Normalize(m.ID) == sender {
			return m.Privileged(), nil
		}
	}
	return false, nil
}

// DirectPrivilege allows everyone; direct chats with the bot are trusted.
type DirectPrivilege struct{}

func (DirectPrivilege) IsPrivileged(context.Context, *domain.MessageEvent) (bool, error) {
	return true, nil
}

// ContextPrivilege picks Group or Direct by where the message was sent.
type ContextPrivilege struct {
	Group  Privilege
	Direct Privilege
}

// NewContextPrivilege returns the standard group/direct privilege model.
func NewContextPrivilege(dir domain.GroupDirectory) ContextPrivilege {
	return ContextPrivilege{Group: GroupPrivilege{Directory: dir}, Direct: DirectPrivilege{}}
}

func (p ContextPrivilege) IsPrivileged(ctx context.Context, msg *domain.MessageEvent) (bool, error) {
	if msg.IsGroup {
		return p.Group.IsPrivileged(ctx, msg)
	}
	return p.Direct.IsPrivileged(ctx, msg)
}

var (
	_ Privilege = GroupPrivilege{}
	_ Privilege = DirectPrivilege{}
	_ Privilege = ContextPrivilege{}
)
