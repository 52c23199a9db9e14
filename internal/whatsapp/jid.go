package whatsapp

import (
	"fmt"
	"strings"

	"go.mau.fi/whatsmeow/types"

	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
	"github.com/eliteGoblin/focusd/chat_mon/internal/identity"
)

// parseJID accepts a full JID ("258...@s.whatsapp.net", "...@g.us") or a
// bare phone number, which is taken as a user JID.
func parseJID(s string) (types.JID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return types.JID{}, fmt.Errorf("empty address")
	}
	if !strings.Contains(s, "@") {
		digits := identity.NormalizeDigits(s)
		if digits == "" {
			return types.JID{}, fmt.Errorf("invalid address %q", s)
		}
		return types.NewJID(string(digits), types.DefaultUserServer), nil
	}
	jid, err := types.ParseJID(s)
	if err != nil {
		return types.JID{}, fmt.Errorf("parse %q: %w", s, err)
	}
	return jid, nil
}

// participantJID prefers the phone-number JID of a participant, since
// registry entries are phone numbers and LIDs are opaque.
func participantJID(p types.GroupParticipant) types.JID {
	if p.JID.Server == types.HiddenUserServer && !p.PhoneNumber.IsEmpty() {
		return p.PhoneNumber.ToNonAD()
	}
	return p.JID.ToNonAD()
}

func toMember(p types.GroupParticipant) domain.Member {
	return domain.Member{
		ID:           participantJID(p).String(),
		IsAdmin:      p.IsAdmin,
		IsSuperAdmin: p.IsSuperAdmin,
	}
}

func toSnapshot(info *types.GroupInfo) *domain.GroupSnapshot {
	snap := &domain.GroupSnapshot{
		Group:   domain.Group{ID: info.JID.String(), Name: info.Name},
		Members: make([]domain.Member, 0, len(info.Participants)),
	}
	for _, p := range info.Participants {
		snap.Members = append(snap.Members, toMember(p))
	}
	return snap
}

func parseJIDs(ids []string) ([]types.JID, error) {
	out := make([]types.JID, 0, len(ids))
	for _, id := range ids {
		jid, err := parseJID(id)
		if err != nil {
			return nil, err
		}
		out = append(out, jid)
	}
	return out, nil
}
