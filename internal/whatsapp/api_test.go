package whatsapp

import (
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/types"
)

// groupAPI pins the whatsmeow methods the client calls without a context.
// A signature change in the pinned release breaks this file first.
type groupAPI interface {
	GetGroupInfo(jid types.JID) (*types.GroupInfo, error)
	UpdateGroupParticipants(jid types.JID, participants []types.JID, action whatsmeow.ParticipantChange) ([]types.GroupParticipant, error)
	SetGroupAnnounce(jid types.JID, announce bool) error
	IsOnWhatsApp(phones []string) ([]types.IsOnWhatsAppResponse, error)
}

var _ groupAPI = (*whatsmeow.Client)(nil)
