package whatsapp

import (
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
)

// messageText extracts the user-visible text of a message, or "".
func messageText(m *waE2E.Message) string {
	if m == nil {
		return ""
	}
	if t := m.GetConversation(); t != "" {
		return t
	}
	if ext := m.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	if img := m.GetImageMessage(); img != nil {
		return img.GetCaption()
	}
	if vid := m.GetVideoMessage(); vid != nil {
		return vid.GetCaption()
	}
	return ""
}

// quoted returns the id and sender of the message being replied to.
func quoted(m *waE2E.Message) (id, sender string) {
	ext := m.GetExtendedTextMessage()
	if ext == nil {
		return "", ""
	}
	ci := ext.GetContextInfo()
	return ci.GetStanzaID(), ci.GetParticipant()
}

// resolver maps LID addresses to phone-number addresses; identity returns
// its input when no mapping is known.
type resolver func(types.JID) types.JID

// translate converts a whatsmeow event to a domain event. ok is false for
// events the agents do not consume.
func translate(evt interface{}, pn resolver) (domain.Event, bool) {
	switch e := evt.(type) {
	case *events.Message:
		text := messageText(e.Message)
		if text == "" {
			return nil, false
		}
		qid, qsender := quoted(e.Message)
		if qsender != "" {
			if jid, err := types.ParseJID(qsender); err == nil {
				qsender = pn(jid).ToNonAD().String()
			}
		}
		return &domain.MessageEvent{
			ID:             e.Info.ID,
			ChatID:         e.Info.Chat.ToNonAD().String(),
			SenderID:       pn(e.Info.Sender).ToNonAD().String(),
			PushName:       e.Info.PushName,
			Text:           text,
			IsGroup:        e.Info.IsGroup,
			FromMe:         e.Info.IsFromMe,
			QuotedID:       qid,
			QuotedSenderID: qsender,
			At:             e.Info.Timestamp,
		}, true

	case *events.GroupInfo:
		if len(e.Join) == 0 {
			return nil, false
		}
		ids := make([]string, 0, len(e.Join))
		for _, jid := range e.Join {
			ids = append(ids, pn(jid).ToNonAD().String())
		}
		return &domain.JoinEvent{
			GroupID:   e.JID.String(),
			MemberIDs: ids,
			At:        e.Timestamp,
		}, true
	}
	return nil, false
}
