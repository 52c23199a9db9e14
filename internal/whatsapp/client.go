// Package whatsapp implements domain.MessagingClient over the WhatsApp
// multi-device protocol (whatsmeow).
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
)

// SessionDriver is the database/sql driver of the session store. The
// sqlcipher driver registers under this name and accepts plain DSNs too.
const SessionDriver = "sqlite3"

const pairDisplayName = "Chrome (Linux)"

// Options configure a Client.
type Options struct {
	// SessionDSN locates the whatsmeow session database.
	SessionDSN string

	// PairPhone, when set, pairs with a phone code instead of a QR code.
	PairPhone string

	// EventBuffer is the capacity of the Events channel.
	EventBuffer int

	// PairingOutput receives the QR code or pairing code. Defaults to stdout.
	PairingOutput io.Writer
}

// Client is a domain.MessagingClient backed by one linked WhatsApp device.
type Client struct {
	wa        *whatsmeow.Client
	container *sqlstore.Container
	opts      Options
	logger    *zap.Logger
	handlerID uint32

	mu     sync.RWMutex
	events chan domain.Event
	closed bool
}

// New opens the session store and prepares the client. Call Connect to
// authenticate.
func New(ctx context.Context, opts Options, logger *zap.Logger) (*Client, error) {
	if opts.EventBuffer < 1 {
		opts.EventBuffer = 256
	}
	if opts.PairingOutput == nil {
		opts.PairingOutput = os.Stdout
	}
	logger = logger.Named("whatsapp")

	container, err := sqlstore.New(ctx, SessionDriver, opts.SessionDSN, NewLogger(logger.Named("store")))
	if err != nil {
		return nil, wrap("open session store", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		_ = container.Close()
		return nil, wrap("load device", err)
	}

	c := &Client{
		wa:        whatsmeow.NewClient(device, NewLogger(logger.Named("client"))),
		container: container,
		opts:      opts,
		logger:    logger,
		events:    make(chan domain.Event, opts.EventBuffer),
	}
	c.handlerID = c.wa.AddEventHandler(c.handle)
	return c, nil
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &domain.TransportError{Op: op, Err: err}
}

// Connect opens the session, pairing first when no device is linked yet.
func (c *Client) Connect(ctx context.Context) error {
	if c.wa.Store.ID != nil {
		if err := c.wa.Connect(); err != nil {
			return wrap("connect", err)
		}
		c.logger.Info("connected", zap.String("self", string(c.SelfID())))
		return nil
	}
	return c.pair(ctx)
}

func (c *Client) pair(ctx context.Context) error {
	qr, err := c.wa.GetQRChannel(ctx)
	if err != nil {
		return wrap("pairing channel", err)
	}
	if err := c.wa.Connect(); err != nil {
		return wrap("connect", err)
	}

	phoneRequested := false
	for item := range qr {
		switch item.Event {
		case whatsmeow.QRChannelEventCode:
			if c.opts.PairPhone == "" {
				c.logger.Info("scan the QR code with WhatsApp > Linked devices")
				qrterminal.GenerateHalfBlock(item.Code, qrterminal.L, c.opts.PairingOutput)
				continue
			}
			if phoneRequested {
				continue
			}
			code, err := c.wa.PairPhone(ctx, c.opts.PairPhone, true, whatsmeow.PairClientChrome, pairDisplayName)
			if err != nil {
				return wrap("pair phone", err)
			}
			phoneRequested = true
			c.logger.Info("enter the pairing code on the phone", zap.String("code", code))
			fmt.Fprintf(c.opts.PairingOutput, "Pairing code: %s\n", code)
		case whatsmeow.QRChannelSuccess.Event:
			c.logger.Info("device paired", zap.String("self", string(c.SelfID())))
			return nil
		default:
			if item.Error != nil {
				return wrap("pairing", item.Error)
			}
			return wrap("pairing", fmt.Errorf("pairing ended: %s", item.Event))
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return wrap("pairing", errors.New("pairing channel closed"))
}

// handle runs on whatsmeow's event goroutine; it must not block.
func (c *Client) handle(evt interface{}) {
	switch e := evt.(type) {
	case *events.LoggedOut:
		c.logger.Error("session logged out, remove the session database and pair again",
			zap.String("reason", e.Reason.String()))
		return
	case *events.Disconnected:
		c.logger.Warn("disconnected, whatsmeow will reconnect")
		return
	case *events.Connected:
		c.logger.Info("session online")
		return
	}

	ev, ok := translate(evt, c.phoneNumber)
	if !ok {
		return
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.events <- ev:
	default:
		c.logger.Warn("event buffer full, dropping event", zap.String("kind", ev.EventKind()))
	}
}

// phoneNumber maps a LID to its phone-number JID when the store knows it.
func (c *Client) phoneNumber(jid types.JID) types.JID {
	if jid.Server != types.HiddenUserServer {
		return jid
	}
	pn, err := c.wa.Store.LIDs.GetPNForLID(context.Background(), jid)
	if err != nil || pn.IsEmpty() {
		return jid
	}
	return pn
}

func (c *Client) Events() <-chan domain.Event {
	return c.events
}

func (c *Client) SelfID() domain.Identity {
	if c.wa.Store.ID == nil {
		return ""
	}
	return domain.Identity(c.wa.Store.ID.User)
}

// Close disconnects and closes the session store. Events is closed too.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.events)
	c.mu.Unlock()

	c.wa.RemoveEventHandler(c.handlerID)
	c.wa.Disconnect()
	return c.container.Close()
}

func (c *Client) Groups(ctx context.Context) ([]domain.Group, error) {
	infos, err := c.wa.GetJoinedGroups(ctx)
	if err != nil {
		return nil, wrap("list groups", err)
	}
	groups := make([]domain.Group, 0, len(infos))
	for _, info := range infos {
		groups = append(groups, domain.Group{ID: info.JID.String(), Name: info.Name})
	}
	return groups, nil
}

func (c *Client) GroupSnapshot(ctx context.Context, groupID string) (*domain.GroupSnapshot, error) {
	jid, err := parseJID(groupID)
	if err != nil {
		return nil, wrap("group info", err)
	}
	info, err := c.wa.GetGroupInfo(jid)
	if err != nil {
		return nil, wrap("group info", err)
	}
	return toSnapshot(info), nil
}

func (c *Client) ResolveContact(ctx context.Context, memberID string) (domain.Contact, error) {
	jid, err := parseJID(memberID)
	if err != nil {
		return domain.Contact{}, wrap("contact", err)
	}
	info, err := c.wa.Store.Contacts.GetContact(ctx, jid)
	if err != nil {
		return domain.Contact{}, wrap("contact", err)
	}
	name := info.FullName
	if name == "" {
		name = info.BusinessName
	}
	return domain.Contact{PushName: info.PushName, Name: name}, nil
}

func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	jid, err := parseJID(chatID)
	if err != nil {
		return wrap("send", err)
	}
	_, err = c.wa.SendMessage(ctx, jid, &waE2E.Message{Conversation: proto.String(text)})
	return wrap("send", err)
}

func (c *Client) SendMention(ctx context.Context, chatID, text string, memberIDs []string) error {
	jid, err := parseJID(chatID)
	if err != nil {
		return wrap("send mention", err)
	}
	mentioned, err := parseJIDs(memberIDs)
	if err != nil {
		return wrap("send mention", err)
	}
	ids := make([]string, 0, len(mentioned))
	for _, m := range mentioned {
		ids = append(ids, m.String())
	}

	msg := &waE2E.Message{
		ExtendedTextMessage: &waE2E.ExtendedTextMessage{
			Text:        proto.String(text),
			ContextInfo: &waE2E.ContextInfo{MentionedJID: ids},
		},
	}
	_, err = c.wa.SendMessage(ctx, jid, msg)
	return wrap("send mention", err)
}

func (c *Client) RemoveMember(ctx context.Context, groupID, memberID string) error {
	group, err := parseJID(groupID)
	if err != nil {
		return wrap("remove member", err)
	}
	member, err := parseJID(memberID)
	if err != nil {
		return wrap("remove member", err)
	}
	res, err := c.wa.UpdateGroupParticipants(group, []types.JID{member}, whatsmeow.ParticipantChangeRemove)
	if err != nil {
		return wrap("remove member", err)
	}
	for _, p := range res {
		if p.Error != 0 {
			return wrap("remove member", fmt.Errorf("server refused removal (code %d)", p.Error))
		}
	}
	return nil
}

func (c *Client) SetAdminsOnly(ctx context.Context, groupID string, adminsOnly bool) error {
	jid, err := parseJID(groupID)
	if err != nil {
		return wrap("set announce", err)
	}
	return wrap("set announce", c.wa.SetGroupAnnounce(jid, adminsOnly))
}

func (c *Client) DeleteMessage(ctx context.Context, chatID, senderID, messageID string) error {
	chat, err := parseJID(chatID)
	if err != nil {
		return wrap("delete message", err)
	}
	sender, err := parseJID(senderID)
	if err != nil {
		return wrap("delete message", err)
	}
	_, err = c.wa.SendMessage(ctx, chat, c.wa.BuildRevoke(chat, sender, messageID))
	return wrap("delete message", err)
}

func (c *Client) ResolveAccount(ctx context.Context, id domain.Identity) (string, bool, error) {
	res, err := c.wa.IsOnWhatsApp([]string{"+" + string(id)})
	if err != nil {
		return "", false, wrap("account lookup", err)
	}
	for _, r := range res {
		if r.IsIn {
			return r.JID.ToNonAD().String(), true, nil
		}
	}
	return "", false, nil
}

var _ domain.MessagingClient = (*Client)(nil)
