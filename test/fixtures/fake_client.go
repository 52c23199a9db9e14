// Package fixtures provides test doubles shared by unit and integration tests.
package fixtures

import (
	"context"
	"errors"
	"sync"

	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
)

// Send is one recorded outbound message.
type Send struct {
	ChatID   string
	Text     string
	Mentions []string
}

// Removal is one recorded RemoveMember call.
type Removal struct {
	GroupID  string
	MemberID string
}

// Deletion is one recorded DeleteMessage call.
type Deletion struct {
	ChatID    string
	SenderID  string
	MessageID string
}

// FakeClient is an in-memory domain.MessagingClient. Configure its exported
// maps before use; recorded calls are read through the accessor methods.
type FakeClient struct {
	mu sync.Mutex

	Self        domain.Identity
	GroupList   []domain.Group
	Snapshots   map[string]*domain.GroupSnapshot
	Contacts    map[string]domain.Contact
	Accounts    map[domain.Identity]bool // registered on the platform
	ContactErr  error
	GroupsErr   error
	SendErr     map[string]error // by chat ID
	RemoveErr   error
	SnapshotErr map[string]error // by group ID

	sends      []Send
	removals   []Removal
	deletions  []Deletion
	adminsOnly map[string]bool
	events     chan domain.Event
	connected  bool
	closed     bool
}

// NewFakeClient returns an empty fake with a buffered event channel.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		Snapshots:   make(map[string]*domain.GroupSnapshot),
		Contacts:    make(map[string]domain.Contact),
		Accounts:    make(map[domain.Identity]bool),
		SendErr:     make(map[string]error),
		SnapshotErr: make(map[string]error),
		adminsOnly:  make(map[string]bool),
		events:      make(chan domain.Event, 64),
	}
}

// AddGroup registers a group and its snapshot.
func (f *FakeClient) AddGroup(id, name string, members ...domain.Member) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := domain.Group{ID: id, Name: name}
	f.GroupList = append(f.GroupList, g)
	f.Snapshots[id] = &domain.GroupSnapshot{Group: g, Members: members}
}

// Emit queues an inbound event.
func (f *FakeClient) Emit(ev domain.Event) {
	f.events <- ev
}

func (f *FakeClient) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	return nil
}

func (f *FakeClient) Events() <-chan domain.Event {
	return f.events
}

func (f *FakeClient) SelfID() domain.Identity {
	return f.Self
}

func (f *FakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *FakeClient) Groups(ctx context.Context) ([]domain.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GroupsErr != nil {
		return nil, &domain.TransportError{Op: "groups", Err: f.GroupsErr}
	}
	out := make([]domain.Group, len(f.GroupList))
	copy(out, f.GroupList)
	return out, nil
}

func (f *FakeClient) GroupSnapshot(ctx context.Context, groupID string) (*domain.GroupSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.SnapshotErr[groupID]; err != nil {
		return nil, &domain.TransportError{Op: "group info", Err: err}
	}
	snap, ok := f.Snapshots[groupID]
	if !ok {
		return nil, &domain.TransportError{Op: "group info", Err: errors.New("group not found")}
	}
	cp := *snap
	cp.Members = append([]domain.Member(nil), snap.Members...)
	return &cp, nil
}

func (f *FakeClient) ResolveContact(ctx context.Context, memberID string) (domain.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ContactErr != nil {
		return domain.Contact{}, &domain.TransportError{Op: "contact", Err: f.ContactErr}
	}
	return f.Contacts[memberID], nil
}

func (f *FakeClient) SendText(ctx context.Context, chatID, text string) error {
	return f.SendMention(ctx, chatID, text, nil)
}

func (f *FakeClient) SendMention(ctx context.Context, chatID, text string, memberIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.SendErr[chatID]; err != nil {
		return &domain.TransportError{Op: "send", Err: err}
	}
	f.sends = append(f.sends, Send{ChatID: chatID, Text: text, Mentions: memberIDs})
	return nil
}

func (f *FakeClient) RemoveMember(ctx context.Context, groupID, memberID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RemoveErr != nil {
		return &domain.TransportError{Op: "remove", Err: f.RemoveErr}
	}
	f.removals = append(f.removals, Removal{GroupID: groupID, MemberID: memberID})
	return nil
}

func (f *FakeClient) SetAdminsOnly(ctx context.Context, groupID string, adminsOnly bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adminsOnly[groupID] = adminsOnly
	return nil
}

func (f *FakeClient) DeleteMessage(ctx context.Context, chatID, senderID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletions = append(f.deletions, Deletion{ChatID: chatID, SenderID: senderID, MessageID: messageID})
	return nil
}

func (f *FakeClient) ResolveAccount(ctx context.Context, id domain.Identity) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.Accounts[id] {
		return "", false, nil
	}
	return string(id) + "@s.whatsapp.net", true, nil
}

// Sends returns every recorded outbound message in order.
func (f *FakeClient) Sends() []Send {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Send(nil), f.sends...)
}

// SendsTo returns the texts sent to chatID in order.
func (f *FakeClient) SendsTo(chatID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.sends {
		if s.ChatID == chatID {
			out = append(out, s.Text)
		}
	}
	return out
}

func (f *FakeClient) Removals() []Removal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Removal(nil), f.removals...)
}

func (f *FakeClient) Deletions() []Deletion {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Deletion(nil), f.deletions...)
}

// AdminsOnly reports the last SetAdminsOnly value for groupID.
func (f *FakeClient) AdminsOnly(groupID string) (bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.adminsOnly[groupID]
	return v, ok
}

func (f *FakeClient) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *FakeClient) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

var _ domain.MessagingClient = (*FakeClient)(nil)
