package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	chatmodel "ChatLink/module/chat/model"
	"ChatLink/module/chat/message"
	"ChatLink/tools/errs"
)

// fakeMessageStore is an in-memory MessageStore holding messages in
// insertion (chronological) order.
type fakeMessageStore struct {
	mu            sync.Mutex
	msgs          []*chatmodel.Message
	insertErr     error
	markConvCalls int
}

func (f *fakeMessageStore) Insert(_ context.Context, m *chatmodel.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.msgs = append(f.msgs, m)
	return nil
}

func (f *fakeMessageStore) conversation(a, b string) []*chatmodel.Message {
	var out []*chatmodel.Message
	for _, m := range f.msgs {
		if (m.SenderID == a && m.RecipientID == b) || (m.SenderID == b && m.RecipientID == a) {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeMessageStore) ConversationPage(_ context.Context, a, b string, page, limit int) ([]*chatmodel.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv := f.conversation(a, b)
	// newest first
	var desc []*chatmodel.Message
	for i := len(conv) - 1; i >= 0; i-- {
		desc = append(desc, conv[i])
	}
	skip := (page - 1) * limit
	if skip >= len(desc) {
		return nil, nil
	}
	end := skip + limit
	if end > len(desc) {
		end = len(desc)
	}
	return desc[skip:end], nil
}

func (f *fakeMessageStore) ConversationCount(_ context.Context, a, b string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.conversation(a, b))), nil
}

func (f *fakeMessageStore) MarkRead(_ context.Context, messageID string) (*chatmodel.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.msgs {
		if m.ID == messageID {
			m.Read = true
			return m, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeMessageStore) MarkConversationRead(_ context.Context, recipientID, senderID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markConvCalls++
	var flipped []string
	for _, m := range f.msgs {
		if m.SenderID == senderID && m.RecipientID == recipientID && !m.Read {
			m.Read = true
			flipped = append(flipped, m.ID)
		}
	}
	return flipped, nil
}

// ===== helpers =====

func newTestServer(store MessageStore) *Server {
	return NewServer(store, nil, nil)
}

// connect registers a client without a transport; pushed frames pile up in
// the send queue where takeFrame reads them.
func connect(s *Server, userID string) *Client {
	c := NewClient(testIdentity(userID), nil)
	s.registry.Register(userID, c)
	return c
}

func dispatch(t *testing.T, s *Server, c *Client, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	f, err := ParseFrame(raw)
	if err != nil {
		t.Fatalf("parse frame: %v", err)
	}
	h := s.disp.Get(event)
	if h == nil {
		t.Fatalf("no handler registered for %q", event)
	}
	h(context.Background(), c, f)
}

func takeFrame(t *testing.T, c *Client) (string, json.RawMessage) {
	t.Helper()
	select {
	case raw := <-c.send:
		var f struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &f); err != nil {
			t.Fatalf("unmarshal queued frame: %v", err)
		}
		return f.Event, f.Data
	default:
		t.Fatalf("no frame queued")
		return "", nil
	}
}

func wantNoFrame(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.send:
		t.Fatalf("unexpected frame queued: %s", raw)
	default:
	}
}

func wantError(t *testing.T, c *Client, msg string) {
	t.Helper()
	event, data := takeFrame(t, c)
	if event != EventMessageError {
		t.Fatalf("event = %q, want %q", event, EventMessageError)
	}
	var p errorPayload
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("unmarshal error payload: %v", err)
	}
	if p.Error != msg {
		t.Fatalf("error = %q, want %q", p.Error, msg)
	}
}

type listData struct {
	Messages   []*chatmodel.Message `json:"messages"`
	Pagination message.Pagination   `json:"pagination"`
}

func takeList(t *testing.T, c *Client, wantEvent string) listData {
	t.Helper()
	event, data := takeFrame(t, c)
	if event != wantEvent {
		t.Fatalf("event = %q, want %q", event, wantEvent)
	}
	var l listData
	if err := json.Unmarshal(data, &l); err != nil {
		t.Fatalf("unmarshal list payload: %v", err)
	}
	return l
}

// seedConversation alternates sender a, b, a, b... with increasing
// timestamps; messages from a arrive unread.
func seedConversation(store *fakeMessageStore, a, b string, n int) []*chatmodel.Message {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]*chatmodel.Message, 0, n)
	for i := 0; i < n; i++ {
		sender, recipient := a, b
		if i%2 == 1 {
			sender, recipient = b, a
		}
		m := &chatmodel.Message{
			ID:          fmt.Sprintf("m%03d", i+1),
			SenderID:    sender,
			RecipientID: recipient,
			Content:     fmt.Sprintf("msg %d", i+1),
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		}
		store.msgs = append(store.msgs, m)
		out = append(out, m)
	}
	return out
}

// ===== send_message =====

func TestSendMessageDeliversToRecipient(t *testing.T) {
	store := &fakeMessageStore{}
	s := newTestServer(store)
	alice := connect(s, "alice")
	bob := connect(s, "bob")

	dispatch(t, s, alice, EventSendMessage, map[string]any{"recipientId": "bob", "message": "hello"})

	event, data := takeFrame(t, bob)
	if event != EventNewMessage {
		t.Fatalf("recipient event = %q, want %q", event, EventNewMessage)
	}
	var p struct {
		Message *chatmodel.Message `json:"message"`
		From    UserRef            `json:"from"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("unmarshal new_message: %v", err)
	}
	if p.Message.Content != "hello" || p.Message.SenderID != "alice" || p.Message.RecipientID != "bob" {
		t.Fatalf("delivered message = %+v", p.Message)
	}
	if p.From.ID != "alice" {
		t.Fatalf("from = %+v, want alice", p.From)
	}
	if p.Message.Read {
		t.Fatalf("new message delivered already read")
	}

	event, data = takeFrame(t, alice)
	if event != EventMessageSent {
		t.Fatalf("sender event = %q, want %q", event, EventMessageSent)
	}
	var echoed chatmodel.Message
	if err := json.Unmarshal(data, &echoed); err != nil {
		t.Fatalf("unmarshal message_sent: %v", err)
	}
	if echoed.ID != p.Message.ID {
		t.Fatalf("message_sent id = %q, want %q", echoed.ID, p.Message.ID)
	}

	if len(store.msgs) != 1 {
		t.Fatalf("store holds %d messages, want 1", len(store.msgs))
	}
}

func TestSendMessageOfflineRecipient(t *testing.T) {
	store := &fakeMessageStore{}
	s := newTestServer(store)
	alice := connect(s, "alice")

	dispatch(t, s, alice, EventSendMessage, map[string]any{"recipientId": "bob", "message": "hello"})

	event, _ := takeFrame(t, alice)
	if event != EventMessageSent {
		t.Fatalf("sender event = %q, want %q", event, EventMessageSent)
	}
	if len(store.msgs) != 1 {
		t.Fatalf("offline recipient must not block persistence; store holds %d", len(store.msgs))
	}
}

func TestSendMessageValidation(t *testing.T) {
	store := &fakeMessageStore{}
	s := newTestServer(store)
	alice := connect(s, "alice")

	dispatch(t, s, alice, EventSendMessage, map[string]any{"message": "hello"})
	wantError(t, alice, "recipientId and message are required")

	dispatch(t, s, alice, EventSendMessage, map[string]any{"recipientId": "bob"})
	wantError(t, alice, "recipientId and message are required")

	dispatch(t, s, alice, EventSendMessage, "not an object")
	wantError(t, alice, "recipientId and message are required")

	if len(store.msgs) != 0 {
		t.Fatalf("invalid sends reached the store")
	}
}

func TestSendMessageStoreFailure(t *testing.T) {
	store := &fakeMessageStore{insertErr: errors.New("mongo down")}
	s := newTestServer(store)
	alice := connect(s, "alice")
	bob := connect(s, "bob")

	dispatch(t, s, alice, EventSendMessage, map[string]any{"recipientId": "bob", "message": "hello"})

	wantError(t, alice, "Failed to send message")
	wantNoFrame(t, bob)
}

// ===== mark_message_read =====

func TestMarkMessageReadRoutesReceipt(t *testing.T) {
	store := &fakeMessageStore{}
	s := newTestServer(store)
	alice := connect(s, "alice")
	bob := connect(s, "bob")

	seedConversation(store, "alice", "bob", 1) // m001: alice -> bob, unread

	dispatch(t, s, bob, EventMarkMessageRead, "m001")

	event, data := takeFrame(t, alice)
	if event != EventMessageRead {
		t.Fatalf("sender event = %q, want %q", event, EventMessageRead)
	}
	var id string
	if err := json.Unmarshal(data, &id); err != nil {
		t.Fatalf("message_read payload is not a bare id: %v", err)
	}
	if id != "m001" {
		t.Fatalf("receipt id = %q, want m001", id)
	}
	if !store.msgs[0].Read {
		t.Fatalf("message not flagged read in store")
	}
	wantNoFrame(t, bob)
}

func TestMarkMessageReadObjectPayload(t *testing.T) {
	store := &fakeMessageStore{}
	s := newTestServer(store)
	alice := connect(s, "alice")
	bob := connect(s, "bob")

	seedConversation(store, "alice", "bob", 1)

	dispatch(t, s, bob, EventMarkMessageRead, map[string]any{"messageId": "m001"})

	event, _ := takeFrame(t, alice)
	if event != EventMessageRead {
		t.Fatalf("sender event = %q, want %q", event, EventMessageRead)
	}
}

func TestMarkMessageReadUnknownID(t *testing.T) {
	store := &fakeMessageStore{}
	s := newTestServer(store)
	bob := connect(s, "bob")

	dispatch(t, s, bob, EventMarkMessageRead, "nope")
	wantError(t, bob, "Failed to mark message as read")
}

func TestMarkMessageReadMissingID(t *testing.T) {
	store := &fakeMessageStore{}
	s := newTestServer(store)
	bob := connect(s, "bob")

	dispatch(t, s, bob, EventMarkMessageRead, map[string]any{})
	wantError(t, bob, "messageId is required")
}

// ===== get_messages =====

func TestGetMessagesFirstPage(t *testing.T) {
	store := &fakeMessageStore{}
	s := newTestServer(store)
	alice := connect(s, "alice")
	bob := connect(s, "bob")

	seedConversation(store, "alice", "bob", 25)

	dispatch(t, s, bob, EventGetMessages, map[string]any{"otherUserId": "alice"})

	l := takeList(t, bob, EventMessagesList)
	if len(l.Messages) != 10 {
		t.Fatalf("page 1 holds %d messages, want 10", len(l.Messages))
	}
	// newest window, delivered chronological: msg 16 .. msg 25
	if l.Messages[0].ID != "m016" || l.Messages[9].ID != "m025" {
		t.Fatalf("window = %s .. %s, want m016 .. m025", l.Messages[0].ID, l.Messages[9].ID)
	}
	want := message.Pagination{Total: 25, Page: 1, Limit: 10, Pages: 3, HasMore: true, HasRecent: false}
	if l.Pagination != want {
		t.Fatalf("pagination = %+v, want %+v", l.Pagination, want)
	}

	// alice sent 13 of the 25 (odd positions); each flips to read and emits
	// one receipt to her.
	receipts := 0
	for {
		select {
		case raw := <-alice.send:
			var f Frame
			if err := json.Unmarshal(raw, &f); err != nil {
				t.Fatalf("unmarshal receipt: %v", err)
			}
			if f.Event != EventMessageRead {
				t.Fatalf("alice got %q, want only %q", f.Event, EventMessageRead)
			}
			receipts++
			continue
		default:
		}
		break
	}
	if receipts != 13 {
		t.Fatalf("alice got %d receipts, want 13", receipts)
	}

	// Second fetch finds nothing unread, so no further receipts.
	dispatch(t, s, bob, EventGetMessages, map[string]any{"otherUserId": "alice"})
	takeList(t, bob, EventMessagesList)
	wantNoFrame(t, alice)
}

func TestGetMessagesLastPartialPage(t *testing.T) {
	store := &fakeMessageStore{}
	s := newTestServer(store)
	bob := connect(s, "bob")

	seedConversation(store, "alice", "bob", 25)

	dispatch(t, s, bob, EventGetMessages, map[string]any{"otherUserId": "alice", "page": 3, "limit": 10})

	l := takeList(t, bob, EventMessagesList)
	if len(l.Messages) != 5 {
		t.Fatalf("page 3 holds %d messages, want 5", len(l.Messages))
	}
	if l.Messages[0].ID != "m001" || l.Messages[4].ID != "m005" {
		t.Fatalf("window = %s .. %s, want m001 .. m005", l.Messages[0].ID, l.Messages[4].ID)
	}
	want := message.Pagination{Total: 25, Page: 3, Limit: 10, Pages: 3, HasMore: false, HasRecent: true}
	if l.Pagination != want {
		t.Fatalf("pagination = %+v, want %+v", l.Pagination, want)
	}
}

func TestGetMessagesEmptyConversation(t *testing.T) {
	store := &fakeMessageStore{}
	s := newTestServer(store)
	bob := connect(s, "bob")

	dispatch(t, s, bob, EventGetMessages, map[string]any{"otherUserId": "nobody"})

	l := takeList(t, bob, EventMessagesList)
	if l.Messages == nil {
		t.Fatalf("messages must be an empty list, not null")
	}
	if len(l.Messages) != 0 || l.Pagination.Total != 0 || l.Pagination.Pages != 0 {
		t.Fatalf("empty conversation = %+v", l)
	}
}

func TestGetMessagesMissingOtherUser(t *testing.T) {
	store := &fakeMessageStore{}
	s := newTestServer(store)
	bob := connect(s, "bob")

	dispatch(t, s, bob, EventGetMessages, map[string]any{"page": 1})
	wantError(t, bob, "otherUserId is required")
	if store.markConvCalls != 0 {
		t.Fatalf("invalid request reached MarkConversationRead")
	}
}

// ===== load_more_messages / get_recent_messages =====

func TestLoadMoreMessagesSkipsReadMarking(t *testing.T) {
	store := &fakeMessageStore{}
	s := newTestServer(store)
	alice := connect(s, "alice")
	bob := connect(s, "bob")

	seedConversation(store, "alice", "bob", 25)

	dispatch(t, s, bob, EventLoadMoreMessages, map[string]any{"otherUserId": "alice", "page": 2, "limit": 10})

	l := takeList(t, bob, EventMoreMessages)
	if len(l.Messages) != 10 {
		t.Fatalf("page 2 holds %d messages, want 10", len(l.Messages))
	}
	if l.Messages[0].ID != "m006" || l.Messages[9].ID != "m015" {
		t.Fatalf("window = %s .. %s, want m006 .. m015", l.Messages[0].ID, l.Messages[9].ID)
	}
	if !l.Pagination.HasMore || !l.Pagination.HasRecent {
		t.Fatalf("pagination = %+v, want hasMore and hasRecent", l.Pagination)
	}

	if store.markConvCalls != 0 {
		t.Fatalf("load_more_messages marked the conversation read")
	}
	wantNoFrame(t, alice)
}

func TestGetRecentMessagesForcesNewestWindow(t *testing.T) {
	store := &fakeMessageStore{}
	s := newTestServer(store)
	bob := connect(s, "bob")

	seedConversation(store, "alice", "bob", 25)

	dispatch(t, s, bob, EventGetRecentMessages, map[string]any{"otherUserId": "alice", "page": 3, "limit": 10})

	l := takeList(t, bob, EventRecentMessages)
	if l.Pagination.Page != 1 {
		t.Fatalf("page = %d, want 1 regardless of request", l.Pagination.Page)
	}
	if l.Messages[len(l.Messages)-1].ID != "m025" {
		t.Fatalf("recent window does not end at the newest message")
	}
	if store.markConvCalls != 0 {
		t.Fatalf("get_recent_messages marked the conversation read")
	}
}

// ===== send_invitation =====

func TestSendInvitationRelaysToRecipient(t *testing.T) {
	store := &fakeMessageStore{}
	s := newTestServer(store)
	alice := connect(s, "alice")
	bob := connect(s, "bob")

	dispatch(t, s, alice, EventSendInvitation, map[string]any{"recipientId": "bob", "invitation": map[string]any{"id": "inv1"}})

	event, data := takeFrame(t, bob)
	if event != EventNewInvitation {
		t.Fatalf("recipient event = %q, want %q", event, EventNewInvitation)
	}
	var p struct {
		From       UserRef        `json:"from"`
		Invitation map[string]any `json:"invitation"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("unmarshal new_invitation: %v", err)
	}
	if p.From.ID != "alice" {
		t.Fatalf("from = %+v, want alice", p.From)
	}
	if p.Invitation["recipientId"] != "bob" {
		t.Fatalf("invitation payload not relayed: %v", p.Invitation)
	}
	wantNoFrame(t, alice)
}

func TestSendInvitationOfflineRecipientIsSilent(t *testing.T) {
	store := &fakeMessageStore{}
	s := newTestServer(store)
	alice := connect(s, "alice")

	dispatch(t, s, alice, EventSendInvitation, map[string]any{"recipientId": "bob"})
	wantNoFrame(t, alice)
}

func TestSendInvitationMissingRecipient(t *testing.T) {
	store := &fakeMessageStore{}
	s := newTestServer(store)
	alice := connect(s, "alice")

	dispatch(t, s, alice, EventSendInvitation, map[string]any{})
	wantError(t, alice, "recipientId is required")
}

// ===== fan-out =====

func TestEmitToUser(t *testing.T) {
	store := &fakeMessageStore{}
	s := newTestServer(store)
	bob := connect(s, "bob")

	if !s.EmitToUser("bob", EventMessageRead, "m1") {
		t.Fatalf("EmitToUser to online user returned false")
	}
	event, _ := takeFrame(t, bob)
	if event != EventMessageRead {
		t.Fatalf("event = %q", event)
	}

	if s.EmitToUser("ghost", EventMessageRead, "m1") {
		t.Fatalf("EmitToUser to offline user returned true")
	}
}

func TestEmitToAll(t *testing.T) {
	store := &fakeMessageStore{}
	s := newTestServer(store)
	alice := connect(s, "alice")
	bob := connect(s, "bob")

	s.EmitToAll(EventUserStatusChange, statusChangePayload{UserID: "carol", IsOnline: true})

	for _, c := range []*Client{alice, bob} {
		event, data := takeFrame(t, c)
		if event != EventUserStatusChange {
			t.Fatalf("event = %q", event)
		}
		var p statusChangePayload
		if err := json.Unmarshal(data, &p); err != nil {
			t.Fatalf("unmarshal status change: %v", err)
		}
		if p.UserID != "carol" || !p.IsOnline {
			t.Fatalf("status change = %+v", p)
		}
	}
}
