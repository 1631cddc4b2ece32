package chat

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// ===== wire frames =====
//
// Every websocket message is one JSON frame {"event": ..., "data": ...}.
// Inbound frames name a request event; outbound frames name a push event.

// Inbound events.
const (
	EventAuth              = "auth"
	EventSendInvitation    = "send_invitation"
	EventSendMessage       = "send_message"
	EventMarkMessageRead   = "mark_message_read"
	EventGetMessages       = "get_messages"
	EventLoadMoreMessages  = "load_more_messages"
	EventGetRecentMessages = "get_recent_messages"
)

// Outbound events.
const (
	EventError             = "error"
	EventUserStatusChange  = "user_status_change"
	EventNewInvitation     = "new_invitation"
	EventInvitationUpdated = "invitation_updated"
	EventNewMessage        = "new_message"
	EventMessageSent       = "message_sent"
	EventMessageRead       = "message_read"
	EventMessagesList      = "messages_list"
	EventMoreMessages      = "more_messages"
	EventRecentMessages    = "recent_messages"
	EventMessageError      = "message_error"
)

type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// ParseFrame decodes one wire frame. Numbers decode as json.Number so id
// strings survive untouched.
func ParseFrame(data []byte) (*Frame, error) {
	var f Frame
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&f); err != nil {
		return nil, errors.Wrap(err, "parse frame")
	}
	if f.Event == "" {
		return nil, errors.New("frame missing event")
	}
	return &f, nil
}

func MarshalFrame(event string, data any) ([]byte, error) {
	return json.Marshal(Frame{Event: event, Data: data})
}

// DataMap returns the frame payload as a map, or nil when the payload is
// absent or not an object (some events carry a bare scalar).
func (f *Frame) DataMap() map[string]any {
	m, _ := f.Data.(map[string]any)
	return m
}

// DataString returns the payload as a string when the event carries a bare
// scalar (mark_message_read sends the message id that way).
func (f *Frame) DataString() string {
	switch v := f.Data.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}
