package chat

import (
	"context"

	chatmodel "ChatLink/module/chat/model"
	jwtsec "ChatLink/tools/security"
)

// MessageStore is the persistence surface the protocol handlers need. The
// mongo implementation lives in module/chat/message.
type MessageStore interface {
	Insert(ctx context.Context, m *chatmodel.Message) error
	ConversationPage(ctx context.Context, a, b string, page, limit int) ([]*chatmodel.Message, error)
	ConversationCount(ctx context.Context, a, b string) (int64, error)
	MarkRead(ctx context.Context, messageID string) (*chatmodel.Message, error)
	MarkConversationRead(ctx context.Context, recipientID, senderID string) ([]string, error)
}

// HandlerFunc processes one inbound event on one connection. Each event runs
// to completion (store round-trips included) before the connection's read
// loop picks up the next frame.
type HandlerFunc func(ctx context.Context, c *Client, f *Frame)

// UserRef is the sender shape attached to pushes ("from" fields).
type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func refOf(id *jwtsec.Identity) UserRef {
	return UserRef{ID: id.ID, Name: id.Name, Email: id.Email}
}

// ===== inbound payloads =====

type authPayload struct {
	Token string `json:"token"`
}

type sendInvitationPayload struct {
	RecipientID string `json:"recipientId"`
}

type sendMessagePayload struct {
	RecipientID string `json:"recipientId"`
	Message     string `json:"message"`
}

type markReadPayload struct {
	MessageID string `json:"messageId"`
}

type conversationPayload struct {
	OtherUserID string `json:"otherUserId"`
	Page        int    `json:"page"`
	Limit       int    `json:"limit"`
}

// ===== outbound payloads =====

type statusChangePayload struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}

type newInvitationPayload struct {
	From       UserRef `json:"from"`
	Invitation any     `json:"invitation"`
}

type newMessagePayload struct {
	Message *chatmodel.Message `json:"message"`
	From    UserRef            `json:"from"`
}

type messageListPayload struct {
	Messages   []*chatmodel.Message `json:"messages"`
	Pagination any                  `json:"pagination"`
}

type errorPayload struct {
	Error string `json:"error"`
}
