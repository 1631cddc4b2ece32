package chat

import (
	"context"
	"time"

	"ChatLink/logger"
	"ChatLink/module/chat/message"
	chatmodel "ChatLink/module/chat/model"
	"ChatLink/tools/decode"
	"ChatLink/tools/ids"
)

// registerHandlers installs the conversation protocol: every inbound event a
// client may send once it is Active.
func (s *Server) registerHandlers() {
	s.disp.Register(EventSendInvitation, s.handleSendInvitation)
	s.disp.Register(EventSendMessage, s.handleSendMessage)
	s.disp.Register(EventMarkMessageRead, s.handleMarkMessageRead)
	s.disp.Register(EventGetMessages, s.handleGetMessages)
	s.disp.Register(EventLoadMoreMessages, s.handleLoadMoreMessages)
	s.disp.Register(EventGetRecentMessages, s.handleGetRecentMessages)
}

// pushError reports a failure to the requesting connection only. Errors
// never cross into another user's session.
func pushError(c *Client, msg string) {
	c.Push(EventMessageError, errorPayload{Error: msg})
}

// handleSendInvitation relays an invitation notification to the recipient's
// live connection. Persistence happens on the HTTP invitation path; here a
// routing miss simply means no push.
func (s *Server) handleSendInvitation(_ context.Context, c *Client, f *Frame) {
	m := f.DataMap()
	if m == nil {
		pushError(c, "recipientId is required")
		return
	}
	p, err := decode.Map[sendInvitationPayload](m)
	if err != nil || p.RecipientID == "" {
		pushError(c, "recipientId is required")
		return
	}

	if recipient, ok := s.registry.Lookup(p.RecipientID); ok {
		recipient.Push(EventNewInvitation, newInvitationPayload{
			From:       refOf(c.Identity),
			Invitation: f.Data,
		})
	}
}

// handleSendMessage persists the message, then pushes new_message to the
// recipient when online and message_sent back to the sender always. An
// offline recipient sees the message on their next history fetch.
func (s *Server) handleSendMessage(ctx context.Context, c *Client, f *Frame) {
	m := f.DataMap()
	if m == nil {
		pushError(c, "recipientId and message are required")
		return
	}
	p, err := decode.Map[sendMessagePayload](m)
	if err != nil || p.RecipientID == "" || p.Message == "" {
		pushError(c, "recipientId and message are required")
		return
	}

	msg := &chatmodel.Message{
		ID:          ids.GenerateString(),
		SenderID:    c.UserID,
		RecipientID: p.RecipientID,
		Content:     p.Message,
		Read:        false,
		CreatedAt:   time.Now(),
	}
	if err := s.msgs.Insert(ctx, msg); err != nil {
		logger.Errorf("[chat] persist message failed user=%s err=%v", c.UserID, err)
		pushError(c, "Failed to send message")
		return
	}

	if recipient, ok := s.registry.Lookup(p.RecipientID); ok {
		recipient.Push(EventNewMessage, newMessagePayload{Message: msg, From: refOf(c.Identity)})
	}
	c.Push(EventMessageSent, msg)
}

// handleMarkMessageRead flips one message's read flag and routes the receipt
// to the message's sender when online.
func (s *Server) handleMarkMessageRead(ctx context.Context, c *Client, f *Frame) {
	messageID := f.DataString()
	if messageID == "" {
		if m := f.DataMap(); m != nil {
			if p, err := decode.Map[markReadPayload](m); err == nil {
				messageID = p.MessageID
			}
		}
	}
	if messageID == "" {
		pushError(c, "messageId is required")
		return
	}

	msg, err := s.msgs.MarkRead(ctx, messageID)
	if err != nil {
		logger.Errorf("[chat] mark read failed user=%s msg=%s err=%v", c.UserID, messageID, err)
		pushError(c, "Failed to mark message as read")
		return
	}

	s.EmitToUser(msg.SenderID, EventMessageRead, msg.ID)
}

// handleGetMessages serves one history window and, as the read side effect,
// marks everything the other user sent to self as read, emitting one
// message_read receipt per newly-read message.
func (s *Server) handleGetMessages(ctx context.Context, c *Client, f *Frame) {
	p, ok := s.conversationParams(c, f)
	if !ok {
		return
	}

	msgs, pagination, err := s.conversationWindow(ctx, c.UserID, p.OtherUserID, p.Page, p.Limit)
	if err != nil {
		logger.Errorf("[chat] load messages failed user=%s err=%v", c.UserID, err)
		pushError(c, "Failed to load messages")
		return
	}

	newlyRead, err := s.msgs.MarkConversationRead(ctx, c.UserID, p.OtherUserID)
	if err != nil {
		logger.Errorf("[chat] mark conversation read failed user=%s err=%v", c.UserID, err)
		pushError(c, "Failed to load messages")
		return
	}

	c.Push(EventMessagesList, messageListPayload{Messages: msgs, Pagination: pagination})

	for _, id := range newlyRead {
		s.EmitToUser(p.OtherUserID, EventMessageRead, id)
	}
}

// handleLoadMoreMessages is the same window query without the read side
// effect, for scrolling back through older pages.
func (s *Server) handleLoadMoreMessages(ctx context.Context, c *Client, f *Frame) {
	p, ok := s.conversationParams(c, f)
	if !ok {
		return
	}

	msgs, pagination, err := s.conversationWindow(ctx, c.UserID, p.OtherUserID, p.Page, p.Limit)
	if err != nil {
		logger.Errorf("[chat] load more failed user=%s err=%v", c.UserID, err)
		pushError(c, "Failed to load messages")
		return
	}

	c.Push(EventMoreMessages, messageListPayload{Messages: msgs, Pagination: pagination})
}

// handleGetRecentMessages jumps back to the newest window (page 1).
func (s *Server) handleGetRecentMessages(ctx context.Context, c *Client, f *Frame) {
	p, ok := s.conversationParams(c, f)
	if !ok {
		return
	}

	msgs, pagination, err := s.conversationWindow(ctx, c.UserID, p.OtherUserID, message.DefaultPage, p.Limit)
	if err != nil {
		logger.Errorf("[chat] load recent failed user=%s err=%v", c.UserID, err)
		pushError(c, "Failed to load messages")
		return
	}

	c.Push(EventRecentMessages, messageListPayload{Messages: msgs, Pagination: pagination})
}

func (s *Server) conversationParams(c *Client, f *Frame) (*conversationPayload, bool) {
	m := f.DataMap()
	if m == nil {
		pushError(c, "otherUserId is required")
		return nil, false
	}
	p, err := decode.Map[conversationPayload](m)
	if err != nil || p.OtherUserID == "" {
		pushError(c, "otherUserId is required")
		return nil, false
	}
	p.Page, p.Limit = message.Normalize(p.Page, p.Limit)
	return p, true
}

// conversationWindow fetches one page (newest-first in the store) and hands
// it back chronological with its pagination metadata.
func (s *Server) conversationWindow(ctx context.Context, self, other string, page, limit int) ([]*chatmodel.Message, message.Pagination, error) {
	total, err := s.msgs.ConversationCount(ctx, self, other)
	if err != nil {
		return nil, message.Pagination{}, err
	}
	msgs, err := s.msgs.ConversationPage(ctx, self, other, page, limit)
	if err != nil {
		return nil, message.Pagination{}, err
	}
	if msgs == nil {
		msgs = []*chatmodel.Message{}
	}
	return message.Chronological(msgs), message.Paginate(total, page, limit), nil
}
