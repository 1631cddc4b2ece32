package model

import "time"

const MessageTableName = "messages"

// Message is one direct message between two users. The conversation between
// A and B is every message whose {sender, recipient} pair equals {A, B} in
// either orientation. created_at orders a conversation; _id (snowflake,
// insertion-ordered) breaks ties within the same millisecond.
type Message struct {
	ID          string    `bson:"_id" json:"id"`
	SenderID    string    `bson:"sender_id" json:"senderId"`
	RecipientID string    `bson:"recipient_id" json:"recipientId"`
	Content     string    `bson:"content" json:"content"`
	Read        bool      `bson:"read" json:"read"`
	CreatedAt   time.Time `bson:"created_at" json:"createdAt"`
}

const (
	MessageFieldID        = "_id"
	MessageFieldSenderID  = "sender_id"
	MessageFieldRecipient = "recipient_id"
	MessageFieldRead      = "read"
	MessageFieldCreatedAt = "created_at"
)

func (*Message) TableName() string { return MessageTableName }
