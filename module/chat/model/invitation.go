package model

import "time"

const InvitationTableName = "invitations"

// Invitation statuses. pending is the only non-terminal state; the recipient
// moves it to accepted or rejected exactly once.
const (
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
	InvitationRejected = "rejected"
)

// Invitation is a contact invitation between two users. At most one pending
// invitation may exist per unordered pair; the create path enforces it.
type Invitation struct {
	ID          string    `bson:"_id" json:"id"`
	SenderID    string    `bson:"sender_id" json:"senderId"`
	RecipientID string    `bson:"recipient_id" json:"recipientId"`
	Status      string    `bson:"status" json:"status"`
	CreatedAt   time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updatedAt"`
}

const (
	InvitationFieldID        = "_id"
	InvitationFieldSenderID  = "sender_id"
	InvitationFieldRecipient = "recipient_id"
	InvitationFieldStatus    = "status"
	InvitationFieldCreatedAt = "created_at"
	InvitationFieldUpdatedAt = "updated_at"
)

func (*Invitation) TableName() string { return InvitationTableName }

// ValidStatusTransition reports whether status may move from cur to next.
func ValidStatusTransition(cur, next string) bool {
	if cur != InvitationPending {
		return false
	}
	return next == InvitationAccepted || next == InvitationRejected
}
