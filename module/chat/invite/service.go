package invite

import (
	"context"
	"time"

	chatmodel "ChatLink/module/chat/model"
	"ChatLink/tools/errs"
	"ChatLink/tools/ids"
)

// Store is the persistence surface the invitation rules need. The mongo
// implementation lives in store.go; tests substitute an in-memory one.
type Store interface {
	FindPending(ctx context.Context, a, b string) (*chatmodel.Invitation, error)
	Insert(ctx context.Context, inv *chatmodel.Invitation) error
	Get(ctx context.Context, id string) (*chatmodel.Invitation, error)
	SetStatus(ctx context.Context, id, status string, at time.Time) error
	Delete(ctx context.Context, id string) error
	ListForUser(ctx context.Context, userID string) ([]*chatmodel.Invitation, error)
}

// Service owns the invitation rules: one pending invitation per unordered
// pair, recipient-only status transitions, deletion by either party.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Create inserts a pending invitation from sender to recipient. A pending
// invitation in either orientation makes the call fail with a conflict;
// first writer wins.
func (s *Service) Create(ctx context.Context, senderID, recipientID string) (*chatmodel.Invitation, error) {
	if senderID == "" || recipientID == "" {
		return nil, errs.ErrBadRequest.WithDetail("senderId and recipientId are required")
	}
	if senderID == recipientID {
		return nil, errs.ErrBadRequest.WithDetail("cannot invite yourself")
	}

	existing, err := s.store.FindPending(ctx, senderID, recipientID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errs.ErrConflict.WithDetail("invitation already pending")
	}

	now := time.Now()
	inv := &chatmodel.Invitation{
		ID:          ids.GenerateString(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Status:      chatmodel.InvitationPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Insert(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// Respond moves a pending invitation to accepted or rejected. Only the
// recipient may respond, and terminal states never change again.
func (s *Service) Respond(ctx context.Context, id, userID, status string) (*chatmodel.Invitation, error) {
	if status != chatmodel.InvitationAccepted && status != chatmodel.InvitationRejected {
		return nil, errs.ErrBadRequest.WithDetail("status must be accepted or rejected")
	}

	inv, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.RecipientID != userID {
		return nil, errs.ErrForbidden.WithDetail("only the recipient may respond")
	}
	if !chatmodel.ValidStatusTransition(inv.Status, status) {
		return nil, errs.ErrConflict.WithDetail("invitation already " + inv.Status)
	}

	now := time.Now()
	if err := s.store.SetStatus(ctx, id, status, now); err != nil {
		return nil, err
	}
	inv.Status = status
	inv.UpdatedAt = now
	return inv, nil
}

// Delete removes an invitation; either participant may do so regardless of
// status (disconnect semantics).
func (s *Service) Delete(ctx context.Context, id, userID string) error {
	inv, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if inv.SenderID != userID && inv.RecipientID != userID {
		return errs.ErrForbidden.WithDetail("not a participant of this invitation")
	}
	return s.store.Delete(ctx, id)
}

// ListForUser returns the invitations where the user is sender or recipient,
// newest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]*chatmodel.Invitation, error) {
	return s.store.ListForUser(ctx, userID)
}
