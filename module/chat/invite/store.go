package invite

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	chatmodel "ChatLink/module/chat/model"
	"ChatLink/tools/errs"
)

// MongoStore is the Store implementation over the invitation collection.
type MongoStore struct {
	InvColl *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

func NewMongoStore(db *mongo.Database) *MongoStore {
	inv := chatmodel.Invitation{}
	return &MongoStore{InvColl: db.Collection(inv.TableName())}
}

func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.InvColl.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{
			{Key: chatmodel.InvitationFieldSenderID, Value: 1},
			{Key: chatmodel.InvitationFieldRecipient, Value: 1},
			{Key: chatmodel.InvitationFieldStatus, Value: 1},
		}},
		{Keys: bson.D{
			{Key: chatmodel.InvitationFieldRecipient, Value: 1},
			{Key: chatmodel.InvitationFieldCreatedAt, Value: -1},
		}},
	})
	return errors.Wrap(err, "create invitation indexes")
}

// FindPending returns the pending invitation between a and b in either
// orientation, or nil when none exists.
func (s *MongoStore) FindPending(ctx context.Context, a, b string) (*chatmodel.Invitation, error) {
	filter := bson.M{
		chatmodel.InvitationFieldStatus: chatmodel.InvitationPending,
		"$or": bson.A{
			bson.M{chatmodel.InvitationFieldSenderID: a, chatmodel.InvitationFieldRecipient: b},
			bson.M{chatmodel.InvitationFieldSenderID: b, chatmodel.InvitationFieldRecipient: a},
		},
	}
	var out chatmodel.Invitation
	err := s.InvColl.FindOne(ctx, filter).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find pending invitation")
	}
	return &out, nil
}

func (s *MongoStore) Insert(ctx context.Context, inv *chatmodel.Invitation) error {
	_, err := s.InvColl.InsertOne(ctx, inv)
	return errors.Wrap(err, "insert invitation")
}

func (s *MongoStore) Get(ctx context.Context, id string) (*chatmodel.Invitation, error) {
	var out chatmodel.Invitation
	err := s.InvColl.FindOne(ctx, bson.M{chatmodel.InvitationFieldID: id}).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrNotFound.WithDetail("invitation " + id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "find invitation")
	}
	return &out, nil
}

func (s *MongoStore) SetStatus(ctx context.Context, id, status string, at time.Time) error {
	_, err := s.InvColl.UpdateOne(ctx,
		bson.M{chatmodel.InvitationFieldID: id},
		bson.M{"$set": bson.M{
			chatmodel.InvitationFieldStatus:    status,
			chatmodel.InvitationFieldUpdatedAt: at,
		}},
	)
	return errors.Wrap(err, "update invitation status")
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	_, err := s.InvColl.DeleteOne(ctx, bson.M{chatmodel.InvitationFieldID: id})
	return errors.Wrap(err, "delete invitation")
}

func (s *MongoStore) ListForUser(ctx context.Context, userID string) ([]*chatmodel.Invitation, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{chatmodel.InvitationFieldSenderID: userID},
		bson.M{chatmodel.InvitationFieldRecipient: userID},
	}}
	cur, err := s.InvColl.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: chatmodel.InvitationFieldCreatedAt, Value: -1}}))
	if err != nil {
		return nil, errors.Wrap(err, "list invitations")
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []*chatmodel.Invitation
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode invitations")
	}
	return out, nil
}
