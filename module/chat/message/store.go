package message

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	chatmodel "ChatLink/module/chat/model"
	"ChatLink/tools/errs"
)

// Store persists direct messages in the message collection.
type Store struct {
	MsgColl *mongo.Collection
}

func NewStore(db *mongo.Database) *Store {
	msg := chatmodel.Message{}
	return &Store{MsgColl: db.Collection(msg.TableName())}
}

// EnsureIndexes creates the conversation compound indexes (both orientations,
// newest-first) used by every page query.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.MsgColl.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{
			{Key: chatmodel.MessageFieldSenderID, Value: 1},
			{Key: chatmodel.MessageFieldRecipient, Value: 1},
			{Key: chatmodel.MessageFieldCreatedAt, Value: -1},
		}},
		{Keys: bson.D{
			{Key: chatmodel.MessageFieldRecipient, Value: 1},
			{Key: chatmodel.MessageFieldSenderID, Value: 1},
			{Key: chatmodel.MessageFieldCreatedAt, Value: -1},
		}},
	})
	return errors.Wrap(err, "create message indexes")
}

// conversationFilter matches both orientations of the {a, b} pair.
func conversationFilter(a, b string) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{chatmodel.MessageFieldSenderID: a, chatmodel.MessageFieldRecipient: b},
		bson.M{chatmodel.MessageFieldSenderID: b, chatmodel.MessageFieldRecipient: a},
	}}
}

func (s *Store) Insert(ctx context.Context, m *chatmodel.Message) error {
	_, err := s.MsgColl.InsertOne(ctx, m)
	return errors.Wrap(err, "insert message")
}

// ConversationPage returns one window of the conversation, newest first.
// Ties on created_at fall back to _id so paging never reorders.
func (s *Store) ConversationPage(ctx context.Context, a, b string, page, limit int) ([]*chatmodel.Message, error) {
	page, limit = Normalize(page, limit)
	skip := int64(page-1) * int64(limit)

	cur, err := s.MsgColl.Find(ctx, conversationFilter(a, b),
		options.Find().
			SetSort(bson.D{
				{Key: chatmodel.MessageFieldCreatedAt, Value: -1},
				{Key: chatmodel.MessageFieldID, Value: -1},
			}).
			SetSkip(skip).
			SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, errors.Wrap(err, "find conversation page")
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []*chatmodel.Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode conversation page")
	}
	return out, nil
}

func (s *Store) ConversationCount(ctx context.Context, a, b string) (int64, error) {
	n, err := s.MsgColl.CountDocuments(ctx, conversationFilter(a, b))
	return n, errors.Wrap(err, "count conversation")
}

// MarkRead flips the read flag of one message and returns the updated record
// (the caller needs sender_id to route the receipt).
func (s *Store) MarkRead(ctx context.Context, messageID string) (*chatmodel.Message, error) {
	res := s.MsgColl.FindOneAndUpdate(ctx,
		bson.M{chatmodel.MessageFieldID: messageID},
		bson.M{"$set": bson.M{chatmodel.MessageFieldRead: true}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var out chatmodel.Message
	if err := res.Decode(&out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errs.ErrNotFound.WithDetail("message " + messageID)
		}
		return nil, errors.Wrap(err, "mark message read")
	}
	return &out, nil
}

// MarkConversationRead marks every unread message sent by senderID to
// recipientID as read, returning the ids that actually flipped.
func (s *Store) MarkConversationRead(ctx context.Context, recipientID, senderID string) ([]string, error) {
	filter := bson.M{
		chatmodel.MessageFieldRecipient: recipientID,
		chatmodel.MessageFieldSenderID:  senderID,
		chatmodel.MessageFieldRead:      false,
	}

	cur, err := s.MsgColl.Find(ctx, filter,
		options.Find().SetProjection(bson.M{chatmodel.MessageFieldID: 1}))
	if err != nil {
		return nil, errors.Wrap(err, "find unread messages")
	}
	defer func() { _ = cur.Close(ctx) }()

	var ids []string
	for cur.Next(ctx) {
		var m chatmodel.Message
		if err := cur.Decode(&m); err != nil {
			return nil, errors.Wrap(err, "decode unread message")
		}
		ids = append(ids, m.ID)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	_, err = s.MsgColl.UpdateMany(ctx,
		bson.M{chatmodel.MessageFieldID: bson.M{"$in": ids}},
		bson.M{"$set": bson.M{chatmodel.MessageFieldRead: true}},
	)
	if err != nil {
		return nil, errors.Wrap(err, "mark conversation read")
	}
	return ids, nil
}
