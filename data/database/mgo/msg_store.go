package mgo

import (
	"context"

	"github.com/affanraza84/Chatting-App/data/database/mgo/mongoutil"
	"github.com/affanraza84/Chatting-App/module/message/model"
	"github.com/affanraza84/Chatting-App/tools/errs"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MessageStore keeps messages in one collection, one document per message.
type MessageStore struct {
	cli  *mongoutil.Client
	coll *mongo.Collection
}

// NewMessageStore opens the collection and ensures the conversation index.
func NewMessageStore(ctx context.Context, cli *mongoutil.Client, collection string) (*MessageStore, error) {
	if collection == "" {
		collection = model.MsgTableName
	}
	coll := cli.GetDB().Collection(collection)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "senderId", Value: 1}, {Key: "receiverId", Value: 1}, {Key: "createdAt", Value: -1}},
		Options: options.Index().SetName("conv_created"),
	})
	if err != nil {
		return nil, errs.ErrStorage.WrapMsg("create index", "collection", collection, "err", err.Error())
	}
	return &MessageStore{cli: cli, coll: coll}, nil
}

func (s *MessageStore) Append(ctx context.Context, m *model.Message) error {
	_, err := s.coll.InsertOne(ctx, m)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// retried append of the same message
			return nil
		}
		return errs.ErrStorage.WrapMsg("insert message", "id", m.ID, "err", err.Error())
	}
	return nil
}

func (s *MessageStore) ListBetween(ctx context.Context, a, b string, opts model.ListOptions) ([]*model.Message, error) {
	opts = opts.Norm()
	findOpts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(opts.Limit))

	cur, err := s.coll.Find(ctx, conversationFilter(a, b, opts), findOpts)
	if err != nil {
		return nil, errs.ErrStorage.WrapMsg("find messages", "err", err.Error())
	}
	var out []*model.Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.ErrStorage.WrapMsg("decode messages", "err", err.Error())
	}
	reverse(out)
	if out == nil {
		out = []*model.Message{}
	}
	return out, nil
}

func (s *MessageStore) Close(ctx context.Context) error {
	return s.cli.Close(ctx)
}

func conversationFilter(a, b string, opts model.ListOptions) bson.M {
	f := bson.M{"$or": bson.A{
		bson.M{"senderId": a, "receiverId": b},
		bson.M{"senderId": b, "receiverId": a},
	}}
	if !opts.Before.IsZero() {
		f["createdAt"] = bson.M{"$lt": opts.Before}
	}
	return f
}

func reverse(list []*model.Message) {
	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}
}
