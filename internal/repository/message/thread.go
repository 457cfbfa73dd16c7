package message

import (
	"context"
	"e2e_transport/internal/model"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ThreadDocument struct {
	ID            int64            `bson:"_id"`
	Address       string           `bson:"address"`
	Conversation  model.Address    `bson:"conversation"`
	LastSeen      int64            `bson:"last_seen"`
	LastMessageAt int64            `bson:"last_message_at"`
	Unread        int64            `bson:"unread"`
	Expiry        model.ExpiryMode `bson:"expiry"`
}

func (r *MessageRepo) thread(ctx context.Context, filter bson.M) (*ThreadDocument, error) {
	var doc ThreadDocument
	err := r.threads.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *MessageRepo) Thread(ctx context.Context, id int64) (*ThreadDocument, error) {
	return r.thread(ctx, bson.M{"_id": id})
}

func (r *MessageRepo) GetThreadID(ctx context.Context, address string) (int64, bool, error) {
	doc, err := r.thread(ctx, bson.M{"address": address})
	if err != nil || doc == nil {
		return 0, false, err
	}
	return doc.ID, true, nil
}

func (r *MessageRepo) GetOrCreateThreadID(ctx context.Context, addr model.Address) (int64, error) {
	if id, ok, err := r.GetThreadID(ctx, addr.String()); err != nil || ok {
		return id, err
	}

	id, err := r.nextID(ctx, "threads")
	if err != nil {
		return 0, err
	}
	// a concurrent creator may win the upsert; its id is the one kept
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var doc ThreadDocument
	err = r.threads.FindOneAndUpdate(ctx,
		bson.M{"address": addr.String()},
		bson.M{"$setOnInsert": bson.M{"_id": id, "conversation": addr, "last_seen": 0, "unread": 0}},
		opts).Decode(&doc)
	if err != nil {
		return 0, err
	}
	return doc.ID, nil
}

func (r *MessageRepo) LastSeen(ctx context.Context, threadID int64) (int64, error) {
	doc, err := r.Thread(ctx, threadID)
	if err != nil || doc == nil {
		return 0, err
	}
	return doc.LastSeen, nil
}

func (r *MessageRepo) MarkConversationAsRead(ctx context.Context, threadID, lastSeen int64) error {
	if _, err := r.threads.UpdateByID(ctx, threadID, bson.M{"$max": bson.M{"last_seen": lastSeen}}); err != nil {
		return err
	}
	_, err := r.messages.UpdateMany(ctx,
		bson.M{"thread_id": threadID, "outgoing": false, "timestamp": bson.M{"$lte": lastSeen}},
		bson.M{"$set": bson.M{"read": true}})
	return err
}

// UpdateThread recomputes the unread count and latest activity.
func (r *MessageRepo) UpdateThread(ctx context.Context, threadID int64) error {
	unread, err := r.messages.CountDocuments(ctx, bson.M{
		"thread_id": threadID,
		"outgoing":  false,
		"read":      false,
		"deleted":   bson.M{"$ne": true},
	})
	if err != nil {
		return err
	}

	fields := bson.M{"unread": unread}
	var last Document
	err = r.messages.FindOne(ctx, bson.M{"thread_id": threadID},
		options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}})).Decode(&last)
	switch {
	case err == nil:
		fields["last_message_at"] = last.Timestamp
	case !errors.Is(err, mongo.ErrNoDocuments):
		return err
	}
	_, err = r.threads.UpdateByID(ctx, threadID, bson.M{"$set": fields})
	return err
}

func (r *MessageRepo) ExpiryMode(ctx context.Context, address string) (model.ExpiryMode, error) {
	doc, err := r.thread(ctx, bson.M{"address": address})
	if err != nil || doc == nil {
		return model.ExpiryMode{}, err
	}
	return doc.Expiry, nil
}

func (r *MessageRepo) SetExpiryMode(ctx context.Context, threadID int64, mode model.ExpiryMode) error {
	_, err := r.threads.UpdateByID(ctx, threadID, bson.M{"$set": bson.M{"expiry": mode}})
	return err
}
