package message

import (
	"context"
	"e2e_transport/internal/model"

	"go.mongodb.org/mongo-driver/bson"
)

func (r *MessageRepo) DeleteReactions(ctx context.Context, messageID int64) error {
	_, err := r.reactions.DeleteMany(ctx, bson.M{"message_id": messageID})
	return err
}

// AddReactions stores reactions per message. With replaceAll the stored
// reactions of every listed message are dropped first, so an empty list
// clears them.
func (r *MessageRepo) AddReactions(ctx context.Context, reactions map[int64][]model.ReactionRecord, replaceAll bool) error {
	for messageID, records := range reactions {
		if replaceAll {
			if err := r.DeleteReactions(ctx, messageID); err != nil {
				return err
			}
		}
		if len(records) == 0 {
			continue
		}
		docs := make([]any, len(records))
		for i := range records {
			docs[i] = records[i]
		}
		if _, err := r.reactions.InsertMany(ctx, docs); err != nil {
			return err
		}
	}
	return nil
}

func (r *MessageRepo) Reactions(ctx context.Context, messageID int64) ([]model.ReactionRecord, error) {
	cur, err := r.reactions.Find(ctx, bson.M{"message_id": messageID})
	if err != nil {
		return nil, err
	}
	var out []model.ReactionRecord
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
