package message

import (
	"context"
	"e2e_transport/internal/model"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusSyncing    Status = "syncing"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
	StatusSyncFailed Status = "sync_failed"
	StatusReceived   Status = "received"
)

type (
	// Document is a stored message. Body holds display text; control messages
	// are stored as short notices.
	Document struct {
		ID                int64         `bson:"_id"`
		ThreadID          int64         `bson:"thread_id"`
		ThreadAddress     model.Address `bson:"thread_address"`
		Author            string        `bson:"author"`
		Timestamp         int64         `bson:"timestamp"`
		ReceivedTimestamp int64         `bson:"received_timestamp,omitempty"`
		Kind              string        `bson:"kind"`
		Body              string        `bson:"body,omitempty"`
		ServerHash        string        `bson:"server_hash,omitempty"`
		OpenGroupServerID int64         `bson:"open_group_server_id,omitempty"`
		Outgoing          bool          `bson:"outgoing"`
		Read              bool          `bson:"read"`
		Deleted           bool          `bson:"deleted,omitempty"`
		Status            Status        `bson:"status"`
		Error             string        `bson:"error,omitempty"`
	}

	MessageRepo struct {
		threads   *mongo.Collection
		messages  *mongo.Collection
		reactions *mongo.Collection
		counters  *mongo.Collection
	}
)

func NewMessageRepo(db *mongo.Database) *MessageRepo {
	return &MessageRepo{
		threads:   db.Collection("threads"),
		messages:  db.Collection("messages"),
		reactions: db.Collection("reactions"),
		counters:  db.Collection("counters"),
	}
}

// EnsureIndexes creates the lookups the repository relies on.
func (r *MessageRepo) EnsureIndexes(ctx context.Context) error {
	if _, err := r.threads.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "address", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return err
	}
	_, err := r.messages.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "timestamp", Value: 1}, {Key: "author", Value: 1}}},
		{Keys: bson.D{{Key: "thread_id", Value: 1}, {Key: "open_group_server_id", Value: 1}}},
	})
	if err != nil {
		return err
	}
	_, err = r.reactions.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "message_id", Value: 1}}})
	return err
}

func (r *MessageRepo) nextID(ctx context.Context, name string) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := r.counters.FindOneAndUpdate(ctx, bson.M{"_id": name}, bson.M{"$inc": bson.M{"seq": 1}}, opts).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next %s id: %w", name, err)
	}
	return counter.Seq, nil
}

// Insert stores doc under a fresh id and returns it.
func (r *MessageRepo) Insert(ctx context.Context, doc *Document) (int64, error) {
	id, err := r.nextID(ctx, "messages")
	if err != nil {
		return 0, err
	}
	doc.ID = id
	if _, err := r.messages.InsertOne(ctx, doc); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *MessageRepo) Get(ctx context.Context, id int64) (*Document, error) {
	var doc Document
	err := r.messages.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// List returns the newest limit messages of a thread, oldest first.
func (r *MessageRepo) List(ctx context.Context, threadID int64, limit int64) ([]*Document, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(limit)
	cur, err := r.messages.Find(ctx, bson.M{"thread_id": threadID}, opts)
	if err != nil {
		return nil, err
	}
	var docs []*Document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	for i, j := 0, len(docs)-1; i < j; i, j = i+1, j-1 {
		docs[i], docs[j] = docs[j], docs[i]
	}
	return docs, nil
}

func (r *MessageRepo) set(ctx context.Context, id int64, fields bson.M) error {
	_, err := r.messages.UpdateByID(ctx, id, bson.M{"$set": fields})
	return err
}

func (r *MessageRepo) IsDeleted(ctx context.Context, id int64) (bool, error) {
	doc, err := r.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return doc == nil || doc.Deleted, nil
}

func (r *MessageRepo) SetServerHash(ctx context.Context, id int64, hash string) error {
	return r.set(ctx, id, bson.M{"server_hash": hash})
}

func (r *MessageRepo) ClearError(ctx context.Context, id int64) error {
	_, err := r.messages.UpdateByID(ctx, id, bson.M{"$unset": bson.M{"error": ""}})
	return err
}

func (r *MessageRepo) MarkSent(ctx context.Context, id int64) error {
	return r.set(ctx, id, bson.M{"status": StatusSent})
}

func (r *MessageRepo) MarkSyncing(ctx context.Context, id int64) error {
	return r.set(ctx, id, bson.M{"status": StatusSyncing})
}

func (r *MessageRepo) MarkSentFailed(ctx context.Context, id int64, cause error) error {
	return r.set(ctx, id, bson.M{"status": StatusFailed, "error": errString(cause)})
}

func (r *MessageRepo) MarkSyncFailed(ctx context.Context, id int64, cause error) error {
	return r.set(ctx, id, bson.M{"status": StatusSyncFailed, "error": errString(cause)})
}

func (r *MessageRepo) UpdateSentTimestamp(ctx context.Context, id int64, ts int64) error {
	return r.set(ctx, id, bson.M{"timestamp": ts})
}

func (r *MessageRepo) SetOpenGroupServerMessageID(ctx context.Context, id, serverID, threadID int64) error {
	return r.set(ctx, id, bson.M{"open_group_server_id": serverID, "thread_id": threadID})
}

func (r *MessageRepo) MessageByTimestamp(ctx context.Context, ts int64, author string) (*model.MessageRecord, error) {
	var doc Document
	err := r.messages.FindOne(ctx, bson.M{"timestamp": ts, "author": author}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.Record(), nil
}

func (r *MessageRepo) MessageIDByServerID(ctx context.Context, threadID, serverID int64) (int64, bool, error) {
	var doc Document
	err := r.messages.FindOne(ctx, bson.M{"thread_id": threadID, "open_group_server_id": serverID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return doc.ID, true, nil
}

func (r *MessageRepo) DeleteMessage(ctx context.Context, id int64) error {
	_, err := r.messages.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (r *MessageRepo) MarkMessageDeleted(ctx context.Context, id int64, placeholder string) error {
	return r.set(ctx, id, bson.M{"deleted": true, "body": placeholder})
}

// DeleteByAuthors removes messages authors sent to a thread at or before ts.
func (r *MessageRepo) DeleteByAuthors(ctx context.Context, threadID int64, authors []string, before int64) (int64, error) {
	res, err := r.messages.DeleteMany(ctx, bson.M{
		"thread_id": threadID,
		"author":    bson.M{"$in": authors},
		"timestamp": bson.M{"$lte": before},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteByHashes removes messages of a thread by server hash. A non-empty
// author restricts the deletion to that author's messages.
func (r *MessageRepo) DeleteByHashes(ctx context.Context, threadID int64, hashes []string, author string) (int64, error) {
	filter := bson.M{"thread_id": threadID, "server_hash": bson.M{"$in": hashes}}
	if author != "" {
		filter["author"] = author
	}
	res, err := r.messages.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// MarkReadByTimestamps marks our outgoing messages the peer reports as read.
func (r *MessageRepo) MarkReadByTimestamps(ctx context.Context, threadID int64, timestamps []int64) error {
	_, err := r.messages.UpdateMany(ctx,
		bson.M{"thread_id": threadID, "outgoing": true, "timestamp": bson.M{"$in": timestamps}},
		bson.M{"$set": bson.M{"read": true}})
	return err
}

func (r *MessageRepo) InsertDataExtractionNotification(ctx context.Context, threadID int64, m *model.Message) error {
	d, ok := m.Body.(*model.DataExtractionNotification)
	if !ok {
		return fmt.Errorf("not a data extraction notification: %s", m.Kind())
	}
	body := "took a screenshot"
	if d.Type == model.DataExtractionMediaSaved {
		body = "saved media"
	}
	_, err := r.Insert(ctx, &Document{
		ThreadID:          threadID,
		Author:            m.Sender,
		Timestamp:         m.SentTimestamp,
		ReceivedTimestamp: m.ReceivedTimestamp,
		Kind:              m.Kind().String(),
		Body:              body,
		Status:            StatusReceived,
	})
	return err
}

func (r *MessageRepo) InsertGroupInfoChange(ctx context.Context, m *model.Message, groupID model.AccountID) error {
	threadID, err := r.GetOrCreateThreadID(ctx, model.GroupAddress(groupID.Hex()))
	if err != nil {
		return err
	}
	_, err = r.Insert(ctx, &Document{
		ThreadID:          threadID,
		ThreadAddress:     model.GroupAddress(groupID.Hex()),
		Author:            m.Sender,
		Timestamp:         m.SentTimestamp,
		ReceivedTimestamp: m.ReceivedTimestamp,
		Kind:              m.Kind().String(),
		Body:              GroupNotice(m),
		Outgoing:          m.IsSenderSelf,
		Status:            StatusReceived,
	})
	return err
}

// Record is the view of d the receive pipeline works with.
func (d *Document) Record() *model.MessageRecord {
	return &model.MessageRecord{
		ID:            d.ID,
		ThreadID:      d.ThreadID,
		ThreadAddress: d.ThreadAddress,
		Author:        d.Author,
		Timestamp:     d.Timestamp,
		ServerHash:    d.ServerHash,
		Outgoing:      d.Outgoing,
		Deleted:       d.Deleted,
	}
}

// GroupNotice renders a group control message for display.
func GroupNotice(m *model.Message) string {
	g, ok := m.Body.(*model.GroupUpdated)
	if !ok {
		return ""
	}
	switch u := g.Update.(type) {
	case *model.GroupInfoChange:
		switch u.Type {
		case model.InfoChangeName:
			return fmt.Sprintf("renamed the group to %q", u.UpdatedName)
		case model.InfoChangeAvatar:
			return "changed the group picture"
		case model.InfoChangeDisappearingMessages:
			return fmt.Sprintf("set disappearing messages to %ds", u.UpdatedExpiration)
		}
	case *model.GroupMemberChange:
		verb := map[model.MemberChangeType]string{
			model.MemberChangeAdded:    "added",
			model.MemberChangeRemoved:  "removed",
			model.MemberChangePromoted: "promoted",
		}[u.Type]
		return fmt.Sprintf("%s %d member(s)", verb, len(u.MemberIDs))
	case *model.GroupMemberLeftNotification:
		return "left the group"
	}
	return "updated the group"
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
