package account

import (
	"context"
	"crypto/ed25519"
	"e2e_transport/internal/model"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrUnknownGroup = errors.New("unknown group")

// GroupDocument is the local state of a group we were invited to or admin.
type GroupDocument struct {
	ID             string   `bson:"_id"`
	Name           string   `bson:"name"`
	EncryptionKeys [][]byte `bson:"encryption_keys"`
	SigningKey     []byte   `bson:"signing_key,omitempty"`
	AuthData       []byte   `bson:"auth_data,omitempty"`
	Members        []string `bson:"members"`
	Invited        bool     `bson:"invited"`
}

func (r *AccountRepo) Group(ctx context.Context, groupID string) (*GroupDocument, error) {
	var doc GroupDocument
	err := r.groups.FindOne(ctx, bson.M{"_id": groupID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *AccountRepo) SaveGroup(ctx context.Context, doc *GroupDocument) error {
	_, err := r.groups.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (r *AccountRepo) UpdateGroup(ctx context.Context, groupID string, update bson.M) error {
	_, err := r.groups.UpdateOne(ctx, bson.M{"_id": groupID}, update, options.Update().SetUpsert(true))
	return err
}

// PushGroupKey makes key the current encryption key of the group.
func (r *AccountRepo) PushGroupKey(ctx context.Context, groupID string, key []byte) error {
	return r.UpdateGroup(ctx, groupID, bson.M{"$push": bson.M{"encryption_keys": bson.M{"$each": [][]byte{key}, "$position": 0}}})
}

func (r *AccountRepo) GroupKeys(ctx context.Context, groupID string) (*model.GroupKeys, error) {
	doc, err := r.Group(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGroup, groupID)
	}
	id, err := model.ParseAccountID(groupID)
	if err != nil {
		return nil, err
	}
	return &model.GroupKeys{
		GroupID:        id,
		EncryptionKeys: doc.EncryptionKeys,
		SigningKey:     ed25519.PrivateKey(doc.SigningKey),
	}, nil
}

// GroupAuth authorizes writes to the group's swarm: admins sign with the
// group key, members present the auth data they were invited with.
func (r *AccountRepo) GroupAuth(ctx context.Context, groupID string) (*model.SwarmAuth, error) {
	doc, err := r.Group(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGroup, groupID)
	}
	key := doc.SigningKey
	if len(key) == 0 {
		key = doc.AuthData
	}
	return &model.SwarmAuth{AccountID: groupID, SigningKey: key}, nil
}

func (r *AccountRepo) LegacyGroup(ctx context.Context, publicKey string) (*model.LegacyGroup, error) {
	var g model.LegacyGroup
	err := r.legacyGroups.FindOne(ctx, bson.M{"public_key": publicKey}).Decode(&g)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *AccountRepo) SaveLegacyGroup(ctx context.Context, g *model.LegacyGroup) error {
	_, err := r.legacyGroups.ReplaceOne(ctx, bson.M{"public_key": g.PublicKey}, g, options.Replace().SetUpsert(true))
	return err
}

// Groups lists every group we are a member or admin of.
func (r *AccountRepo) Groups(ctx context.Context) ([]*GroupDocument, error) {
	cur, err := r.groups.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	var docs []*GroupDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *AccountRepo) LegacyGroups(ctx context.Context) ([]*model.LegacyGroup, error) {
	cur, err := r.legacyGroups.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	var groups []*model.LegacyGroup
	if err := cur.All(ctx, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}
