package account

import (
	"context"
	"crypto/ed25519"
	"e2e_transport/internal/model"
	"e2e_transport/internal/utils/clock"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type (
	Account struct {
		ID   primitive.ObjectID `bson:"_id,omitempty"`
		Name string             `bson:"name"`
		// Seed is the Ed25519 seed the whole identity derives from.
		Seed                    []byte        `bson:"seed"`
		Profile                 model.Profile `bson:"profile"`
		BlocksCommunityRequests bool          `bson:"blocks_community_requests"`
		// ContactsUpdatedAt is when the contact list last changed, in ms.
		ContactsUpdatedAt int64 `bson:"contacts_updated_at"`
	}

	// AccountRepo stores one local account and everything it knows about
	// other accounts and groups.
	AccountRepo struct {
		owner        string
		clock        clock.Clock
		accounts     *mongo.Collection
		contacts     *mongo.Collection
		groups       *mongo.Collection
		legacyGroups *mongo.Collection
	}
)

func NewAccountRepo(db *mongo.Database, owner string, c clock.Clock) *AccountRepo {
	return &AccountRepo{
		owner:        owner,
		clock:        c,
		accounts:     db.Collection("accounts"),
		contacts:     db.Collection("contacts"),
		groups:       db.Collection("groups"),
		legacyGroups: db.Collection("legacy_groups"),
	}
}

func (a *Account) KeyPair() *model.UserKeyPair {
	return &model.UserKeyPair{Ed25519: ed25519.NewKeyFromSeed(a.Seed)}
}

func (r *AccountRepo) GetByName(ctx context.Context, name string) (*Account, error) {
	filter := bson.M{
		"name": name,
	}

	var acc Account
	err := r.accounts.FindOne(ctx, filter).Decode(&acc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return &acc, nil
}

func (r *AccountRepo) Create(ctx context.Context, acc *Account) (primitive.ObjectID, error) {
	res, err := r.accounts.InsertOne(ctx, acc)
	if err != nil {
		return primitive.NilObjectID, err
	}

	id := res.InsertedID.(primitive.ObjectID)
	acc.ID = id
	return id, nil
}

func (r *AccountRepo) owned(ctx context.Context) (*Account, error) {
	acc, err := r.GetByName(ctx, r.owner)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, errors.New("account " + r.owner + " does not exist")
	}
	return acc, nil
}

func (r *AccountRepo) Profile(ctx context.Context) *model.Profile {
	acc, err := r.owned(ctx)
	if err != nil {
		return nil
	}
	return &acc.Profile
}

func (r *AccountRepo) BlocksCommunityMessageRequests(ctx context.Context) bool {
	acc, err := r.owned(ctx)
	return err == nil && acc.BlocksCommunityRequests
}

func (r *AccountRepo) SetProfile(ctx context.Context, p model.Profile) error {
	_, err := r.accounts.UpdateOne(ctx, bson.M{"name": r.owner}, bson.M{"$set": bson.M{"profile": p}})
	return err
}

func (r *AccountRepo) ContactConfigTimestamp(ctx context.Context) (int64, error) {
	acc, err := r.owned(ctx)
	if err != nil {
		return 0, err
	}
	return acc.ContactsUpdatedAt, nil
}

func (r *AccountRepo) Recipient(ctx context.Context, addr model.Address) (*model.Recipient, error) {
	var rec model.Recipient
	err := r.contacts.FindOne(ctx, bson.M{"_id": addr.String()}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// SaveRecipient upserts rec and stamps the contact list as changed.
func (r *AccountRepo) SaveRecipient(ctx context.Context, rec *model.Recipient) error {
	_, err := r.contacts.ReplaceOne(ctx, bson.M{"_id": rec.Address.String()}, rec, options.Replace().SetUpsert(true))
	if err != nil {
		return err
	}
	_, err = r.accounts.UpdateOne(ctx, bson.M{"name": r.owner},
		bson.M{"$set": bson.M{"contacts_updated_at": r.clock.NowMillis()}})
	return err
}

func (r *AccountRepo) IsBlocked(ctx context.Context, accountID string) bool {
	rec, err := r.Recipient(ctx, model.StandardAddress(accountID))
	return err == nil && rec != nil && rec.Blocked
}

// UpdateProfile records the display name a contact announced.
func (r *AccountRepo) UpdateProfile(ctx context.Context, sender string, p *model.Profile) error {
	if p == nil || p.DisplayName == "" {
		return nil
	}
	_, err := r.contacts.UpdateOne(ctx,
		bson.M{"_id": model.StandardAddress(sender).String()},
		bson.M{
			"$set":         bson.M{"name": p.DisplayName},
			"$setOnInsert": bson.M{"address": model.StandardAddress(sender)},
		},
		options.Update().SetUpsert(true))
	return err
}

// Approve marks a contact as an accepted conversation partner.
func (r *AccountRepo) Approve(ctx context.Context, id string, approved bool) error {
	rec, err := r.Recipient(ctx, model.StandardAddress(id))
	if err != nil {
		return err
	}
	if rec == nil {
		rec = &model.Recipient{Address: model.StandardAddress(id)}
	}
	rec.Approved = approved
	return r.SaveRecipient(ctx, rec)
}
