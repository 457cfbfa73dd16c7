// Package strategy turns serialized content into the bytes sent to a
// destination, choosing encryption and envelope type by destination kind.
package strategy

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"

	"e2e_transport/internal/cryptographic/blinding"
	"e2e_transport/internal/cryptographic/encryption"
	"e2e_transport/internal/cryptographic/padding"
	"e2e_transport/internal/cryptographic/signature"
	"e2e_transport/internal/model"
	"e2e_transport/internal/protocol/envelope"
)

var (
	ErrNoUserKeyPair      = errors.New("no user key pair")
	ErrNoKeyPair          = errors.New("no key pair for destination")
	ErrEncryptionFailed   = errors.New("encryption failed")
	ErrSigningFailed      = errors.New("signing failed")
	ErrInvalidDestination = errors.New("invalid destination")
)

type (
	GroupKeyStore interface {
		GroupKeys(ctx context.Context, groupID string) (*model.GroupKeys, error)
	}

	LegacyGroupStore interface {
		LegacyGroup(ctx context.Context, publicKey string) (*model.LegacyGroup, error)
	}

	Strategy struct {
		user   *model.UserKeyPair
		groups GroupKeyStore
		legacy LegacyGroupStore
	}

	// Result is what a destination receives. Payload is an envelope for swarm
	// destinations and the padded content for community posts.
	Result struct {
		EnvelopeType model.EnvelopeType
		SenderKey    string
		Payload      []byte
	}
)

func New(user *model.UserKeyPair, groups GroupKeyStore, legacy LegacyGroupStore) *Strategy {
	return &Strategy{user: user, groups: groups, legacy: legacy}
}

// Encrypt pads content and applies the destination's encryption. timestamp
// is the message's sent timestamp and is stamped on any envelope produced.
func (s *Strategy) Encrypt(ctx context.Context, dest model.Destination, content []byte, timestamp int64) (*Result, error) {
	if s.user == nil || len(s.user.Ed25519) == 0 {
		return nil, ErrNoUserKeyPair
	}
	padded := padding.Pad(content)

	switch d := dest.(type) {
	case model.Contact:
		return s.encryptContact(d, padded, timestamp)
	case model.LegacyClosedGroup:
		return s.encryptLegacyGroup(ctx, d, padded, timestamp)
	case model.ClosedGroup:
		return s.encryptGroup(ctx, d, padded, timestamp)
	case model.OpenGroup, model.LegacyOpenGroup:
		return &Result{Payload: padded}, nil
	case model.OpenGroupInbox:
		return s.encryptInbox(d, padded)
	}
	return nil, fmt.Errorf("%w: %T", ErrInvalidDestination, dest)
}

func (s *Strategy) encryptContact(d model.Contact, padded []byte, timestamp int64) (*Result, error) {
	recipient, err := model.ParseAccountID(d.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDestination, err)
	}
	if err := recipient.Require(model.PrefixStandard); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDestination, err)
	}

	signed := signature.SignPayload(s.user.Ed25519, padded, recipient.Key[:])
	ct, err := encryption.Seal(recipient.Key, signed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	return wrap(model.EnvelopeSessionMessage, "", ct, timestamp), nil
}

func (s *Strategy) encryptLegacyGroup(ctx context.Context, d model.LegacyClosedGroup, padded []byte, timestamp int64) (*Result, error) {
	g, err := s.legacy.LegacyGroup(ctx, d.GroupPublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoKeyPair, err)
	}
	if g == nil || len(g.SymmetricKey) == 0 {
		return nil, ErrNoKeyPair
	}

	signed := signature.SignPayload(s.user.Ed25519, padded, []byte(d.GroupPublicKey))
	ct, err := encryption.AEADEncrypt(g.SymmetricKey, signed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	return wrap(model.EnvelopeClosedGroupMessage, d.GroupPublicKey, ct, timestamp), nil
}

// encryptGroup builds the inner envelope and encrypts it whole under the
// group's current key. The result is the wire payload; there is no outer
// envelope.
func (s *Strategy) encryptGroup(ctx context.Context, d model.ClosedGroup, padded []byte, timestamp int64) (*Result, error) {
	groupID, err := model.ParseAccountID(d.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDestination, err)
	}
	if err := groupID.Require(model.PrefixGroup); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDestination, err)
	}
	keys, err := s.groups.GroupKeys(ctx, d.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoKeyPair, err)
	}
	key, err := keys.Current()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoKeyPair, err)
	}

	inner := &model.Envelope{
		Type:      model.EnvelopeSessionMessage,
		Timestamp: uint64(timestamp),
		Source:    s.user.AccountID().Hex(),
		Content:   signature.SignPayload(s.user.Ed25519, padded, groupID.Key[:]),
	}
	ct, err := encryption.XChaChaEncrypt(key, envelope.Marshal(inner), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	return &Result{EnvelopeType: model.EnvelopeClosedGroupMessage, SenderKey: d.PublicKey, Payload: ct}, nil
}

func (s *Strategy) encryptInbox(d model.OpenGroupInbox, padded []byte) (*Result, error) {
	serverPub, err := hex.DecodeString(d.ServerPublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: server key: %v", ErrInvalidDestination, err)
	}
	recipient, err := model.ParseAccountID(d.BlindedPublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDestination, err)
	}
	ct, err := blinding.EncryptForBlindedRecipient(padded, s.user.Ed25519, serverPub, recipient)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	return &Result{Payload: ct}, nil
}

func wrap(t model.EnvelopeType, source string, ct []byte, timestamp int64) *Result {
	e := &model.Envelope{Type: t, Timestamp: uint64(timestamp), Source: source, Content: ct}
	return &Result{EnvelopeType: t, SenderKey: source, Payload: envelope.Marshal(e)}
}

// CommunitySender is the id we post under: our blinded (15) id when the
// server supports blinding, otherwise our unblinded (00) id.
func (s *Strategy) CommunitySender(serverPublicKey string, blind bool) (model.AccountID, error) {
	id, _, err := s.communityKey(serverPublicKey, blind)
	return id, err
}

// SignCommunityPost signs a room post under the CommunitySender id.
func (s *Strategy) SignCommunityPost(payload []byte, serverPublicKey string, blind bool) (model.AccountID, []byte, error) {
	id, sign, err := s.communityKey(serverPublicKey, blind)
	if err != nil {
		return model.AccountID{}, nil, err
	}
	return id, sign(payload), nil
}

func (s *Strategy) communityKey(serverPublicKey string, blind bool) (model.AccountID, func([]byte) []byte, error) {
	if s.user == nil || len(s.user.Ed25519) == 0 {
		return model.AccountID{}, nil, ErrNoUserKeyPair
	}
	if !blind {
		id, err := model.NewAccountID(model.PrefixUnblinded, s.user.PublicKey())
		if err != nil {
			return model.AccountID{}, nil, fmt.Errorf("%w: %v", ErrSigningFailed, err)
		}
		return id, func(b []byte) []byte { return signature.Sign(s.user.Ed25519, b) }, nil
	}

	serverPub, err := hex.DecodeString(serverPublicKey)
	if err != nil {
		return model.AccountID{}, nil, fmt.Errorf("%w: server key: %v", ErrSigningFailed, err)
	}
	if len(serverPub) != ed25519.PublicKeySize {
		return model.AccountID{}, nil, fmt.Errorf("%w: server key is %d bytes", ErrSigningFailed, len(serverPub))
	}
	kp, err := blinding.NewKeyPair15(s.user.Ed25519, serverPub)
	if err != nil {
		return model.AccountID{}, nil, fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}
	return kp.ID, kp.Sign, nil
}
