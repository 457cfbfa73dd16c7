// Package codec opens inbound payloads for each destination kind and parses
// the plaintext content into a Message.
package codec

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"e2e_transport/internal/cryptographic/blinding"
	"e2e_transport/internal/cryptographic/dh"
	"e2e_transport/internal/cryptographic/encryption"
	"e2e_transport/internal/cryptographic/padding"
	"e2e_transport/internal/cryptographic/signature"
	"e2e_transport/internal/model"
	"e2e_transport/internal/protocol/envelope"
	"e2e_transport/internal/utils/clock"
)

type (
	GroupKeyStore interface {
		GroupKeys(ctx context.Context, groupID string) (*model.GroupKeys, error)
	}

	LegacyGroupStore interface {
		LegacyGroup(ctx context.Context, publicKey string) (*model.LegacyGroup, error)
	}

	Blocklist interface {
		IsBlocked(ctx context.Context, accountID string) bool
	}

	// DedupStore is shared by every parse. RecordMessageTimestamp must insert
	// atomically and report false when ts was already present.
	DedupStore interface {
		RecordMessageTimestamp(ctx context.Context, ts int64) (bool, error)
	}

	Codec struct {
		user    *model.UserKeyPair
		groups  GroupKeyStore
		legacy  LegacyGroupStore
		blocked Blocklist
		dedup   DedupStore
		clock   clock.Clock
	}

	// Decoded is an opened payload whose content has not been parsed yet.
	Decoded struct {
		Plaintext []byte
		Sender    model.AccountID
		// Timestamp is the transport timestamp in milliseconds.
		Timestamp int64
	}
)

func New(user *model.UserKeyPair, groups GroupKeyStore, legacy LegacyGroupStore, blocked Blocklist, dedup DedupStore, c clock.Clock) *Codec {
	return &Codec{user: user, groups: groups, legacy: legacy, blocked: blocked, dedup: dedup, clock: c}
}

// DecodePairwise opens a session-message envelope addressed to us.
func (c *Codec) DecodePairwise(data []byte) (*Decoded, error) {
	env, err := envelope.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStructure, err)
	}
	if env.Type != model.EnvelopeSessionMessage {
		return nil, fmt.Errorf("%w: envelope type %d", ErrInvalidStructure, env.Type)
	}

	priv, pub := c.user.X25519()
	signed, err := encryption.Open(priv, pub, env.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return openSigned(signed, pub[:], env.Timestamp)
}

// DecodeGroup tries every known key of the group, newest first. The payload
// is the encrypted inner envelope itself.
func (c *Codec) DecodeGroup(ctx context.Context, groupID string, data []byte) (*Decoded, error) {
	group, err := model.ParseAccountID(groupID)
	if err != nil {
		return nil, err
	}
	if err := group.Require(model.PrefixGroup); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrefix, err)
	}
	keys, err := c.groups.GroupKeys(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("group keys: %w", err)
	}

	var plain []byte
	for _, key := range keys.EncryptionKeys {
		if plain, err = encryption.XChaChaDecrypt(key, data, nil); err == nil {
			break
		}
	}
	if plain == nil {
		return nil, fmt.Errorf("%w: no group key opens the message", ErrDecryptionFailed)
	}

	inner, err := envelope.Unmarshal(plain)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStructure, err)
	}
	d, err := openSigned(inner.Content, group.Key[:], inner.Timestamp)
	if err != nil {
		return nil, err
	}
	if d.Sender.Hex() != inner.Source {
		return nil, fmt.Errorf("%w: envelope source does not match signer", ErrDecryptionFailed)
	}
	return d, nil
}

// DecodeLegacyGroup opens a closed-group envelope with the group's static key.
func (c *Codec) DecodeLegacyGroup(ctx context.Context, data []byte) (*Decoded, string, error) {
	env, err := envelope.Unmarshal(data)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidStructure, err)
	}
	if env.Type != model.EnvelopeClosedGroupMessage || env.Source == "" {
		return nil, "", fmt.Errorf("%w: not a legacy group envelope", ErrInvalidStructure)
	}
	g, err := c.legacy.LegacyGroup(ctx, env.Source)
	if err != nil {
		return nil, "", fmt.Errorf("legacy group: %w", err)
	}
	if g == nil {
		return nil, "", fmt.Errorf("%w: unknown legacy group %s", ErrDecryptionFailed, env.Source)
	}

	signed, err := encryption.AEADDecrypt(g.SymmetricKey, env.Content, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	d, err := openSigned(signed, []byte(env.Source), env.Timestamp)
	return d, env.Source, err
}

// DecodeCommunity unwraps a room post. A blank payload yields (nil, nil):
// deleted posts come back from the server without data.
func (c *Codec) DecodeCommunity(msg *model.CommunityMessage) (*Decoded, error) {
	if strings.TrimSpace(msg.Data) == "" {
		return nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(msg.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: data: %v", ErrInvalidStructure, err)
	}
	sender, err := model.ParseAccountID(msg.SessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrefix, err)
	}
	if err := verifyPost(sender, raw, msg.Signature); err != nil {
		return nil, err
	}
	plain, err := padding.Unpad(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStructure, err)
	}
	return &Decoded{Plaintext: plain, Sender: sender, Timestamp: int64(msg.Posted * 1000)}, nil
}

// DecodeCommunityDirect opens a blinded inbox or outbox message. The revealed
// sender is a standard id.
func (c *Codec) DecodeCommunityDirect(dm *model.CommunityDirectMessage, serverPublicKey string) (*Decoded, error) {
	serverPub, err := hex.DecodeString(serverPublicKey)
	if err != nil {
		return nil, fmt.Errorf("server key: %w", err)
	}
	sender, err := model.ParseAccountID(dm.Sender)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrefix, err)
	}
	recipient, err := model.ParseAccountID(dm.Recipient)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrefix, err)
	}
	ct, err := base64.StdEncoding.DecodeString(dm.Message)
	if err != nil {
		return nil, fmt.Errorf("%w: message: %v", ErrInvalidStructure, err)
	}

	realSender, padded, err := blinding.DecryptFromBlindedSender(ct, c.user.Ed25519, serverPub, sender, recipient)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	plain, err := padding.Unpad(padded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStructure, err)
	}
	return &Decoded{Plaintext: plain, Sender: realSender, Timestamp: dm.PostedAt * 1000}, nil
}

func openSigned(signed, binding []byte, timestamp uint64) (*Decoded, error) {
	padded, senderEd, err := signature.OpenPayload(signed, binding)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	x, err := dh.Ed25519PublicToX25519(senderEd)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	plain, err := padding.Unpad(padded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStructure, err)
	}
	return &Decoded{
		Plaintext: plain,
		Sender:    model.AccountID{Prefix: model.PrefixStandard, Key: x},
		Timestamp: int64(timestamp),
	}, nil
}

// verifyPost checks the post signature where the sender id carries an
// Ed25519 key. Standard ids carry X25519 keys and cannot be checked here.
func verifyPost(sender model.AccountID, data []byte, sig string) error {
	if sender.Prefix == model.PrefixStandard {
		return nil
	}
	raw, err := base64.StdEncoding.DecodeString(sig)
	if err != nil || !ed25519.Verify(sender.Key[:], data, raw) {
		return fmt.Errorf("%w: bad post signature", ErrDecryptionFailed)
	}
	return nil
}
