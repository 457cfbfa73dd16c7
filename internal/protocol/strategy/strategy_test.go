package strategy

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"testing"

	"e2e_transport/internal/cryptographic/blinding"
	"e2e_transport/internal/cryptographic/encryption"
	"e2e_transport/internal/cryptographic/padding"
	"e2e_transport/internal/cryptographic/signature"
	"e2e_transport/internal/model"
	"e2e_transport/internal/protocol/envelope"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGroups map[string]*model.GroupKeys

func (f fakeGroups) GroupKeys(_ context.Context, id string) (*model.GroupKeys, error) {
	k, ok := f[id]
	if !ok {
		return nil, errors.New("unknown group")
	}
	return k, nil
}

type fakeLegacy map[string]*model.LegacyGroup

func (f fakeLegacy) LegacyGroup(_ context.Context, id string) (*model.LegacyGroup, error) {
	return f[id], nil
}

func newUser(t *testing.T) *model.UserKeyPair {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return &model.UserKeyPair{Ed25519: priv}
}

func randomKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, 32)
	_, err := rand.Read(k)
	require.NoError(t, err)
	return k
}

func TestContactIsSealedToRecipient(t *testing.T) {
	alice, bob := newUser(t), newUser(t)
	s := New(alice, fakeGroups{}, fakeLegacy{})

	res, err := s.Encrypt(context.Background(), model.Contact{PublicKey: bob.AccountID().Hex()}, []byte("hi"), 1000)
	require.NoError(t, err)
	assert.Equal(t, model.EnvelopeSessionMessage, res.EnvelopeType)
	assert.Empty(t, res.SenderKey)

	env, err := envelope.Unmarshal(res.Payload)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), env.Timestamp)
	assert.Empty(t, env.Source)

	priv, pub := bob.X25519()
	signed, err := encryption.Open(priv, pub, env.Content)
	require.NoError(t, err)
	padded, sender, err := signature.OpenPayload(signed, pub[:])
	require.NoError(t, err)
	assert.Equal(t, alice.PublicKey(), sender)

	body, err := padding.Unpad(padded)
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), body)
	assert.Zero(t, (len(padded)+1)%padding.BlockSize)
}

func TestContactRequiresStandardID(t *testing.T) {
	s := New(newUser(t), fakeGroups{}, fakeLegacy{})
	groupID := model.MustAccountID(model.PrefixGroup, randomKey(t))

	_, err := s.Encrypt(context.Background(), model.Contact{PublicKey: groupID.Hex()}, []byte("hi"), 1)
	assert.ErrorIs(t, err, ErrInvalidDestination)
}

func TestClosedGroupUsesCurrentKeyWithoutOuterEnvelope(t *testing.T) {
	alice := newUser(t)
	groupPub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	groupID := model.MustAccountID(model.PrefixGroup, groupPub)
	current, previous := randomKey(t), randomKey(t)

	s := New(alice, fakeGroups{groupID.Hex(): {GroupID: groupID, EncryptionKeys: [][]byte{current, previous}}}, fakeLegacy{})
	res, err := s.Encrypt(context.Background(), model.ClosedGroup{PublicKey: groupID.Hex()}, []byte("group hello"), 77)
	require.NoError(t, err)
	assert.Equal(t, model.EnvelopeClosedGroupMessage, res.EnvelopeType)

	_, err = encryption.XChaChaDecrypt(previous, res.Payload, nil)
	assert.Error(t, err)

	plain, err := encryption.XChaChaDecrypt(current, res.Payload, nil)
	require.NoError(t, err)
	inner, err := envelope.Unmarshal(plain)
	require.NoError(t, err)
	assert.Equal(t, alice.AccountID().Hex(), inner.Source)
	assert.Equal(t, uint64(77), inner.Timestamp)

	_, sender, err := signature.OpenPayload(inner.Content, groupID.Key[:])
	require.NoError(t, err)
	assert.Equal(t, alice.PublicKey(), sender)
}

func TestClosedGroupWithoutKeys(t *testing.T) {
	groupID := model.MustAccountID(model.PrefixGroup, randomKey(t))
	s := New(newUser(t), fakeGroups{groupID.Hex(): {GroupID: groupID}}, fakeLegacy{})

	_, err := s.Encrypt(context.Background(), model.ClosedGroup{PublicKey: groupID.Hex()}, []byte("x"), 1)
	assert.ErrorIs(t, err, ErrNoKeyPair)
}

func TestLegacyGroupUsesStaticKeyAndGroupSource(t *testing.T) {
	groupKey := model.MustAccountID(model.PrefixStandard, randomKey(t)).Hex()
	sym := randomKey(t)
	s := New(newUser(t), fakeGroups{}, fakeLegacy{groupKey: {PublicKey: groupKey, SymmetricKey: sym}})

	res, err := s.Encrypt(context.Background(), model.LegacyClosedGroup{GroupPublicKey: groupKey}, []byte("legacy"), 5)
	require.NoError(t, err)

	env, err := envelope.Unmarshal(res.Payload)
	require.NoError(t, err)
	assert.Equal(t, model.EnvelopeClosedGroupMessage, env.Type)
	assert.Equal(t, groupKey, env.Source)

	signed, err := encryption.AEADDecrypt(sym, env.Content, nil)
	require.NoError(t, err)
	_, _, err = signature.OpenPayload(signed, []byte(groupKey))
	require.NoError(t, err)

	_, err = s.Encrypt(context.Background(), model.LegacyClosedGroup{GroupPublicKey: "unknown"}, []byte("legacy"), 5)
	assert.ErrorIs(t, err, ErrNoKeyPair)
}

func TestOpenGroupIsOnlyPadded(t *testing.T) {
	s := New(newUser(t), fakeGroups{}, fakeLegacy{})

	res, err := s.Encrypt(context.Background(), model.OpenGroup{Server: "http://srv", Room: "lobby"}, []byte("post"), 1)
	require.NoError(t, err)
	body, err := padding.Unpad(res.Payload)
	require.NoError(t, err)
	assert.Equal(t, []byte("post"), body)
}

func TestInboxRoundTrip(t *testing.T) {
	alice, bob := newUser(t), newUser(t)
	serverPub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	bobBlinded, err := blinding.NewKeyPair15(bob.Ed25519, serverPub)
	require.NoError(t, err)
	aliceBlinded, err := blinding.NewKeyPair15(alice.Ed25519, serverPub)
	require.NoError(t, err)

	s := New(alice, fakeGroups{}, fakeLegacy{})
	res, err := s.Encrypt(context.Background(), model.OpenGroupInbox{
		Server:           "http://srv",
		ServerPublicKey:  hex.EncodeToString(serverPub),
		BlindedPublicKey: bobBlinded.ID.Hex(),
	}, []byte("dm"), 1)
	require.NoError(t, err)

	sender, padded, err := blinding.DecryptFromBlindedSender(res.Payload, bob.Ed25519, serverPub, aliceBlinded.ID, bobBlinded.ID)
	require.NoError(t, err)
	assert.Equal(t, alice.AccountID(), sender)
	body, err := padding.Unpad(padded)
	require.NoError(t, err)
	assert.Equal(t, []byte("dm"), body)
}

func TestSignCommunityPost(t *testing.T) {
	user := newUser(t)
	serverPub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	s := New(user, fakeGroups{}, fakeLegacy{})

	id, sig, err := s.SignCommunityPost([]byte("data"), hex.EncodeToString(serverPub), true)
	require.NoError(t, err)
	assert.Equal(t, model.PrefixBlinded, id.Prefix)
	assert.True(t, ed25519.Verify(id.Key[:], []byte("data"), sig))

	id, sig, err = s.SignCommunityPost([]byte("data"), "", false)
	require.NoError(t, err)
	assert.Equal(t, model.PrefixUnblinded, id.Prefix)
	assert.True(t, ed25519.Verify(user.PublicKey(), []byte("data"), sig))
}
