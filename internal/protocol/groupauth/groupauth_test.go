package groupauth

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"e2e_transport/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGroup(t *testing.T) (model.AccountID, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return model.MustAccountID(model.PrefixGroup, pub), priv
}

func TestInfoChangeSignatureVerifies(t *testing.T) {
	group, key := newGroup(t)
	msg := InfoChangeBytes(model.InfoChangeName, 1700000000123)
	sig := Sign(key, msg)

	require.NoError(t, Verify(group, sig, msg))
}

func TestAnySingleByteMutationFails(t *testing.T) {
	group, key := newGroup(t)
	msg := InfoChangeBytes(model.InfoChangeAvatar, 1700000000123)
	sig := Sign(key, msg)

	for i := range msg {
		mutated := append([]byte(nil), msg...)
		mutated[i] ^= 0x01
		assert.ErrorIs(t, Verify(group, sig, mutated), ErrSignatureVerificationFailed, "msg byte %d", i)
	}
	for i := range sig {
		mutated := append([]byte(nil), sig...)
		mutated[i] ^= 0x01
		assert.ErrorIs(t, Verify(group, mutated, msg), ErrSignatureVerificationFailed, "sig byte %d", i)
	}

	assert.Error(t, Verify(group, sig, InfoChangeBytes(model.InfoChangeName, 1700000000123)))
	assert.Error(t, Verify(group, sig, InfoChangeBytes(model.InfoChangeAvatar, 1700000000124)))
}

func TestVerifyRequiresGroupPrefix(t *testing.T) {
	group, key := newGroup(t)
	msg := MemberChangeBytes(model.MemberChangeAdded, 5)
	sig := Sign(key, msg)

	wrong := group
	wrong.Prefix = model.PrefixStandard
	assert.ErrorIs(t, Verify(wrong, sig, msg), model.ErrPrefixMismatch)
}

func TestCanonicalBytes(t *testing.T) {
	assert.Equal(t, "INVITE05ab12", string(InviteBytes("05ab", 12)))
	assert.Equal(t, "INFO_CHANGE112", string(InfoChangeBytes(model.InfoChangeName, 12)))
	assert.Equal(t, "MEMBER_CHANGE212", string(MemberChangeBytes(model.MemberChangeRemoved, 12)))
	assert.Equal(t, "DELETE_CONTENT1205a05bh1", string(DeleteMemberContentBytes([]string{"05a", "05b"}, []string{"h1"}, 12)))
}
