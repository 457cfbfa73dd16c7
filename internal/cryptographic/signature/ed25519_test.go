package signature

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerify(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	sig := Sign(priv, []byte("msg"))
	assert.True(t, Verify(pub, []byte("msg"), sig))
	assert.False(t, Verify(pub, []byte("msh"), sig))
	assert.False(t, Verify(pub[:31], []byte("msg"), sig))
	assert.False(t, Verify(pub, []byte("msg"), sig[:63]))

	assert.Nil(t, Sign(priv[:10], []byte("msg")))
}

func TestKeypairFromSeedDeterministic(t *testing.T) {
	seed := make([]byte, 32)
	seed[0] = 7
	p1, _ := KeypairFromSeed(seed)
	p2, _ := KeypairFromSeed(seed)
	assert.Equal(t, p1, p2)
}

func TestSignedPayloadBindsRecipient(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	data := SignPayload(priv, []byte("hello"), []byte("bob"))

	body, sender, err := OpenPayload(data, []byte("bob"))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), body)
	assert.Equal(t, []byte(priv[32:]), []byte(sender))

	_, _, err = OpenPayload(data, []byte("eve"))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, _, err = OpenPayload(data[:10], []byte("bob"))
	assert.ErrorIs(t, err, ErrPayloadTooShort)
}
