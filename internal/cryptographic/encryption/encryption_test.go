package encryption

import (
	"bytes"
	"crypto/rand"
	"testing"

	"e2e_transport/internal/cryptographic/dh"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, 32)
	_, err := rand.Read(k)
	require.NoError(t, err)
	return k
}

func TestAEADRoundTrip(t *testing.T) {
	key := randomKey(t)
	ct, err := AEADEncrypt(key, []byte("hello"), []byte("aad"))
	require.NoError(t, err)

	pt, err := AEADDecrypt(key, ct, []byte("aad"))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), pt)

	_, err = AEADDecrypt(key, ct, []byte("other"))
	assert.ErrorIs(t, err, ErrAuthenticationFailed)

	_, err = AEADDecrypt(key, ct[:10], []byte("aad"))
	assert.ErrorIs(t, err, ErrShortCiphertext)

	_, err = AEADEncrypt(key[:16], []byte("hello"), nil)
	assert.ErrorIs(t, err, ErrKeySize)
}

func TestXChaChaRoundTripAndTamper(t *testing.T) {
	key := randomKey(t)
	ct, err := XChaChaEncrypt(key, []byte("group payload"), nil)
	require.NoError(t, err)

	pt, err := XChaChaDecrypt(key, ct, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("group payload"), pt)

	tampered := bytes.Clone(ct)
	tampered[len(tampered)-1] ^= 1
	_, err = XChaChaDecrypt(key, tampered, nil)
	assert.Error(t, err)

	_, err = XChaChaDecrypt(randomKey(t), ct, nil)
	assert.Error(t, err)

	_, err = XChaChaDecrypt(key, ct[:10], nil)
	assert.Error(t, err)
}

func TestSealOpen(t *testing.T) {
	priv, pub, err := dh.NewX25519KeyPair()
	require.NoError(t, err)

	sealed, err := Seal(pub, []byte("pairwise"))
	require.NoError(t, err)

	pt, err := Open(priv, pub, sealed)
	require.NoError(t, err)
	assert.Equal(t, []byte("pairwise"), pt)

	otherPriv, otherPub, err := dh.NewX25519KeyPair()
	require.NoError(t, err)
	_, err = Open(otherPriv, otherPub, sealed)
	assert.ErrorIs(t, err, ErrOpenFailed)
}
