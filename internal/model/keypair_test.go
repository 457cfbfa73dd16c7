package model

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/curve25519"
)

func TestUserKeyPairX25519HalvesMatch(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	kp := &UserKeyPair{Ed25519: priv}

	xPriv, xPub := kp.X25519()
	derived, err := curve25519.X25519(xPriv[:], curve25519.Basepoint)
	require.NoError(t, err)
	assert.Equal(t, xPub[:], derived)

	id := kp.AccountID()
	assert.Equal(t, PrefixStandard, id.Prefix)
	assert.Equal(t, xPub, id.Key)
}
