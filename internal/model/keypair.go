package model

import (
	"crypto/ed25519"

	"e2e_transport/internal/cryptographic/dh"
)

// UserKeyPair is the current user's long-term Ed25519 identity. The X25519
// halves used for pairwise encryption are derived from it.
type UserKeyPair struct {
	Ed25519 ed25519.PrivateKey
}

func (k *UserKeyPair) PublicKey() ed25519.PublicKey {
	return k.Ed25519.Public().(ed25519.PublicKey)
}

// X25519 returns the Montgomery form of the key pair.
func (k *UserKeyPair) X25519() (priv, pub [32]byte) {
	priv = dh.Ed25519PrivateToX25519(k.Ed25519)
	return priv, dh.X25519PublicFromPrivate(priv)
}

// AccountID is the user's standard ("05") id.
func (k *UserKeyPair) AccountID() AccountID {
	_, pub := k.X25519()
	return AccountID{Prefix: PrefixStandard, Key: pub}
}
