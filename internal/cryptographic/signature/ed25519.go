package signature

import (
	"crypto/ed25519"
)

// Sign returns nil for a malformed key rather than panicking; a nil
// signature never verifies.
func Sign(priv ed25519.PrivateKey, message []byte) []byte {
	if len(priv) != ed25519.PrivateKeySize {
		return nil
	}
	return ed25519.Sign(priv, message)
}

func Verify(pub []byte, message []byte, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), message, sig)
}

// KeypairFromSeed expands a 32-byte seed, as carried by group promotions.
func KeypairFromSeed(seed []byte) (ed25519.PublicKey, ed25519.PrivateKey) {
	priv := ed25519.NewKeyFromSeed(seed)
	return priv.Public().(ed25519.PublicKey), priv
}
