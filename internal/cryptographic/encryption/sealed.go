package encryption

import (
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/nacl/box"
)

var ErrOpenFailed = errors.New("sealed box: open failed")

// Seal encrypts to recipientPub with an ephemeral sender key; only the
// recipient can open it and the sender stays anonymous at this layer.
func Seal(recipientPub [32]byte, plaintext []byte) ([]byte, error) {
	return box.SealAnonymous(nil, plaintext, &recipientPub, rand.Reader)
}

func Open(priv, pub [32]byte, sealed []byte) ([]byte, error) {
	out, ok := box.OpenAnonymous(nil, sealed, &pub, &priv)
	if !ok {
		return nil, ErrOpenFailed
	}
	return out, nil
}
