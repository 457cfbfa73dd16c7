package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
)

// LegacyGroupKeySize is the size of a legacy group's static symmetric key.
const LegacyGroupKeySize = 32

var (
	ErrKeySize              = errors.New("symmetric key has the wrong size")
	ErrShortCiphertext      = errors.New("ciphertext too short")
	ErrAuthenticationFailed = errors.New("message authentication failed")
)

func legacyGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != LegacyGroupKeySize {
		return nil, fmt.Errorf("%w: %d", ErrKeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// AEADEncrypt seals a legacy group payload with AES-256-GCM. The output is
// nonce || ciphertext.
func AEADEncrypt(key, plaintext, aad []byte) ([]byte, error) {
	gcm, err := legacyGCM(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, gcm.NonceSize(), gcm.NonceSize()+len(plaintext)+gcm.Overhead())
	if _, err := rand.Read(out); err != nil {
		return nil, err
	}
	return gcm.Seal(out, out, plaintext, aad), nil
}

func AEADDecrypt(key, sealed, aad []byte) ([]byte, error) {
	gcm, err := legacyGCM(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize()+gcm.Overhead() {
		return nil, ErrShortCiphertext
	}
	nonce, ct := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ct, aad)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plain, nil
}
