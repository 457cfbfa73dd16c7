package signature

import (
	"crypto/ed25519"
	"errors"
)

var (
	ErrPayloadTooShort  = errors.New("signed payload too short")
	ErrInvalidSignature = errors.New("invalid payload signature")
)

// SignPayload returns body || senderPub || sig, where sig covers
// body || senderPub || binding. The binding ties the signature to the
// intended recipient so a payload cannot be re-encrypted to someone else.
func SignPayload(priv ed25519.PrivateKey, body, binding []byte) []byte {
	pub := priv.Public().(ed25519.PublicKey)

	out := make([]byte, 0, len(body)+ed25519.PublicKeySize+ed25519.SignatureSize)
	out = append(out, body...)
	out = append(out, pub...)

	msg := make([]byte, 0, len(out)+len(binding))
	msg = append(msg, out...)
	msg = append(msg, binding...)
	return append(out, ed25519.Sign(priv, msg)...)
}

// OpenPayload verifies a SignPayload result and splits it.
func OpenPayload(data, binding []byte) (body []byte, senderPub ed25519.PublicKey, err error) {
	if len(data) < ed25519.PublicKeySize+ed25519.SignatureSize {
		return nil, nil, ErrPayloadTooShort
	}
	sigAt := len(data) - ed25519.SignatureSize
	pubAt := sigAt - ed25519.PublicKeySize

	msg := make([]byte, 0, sigAt+len(binding))
	msg = append(msg, data[:sigAt]...)
	msg = append(msg, binding...)
	senderPub = ed25519.PublicKey(data[pubAt:sigAt])
	if !ed25519.Verify(senderPub, msg, data[sigAt:]) {
		return nil, nil, ErrInvalidSignature
	}
	return data[:pubAt], senderPub, nil
}
