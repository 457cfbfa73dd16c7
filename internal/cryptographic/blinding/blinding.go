// Package blinding derives per-server account aliases and the shared keys
// used for direct messages between blinded community identities.
package blinding

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha512"
	"errors"
	"fmt"

	"e2e_transport/internal/cryptographic/dh"
	"e2e_transport/internal/cryptographic/encryption"
	"e2e_transport/internal/cryptographic/kdf"
	"e2e_transport/internal/model"

	"filippo.io/edwards25519"
)

const version byte = 0x00

var (
	ErrNotAParticipant = errors.New("blinded message is not addressed to or from us")
	ErrSenderMismatch  = errors.New("blinded sender does not match the revealed key")
	ErrBadVersion      = errors.New("unsupported blinded message version")
)

type KeyPair struct {
	ID     model.AccountID
	secret *edwards25519.Scalar
	nonce  []byte
}

func factor15(serverPub []byte) (*edwards25519.Scalar, error) {
	h := kdf.Blake2b512(serverPub)
	return new(edwards25519.Scalar).SetUniformBytes(h[:])
}

func factor25(edPub, serverPub []byte) (*edwards25519.Scalar, error) {
	h := kdf.Blake2b512(edPub, serverPub)
	return new(edwards25519.Scalar).SetUniformBytes(h[:])
}

func blindPublic(k *edwards25519.Scalar, edPub []byte) ([]byte, error) {
	a, err := new(edwards25519.Point).SetBytes(edPub)
	if err != nil {
		return nil, fmt.Errorf("invalid ed25519 public key: %w", err)
	}
	return new(edwards25519.Point).ScalarMult(k, a).Bytes(), nil
}

// Blind15ID is the server-scoped alias k*A with k = H(serverPub).
func Blind15ID(edPub, serverPub []byte) (model.AccountID, error) {
	k, err := factor15(serverPub)
	if err != nil {
		return model.AccountID{}, err
	}
	b, err := blindPublic(k, edPub)
	if err != nil {
		return model.AccountID{}, err
	}
	return model.NewAccountID(model.PrefixBlinded, b)
}

// Blind25ID also binds the alias to the account key, k = H(A || serverPub).
func Blind25ID(edPub, serverPub []byte) (model.AccountID, error) {
	k, err := factor25(edPub, serverPub)
	if err != nil {
		return model.AccountID{}, err
	}
	b, err := blindPublic(k, edPub)
	if err != nil {
		return model.AccountID{}, err
	}
	return model.NewAccountID(model.PrefixBlindedV2, b)
}

// IDsFor returns every alias the holder of edPub may appear under on a server.
func IDsFor(edPub, serverPub []byte) ([]model.AccountID, error) {
	b15, err := Blind15ID(edPub, serverPub)
	if err != nil {
		return nil, err
	}
	b25, err := Blind25ID(edPub, serverPub)
	if err != nil {
		return nil, err
	}
	return []model.AccountID{b15, b25}, nil
}

// NewKeyPair15 returns the blinded (15) identity of priv on a server together
// with the matching private scalar.
func NewKeyPair15(priv ed25519.PrivateKey, serverPub []byte) (*KeyPair, error) {
	k, err := factor15(serverPub)
	if err != nil {
		return nil, err
	}
	h := sha512.Sum512(priv.Seed())
	a, err := new(edwards25519.Scalar).SetBytesWithClamping(h[:32])
	if err != nil {
		return nil, err
	}
	ka := new(edwards25519.Scalar).Multiply(k, a)
	id, err := model.NewAccountID(model.PrefixBlinded, new(edwards25519.Point).ScalarBaseMult(ka).Bytes())
	if err != nil {
		return nil, err
	}
	return &KeyPair{ID: id, secret: ka, nonce: h[32:]}, nil
}

// Sign produces a standard Ed25519 signature under the blinded key, so
// servers verify it with ed25519.Verify against ID.Key.
func (kp *KeyPair) Sign(msg []byte) []byte {
	pub := kp.ID.Key[:]

	rh := sha512.New()
	rh.Write(kp.nonce)
	rh.Write(pub)
	rh.Write(msg)
	r, _ := new(edwards25519.Scalar).SetUniformBytes(rh.Sum(nil))
	R := new(edwards25519.Point).ScalarBaseMult(r).Bytes()

	kh := sha512.New()
	kh.Write(R)
	kh.Write(pub)
	kh.Write(msg)
	k, _ := new(edwards25519.Scalar).SetUniformBytes(kh.Sum(nil))

	s := new(edwards25519.Scalar).MultiplyAdd(k, kp.secret, r)
	return append(R, s.Bytes()...)
}

func (kp *KeyPair) sharedKey(other model.AccountID, sender, recipient model.AccountID) ([32]byte, error) {
	p, err := new(edwards25519.Point).SetBytes(other.Key[:])
	if err != nil {
		return [32]byte{}, fmt.Errorf("invalid blinded key: %w", err)
	}
	shared := new(edwards25519.Point).ScalarMult(kp.secret, p).Bytes()
	return kdf.Blake2b256(shared, sender.Key[:], recipient.Key[:]), nil
}

// EncryptForBlindedRecipient encrypts plaintext from priv to a blinded
// recipient. The sender's real Ed25519 key travels inside the ciphertext.
func EncryptForBlindedRecipient(plaintext []byte, priv ed25519.PrivateKey, serverPub []byte, recipient model.AccountID) ([]byte, error) {
	if err := recipient.Require(model.PrefixBlinded, model.PrefixBlindedV2); err != nil {
		return nil, err
	}
	kp, err := NewKeyPair15(priv, serverPub)
	if err != nil {
		return nil, err
	}
	key, err := kp.sharedKey(recipient, kp.ID, recipient)
	if err != nil {
		return nil, err
	}
	inner := make([]byte, 0, len(plaintext)+ed25519.PublicKeySize)
	inner = append(inner, plaintext...)
	inner = append(inner, priv.Public().(ed25519.PublicKey)...)

	ct, err := encryption.XChaChaEncrypt(key[:], inner, nil)
	if err != nil {
		return nil, err
	}
	return append([]byte{version}, ct...), nil
}

// DecryptFromBlindedSender opens a blinded direct message. We may be either
// party: inbox messages are addressed to us, outbox copies were sent by us.
// It returns the sender's standard account id and the plaintext.
func DecryptFromBlindedSender(ciphertext []byte, priv ed25519.PrivateKey, serverPub []byte, sender, recipient model.AccountID) (model.AccountID, []byte, error) {
	if len(ciphertext) < 1 || ciphertext[0] != version {
		return model.AccountID{}, nil, ErrBadVersion
	}
	kp, err := NewKeyPair15(priv, serverPub)
	if err != nil {
		return model.AccountID{}, nil, err
	}

	var other model.AccountID
	switch {
	case kp.ID == recipient:
		other = sender
	case kp.ID == sender:
		other = recipient
	default:
		return model.AccountID{}, nil, ErrNotAParticipant
	}

	key, err := kp.sharedKey(other, sender, recipient)
	if err != nil {
		return model.AccountID{}, nil, err
	}
	inner, err := encryption.XChaChaDecrypt(key[:], ciphertext[1:], nil)
	if err != nil {
		return model.AccountID{}, nil, err
	}
	if len(inner) < ed25519.PublicKeySize {
		return model.AccountID{}, nil, fmt.Errorf("blinded message too short")
	}
	plaintext := inner[:len(inner)-ed25519.PublicKeySize]
	senderEd := inner[len(inner)-ed25519.PublicKeySize:]

	var expected model.AccountID
	if sender.Prefix == model.PrefixBlindedV2 {
		expected, err = Blind25ID(senderEd, serverPub)
	} else {
		expected, err = Blind15ID(senderEd, serverPub)
	}
	if err != nil {
		return model.AccountID{}, nil, err
	}
	if !bytes.Equal(expected.Key[:], sender.Key[:]) {
		return model.AccountID{}, nil, ErrSenderMismatch
	}

	x, err := dh.Ed25519PublicToX25519(senderEd)
	if err != nil {
		return model.AccountID{}, nil, err
	}
	id, err := model.NewAccountID(model.PrefixStandard, x[:])
	return id, plaintext, err
}
