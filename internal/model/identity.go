package model

import (
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	ErrInvalidAccountID = errors.New("invalid account id")
	ErrPrefixMismatch   = errors.New("account id prefix does not allow this operation")
)

type Prefix byte

const (
	PrefixUnblinded Prefix = 0x00
	PrefixGroup     Prefix = 0x03
	PrefixStandard  Prefix = 0x05
	PrefixBlinded   Prefix = 0x15
	PrefixBlindedV2 Prefix = 0x25
)

func (p Prefix) String() string {
	switch p {
	case PrefixUnblinded:
		return "unblinded"
	case PrefixGroup:
		return "group"
	case PrefixStandard:
		return "standard"
	case PrefixBlinded:
		return "blinded"
	case PrefixBlindedV2:
		return "blinded-v2"
	}
	return fmt.Sprintf("prefix(%02x)", byte(p))
}

func (p Prefix) valid() bool {
	switch p {
	case PrefixUnblinded, PrefixGroup, PrefixStandard, PrefixBlinded, PrefixBlindedV2:
		return true
	}
	return false
}

// AccountID is a 1-byte prefix tag followed by a 32-byte public key. Standard
// ids carry an X25519 key, group/unblinded/blinded ids carry Ed25519 keys.
type AccountID struct {
	Prefix Prefix
	Key    [32]byte
}

func NewAccountID(prefix Prefix, key []byte) (AccountID, error) {
	if !prefix.valid() || len(key) != 32 {
		return AccountID{}, fmt.Errorf("%w: prefix %s, key length %d", ErrInvalidAccountID, prefix, len(key))
	}
	return AccountID{Prefix: prefix, Key: [32]byte(key)}, nil
}

func MustAccountID(prefix Prefix, key []byte) AccountID {
	id, err := NewAccountID(prefix, key)
	if err != nil {
		panic(err)
	}
	return id
}

// ParseAccountID decodes the 66 hex character form.
func ParseAccountID(s string) (AccountID, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return AccountID{}, fmt.Errorf("%w: %v", ErrInvalidAccountID, err)
	}
	if len(raw) != 33 {
		return AccountID{}, fmt.Errorf("%w: length %d", ErrInvalidAccountID, len(raw))
	}
	return NewAccountID(Prefix(raw[0]), raw[1:])
}

func (a AccountID) Hex() string {
	buf := make([]byte, 33)
	buf[0] = byte(a.Prefix)
	copy(buf[1:], a.Key[:])
	return hex.EncodeToString(buf)
}

func (a AccountID) String() string {
	return a.Hex()
}

func (a AccountID) PubKey() []byte {
	return append([]byte(nil), a.Key[:]...)
}

func (a AccountID) IsZero() bool {
	return a == AccountID{}
}

func (a AccountID) IsBlinded() bool {
	return a.Prefix == PrefixBlinded || a.Prefix == PrefixBlindedV2
}

// Require fails unless the id carries one of the allowed prefixes.
func (a AccountID) Require(allowed ...Prefix) error {
	for _, p := range allowed {
		if a.Prefix == p {
			return nil
		}
	}
	return fmt.Errorf("%w: %s id", ErrPrefixMismatch, a.Prefix)
}
