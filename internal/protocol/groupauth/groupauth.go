// Package groupauth builds the canonical byte strings a group admin signs
// with the group's Ed25519 key, and verifies those signatures.
package groupauth

import (
	"crypto/ed25519"
	"errors"
	"strconv"

	"e2e_transport/internal/cryptographic/signature"
	"e2e_transport/internal/model"
)

var ErrSignatureVerificationFailed = errors.New("admin signature verification failed")

func InviteBytes(invitee string, timestamp int64) []byte {
	b := []byte("INVITE")
	b = append(b, invitee...)
	return strconv.AppendInt(b, timestamp, 10)
}

func InfoChangeBytes(t model.InfoChangeType, timestamp int64) []byte {
	b := []byte("INFO_CHANGE")
	b = strconv.AppendInt(b, int64(t), 10)
	return strconv.AppendInt(b, timestamp, 10)
}

func MemberChangeBytes(t model.MemberChangeType, timestamp int64) []byte {
	b := []byte("MEMBER_CHANGE")
	b = strconv.AppendInt(b, int64(t), 10)
	return strconv.AppendInt(b, timestamp, 10)
}

func DeleteMemberContentBytes(memberIDs, hashes []string, timestamp int64) []byte {
	b := []byte("DELETE_CONTENT")
	b = strconv.AppendInt(b, timestamp, 10)
	for _, id := range memberIDs {
		b = append(b, id...)
	}
	for _, h := range hashes {
		b = append(b, h...)
	}
	return b
}

// Verify checks sig over msg against the group's public key, which is the
// key embedded in the group account id.
func Verify(group model.AccountID, sig, msg []byte) error {
	if err := group.Require(model.PrefixGroup); err != nil {
		return err
	}
	if !signature.Verify(group.Key[:], msg, sig) {
		return ErrSignatureVerificationFailed
	}
	return nil
}

func Sign(adminKey ed25519.PrivateKey, msg []byte) []byte {
	return signature.Sign(adminKey, msg)
}
