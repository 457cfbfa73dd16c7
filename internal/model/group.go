package model

import (
	"crypto/ed25519"
	"errors"
)

var ErrNoGroupKey = errors.New("group has no encryption key")

type GroupUpdateKind int

const (
	GroupUpdateInvite GroupUpdateKind = iota + 1
	GroupUpdateInviteResponse
	GroupUpdatePromote
	GroupUpdateInfoChange
	GroupUpdateMemberChange
	GroupUpdateMemberLeft
	GroupUpdateMemberLeftNotification
	GroupUpdateDeleteMemberContent
)

type (
	// GroupUpdate is the inner control payload of a GroupUpdated message.
	GroupUpdate interface {
		UpdateKind() GroupUpdateKind
		Valid() bool
	}

	GroupInvite struct {
		GroupID        string `json:"group_id"`
		Name           string `json:"name"`
		MemberAuthData []byte `json:"member_auth_data"`
		AdminSignature []byte `json:"admin_signature"`
	}

	GroupInviteResponse struct {
		Approved bool `json:"approved"`
	}

	GroupPromote struct {
		GroupIdentitySeed []byte `json:"group_identity_seed"`
		Name              string `json:"name"`
	}

	InfoChangeType int

	GroupInfoChange struct {
		Type              InfoChangeType `json:"type"`
		UpdatedName       string         `json:"updated_name,omitempty"`
		UpdatedExpiration int64          `json:"updated_expiration,omitempty"`
		AdminSignature    []byte         `json:"admin_signature"`
	}

	MemberChangeType int

	GroupMemberChange struct {
		Type           MemberChangeType `json:"type"`
		MemberIDs      []string         `json:"member_ids"`
		Historic       bool             `json:"historic,omitempty"`
		AdminSignature []byte           `json:"admin_signature"`
	}

	GroupMemberLeft struct{}

	GroupMemberLeftNotification struct{}

	GroupDeleteMemberContent struct {
		MemberIDs      []string `json:"member_ids,omitempty"`
		MessageHashes  []string `json:"message_hashes,omitempty"`
		AdminSignature []byte   `json:"admin_signature,omitempty"`
	}
)

const (
	InfoChangeName InfoChangeType = iota + 1
	InfoChangeAvatar
	InfoChangeDisappearingMessages
)

const (
	MemberChangeAdded MemberChangeType = iota + 1
	MemberChangeRemoved
	MemberChangePromoted
)

func (*GroupInvite) UpdateKind() GroupUpdateKind { return GroupUpdateInvite }
func (g *GroupInvite) Valid() bool {
	return g.GroupID != "" && len(g.MemberAuthData) > 0 && len(g.AdminSignature) > 0
}

func (*GroupInviteResponse) UpdateKind() GroupUpdateKind { return GroupUpdateInviteResponse }
func (*GroupInviteResponse) Valid() bool                 { return true }

func (*GroupPromote) UpdateKind() GroupUpdateKind { return GroupUpdatePromote }
func (g *GroupPromote) Valid() bool               { return len(g.GroupIdentitySeed) == ed25519.SeedSize }

func (*GroupInfoChange) UpdateKind() GroupUpdateKind { return GroupUpdateInfoChange }
func (g *GroupInfoChange) Valid() bool {
	return g.Type >= InfoChangeName && g.Type <= InfoChangeDisappearingMessages
}

func (*GroupMemberChange) UpdateKind() GroupUpdateKind { return GroupUpdateMemberChange }
func (g *GroupMemberChange) Valid() bool {
	return g.Type >= MemberChangeAdded && g.Type <= MemberChangePromoted && len(g.MemberIDs) > 0
}

func (*GroupMemberLeft) UpdateKind() GroupUpdateKind { return GroupUpdateMemberLeft }
func (*GroupMemberLeft) Valid() bool                 { return true }

func (*GroupMemberLeftNotification) UpdateKind() GroupUpdateKind {
	return GroupUpdateMemberLeftNotification
}
func (*GroupMemberLeftNotification) Valid() bool { return true }

func (*GroupDeleteMemberContent) UpdateKind() GroupUpdateKind { return GroupUpdateDeleteMemberContent }
func (g *GroupDeleteMemberContent) Valid() bool {
	return len(g.MemberIDs) > 0 || len(g.MessageHashes) > 0
}

// ExemptFromExpiry reports control updates whose delivery must not be cut
// short by the conversation's disappearing-messages setting.
func ExemptFromExpiry(u GroupUpdate) bool {
	switch u.(type) {
	case *GroupMemberLeft, *GroupInvite, *GroupInviteResponse, *GroupDeleteMemberContent, *GroupPromote:
		return true
	}
	return false
}

type (
	// GroupKeys is owned by the group-config store and lent read-only to the
	// codec and sender. EncryptionKeys[0] is the current key.
	GroupKeys struct {
		GroupID        AccountID
		EncryptionKeys [][]byte
		// SigningKey is only present for admins.
		SigningKey ed25519.PrivateKey
	}

	// LegacyGroup is a closed group secured by one static symmetric key.
	LegacyGroup struct {
		PublicKey    string   `json:"public_key" bson:"public_key"`
		SymmetricKey []byte   `json:"symmetric_key" bson:"symmetric_key"`
		Admins       []string `json:"admins" bson:"admins"`
	}
)

func (k GroupKeys) Current() ([]byte, error) {
	if len(k.EncryptionKeys) == 0 {
		return nil, ErrNoGroupKey
	}
	return k.EncryptionKeys[0], nil
}

func (k GroupKeys) IsAdmin() bool {
	return len(k.SigningKey) == ed25519.PrivateKeySize
}

func (g LegacyGroup) IsAdmin(id string) bool {
	for _, a := range g.Admins {
		if a == id {
			return true
		}
	}
	return false
}
