package model

import "fmt"

type AddressKind int

const (
	AddressStandard AddressKind = iota + 1
	AddressGroup
	AddressLegacyGroup
	AddressCommunity
	AddressCommunityBlinded
)

// Address identifies a conversation. Its String form is the key used for
// thread lookup and per-conversation locking.
type Address struct {
	Kind   AddressKind `json:"kind" bson:"kind"`
	ID     string      `json:"id,omitempty" bson:"id,omitempty"`
	Server string      `json:"server,omitempty" bson:"server,omitempty"`
	Room   string      `json:"room,omitempty" bson:"room,omitempty"`
}

func StandardAddress(id string) Address {
	return Address{Kind: AddressStandard, ID: id}
}

func GroupAddress(id string) Address {
	return Address{Kind: AddressGroup, ID: id}
}

func LegacyGroupAddress(groupPublicKey string) Address {
	return Address{Kind: AddressLegacyGroup, ID: groupPublicKey}
}

func CommunityAddress(server, room string) Address {
	return Address{Kind: AddressCommunity, Server: server, Room: room}
}

func CommunityBlindedAddress(server, blindedID string) Address {
	return Address{Kind: AddressCommunityBlinded, Server: server, ID: blindedID}
}

func (a Address) String() string {
	switch a.Kind {
	case AddressStandard, AddressGroup:
		return a.ID
	case AddressLegacyGroup:
		return "legacy-group:" + a.ID
	case AddressCommunity:
		return fmt.Sprintf("community:%s/%s", a.Server, a.Room)
	case AddressCommunityBlinded:
		return fmt.Sprintf("community-inbox:%s/%s", a.Server, a.ID)
	}
	return "unknown:" + a.ID
}

func (a Address) IsOneOnOne() bool {
	return a.Kind == AddressStandard || a.Kind == AddressCommunityBlinded
}

func (a Address) IsGroup() bool {
	return a.Kind == AddressGroup || a.Kind == AddressLegacyGroup
}

func (a Address) IsCommunity() bool {
	return a.Kind == AddressCommunity
}
