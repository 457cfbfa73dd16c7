package model

type DestinationKind int

const (
	DestinationContact DestinationKind = iota + 1
	DestinationLegacyClosedGroup
	DestinationClosedGroup
	DestinationOpenGroup
	DestinationOpenGroupInbox
	DestinationLegacyOpenGroup
)

type (
	Destination interface {
		Kind() DestinationKind
	}

	Contact struct {
		PublicKey string
	}

	LegacyClosedGroup struct {
		GroupPublicKey string
	}

	ClosedGroup struct {
		PublicKey string
	}

	OpenGroup struct {
		Server      string
		Room        string
		WhisperTo   string
		WhisperMods bool
		FileIDs     []string
	}

	OpenGroupInbox struct {
		Server           string
		ServerPublicKey  string
		BlindedPublicKey string
	}

	LegacyOpenGroup struct {
		GroupID string
		Server  string
		Room    string
	}
)

func (Contact) Kind() DestinationKind           { return DestinationContact }
func (LegacyClosedGroup) Kind() DestinationKind { return DestinationLegacyClosedGroup }
func (ClosedGroup) Kind() DestinationKind       { return DestinationClosedGroup }
func (OpenGroup) Kind() DestinationKind         { return DestinationOpenGroup }
func (OpenGroupInbox) Kind() DestinationKind    { return DestinationOpenGroupInbox }
func (LegacyOpenGroup) Kind() DestinationKind   { return DestinationLegacyOpenGroup }

// IsCommunity reports destinations delivered over the community HTTP API rather than a swarm.
func IsCommunity(d Destination) bool {
	switch d.Kind() {
	case DestinationOpenGroup, DestinationOpenGroupInbox, DestinationLegacyOpenGroup:
		return true
	}
	return false
}

// DestinationFor maps a conversation address to where its messages are sent.
func DestinationFor(a Address, serverPublicKey string) Destination {
	switch a.Kind {
	case AddressGroup:
		return ClosedGroup{PublicKey: a.ID}
	case AddressLegacyGroup:
		return LegacyClosedGroup{GroupPublicKey: a.ID}
	case AddressCommunity:
		return OpenGroup{Server: a.Server, Room: a.Room}
	case AddressCommunityBlinded:
		return OpenGroupInbox{Server: a.Server, ServerPublicKey: serverPublicKey, BlindedPublicKey: a.ID}
	}
	return Contact{PublicKey: a.ID}
}
