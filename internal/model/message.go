package model

import "fmt"

type Kind int

const (
	KindVisible Kind = iota + 1
	KindReadReceipt
	KindTypingIndicator
	KindDataExtractionNotification
	KindExpirationTimerUpdate
	KindUnsendRequest
	KindMessageRequestResponse
	KindGroupUpdated
	KindCallMessage
)

func (k Kind) String() string {
	switch k {
	case KindVisible:
		return "Visible"
	case KindReadReceipt:
		return "ReadReceipt"
	case KindTypingIndicator:
		return "TypingIndicator"
	case KindDataExtractionNotification:
		return "DataExtractionNotification"
	case KindExpirationTimerUpdate:
		return "ExpirationTimerUpdate"
	case KindUnsendRequest:
		return "UnsendRequest"
	case KindMessageRequestResponse:
		return "MessageRequestResponse"
	case KindGroupUpdated:
		return "GroupUpdated"
	case KindCallMessage:
		return "CallMessage"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

type (
	// Body is the kind-specific payload of a Message. Implementations are the
	// pointer types declared below; dispatchers switch on the concrete type.
	Body interface {
		Kind() Kind
		Valid() bool
		// DiscardIfBlocked reports whether a blocked sender's message of this kind is dropped.
		DiscardIfBlocked() bool
		// SelfSendValid reports whether a copy sent by the current user is accepted on receipt.
		SelfSendValid() bool
	}

	// Message is owned by the call that parsed or built it until handed to a processor.
	Message struct {
		ID       int64 `json:"id,omitempty"`
		ThreadID int64 `json:"thread_id,omitempty"`

		Sender            string `json:"sender,omitempty"`
		Recipient         string `json:"recipient,omitempty"`
		SentTimestamp     int64  `json:"sent_timestamp,omitempty"`
		ReceivedTimestamp int64  `json:"received_timestamp,omitempty"`
		ServerHash        string `json:"server_hash,omitempty"`
		IsSenderSelf      bool   `json:"is_sender_self,omitempty"`

		GroupPublicKey           string     `json:"group_public_key,omitempty"`
		OpenGroupServerMessageID int64      `json:"open_group_server_message_id,omitempty"`
		SpecifiedTTL             int64      `json:"specified_ttl,omitempty"`
		ExpiryMode               ExpiryMode `json:"expiry_mode"`
		// SyncTarget is the original recipient of a sync copy sent to our own swarm.
		SyncTarget string   `json:"sync_target,omitempty"`
		Profile    *Profile `json:"profile,omitempty"`

		Body Body `json:"-"`
	}
)

func (m *Message) Kind() Kind {
	if m.Body == nil {
		return 0
	}
	return m.Body.Kind()
}

// Valid is the kind-independent minimum-field check combined with the body's own.
func (m *Message) Valid() bool {
	if m.Body == nil {
		return false
	}
	if m.SentTimestamp < 0 || m.ReceivedTimestamp < 0 {
		return false
	}
	if m.Sender == "" || m.Recipient == "" {
		return false
	}
	return m.Body.Valid()
}

// TTL returns the specified TTL if any, else the protocol default.
func (m *Message) TTL() int64 {
	if m.SpecifiedTTL > 0 {
		return m.SpecifiedTTL
	}
	return DefaultTTL
}

// SenderOrSync is the conversation partner a sync copy belongs to.
func (m *Message) SenderOrSync() string {
	switch m.Body.(type) {
	case *VisibleMessage, *ExpirationTimerUpdate:
		if m.SyncTarget != "" {
			return m.SyncTarget
		}
	}
	return m.Sender
}
