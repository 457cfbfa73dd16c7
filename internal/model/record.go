package model

// DeletedGloballyText replaces the body of a message its author unsent.
const DeletedGloballyText = "This message was deleted"

type (
	// MessageRecord is a persisted message as seen by the receive pipeline.
	MessageRecord struct {
		ID            int64   `json:"id" bson:"_id"`
		ThreadID      int64   `json:"thread_id" bson:"thread_id"`
		ThreadAddress Address `json:"thread_address" bson:"thread_address"`
		Author        string  `json:"author" bson:"author"`
		Timestamp     int64   `json:"timestamp" bson:"timestamp"`
		ServerHash    string  `json:"server_hash,omitempty" bson:"server_hash,omitempty"`
		Outgoing      bool    `json:"outgoing" bson:"outgoing"`
		Deleted       bool    `json:"deleted,omitempty" bson:"deleted,omitempty"`
	}

	// Recipient is the locally known state of a conversation partner.
	Recipient struct {
		Address  Address `json:"address" bson:"address"`
		Name     string  `json:"name,omitempty" bson:"name,omitempty"`
		Hidden   bool    `json:"hidden,omitempty" bson:"hidden,omitempty"`
		Approved bool    `json:"approved,omitempty" bson:"approved,omitempty"`
		Blocked  bool    `json:"blocked,omitempty" bson:"blocked,omitempty"`
	}
)

// IsNoteToSelf reports whether the record lives in the user's own conversation.
func (r *MessageRecord) IsNoteToSelf(self string) bool {
	return r.ThreadAddress.Kind == AddressStandard && r.ThreadAddress.ID == self
}

// IsOneOnOne reports whether the record lives in a conversation with another account.
func (r *MessageRecord) IsOneOnOne(self string) bool {
	return r.ThreadAddress.Kind == AddressStandard && r.ThreadAddress.ID != self
}
