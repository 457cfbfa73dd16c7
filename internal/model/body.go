package model

type (
	Attachment struct {
		ID          uint64 `json:"id"`
		ContentType string `json:"content_type,omitempty"`
		Key         []byte `json:"key,omitempty"`
		Size        uint32 `json:"size,omitempty"`
		Digest      []byte `json:"digest,omitempty"`
		FileName    string `json:"file_name,omitempty"`
		URL         string `json:"url,omitempty"`
	}

	Quote struct {
		Timestamp int64  `json:"timestamp"`
		Author    string `json:"author"`
		Text      string `json:"text,omitempty"`
	}

	Reaction struct {
		Timestamp int64  `json:"timestamp"`
		Author    string `json:"author"`
		Emoji     string `json:"emoji"`
		React     bool   `json:"react"`
		ServerID  int64  `json:"server_id,omitempty"`
		Count     int64  `json:"count,omitempty"`
		Index     int64  `json:"index,omitempty"`
	}

	OpenGroupInvitation struct {
		URL  string `json:"url"`
		Name string `json:"name"`
	}

	VisibleMessage struct {
		Text                  string               `json:"text,omitempty"`
		Attachments           []Attachment         `json:"attachments,omitempty"`
		AttachmentIDs         []int64              `json:"attachment_ids,omitempty"`
		Quote                 *Quote               `json:"quote,omitempty"`
		Reaction              *Reaction            `json:"reaction,omitempty"`
		OpenGroupInvitation   *OpenGroupInvitation `json:"open_group_invitation,omitempty"`
		BlocksMessageRequests bool                 `json:"blocks_message_requests,omitempty"`
	}

	ReadReceipt struct {
		Timestamps []int64 `json:"timestamps"`
	}

	TypingIndicator struct {
		Started bool `json:"started"`
	}

	DataExtractionKind int

	DataExtractionNotification struct {
		Type      DataExtractionKind `json:"kind"`
		Timestamp int64              `json:"timestamp,omitempty"`
	}

	ExpirationTimerUpdate struct {
		Mode ExpiryMode `json:"mode"`
	}

	UnsendRequest struct {
		Timestamp int64  `json:"timestamp"`
		Author    string `json:"author"`
	}

	MessageRequestResponse struct {
		Approved bool `json:"approved"`
	}

	CallType int

	CallMessage struct {
		Type            CallType `json:"type"`
		SDPs            []string `json:"sdps,omitempty"`
		SDPMLineIndexes []uint32 `json:"sdp_mline_indexes,omitempty"`
		SDPMids         []string `json:"sdp_mids,omitempty"`
		CallID          string   `json:"call_id"`
	}

	GroupUpdated struct {
		Update GroupUpdate `json:"-"`
	}
)

const (
	DataExtractionScreenshot DataExtractionKind = iota + 1
	DataExtractionMediaSaved
)

const (
	CallPreOffer CallType = iota + 1
	CallOffer
	CallAnswer
	CallProvisionalAnswer
	CallICECandidates
	CallEnd
)

func (*VisibleMessage) Kind() Kind { return KindVisible }

// Valid ignores Attachments: only attachments that already have local ids count.
func (v *VisibleMessage) Valid() bool {
	return len(v.AttachmentIDs) > 0 || v.OpenGroupInvitation != nil || v.Reaction != nil || v.Text != "" || v.Quote != nil
}
func (*VisibleMessage) DiscardIfBlocked() bool { return true }
func (*VisibleMessage) SelfSendValid() bool    { return true }

func (*ReadReceipt) Kind() Kind             { return KindReadReceipt }
func (r *ReadReceipt) Valid() bool          { return len(r.Timestamps) > 0 }
func (*ReadReceipt) DiscardIfBlocked() bool { return true }
func (*ReadReceipt) SelfSendValid() bool    { return false }

func (*TypingIndicator) Kind() Kind             { return KindTypingIndicator }
func (*TypingIndicator) Valid() bool            { return true }
func (*TypingIndicator) DiscardIfBlocked() bool { return true }
func (*TypingIndicator) SelfSendValid() bool    { return false }

func (*DataExtractionNotification) Kind() Kind { return KindDataExtractionNotification }
func (d *DataExtractionNotification) Valid() bool {
	return d.Type == DataExtractionScreenshot || d.Type == DataExtractionMediaSaved
}
func (*DataExtractionNotification) DiscardIfBlocked() bool { return true }
func (*DataExtractionNotification) SelfSendValid() bool    { return false }

func (*ExpirationTimerUpdate) Kind() Kind             { return KindExpirationTimerUpdate }
func (*ExpirationTimerUpdate) Valid() bool            { return true }
func (*ExpirationTimerUpdate) DiscardIfBlocked() bool { return true }
func (*ExpirationTimerUpdate) SelfSendValid() bool    { return true }

func (*UnsendRequest) Kind() Kind             { return KindUnsendRequest }
func (u *UnsendRequest) Valid() bool          { return u.Timestamp > 0 && u.Author != "" }
func (*UnsendRequest) DiscardIfBlocked() bool { return true }
func (*UnsendRequest) SelfSendValid() bool    { return true }

func (*MessageRequestResponse) Kind() Kind  { return KindMessageRequestResponse }
func (*MessageRequestResponse) Valid() bool { return true }

// DiscardIfBlocked is false: an approval is how a blocked contact becomes unblocked.
func (*MessageRequestResponse) DiscardIfBlocked() bool { return false }
func (*MessageRequestResponse) SelfSendValid() bool    { return true }

func (*CallMessage) Kind() Kind { return KindCallMessage }
func (c *CallMessage) Valid() bool {
	return c.Type >= CallPreOffer && c.Type <= CallEnd && c.CallID != ""
}
func (*CallMessage) DiscardIfBlocked() bool { return true }

// SelfSendValid allows answers and hang-ups from our other devices.
func (c *CallMessage) SelfSendValid() bool {
	return c.Type == CallAnswer || c.Type == CallEnd
}

func (*GroupUpdated) Kind() Kind { return KindGroupUpdated }
func (g *GroupUpdated) Valid() bool {
	return g.Update != nil && g.Update.Valid()
}

// DiscardIfBlocked keeps promotions: an admin handing over the group must not be lost.
func (g *GroupUpdated) DiscardIfBlocked() bool {
	_, promote := g.Update.(*GroupPromote)
	return !promote
}
func (*GroupUpdated) SelfSendValid() bool { return true }
