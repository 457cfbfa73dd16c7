package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"e2e_transport/internal/model"
)

// DataMessage flags.
const FlagExpirationTimerUpdate uint32 = 2

const (
	ReceiptDelivery = 0
	ReceiptRead     = 1
)

const (
	TypingStarted = 0
	TypingStopped = 1
)

const (
	ExpirationUnknown   = 0
	ExpirationAfterRead = 1
	ExpirationAfterSend = 2
)

var ErrConversion = errors.New("cannot convert message to content")

type (
	// Content is the plaintext schema inside every envelope: a set of optional
	// sections of which exactly one identifies the message kind.
	Content struct {
		SigTimestampMs  *int64 `json:"sig_timestamp_ms,omitempty"`
		ExpirationType  int    `json:"expiration_type,omitempty"`
		ExpirationTimer int64  `json:"expiration_timer,omitempty"`

		DataMessage                *DataMessage                `json:"data_message,omitempty"`
		ReceiptMessage             *ReceiptMessage             `json:"receipt_message,omitempty"`
		TypingMessage              *TypingMessage              `json:"typing_message,omitempty"`
		DataExtractionNotification *DataExtractionNotification `json:"data_extraction_notification,omitempty"`
		UnsendRequest              *model.UnsendRequest        `json:"unsend_request,omitempty"`
		MessageRequestResponse     *MessageRequestResponse     `json:"message_request_response,omitempty"`
		CallMessage                *model.CallMessage          `json:"call_message,omitempty"`
	}

	DataMessage struct {
		Body                string                     `json:"body,omitempty"`
		Attachments         []model.Attachment         `json:"attachments,omitempty"`
		Quote               *model.Quote               `json:"quote,omitempty"`
		Reaction            *model.Reaction            `json:"reaction,omitempty"`
		OpenGroupInvitation *model.OpenGroupInvitation `json:"open_group_invitation,omitempty"`
		Flags               uint32                     `json:"flags,omitempty"`
		Profile             *model.Profile             `json:"profile,omitempty"`
		SyncTarget          string                     `json:"sync_target,omitempty"`
		BlocksRequests      bool                       `json:"blocks_community_message_requests,omitempty"`
		GroupUpdateMessage  *GroupUpdateMessage        `json:"group_update_message,omitempty"`
	}

	GroupUpdateMessage struct {
		Invite                 *model.GroupInvite                 `json:"invite,omitempty"`
		InviteResponse         *model.GroupInviteResponse         `json:"invite_response,omitempty"`
		Promote                *model.GroupPromote                `json:"promote,omitempty"`
		InfoChange             *model.GroupInfoChange             `json:"info_change,omitempty"`
		MemberChange           *model.GroupMemberChange           `json:"member_change,omitempty"`
		MemberLeft             *model.GroupMemberLeft             `json:"member_left,omitempty"`
		MemberLeftNotification *model.GroupMemberLeftNotification `json:"member_left_notification,omitempty"`
		DeleteMemberContent    *model.GroupDeleteMemberContent    `json:"delete_member_content,omitempty"`
	}

	ReceiptMessage struct {
		Type       int     `json:"type"`
		Timestamps []int64 `json:"timestamps"`
	}

	TypingMessage struct {
		Timestamp int64 `json:"timestamp"`
		Action    int   `json:"action"`
	}

	DataExtractionNotification struct {
		Type      model.DataExtractionKind `json:"type"`
		Timestamp int64                    `json:"timestamp,omitempty"`
	}

	MessageRequestResponse struct {
		IsApproved bool           `json:"is_approved"`
		Profile    *model.Profile `json:"profile,omitempty"`
	}
)

func MarshalContent(c *Content) ([]byte, error) {
	return json.Marshal(c)
}

func UnmarshalContent(b []byte) (*Content, error) {
	var c Content
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("unmarshal content: %w", err)
	}
	return &c, nil
}

// Update returns the single populated control variant, or nil.
func (g *GroupUpdateMessage) Update() model.GroupUpdate {
	switch {
	case g == nil:
		return nil
	case g.Invite != nil:
		return g.Invite
	case g.InviteResponse != nil:
		return g.InviteResponse
	case g.Promote != nil:
		return g.Promote
	case g.InfoChange != nil:
		return g.InfoChange
	case g.MemberChange != nil:
		return g.MemberChange
	case g.MemberLeft != nil:
		return g.MemberLeft
	case g.MemberLeftNotification != nil:
		return g.MemberLeftNotification
	case g.DeleteMemberContent != nil:
		return g.DeleteMemberContent
	}
	return nil
}

func groupUpdateMessage(u model.GroupUpdate) (*GroupUpdateMessage, error) {
	g := &GroupUpdateMessage{}
	switch v := u.(type) {
	case *model.GroupInvite:
		g.Invite = v
	case *model.GroupInviteResponse:
		g.InviteResponse = v
	case *model.GroupPromote:
		g.Promote = v
	case *model.GroupInfoChange:
		g.InfoChange = v
	case *model.GroupMemberChange:
		g.MemberChange = v
	case *model.GroupMemberLeft:
		g.MemberLeft = v
	case *model.GroupMemberLeftNotification:
		g.MemberLeftNotification = v
	case *model.GroupDeleteMemberContent:
		g.DeleteMemberContent = v
	default:
		return nil, fmt.Errorf("%w: unknown group update %T", ErrConversion, u)
	}
	return g, nil
}

// ToContent builds the wire content for m. The sent timestamp doubles as the
// signed timestamp the receiver checks against the envelope.
func ToContent(m *model.Message) (*Content, error) {
	if m.SentTimestamp <= 0 {
		return nil, fmt.Errorf("%w: missing sent timestamp", ErrConversion)
	}
	ts := m.SentTimestamp
	c := &Content{SigTimestampMs: &ts}

	switch m.ExpiryMode.Type {
	case model.ExpiryAfterSend:
		c.ExpirationType = ExpirationAfterSend
		c.ExpirationTimer = m.ExpiryMode.Seconds()
	case model.ExpiryAfterRead:
		c.ExpirationType = ExpirationAfterRead
		c.ExpirationTimer = m.ExpiryMode.Seconds()
	}

	switch b := m.Body.(type) {
	case *model.VisibleMessage:
		c.DataMessage = &DataMessage{
			Body:                b.Text,
			Attachments:         b.Attachments,
			Quote:               b.Quote,
			Reaction:            b.Reaction,
			OpenGroupInvitation: b.OpenGroupInvitation,
			Profile:             m.Profile,
			SyncTarget:          m.SyncTarget,
			BlocksRequests:      b.BlocksMessageRequests,
		}
	case *model.ReadReceipt:
		c.ReceiptMessage = &ReceiptMessage{Type: ReceiptRead, Timestamps: b.Timestamps}
	case *model.TypingIndicator:
		action := TypingStopped
		if b.Started {
			action = TypingStarted
		}
		c.TypingMessage = &TypingMessage{Timestamp: m.SentTimestamp, Action: action}
	case *model.DataExtractionNotification:
		c.DataExtractionNotification = &DataExtractionNotification{Type: b.Type, Timestamp: b.Timestamp}
	case *model.ExpirationTimerUpdate:
		c.DataMessage = &DataMessage{Flags: FlagExpirationTimerUpdate, SyncTarget: m.SyncTarget}
		switch b.Mode.Type {
		case model.ExpiryAfterSend:
			c.ExpirationType = ExpirationAfterSend
		case model.ExpiryAfterRead:
			c.ExpirationType = ExpirationAfterRead
		default:
			c.ExpirationType = ExpirationUnknown
		}
		c.ExpirationTimer = b.Mode.Seconds()
	case *model.UnsendRequest:
		c.UnsendRequest = b
	case *model.MessageRequestResponse:
		c.MessageRequestResponse = &MessageRequestResponse{IsApproved: b.Approved, Profile: m.Profile}
	case *model.CallMessage:
		c.CallMessage = b
	case *model.GroupUpdated:
		g, err := groupUpdateMessage(b.Update)
		if err != nil {
			return nil, err
		}
		c.DataMessage = &DataMessage{GroupUpdateMessage: g, Profile: m.Profile}
	default:
		return nil, fmt.Errorf("%w: unknown body %T", ErrConversion, m.Body)
	}
	return c, nil
}

// ExpiryModeOf reads the disappearing-message setting carried by c.
func ExpiryModeOf(c *Content) model.ExpiryMode {
	if c.ExpirationTimer <= 0 {
		return model.ExpiryMode{}
	}
	d := time.Duration(c.ExpirationTimer) * time.Second
	switch c.ExpirationType {
	case ExpirationAfterSend:
		return model.ExpiryMode{Type: model.ExpiryAfterSend, Duration: d}
	case ExpirationAfterRead:
		return model.ExpiryMode{Type: model.ExpiryAfterRead, Duration: d}
	}
	return model.ExpiryMode{}
}
