package codec

import (
	"context"
	"fmt"
	"time"

	"e2e_transport/internal/model"
	"e2e_transport/internal/protocol/envelope"
)

// RelaxedDrift bounds how far a community message's signed timestamp may
// stray from the server's posted time.
const RelaxedDrift = 6 * time.Hour

type (
	TimestampPolicy int

	ParseOptions struct {
		Policy TimestampPolicy
		// CheckBlocked applies the blocklist; only one-on-one traffic does.
		CheckBlocked bool
		// BlindedIDs are our aliases on the community the message came from.
		BlindedIDs []model.AccountID
	}
)

const (
	Strict TimestampPolicy = iota
	Relaxed
)

type probe func(c *envelope.Content) model.Body

// probes run in priority order; the first match decides the message kind.
var probes = []probe{
	readReceipt,
	typingIndicator,
	dataExtractionNotification,
	expirationTimerUpdate,
	unsendRequest,
	messageRequestResponse,
	callMessage,
	groupUpdated,
	visibleMessage,
}

// Parse turns decoded plaintext into a Message. On reaching the dedup step the
// timestamp is recorded whether or not the caller goes on to process the
// message, so a retry of the same payload reports ErrDuplicateMessage.
func (c *Codec) Parse(ctx context.Context, d *Decoded, opts ParseOptions) (*model.Message, error) {
	content, err := envelope.UnmarshalContent(d.Plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStructure, err)
	}

	if content.SigTimestampMs != nil {
		diff := *content.SigTimestampMs - d.Timestamp
		if diff < 0 {
			diff = -diff
		}
		if (opts.Policy == Strict && diff != 0) || (opts.Policy == Relaxed && diff > RelaxedDrift.Milliseconds()) {
			return nil, ErrInvalidSignatureTimestamp
		}
	}

	body := resolve(content)
	if body == nil {
		return nil, ErrUnknownMessageType
	}

	sender := d.Sender.Hex()
	if opts.CheckBlocked && c.blocked != nil && c.blocked.IsBlocked(ctx, sender) && body.DiscardIfBlocked() {
		return nil, fmt.Errorf("%w: %s", ErrBlockedSender, sender)
	}

	self := c.user.AccountID()
	isSelf := d.Sender == self
	for _, id := range opts.BlindedIDs {
		if d.Sender == id {
			isSelf = true
		}
	}
	if isSelf && !body.SelfSendValid() {
		return nil, ErrSelfSendRejected
	}

	msg := &model.Message{
		Sender:            sender,
		Recipient:         self.Hex(),
		SentTimestamp:     d.Timestamp,
		ReceivedTimestamp: c.clock.NowMillis(),
		IsSenderSelf:      isSelf,
		ExpiryMode:        envelope.ExpiryModeOf(content),
		Body:              body,
	}
	if dm := content.DataMessage; dm != nil {
		msg.Profile = dm.Profile
		msg.SyncTarget = dm.SyncTarget
	}
	if mrr := content.MessageRequestResponse; mrr != nil && mrr.Profile != nil {
		msg.Profile = mrr.Profile
	}

	if !msg.Valid() && !visibleWithAttachments(body, content) {
		return nil, ErrInvalidStructure
	}

	recorded, err := c.dedup.RecordMessageTimestamp(ctx, d.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("record message timestamp: %w", err)
	}
	if !recorded {
		return nil, ErrDuplicateMessage
	}
	return msg, nil
}

// visibleWithAttachments keeps visible messages that fail validation but
// carry attachments; older clients sent such messages with no text.
func visibleWithAttachments(b model.Body, c *envelope.Content) bool {
	_, visible := b.(*model.VisibleMessage)
	return visible && len(c.DataMessage.Attachments) > 0
}

func resolve(c *envelope.Content) model.Body {
	for _, p := range probes {
		if b := p(c); b != nil {
			return b
		}
	}
	return nil
}

func readReceipt(c *envelope.Content) model.Body {
	if c.ReceiptMessage == nil || c.ReceiptMessage.Type != envelope.ReceiptRead {
		return nil
	}
	return &model.ReadReceipt{Timestamps: c.ReceiptMessage.Timestamps}
}

func typingIndicator(c *envelope.Content) model.Body {
	if c.TypingMessage == nil {
		return nil
	}
	return &model.TypingIndicator{Started: c.TypingMessage.Action == envelope.TypingStarted}
}

func dataExtractionNotification(c *envelope.Content) model.Body {
	if c.DataExtractionNotification == nil {
		return nil
	}
	return &model.DataExtractionNotification{Type: c.DataExtractionNotification.Type, Timestamp: c.DataExtractionNotification.Timestamp}
}

func expirationTimerUpdate(c *envelope.Content) model.Body {
	if c.DataMessage == nil || c.DataMessage.Flags&envelope.FlagExpirationTimerUpdate == 0 {
		return nil
	}
	return &model.ExpirationTimerUpdate{Mode: envelope.ExpiryModeOf(c)}
}

func unsendRequest(c *envelope.Content) model.Body {
	if c.UnsendRequest == nil {
		return nil
	}
	return c.UnsendRequest
}

func messageRequestResponse(c *envelope.Content) model.Body {
	if c.MessageRequestResponse == nil {
		return nil
	}
	return &model.MessageRequestResponse{Approved: c.MessageRequestResponse.IsApproved}
}

func callMessage(c *envelope.Content) model.Body {
	if c.CallMessage == nil {
		return nil
	}
	return c.CallMessage
}

func groupUpdated(c *envelope.Content) model.Body {
	if c.DataMessage == nil {
		return nil
	}
	u := c.DataMessage.GroupUpdateMessage.Update()
	if u == nil {
		return nil
	}
	return &model.GroupUpdated{Update: u}
}

func visibleMessage(c *envelope.Content) model.Body {
	dm := c.DataMessage
	if dm == nil {
		return nil
	}
	return &model.VisibleMessage{
		Text:                  dm.Body,
		Attachments:           dm.Attachments,
		Quote:                 dm.Quote,
		Reaction:              dm.Reaction,
		OpenGroupInvitation:   dm.OpenGroupInvitation,
		BlocksMessageRequests: dm.BlocksRequests,
	}
}
