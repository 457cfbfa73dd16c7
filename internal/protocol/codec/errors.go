package codec

import "errors"

var (
	ErrInvalidSignatureTimestamp = errors.New("invalid signature timestamp")
	ErrUnknownMessageType        = errors.New("unknown message type")
	ErrBlockedSender             = errors.New("sender is blocked")
	ErrSelfSendRejected          = errors.New("self send message rejected")
	ErrInvalidStructure          = errors.New("invalid message")
	ErrDuplicateMessage          = errors.New("duplicate message")
	ErrDecryptionFailed          = errors.New("decryption failed")
	ErrInvalidPrefix             = errors.New("invalid sender prefix")
)

var nonRetryable = []error{
	ErrInvalidSignatureTimestamp,
	ErrUnknownMessageType,
	ErrBlockedSender,
	ErrSelfSendRejected,
	ErrInvalidStructure,
	ErrDuplicateMessage,
	ErrDecryptionFailed,
	ErrInvalidPrefix,
}

// IsNonRetryable reports errors that drop the message for good. Anything
// else, such as a dedup store outage, may succeed on a later attempt.
func IsNonRetryable(err error) bool {
	for _, target := range nonRetryable {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
