package sender

import (
	"e2e_transport/internal/protocol/strategy"
	"errors"
	"fmt"
)

type ErrorKind int

const (
	InvalidMessage ErrorKind = iota + 1
	ProtoConversionFailed
	InvalidClosedGroupUpdate
	NoUserKeyPair
	SigningFailed
	EncryptionFailed
	NoThread
	NoKeyPair
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidMessage:
		return "invalid message"
	case ProtoConversionFailed:
		return "couldn't convert message to content"
	case InvalidClosedGroupUpdate:
		return "invalid group update"
	case NoUserKeyPair:
		return "couldn't find user key pair"
	case SigningFailed:
		return "couldn't sign message"
	case EncryptionFailed:
		return "couldn't encrypt message"
	case NoThread:
		return "couldn't find thread"
	case NoKeyPair:
		return "couldn't find key pair"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

type SendError struct {
	Kind ErrorKind
	Err  error
}

func newError(kind ErrorKind, err error) *SendError {
	return &SendError{Kind: kind, Err: err}
}

func (e *SendError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

func (e *SendError) Retryable() bool {
	switch e.Kind {
	case InvalidMessage, ProtoConversionFailed, InvalidClosedGroupUpdate:
		return false
	}
	return true
}

// IsRetryable reports whether a job retrying the send may succeed. Errors
// that are not a SendError come from the network and are retryable.
func IsRetryable(err error) bool {
	var se *SendError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return err != nil
}

// classify maps an encryption failure onto the send error taxonomy.
func classify(err error) *SendError {
	switch {
	case errors.Is(err, strategy.ErrNoUserKeyPair):
		return newError(NoUserKeyPair, err)
	case errors.Is(err, strategy.ErrNoKeyPair):
		return newError(NoKeyPair, err)
	case errors.Is(err, strategy.ErrSigningFailed):
		return newError(SigningFailed, err)
	case errors.Is(err, strategy.ErrInvalidDestination):
		return newError(InvalidMessage, err)
	}
	return newError(EncryptionFailed, err)
}
