// Package envelope holds the wire record exchanged with storage nodes and the
// content schema carried inside it.
package envelope

import (
	"errors"
	"fmt"

	"e2e_transport/internal/model"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the protobuf Envelope message.
const (
	fieldType         protowire.Number = 1
	fieldSource       protowire.Number = 2
	fieldTimestamp    protowire.Number = 5
	fieldSourceDevice protowire.Number = 7
	fieldContent      protowire.Number = 8
)

const sourceDevice = 1

var ErrMalformedEnvelope = errors.New("malformed envelope")

// Marshal encodes e in protobuf wire format, fields in ascending order.
func Marshal(e *model.Envelope) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.Type))
	if e.Source != "" {
		b = protowire.AppendTag(b, fieldSource, protowire.BytesType)
		b = protowire.AppendString(b, e.Source)
	}
	b = protowire.AppendTag(b, fieldTimestamp, protowire.VarintType)
	b = protowire.AppendVarint(b, e.Timestamp)
	if e.Source != "" {
		b = protowire.AppendTag(b, fieldSourceDevice, protowire.VarintType)
		b = protowire.AppendVarint(b, sourceDevice)
	}
	if len(e.Content) > 0 {
		b = protowire.AppendTag(b, fieldContent, protowire.BytesType)
		b = protowire.AppendBytes(b, e.Content)
	}
	return b
}

// Unmarshal decodes an Envelope, skipping fields it does not know.
func Unmarshal(b []byte) (*model.Envelope, error) {
	e := &model.Envelope{}
	seenType := false
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldType && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: type: %v", ErrMalformedEnvelope, protowire.ParseError(n))
			}
			e.Type = model.EnvelopeType(v)
			seenType = true
			b = b[n:]
		case num == fieldSource && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: source: %v", ErrMalformedEnvelope, protowire.ParseError(n))
			}
			e.Source = v
			b = b[n:]
		case num == fieldTimestamp && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: timestamp: %v", ErrMalformedEnvelope, protowire.ParseError(n))
			}
			e.Timestamp = v
			b = b[n:]
		case num == fieldContent && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: content: %v", ErrMalformedEnvelope, protowire.ParseError(n))
			}
			e.Content = append([]byte(nil), v...)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("%w: field %d: %v", ErrMalformedEnvelope, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	if !seenType {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedEnvelope)
	}
	return e, nil
}
