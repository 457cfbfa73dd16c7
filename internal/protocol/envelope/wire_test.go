package envelope

import (
	"testing"

	"e2e_transport/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestMarshalLayout(t *testing.T) {
	b := Marshal(&model.Envelope{
		Type:      model.EnvelopeSessionMessage,
		Timestamp: 1700000000000,
		Content:   []byte{0xaa},
	})

	// type=6 as field 1 varint, then field 5, then field 8.
	assert.Equal(t, []byte{0x08, 0x06}, b[:2])
	num, typ, n := protowire.ConsumeTag(b[2:])
	require.Positive(t, n)
	assert.Equal(t, protowire.Number(5), num)
	assert.Equal(t, protowire.VarintType, typ)
	assert.Equal(t, []byte{0x42, 0x01, 0xaa}, b[len(b)-3:])
}

func TestUnmarshalSkipsUnknownFields(t *testing.T) {
	b := Marshal(&model.Envelope{
		Type:      model.EnvelopeClosedGroupMessage,
		Timestamp: 42,
		Source:    "05abc",
		Content:   []byte("payload"),
	})
	b = protowire.AppendTag(b, 10, protowire.VarintType)
	b = protowire.AppendVarint(b, 99)

	e, err := Unmarshal(b)
	require.NoError(t, err)
	assert.Equal(t, model.EnvelopeClosedGroupMessage, e.Type)
	assert.EqualValues(t, 42, e.Timestamp)
	assert.Equal(t, "05abc", e.Source)
	assert.Equal(t, []byte("payload"), e.Content)
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	_, err := Unmarshal([]byte{0x42, 0x05, 0x01})
	assert.ErrorIs(t, err, ErrMalformedEnvelope)

	_, err = Unmarshal(nil)
	assert.ErrorIs(t, err, ErrMalformedEnvelope)
}
