package objcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"replichat/internal/chatmsg"
)

func roundTrip(t *testing.T, v any) any {
	t.Helper()
	data, err := Encode(v)
	require.NoError(t, err)
	out, err := Decode(data)
	require.NoError(t, err)
	return out
}

func TestScalarRoundTrip(t *testing.T) {
	assert.Nil(t, roundTrip(t, nil))
	assert.Equal(t, true, roundTrip(t, true))
	assert.Equal(t, int64(42), roundTrip(t, 42))
	assert.Equal(t, int64(-7), roundTrip(t, int64(-7)))
	assert.Equal(t, 3.25, roundTrip(t, 3.25))
	assert.Equal(t, "hello", roundTrip(t, "hello"))
	assert.Equal(t, []byte("raw"), roundTrip(t, []byte("raw")))
}

func TestListRoundTrip(t *testing.T) {
	out := roundTrip(t, []any{"a", int64(1), true})
	assert.Equal(t, []any{"a", int64(1), true}, out)
}

func TestStringListRoundTrip(t *testing.T) {
	out := roundTrip(t, []string{"x", "y"})
	assert.Equal(t, []any{"x", "y"}, out)
}

func TestMapRoundTrip(t *testing.T) {
	out := roundTrip(t, map[string]any{"a": int64(1), "b": "two"})
	assert.Equal(t, map[string]any{"a": int64(1), "b": "two"}, out)
}

func TestMessageRoundTrip(t *testing.T) {
	m := chatmsg.Message{
		ID:        "m1",
		Sender:    "alice",
		Recipient: "bob",
		Content:   "hi",
		Timestamp: 123.456,
		Status:    chatmsg.Unread,
	}
	data, err := EncodeMessage(m)
	require.NoError(t, err)
	out, err := DecodeMessage(data)
	require.NoError(t, err)
	assert.Equal(t, m, out)
}

func TestDecodeTrailingBytesRejected(t *testing.T) {
	data, err := Encode("hi")
	require.NoError(t, err)
	_, err = Decode(append(data, 0xFF))
	assert.Error(t, err)
}

func TestDecodeTruncatedRejected(t *testing.T) {
	data, err := Encode("hello world")
	require.NoError(t, err)
	_, err = Decode(data[:len(data)-2])
	assert.Error(t, err)
}

func TestDecodeUnknownTag(t *testing.T) {
	_, err := Decode([]byte{0xFE})
	assert.Error(t, err)
}

func TestMessageFromMapMissingField(t *testing.T) {
	_, err := MessageFromMap(map[string]any{"id": "m1"})
	assert.Error(t, err)
}
