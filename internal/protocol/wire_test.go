package protocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadMessageRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, ReqSendMsg, []any{"bob", "hi"}))

	code, payload, err := ReadMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, ReqSendMsg, code)
	assert.Equal(t, []any{"bob", "hi"}, payload)
}

func TestWriteReadNilPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, ReqListUsers, nil))

	code, payload, err := ReadMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, ReqListUsers, code)
	assert.Nil(t, payload)
}
