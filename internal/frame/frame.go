// Package frame implements the length-prefixed wire framing used by the
// client protocol (spec §4.A / §6): a 12-byte big-endian header of
// (msg_type uint64, payload_len uint32) followed by exactly payload_len
// bytes. The codec never interprets the payload — that is objcodec's job.
package frame

import (
	"encoding/binary"
	"errors"
	"io"
)

const headerSize = 12

// ErrShortRead is returned when the stream ends mid-header or mid-payload.
// Callers should treat it the same as a clean EOF: orderly shutdown, not a
// protocol violation.
var ErrShortRead = errors.New("frame: short read (end of stream)")

// Frame is one decoded unit off the wire.
type Frame struct {
	Type    uint64
	Payload []byte
}

// Read blocks until a full frame has been read from r, or returns
// ErrShortRead if the stream ends before a complete header+payload has
// arrived.
func Read(r io.Reader) (Frame, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Frame{}, ErrShortRead
	}

	msgType := binary.BigEndian.Uint64(header[0:8])
	payloadLen := binary.BigEndian.Uint32(header[8:12])

	if payloadLen == 0 {
		return Frame{Type: msgType}, nil
	}

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, ErrShortRead
	}
	return Frame{Type: msgType, Payload: payload}, nil
}

// Write encodes msgType and payload as one frame and writes it to w in a
// single call so a slow writer can't interleave a header from one frame
// with a payload from another.
func Write(w io.Writer, msgType uint64, payload []byte) error {
	buf := make([]byte, headerSize+len(payload))
	binary.BigEndian.PutUint64(buf[0:8], msgType)
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(payload)))
	copy(buf[headerSize:], payload)
	_, err := w.Write(buf)
	return err
}
