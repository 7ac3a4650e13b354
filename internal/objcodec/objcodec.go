// Package objcodec implements the self-describing object encoding used for
// request/response payloads (spec §4.B): every value carries a one-byte
// type tag and, where variable-length, a uint32 length prefix, so that
// Decode(Encode(v)) == v exactly. It stands in for the black-box wire
// serializer the original system treated as a collaborator — there is no
// off-the-shelf library in the pack for a self-describing any-value codec
// with Message-as-map semantics, so this one piece is hand-rolled (see
// DESIGN.md).
//
// Supported Go representations: nil, bool, int64, float64, string, []byte,
// []any (ordered list), map[string]any (string-keyed map). A chatmsg.Message
// is encoded as a map of its six attributes, per spec.
package objcodec

import (
	"encoding/binary"
	"fmt"
	"math"

	"replichat/internal/chatmsg"
)

const (
	tagNull = iota
	tagBool
	tagInt
	tagFloat
	tagString
	tagBytes
	tagList
	tagMap
)

// Encode serialises v into the TLV wire format.
func Encode(v any) ([]byte, error) {
	var buf []byte
	if err := encodeInto(&buf, v); err != nil {
		return nil, err
	}
	return buf, nil
}

func encodeInto(buf *[]byte, v any) error {
	switch val := v.(type) {
	case nil:
		*buf = append(*buf, tagNull)
	case bool:
		*buf = append(*buf, tagBool)
		if val {
			*buf = append(*buf, 1)
		} else {
			*buf = append(*buf, 0)
		}
	case int:
		return encodeInto(buf, int64(val))
	case int64:
		*buf = append(*buf, tagInt)
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], uint64(val))
		*buf = append(*buf, tmp[:]...)
	case float64:
		*buf = append(*buf, tagFloat)
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], math.Float64bits(val))
		*buf = append(*buf, tmp[:]...)
	case string:
		*buf = append(*buf, tagString)
		appendLenPrefixed(buf, []byte(val))
	case []byte:
		*buf = append(*buf, tagBytes)
		appendLenPrefixed(buf, val)
	case []string:
		list := make([]any, len(val))
		for i, s := range val {
			list[i] = s
		}
		return encodeInto(buf, list)
	case []any:
		*buf = append(*buf, tagList)
		var lenTmp [4]byte
		binary.BigEndian.PutUint32(lenTmp[:], uint32(len(val)))
		*buf = append(*buf, lenTmp[:]...)
		for _, item := range val {
			if err := encodeInto(buf, item); err != nil {
				return err
			}
		}
	case map[string]any:
		*buf = append(*buf, tagMap)
		var lenTmp [4]byte
		binary.BigEndian.PutUint32(lenTmp[:], uint32(len(val)))
		*buf = append(*buf, lenTmp[:]...)
		for k, item := range val {
			appendLenPrefixed(buf, []byte(k))
			if err := encodeInto(buf, item); err != nil {
				return err
			}
		}
	case chatmsg.Message:
		return encodeInto(buf, messageToMap(val))
	case *chatmsg.Message:
		return encodeInto(buf, messageToMap(*val))
	default:
		return fmt.Errorf("objcodec: unsupported type %T", v)
	}
	return nil
}

func appendLenPrefixed(buf *[]byte, data []byte) {
	var lenTmp [4]byte
	binary.BigEndian.PutUint32(lenTmp[:], uint32(len(data)))
	*buf = append(*buf, lenTmp[:]...)
	*buf = append(*buf, data...)
}

// Decode parses one complete value from data. It returns an error if data
// contains trailing bytes or an unknown tag.
func Decode(data []byte) (any, error) {
	val, rest, err := decodeFrom(data)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("objcodec: %d trailing byte(s) after value", len(rest))
	}
	return val, nil
}

func decodeFrom(data []byte) (any, []byte, error) {
	if len(data) < 1 {
		return nil, nil, fmt.Errorf("objcodec: empty input")
	}
	tag := data[0]
	data = data[1:]

	switch tag {
	case tagNull:
		return nil, data, nil
	case tagBool:
		if len(data) < 1 {
			return nil, nil, fmt.Errorf("objcodec: truncated bool")
		}
		return data[0] != 0, data[1:], nil
	case tagInt:
		if len(data) < 8 {
			return nil, nil, fmt.Errorf("objcodec: truncated int")
		}
		return int64(binary.BigEndian.Uint64(data[:8])), data[8:], nil
	case tagFloat:
		if len(data) < 8 {
			return nil, nil, fmt.Errorf("objcodec: truncated float")
		}
		bits := binary.BigEndian.Uint64(data[:8])
		return math.Float64frombits(bits), data[8:], nil
	case tagString:
		raw, rest, err := readLenPrefixed(data)
		if err != nil {
			return nil, nil, err
		}
		return string(raw), rest, nil
	case tagBytes:
		return readLenPrefixed(data)
	case tagList:
		if len(data) < 4 {
			return nil, nil, fmt.Errorf("objcodec: truncated list length")
		}
		n := binary.BigEndian.Uint32(data[:4])
		rest := data[4:]
		list := make([]any, 0, n)
		for i := uint32(0); i < n; i++ {
			var item any
			var err error
			item, rest, err = decodeFrom(rest)
			if err != nil {
				return nil, nil, err
			}
			list = append(list, item)
		}
		return list, rest, nil
	case tagMap:
		if len(data) < 4 {
			return nil, nil, fmt.Errorf("objcodec: truncated map length")
		}
		n := binary.BigEndian.Uint32(data[:4])
		rest := data[4:]
		m := make(map[string]any, n)
		for i := uint32(0); i < n; i++ {
			var keyRaw []byte
			var err error
			keyRaw, rest, err = readLenPrefixed(rest)
			if err != nil {
				return nil, nil, err
			}
			var val any
			val, rest, err = decodeFrom(rest)
			if err != nil {
				return nil, nil, err
			}
			m[string(keyRaw)] = val
		}
		return m, rest, nil
	default:
		return nil, nil, fmt.Errorf("objcodec: unknown tag %d", tag)
	}
}

func readLenPrefixed(data []byte) ([]byte, []byte, error) {
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("objcodec: truncated length prefix")
	}
	n := binary.BigEndian.Uint32(data[:4])
	data = data[4:]
	if uint32(len(data)) < n {
		return nil, nil, fmt.Errorf("objcodec: truncated value (want %d, have %d)", n, len(data))
	}
	return data[:n], data[n:], nil
}

// messageToMap converts a Message into its six-attribute map representation.
func messageToMap(m chatmsg.Message) map[string]any {
	return map[string]any{
		"id":        m.ID,
		"sender":    m.Sender,
		"recipient": m.Recipient,
		"content":   m.Content,
		"timestamp": m.Timestamp,
		"status":    string(m.Status),
	}
}

// MessageFromMap converts a decoded map back into a Message. It returns an
// error if any required attribute is missing or has the wrong type.
func MessageFromMap(v any) (chatmsg.Message, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return chatmsg.Message{}, fmt.Errorf("objcodec: expected map, got %T", v)
	}
	id, ok1 := m["id"].(string)
	sender, ok2 := m["sender"].(string)
	recipient, ok3 := m["recipient"].(string)
	content, ok4 := m["content"].(string)
	ts, ok5 := m["timestamp"].(float64)
	status, ok6 := m["status"].(string)
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6) {
		return chatmsg.Message{}, fmt.Errorf("objcodec: malformed message map %v", m)
	}
	return chatmsg.Message{
		ID:        id,
		Sender:    sender,
		Recipient: recipient,
		Content:   content,
		Timestamp: ts,
		Status:    chatmsg.Status(status),
	}, nil
}

// EncodeMessage encodes a single Message as its map representation.
func EncodeMessage(m chatmsg.Message) ([]byte, error) {
	return Encode(messageToMap(m))
}

// DecodeMessage decodes a value previously produced by EncodeMessage.
func DecodeMessage(data []byte) (chatmsg.Message, error) {
	v, err := Decode(data)
	if err != nil {
		return chatmsg.Message{}, err
	}
	return MessageFromMap(v)
}
