package protocol

import (
	"io"

	"replichat/internal/frame"
	"replichat/internal/objcodec"
)

// WriteMessage encodes payload with objcodec and wraps it in a frame
// carrying msgType.
func WriteMessage(w io.Writer, msgType uint64, payload any) error {
	data, err := objcodec.Encode(payload)
	if err != nil {
		return err
	}
	return frame.Write(w, msgType, data)
}

// ReadMessage reads one frame and decodes its payload.
func ReadMessage(r io.Reader) (msgType uint64, payload any, err error) {
	f, err := frame.Read(r)
	if err != nil {
		return 0, nil, err
	}
	payload, err = objcodec.Decode(f.Payload)
	if err != nil {
		return 0, nil, err
	}
	return f.Type, payload, nil
}
