package events

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Kafka header keys set on every published roster event.
const (
	HeaderEventType     = "event_type"
	HeaderSchemaSubject = "schema_subject"
)

const (
	magicByte   = 0
	frameHeader = 5
)

// ErrShortFrame is returned when a record is too small to carry the frame header.
var ErrShortFrame = errors.New("record shorter than wire header")

// EncodeFrame prefixes payload with the Confluent wire header: a zero magic
// byte followed by the big-endian schema ID.
func EncodeFrame(schemaID int, payload []byte) []byte {
	frame := make([]byte, frameHeader+len(payload))
	frame[0] = magicByte
	binary.BigEndian.PutUint32(frame[1:frameHeader], uint32(schemaID))
	copy(frame[frameHeader:], payload)
	return frame
}

// DecodeFrame splits a framed record into schema ID and payload. The payload
// aliases value.
func DecodeFrame(value []byte) (int, []byte, error) {
	if len(value) < frameHeader {
		return 0, nil, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(value))
	}
	if value[0] != magicByte {
		return 0, nil, fmt.Errorf("unknown magic byte %d", value[0])
	}
	return int(binary.BigEndian.Uint32(value[1:frameHeader])), value[frameHeader:], nil
}
