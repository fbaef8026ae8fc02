package queue

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Content encodings carried in the content_encoding attribute.
const (
	EncodingJSON     = "json"
	EncodingZstdB64  = "zstd+base64"
	compressionLimit = 64 * 1024
)

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil)
)

// EncodeEventMessage renders msg as an SQS body. Bodies above 64 KiB are
// zstd-compressed and base64-encoded so large invoices stay under the SQS
// message size limit.
func EncodeEventMessage(msg EventMessage) (string, string, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return "", "", err
	}
	if len(raw) <= compressionLimit {
		return string(raw), EncodingJSON, nil
	}
	compressed := encoder.EncodeAll(raw, make([]byte, 0, len(raw)/4))
	return base64.StdEncoding.EncodeToString(compressed), EncodingZstdB64, nil
}

// DecodeEventMessage reverses EncodeEventMessage. An empty encoding is
// treated as plain JSON.
func DecodeEventMessage(body, encoding string) (EventMessage, error) {
	var raw []byte
	switch encoding {
	case "", EncodingJSON:
		raw = []byte(body)
	case EncodingZstdB64:
		compressed, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return EventMessage{}, fmt.Errorf("queue: invalid base64 body: %w", err)
		}
		raw, err = decoder.DecodeAll(compressed, nil)
		if err != nil {
			return EventMessage{}, fmt.Errorf("queue: invalid zstd body: %w", err)
		}
	default:
		return EventMessage{}, fmt.Errorf("queue: unsupported content encoding %q", encoding)
	}

	var msg EventMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return EventMessage{}, fmt.Errorf("queue: invalid event message: %w", err)
	}
	return msg, nil
}
