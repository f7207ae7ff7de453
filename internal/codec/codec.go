package codec

import (
	"encoding/json"
	"fmt"
)

// Wire constants for the exchange protocol.
const (
	// ContentType is the content type used on every exchange request and
	// response body.
	ContentType = "text/text"

	// EncodingHeader tags a body as a structured (JSON-encoded) value.
	// Absence of the header means the body is raw bytes.
	EncodingHeader = "X-Netmeter-Encoding"

	// EncodingJSON is the only structured encoding currently spoken.
	EncodingJSON = "json"
)

// Payload is a value in transit through the exchange protocol: the
// encoded bytes plus whether they carry a structured value. Keeping the
// tag next to the bytes lets the received-data store round-trip exactly
// what a client posted, including across the process-boundary drain.
type Payload struct {
	// Data is the encoded body.
	Data []byte `json:"data"`

	// Structured is true when Data is a JSON-encoded value rather than
	// raw bytes.
	Structured bool `json:"structured"`
}

// Encode converts a value into a Payload. Byte slices and strings pass
// through as raw bytes; everything else is JSON-encoded and tagged as
// structured so the receiving side knows to decode it.
func Encode(v any) (Payload, error) {
	switch val := v.(type) {
	case []byte:
		return Payload{Data: val}, nil
	case string:
		return Payload{Data: []byte(val)}, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return Payload{}, fmt.Errorf("failed to encode value: %w", err)
		}
		return Payload{Data: data, Structured: true}, nil
	}
}

// Decode converts a Payload back into a value. Structured payloads are
// JSON-decoded into their generic form (maps, slices, float64 numbers);
// raw payloads come back as the bytes that were sent.
func (p Payload) Decode() (any, error) {
	if !p.Structured {
		return p.Data, nil
	}
	var v any
	if err := json.Unmarshal(p.Data, &v); err != nil {
		return nil, fmt.Errorf("failed to decode structured payload: %w", err)
	}
	return v, nil
}

// Len returns the encoded body length in bytes. Store confirmations
// report this number back to the client.
func (p Payload) Len() int {
	return len(p.Data)
}

// EncodeSnapshot encodes a received-data snapshot for the drain step.
// The snapshot travels through the same GET path as any other lookup,
// so the result is an ordinary structured Payload.
func EncodeSnapshot(snapshot map[string]Payload) (Payload, error) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return Payload{}, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return Payload{Data: data, Structured: true}, nil
}

// DecodeSnapshot decodes a drained received-data snapshot.
func DecodeSnapshot(data []byte) (map[string]Payload, error) {
	var snapshot map[string]Payload
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snapshot, nil
}
