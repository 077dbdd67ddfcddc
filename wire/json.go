// Package wire implements the JSON encoding shared by every transport.
//
// A message travels as a flat UTF-8 JSON object holding the concrete type's
// fields plus the message_type tag and the construction timestamp. Decoders
// tolerate unknown fields for forward compatibility and fail only when a
// required field is missing or of the wrong primitive type.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	cbus "github.com/LuizFelipeDev/microrabbit-banking/contract/bus"
	berr "github.com/LuizFelipeDev/microrabbit-banking/contract/errors"
)

const typeField = "message_type"

type header struct {
	MessageType string `json:"message_type"`
}

// Encode serializes m and splices its declared message name into the
// message_type field of the resulting document.
func Encode(m cbus.Message) ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("wire encode %s: %w", m.MessageName(), errors.Join(berr.ErrEncodingFailed, err))
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		// Messages must serialize to a flat object, not a scalar or array.
		return nil, fmt.Errorf("wire encode %s: %w", m.MessageName(), errors.Join(berr.ErrEncodingFailed, err))
	}

	name, err := json.Marshal(m.MessageName())
	if err != nil {
		return nil, fmt.Errorf("wire encode %s: %w", m.MessageName(), errors.Join(berr.ErrEncodingFailed, err))
	}

	fields[typeField] = name

	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("wire encode %s: %w", m.MessageName(), errors.Join(berr.ErrEncodingFailed, err))
	}

	return out, nil
}

// Decode deserializes data into a value of message type M. The document's
// message_type must equal M's declared name; a payload that fails this
// check cannot become valid on redelivery.
func Decode[M cbus.Message](data []byte) (M, error) {
	var zero M

	if len(data) == 0 {
		return zero, fmt.Errorf("wire decode %s: empty payload: %w", zero.MessageName(), berr.ErrDecodingFailed)
	}

	var h header
	if err := json.Unmarshal(data, &h); err != nil {
		return zero, fmt.Errorf("wire decode %s: %w", zero.MessageName(), errors.Join(berr.ErrDecodingFailed, err))
	}

	if h.MessageType != zero.MessageName() {
		return zero, fmt.Errorf(
			"wire decode: message_type %q does not match %q: %w",
			h.MessageType, zero.MessageName(), berr.ErrDecodingFailed,
		)
	}

	var m M
	if err := json.Unmarshal(data, &m); err != nil {
		return zero, fmt.Errorf("wire decode %s: %w", zero.MessageName(), errors.Join(berr.ErrDecodingFailed, err))
	}

	return m, nil
}

// PeekName extracts the message_type tag without decoding the payload.
func PeekName(data []byte) (string, error) {
	var h header
	if err := json.Unmarshal(data, &h); err != nil {
		return "", fmt.Errorf("wire peek: %w", errors.Join(berr.ErrDecodingFailed, err))
	}

	if h.MessageType == "" {
		return "", fmt.Errorf("wire peek: missing message_type: %w", berr.ErrDecodingFailed)
	}

	return h.MessageType, nil
}
