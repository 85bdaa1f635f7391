package types

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// EncodePayload serializes job arguments and results for storage. Structured values are
// JSON-encoded, scalars are stored as their text, nil stays NULL.
func EncodePayload(v any) (*string, error) {
	var s string
	switch value := v.(type) {
	case nil:
		return nil, nil
	case string:
		s = value
	case []byte:
		s = string(value)
	case json.RawMessage:
		s = string(value)
	case bool:
		s = strconv.FormatBool(value)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		s = fmt.Sprint(value)
	case error:
		s = value.Error()
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		s = string(encoded)
	}
	return &s, nil
}

// DecodeArgs turns a stored payload into handler arguments. A JSON array is spread into
// positional arguments, any other JSON value becomes a single argument and text that is not
// JSON is passed through unchanged.
func DecodeArgs(payload *string) []any {
	if payload == nil {
		return nil
	}
	var decoded any
	if err := json.Unmarshal([]byte(*payload), &decoded); err != nil {
		return []any{*payload}
	}
	switch value := decoded.(type) {
	case nil:
		return nil
	case []any:
		return value
	default:
		return []any{value}
	}
}
