package restclient

import (
	"bytes"
	"encoding/json"
	"errors"

	"finitefield.org/storefront/internal/domain"
)

type envelope struct {
	Data json.RawMessage `json:"data"`
}

// DecodeList decodes a collection response. Both `{"data": [...]}` and a bare array are
// accepted; an object without data, or with a null data field, yields an empty collection.
func DecodeList[T any](op string, body []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, &domain.DecodeError{Op: op, Err: errors.New("empty response body")}
	}

	raw := trimmed
	if trimmed[0] == '{' {
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, &domain.DecodeError{Op: op, Err: err}
		}
		if isNull(env.Data) {
			return []T{}, nil
		}
		raw = env.Data
	}

	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &domain.DecodeError{Op: op, Err: err}
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// DecodeObject decodes a single-record response into out, unwrapping `{"data": {...}}` when
// present. It reports false when the body is empty so callers can fall back to what they sent.
func DecodeObject(op string, body []byte, out any) (bool, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return false, nil
	}
	if trimmed[0] != '{' {
		return false, &domain.DecodeError{Op: op, Err: errors.New("expected JSON object")}
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return false, &domain.DecodeError{Op: op, Err: err}
	}
	raw := trimmed
	if !isNull(env.Data) {
		raw = env.Data
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, &domain.DecodeError{Op: op, Err: err}
	}
	return true, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
