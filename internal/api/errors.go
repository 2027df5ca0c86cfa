package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error is returned for any response outside the 2xx range. Body holds the
// raw response payload so callers can pull server messages out of it.
type Error struct {
	StatusCode int
	Method     string
	Path       string
	Body       []byte
}

func (e *Error) Error() string {
	if msg := detailFromBody(e.Body); msg != "" {
		return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode), msg)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// StatusCode returns the HTTP status carried by err, or 0 when err did not
// come from an API response
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsUnauthorized reports whether err is a 401 response
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}

// Detail returns the "detail" message of an API error body
func Detail(err error) string {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return ""
	}
	return detailFromBody(apiErr.Body)
}

// DetailOr returns Detail(err) or fallback when there is none
func DetailOr(err error, fallback string) string {
	if msg := Detail(err); msg != "" {
		return msg
	}
	return fallback
}

// FirstFieldError returns the message of the first field in a validation
// error body, in document order. List values yield their first element.
func FirstFieldError(err error) string {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return ""
	}

	_, raw, ok := firstField(apiErr.Body)
	if !ok {
		return ""
	}
	return messageFrom(raw)
}

// FieldMessage returns the message of the first key present in the error
// body, checked in the order given
func FieldMessage(err error, keys ...string) string {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return ""
	}

	var fields map[string]json.RawMessage
	if json.Unmarshal(apiErr.Body, &fields) != nil {
		return ""
	}
	for _, key := range keys {
		if raw, ok := fields[key]; ok {
			if msg := messageFrom(raw); msg != "" {
				return msg
			}
		}
	}
	return ""
}

func detailFromBody(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(body, &payload) != nil || payload.Detail == nil {
		return ""
	}
	return messageFrom(payload.Detail)
}

// firstField walks the top-level object token by token to keep key order,
// which encoding/json maps do not preserve
func firstField(body []byte) (string, json.RawMessage, bool) {
	dec := json.NewDecoder(bytes.NewReader(body))

	tok, err := dec.Token()
	if err != nil {
		return "", nil, false
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return "", nil, false
	}

	tok, err = dec.Token()
	if err != nil {
		return "", nil, false
	}
	key, ok := tok.(string)
	if !ok {
		return "", nil, false
	}

	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return "", nil, false
	}
	return key, raw, true
}

// messageFrom renders a string, the first element of a list, or the first
// message of a nested object
func messageFrom(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}

	switch raw[0] {
	case '"':
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return s
		}
	case '[':
		var items []json.RawMessage
		if json.Unmarshal(raw, &items) == nil && len(items) > 0 {
			return messageFrom(items[0])
		}
	case '{':
		if _, nested, ok := firstField(raw); ok {
			return messageFrom(nested)
		}
	}
	return ""
}
