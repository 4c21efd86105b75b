package store

import (
	"errors"
	"fmt"
)

// ErrRequestFailed is the single failure kind of the store: non-2xx responses
// and transport failures both collapse into it.
var ErrRequestFailed = errors.New("request failed")

// Operation names a store call.
type Operation string

const (
	OpList   Operation = "list"
	OpCreate Operation = "create"
	OpDelete Operation = "delete"
)

// RequestError describes one failed store call. StatusCode is zero when the
// request never got a response.
type RequestError struct {
	Op         Operation
	Method     string
	URL        string
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("%s transactions: %s %s: HTTP status %d: %v", e.Op, e.Method, e.URL, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s transactions: %s %s: HTTP status %d", e.Op, e.Method, e.URL, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s transactions: %s %s: %v", e.Op, e.Method, e.URL, e.Err)
	default:
		return fmt.Sprintf("%s transactions: %s %s: %v", e.Op, e.Method, e.URL, ErrRequestFailed)
	}
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Is makes every RequestError match ErrRequestFailed.
func (e *RequestError) Is(target error) bool {
	return target == ErrRequestFailed
}

// StatusCode extracts the HTTP status from err, or 0 if there was none.
func StatusCode(err error) int {
	var re *RequestError
	if errors.As(err, &re) {
		return re.StatusCode
	}
	return 0
}
