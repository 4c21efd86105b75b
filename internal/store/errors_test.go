package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestErrorMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("load: %w", &RequestError{Op: OpList, Method: "GET", URL: "http://x/transactions", StatusCode: 500})
	assert.ErrorIs(t, err, ErrRequestFailed)
	assert.Equal(t, 500, StatusCode(err))
	assert.Contains(t, err.Error(), "HTTP status 500")
}

func TestRequestErrorUnwrapsCause(t *testing.T) {
	err := &RequestError{Op: OpDelete, Method: "DELETE", URL: "http://x/transactions/1", Err: context.DeadlineExceeded}
	assert.ErrorIs(t, err, ErrRequestFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, StatusCode(err))
	assert.Equal(t, 0, StatusCode(errors.New("plain")))
}
