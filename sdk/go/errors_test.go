package collabsdk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIErrorTransient(t *testing.T) {
	cases := map[int]bool{
		http.StatusBadRequest:          false,
		http.StatusUnauthorized:        false,
		http.StatusForbidden:           false,
		http.StatusNotFound:            false,
		http.StatusConflict:            false,
		http.StatusRequestTimeout:      true,
		http.StatusTooEarly:            true,
		http.StatusTooManyRequests:     true,
		http.StatusInternalServerError: true,
		http.StatusBadGateway:          true,
		http.StatusServiceUnavailable:  true,
		http.StatusGatewayTimeout:      true,
	}
	for status, want := range cases {
		err := &APIError{StatusCode: status, Message: http.StatusText(status)}
		assert.Equal(t, want, err.Transient(), "status %d", status)
		assert.Equal(t, want, IsTransient(err), "status %d", status)
	}
}

func TestTransportErrorTransient(t *testing.T) {
	dropped := &TransportError{Method: http.MethodGet, URL: "/v1/hubs", Err: io.EOF}
	assert.True(t, dropped.Transient())
	assert.ErrorIs(t, dropped, io.EOF)

	canceled := &TransportError{Method: http.MethodGet, URL: "/v1/hubs", Err: fmt.Errorf("do request: %w", context.Canceled)}
	assert.False(t, canceled.Transient())

	flagged := &TransportError{Method: http.MethodGet, URL: "/v1/hubs", Err: io.EOF, canceled: true}
	assert.False(t, flagged.Transient())
}

func TestIsTransientUnwraps(t *testing.T) {
	assert.True(t, IsTransient(fmt.Errorf("load hubs: %w", &APIError{StatusCode: http.StatusServiceUnavailable})))
	assert.False(t, IsTransient(fmt.Errorf("load hubs: %w", &APIError{StatusCode: http.StatusNotFound})))
	assert.True(t, IsTransient(fmt.Errorf("load hubs: %w", &TransportError{Err: io.ErrUnexpectedEOF})))
	assert.False(t, IsTransient(fmt.Errorf("load hubs: %w", &TransportError{Err: context.Canceled})))

	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(errors.New("decode envelope")))
	assert.False(t, IsTransient(context.DeadlineExceeded))
}

func TestIsStatus(t *testing.T) {
	err := fmt.Errorf("get hub: %w", &APIError{StatusCode: http.StatusNotFound, Code: "not_found"})
	assert.True(t, IsStatus(err, http.StatusNotFound))
	assert.False(t, IsStatus(err, http.StatusConflict))
	assert.False(t, IsStatus(io.EOF, http.StatusNotFound))
}
