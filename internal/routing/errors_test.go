package routing

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyTransportError(t *testing.T) {
	t.Run("cancelled context wins", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := classifyTransportError(ctx, errors.New("connection reset by peer"))

		assert.ErrorIs(t, err, ErrCancelled)
		assert.NotErrorIs(t, err, ErrNetworkUnavailable)
	})

	t.Run("deadline is a network failure", func(t *testing.T) {
		err := classifyTransportError(context.Background(), fmt.Errorf("get: %w", context.DeadlineExceeded))

		assert.ErrorIs(t, err, ErrNetworkUnavailable)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("wrapped cancellation", func(t *testing.T) {
		err := classifyTransportError(context.Background(), fmt.Errorf("get: %w", context.Canceled))

		assert.ErrorIs(t, err, ErrCancelled)
	})
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: nil, want: "success"},
		{err: fmt.Errorf("%w: x", ErrCancelled), want: "cancelled"},
		{err: fmt.Errorf("%w: x", ErrNetworkUnavailable), want: "network"},
		{err: fmt.Errorf("%w: x", ErrMalformedResponse), want: "malformed"},
		{err: fmt.Errorf("%w: x", ErrInvalidEndpoint), want: "invalid"},
		{err: &HTTPError{Status: 503}, want: "http"},
		{err: errors.New("boom"), want: "error"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, outcome(tt.err))
	}
}

func TestHTTPError(t *testing.T) {
	assert.Equal(t, "routing service returned status 404", (&HTTPError{Status: 404}).Error())
	assert.Equal(t, "routing service returned status 401: denied", (&HTTPError{Status: 401, Body: "denied"}).Error())

	status, ok := StatusCode(fmt.Errorf("wrapped: %w", &HTTPError{Status: 429}))
	assert.True(t, ok)
	assert.Equal(t, 429, status)
}
