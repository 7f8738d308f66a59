package errors

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClassString(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.class.String())
		})
	}
}

func TestWrapPreservesChain(t *testing.T) {
	base := io.ErrUnexpectedEOF
	wrapped := Wrap(base, "SerialTransceiver", "WaitForMessage", "frame read")

	require.Error(t, wrapped)
	assert.True(t, errors.Is(wrapped, io.ErrUnexpectedEOF))
	assert.Contains(t, wrapped.Error(), "SerialTransceiver.WaitForMessage")
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "c", "m", "a"))
	assert.NoError(t, WrapTransient(nil, "c", "m", "a"))
	assert.NoError(t, WrapInvalid(nil, "c", "m", "a"))
	assert.NoError(t, WrapFatal(nil, "c", "m", "a"))
}

func TestClassifiedWrappers(t *testing.T) {
	base := errors.New("device gone")

	tests := []struct {
		name  string
		wrap  func(error, string, string, string) error
		class ErrorClass
	}{
		{"transient", WrapTransient, ErrorTransient},
		{"invalid", WrapInvalid, ErrorInvalid},
		{"fatal", WrapFatal, ErrorFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.wrap(base, "Connection", "Close", "teardown")
			var ce *ClassifiedError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.class, ce.Class)
			assert.Equal(t, "Connection", ce.Component)
			assert.True(t, errors.Is(err, base))
		})
	}
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(ErrConnectionTimeout))
	assert.True(t, IsTransient(ErrReceiveTimedOut))
	assert.True(t, IsTransient(fmt.Errorf("read: operation timed out")))
	assert.False(t, IsTransient(ErrWrongConfiguration))
	assert.False(t, IsTransient(nil))
}

func TestIsInvalid(t *testing.T) {
	assert.True(t, IsInvalid(ErrWrongConfiguration))
	assert.True(t, IsInvalid(ErrBadFrame))
	assert.True(t, IsInvalid(ErrChecksumFailed))
	assert.True(t, IsInvalid(ErrUnknownMessage))
	assert.True(t, IsInvalid(fmt.Errorf("decode: %w", ErrShortPayload)))
	assert.False(t, IsInvalid(ErrConnectionClosed))
	assert.False(t, IsInvalid(nil))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(ErrConnectionClosed))
	assert.True(t, IsFatal(fmt.Errorf("drain: %w", ErrConnectionClosed)))
	assert.False(t, IsFatal(ErrBadFrame))
	assert.False(t, IsFatal(nil))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrorInvalid, Classify(ErrWrongConfiguration))
	assert.Equal(t, ErrorFatal, Classify(ErrConnectionClosed))
	assert.Equal(t, ErrorTransient, Classify(ErrConnectionTimeout))
	// Unknown errors default to transient so the supervisor may retry
	assert.Equal(t, ErrorTransient, Classify(errors.New("some medium hiccup")))
}
