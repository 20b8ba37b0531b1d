package internal

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lychee-technology/scyllastore"
	"github.com/stretchr/testify/assert"
)

func TestCircuitBreaker_Disabled(t *testing.T) {
	cb := NewCircuitBreaker(0, time.Second, time.Second)
	assert.Nil(t, cb)

	cb.RecordFailure()
	cb.Record(scyllastore.NewReadError("find", errors.New("x")))
	assert.False(t, cb.IsOpen())
}

func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute, time.Minute)

	cb.RecordFailure()
	cb.RecordFailure()
	assert.False(t, cb.IsOpen())
	cb.RecordFailure()
	assert.True(t, cb.IsOpen())

	cb.RecordSuccess()
	assert.False(t, cb.IsOpen())
}

func TestCircuitBreaker_WindowAndCooldown(t *testing.T) {
	cb := NewCircuitBreaker(2, 20*time.Millisecond, 20*time.Millisecond)

	cb.RecordFailure()
	time.Sleep(30 * time.Millisecond)
	cb.RecordFailure()
	assert.False(t, cb.IsOpen(), "failures outside the window do not count")

	cb.RecordFailure()
	assert.True(t, cb.IsOpen())
	time.Sleep(30 * time.Millisecond)
	assert.False(t, cb.IsOpen(), "breaker closes after the open duration")
}

func TestCircuitBreaker_Record(t *testing.T) {
	engineErr := errors.New("timeout")
	tests := []struct {
		name  string
		err   error
		opens bool
	}{
		{name: "read failure", err: scyllastore.NewReadError("find", engineErr), opens: true},
		{name: "write failure", err: scyllastore.NewWriteError("insert", engineErr), opens: true},
		{name: "connection failure", err: scyllastore.NewConnectionError("lost", engineErr), opens: true},
		{name: "cancellation", err: fmt.Errorf("query: %w", context.Canceled)},
		{name: "invalid identifier", err: scyllastore.NewInvalidIdentifierError("x")},
		{name: "unsupported search", err: scyllastore.NewUnsupportedSearchError()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := NewCircuitBreaker(1, time.Minute, time.Minute)
			cb.Record(tt.err)
			assert.Equal(t, tt.opens, cb.IsOpen())
		})
	}

	cb := NewCircuitBreaker(2, time.Minute, time.Minute)
	cb.Record(scyllastore.NewReadError("find", engineErr))
	cb.Record(nil)
	cb.Record(scyllastore.NewReadError("find", engineErr))
	assert.False(t, cb.IsOpen(), "success resets the failure history")
}
