package scyllastore

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdapterErrorFormat(t *testing.T) {
	cause := errors.New("timeout")

	assert.Equal(t, "[read:READ_FAILED] find: read failed: timeout", NewReadError("find", cause).Error())
	assert.Equal(t, "[validation:INVALID_FILTER] field 'age': $in expects a list",
		NewInvalidFilterError("age", "$in expects a list").Error())
	assert.Equal(t, "[configuration:MISSING_SCHEMA] missing `modelName` or `name` definition in schema of service",
		NewMissingSchemaError().Error())
}

func TestAdapterErrorCauseChain(t *testing.T) {
	cause := errors.New("write timeout")
	err := fmt.Errorf("insert many: %w", NewWriteError("insert", cause))

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsWriteError(err))
	assert.False(t, IsReadError(err))

	var ae *AdapterError
	assert.ErrorAs(t, err, &ae)
	assert.Equal(t, "insert", ae.Op)
}

func TestAdapterErrorPredicates(t *testing.T) {
	assert.True(t, IsUnsupportedSearchError(NewUnsupportedSearchError()))
	assert.True(t, IsInvalidIdentifierError(NewInvalidIdentifierError("x")))
	assert.True(t, IsNotConnectedError(NewNotConnectedError("find", "initialized")))
	assert.True(t, IsCircuitOpenError(NewCircuitOpenError("find")))
	assert.True(t, IsConnectionError(NewCircuitOpenError("find")))
	assert.True(t, IsConfigurationError(NewSchemaInvalidError("x")))
	assert.True(t, IsConfigurationError(NewConfigInvalidError("x")))
	assert.False(t, IsConfigurationError(errors.New("plain")))
	assert.False(t, IsReadError(nil))
}

func TestAdapterErrorDetails(t *testing.T) {
	err := NewInvalidFilterError("age", "bad").WithDetail("value", 3).WithDetail("op", "$in")
	assert.Equal(t, map[string]any{"value": 3, "op": "$in"}, err.Details)
}
