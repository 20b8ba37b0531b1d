package scyllastore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProjection(t *testing.T) {
	p, err := ParseProjection("username")
	require.NoError(t, err)
	assert.Equal(t, Projection{Field: "username"}, p)
	assert.Equal(t, "username", p.OutputName())

	p, err = ParseProjection("  username  AS name ")
	require.NoError(t, err)
	assert.Equal(t, Projection{Field: "username", Alias: "name"}, p)
	assert.Equal(t, "name", p.OutputName())
	assert.Equal(t, "username AS name", p.String())

	for _, bad := range []string{"", "a b", "a as", "a to b"} {
		_, err := ParseProjection(bad)
		assert.Error(t, err, bad)
	}
}

func TestFilterParamsWithoutLimit(t *testing.T) {
	p := &FilterParams{Q: map[string]any{"a": 1}, Limit: 5}
	cp := p.WithoutLimit()
	assert.Zero(t, cp.Limit)
	assert.Equal(t, 5, p.Limit)
	assert.Equal(t, p.Q, cp.Q)

	var nilParams *FilterParams
	assert.NotNil(t, nilParams.WithoutLimit())
}

func TestRecord(t *testing.T) {
	r := Record{"id": "x", "name": "a"}
	cp := r.Clone()
	cp["name"] = "b"
	assert.Equal(t, "a", r["name"])
	assert.Equal(t, "x", r.ID())

	var empty Record
	assert.Nil(t, empty.ID())
	assert.Nil(t, empty.Clone())
}

func TestOperators(t *testing.T) {
	assert.True(t, OpLike.IsKnown())
	assert.False(t, Operator("$contains").IsKnown())
	assert.True(t, IsOperatorKey("$groupby"))
	assert.False(t, IsOperatorKey("age"))
}
