package internal

import (
	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"github.com/lychee-technology/scyllastore"
)

// IDGenerator produces identifiers in the engine's native representation.
type IDGenerator struct {
	timeUUID bool
}

// NewIDGenerator picks the generation scheme from the identifier column type: timeuuid
// columns only accept version 1 UUIDs.
func NewIDGenerator(idType string) *IDGenerator {
	return &IDGenerator{timeUUID: idType == "timeuuid"}
}

// Generate returns a fresh time-ordered identifier.
func (g *IDGenerator) Generate() gocql.UUID {
	if g != nil && g.timeUUID {
		return gocql.TimeUUID()
	}
	return gocql.UUID(uuid.Must(uuid.NewV7()))
}

// Parse converts the canonical textual form into a gocql.UUID.
func (g *IDGenerator) Parse(text string) (gocql.UUID, error) {
	id, err := gocql.ParseUUID(text)
	if err != nil {
		return gocql.UUID{}, scyllastore.NewInvalidIdentifierError(text).WithCause(err)
	}
	return id, nil
}

// toUUID coerces the identifier shapes callers pass around into a gocql.UUID.
func toUUID(obj any) (gocql.UUID, bool) {
	switch v := obj.(type) {
	case gocql.UUID:
		return v, true
	case *gocql.UUID:
		if v == nil {
			return gocql.UUID{}, false
		}
		return *v, true
	case uuid.UUID:
		return gocql.UUID(v), true
	case *uuid.UUID:
		if v == nil {
			return gocql.UUID{}, false
		}
		return gocql.UUID(*v), true
	case [16]byte:
		return gocql.UUID(v), true
	case string:
		id, err := gocql.ParseUUID(v)
		return id, err == nil
	case *string:
		if v == nil {
			return gocql.UUID{}, false
		}
		id, err := gocql.ParseUUID(*v)
		return id, err == nil
	case []byte:
		// raw 16 bytes or the textual form
		if len(v) == 16 {
			id, err := gocql.UUIDFromBytes(v)
			return id, err == nil
		}
		id, err := gocql.ParseUUID(string(v))
		return id, err == nil
	default:
		return gocql.UUID{}, false
	}
}

func coerceID(obj any) (gocql.UUID, error) {
	id, ok := toUUID(obj)
	if !ok {
		return gocql.UUID{}, scyllastore.NewInvalidIdentifierError(obj)
	}
	return id, nil
}
