package id

import (
	"strings"

	"github.com/google/uuid"
)

// UUIDGenerator issues random v4 UUIDs rendered as 32 lowercase hex characters without dashes.
// The same format is used for record ids and submit tokens.
type UUIDGenerator struct{}

func NewUUIDGenerator() UUIDGenerator { return UUIDGenerator{} }

func (UUIDGenerator) NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
