// Package ids generates client-side identifiers.
//
// Backend-issued ids are opaque and never produced here. Locally generated
// ids carry a prefix so they can't be mistaken for backend ids: "conv_"
// for chats started on the client, "mock_" and "mockfile_" for fallback
// results synthesized while the backend is unreachable.
package ids

import (
	"strings"

	"github.com/google/uuid"
)

const (
	LocalPrefix     = "conv_"
	MockVideoPrefix = "mock_"
	MockFilePrefix  = "mockfile_"
)

const suffixLen = 7

// Generator produces identifiers.
type Generator interface {
	// Local returns an id for an item created on the client.
	Local() string
	// Mock returns a placeholder id with the given prefix.
	Mock(prefix string) string
	// Suffix returns a short random token, used when a backend response omits an id.
	Suffix() string
}

// UUIDGenerator derives ids from random UUIDs.
type UUIDGenerator struct{}

// NewGenerator returns the default generator.
func NewGenerator() UUIDGenerator {
	return UUIDGenerator{}
}

func (UUIDGenerator) Local() string {
	return LocalPrefix + compact()
}

func (UUIDGenerator) Mock(prefix string) string {
	return prefix + compact()[:suffixLen]
}

func (UUIDGenerator) Suffix() string {
	return compact()[:suffixLen]
}

func compact() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// IsLocal reports whether id was generated on the client.
func IsLocal(id string) bool {
	return strings.HasPrefix(id, LocalPrefix)
}

// IsMock reports whether id is a fallback placeholder.
func IsMock(id string) bool {
	return strings.HasPrefix(id, MockVideoPrefix) || strings.HasPrefix(id, MockFilePrefix)
}
