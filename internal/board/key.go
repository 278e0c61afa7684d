package board

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

type keyKind int

const (
	keyID keyKind = iota + 1
	keyClient
	keyIndex
)

// Key addresses a rescue by api id, client name or board index.
type Key struct {
	kind   keyKind
	id     uuid.UUID
	client string
	index  int
}

func ByID(id uuid.UUID) Key      { return Key{kind: keyID, id: id} }
func ByClient(client string) Key { return Key{kind: keyClient, client: normalizeClient(client)} }
func ByIndex(index int) Key      { return Key{kind: keyIndex, index: index} }

// ParseKey reads what operators type: "3" and "#3" are board indices, a UUID
// is an api id and anything else is a client name.
func ParseKey(raw string) Key {
	value := strings.TrimSpace(raw)
	if index, err := strconv.Atoi(strings.TrimPrefix(value, "#")); err == nil && index >= 0 {
		return ByIndex(index)
	}
	if id, err := uuid.Parse(value); err == nil {
		return ByID(id)
	}
	return ByClient(value)
}

func (k Key) String() string {
	switch k.kind {
	case keyID:
		return k.id.String()
	case keyClient:
		return k.client
	case keyIndex:
		return fmt.Sprintf("#%d", k.index)
	default:
		return "<empty key>"
	}
}

func normalizeClient(client string) string {
	return strings.ToLower(strings.TrimSpace(client))
}
