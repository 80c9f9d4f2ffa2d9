package memorymanager

import (
	"fmt"
	"strings"
)

// IdentityKey scopes short-term history to one conversation.
type IdentityKey struct {
	PersonaId string
	ModelId   string
	UserId    string
}

func (k IdentityKey) Valid() bool {
	return len(strings.TrimSpace(k.PersonaId)) > 0 &&
		len(strings.TrimSpace(k.ModelId)) > 0 &&
		len(strings.TrimSpace(k.UserId)) > 0
}

// String renders the storage key. Callers must check Valid first.
func (k IdentityKey) String() string {
	return fmt.Sprintf("chat:%s:%s:%s", k.PersonaId, k.ModelId, k.UserId)
}
