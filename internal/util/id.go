package util

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a random identifier, optionally namespaced as "<prefix>_<hex>".
func NewID(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}

// ShortID is a 9 character identifier for list entries shown in the UI.
func ShortID(prefix string) string {
	id := NewID("")[:9]
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
