package xid

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a random, prefixed identifier such as "led-1b4e28ba-...".
func New(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return uuid.NewString()
	}
	return prefix + "-" + uuid.NewString()
}

// Valid reports whether id carries the prefix followed by a UUID.
func Valid(prefix string, id string) bool {
	rest, ok := strings.CutPrefix(id, prefix+"-")
	if !ok {
		return false
	}
	_, err := uuid.Parse(rest)
	return err == nil
}
