package idgen

import (
	"github.com/google/uuid"
)

// PrefixSession marks browser session tokens.
const PrefixSession = "sess_"

// NewSession generates a new session token with sess_ prefix
func NewSession() string {
	return PrefixSession + uuid.New().String()
}

// New generates a generic UUID without prefix (request IDs, temp names)
func New() string {
	return uuid.New().String()
}
