package domain

import (
	"errors"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// Identity is the anonymous key correlating every section of one user's data.
type Identity string

const maxIdentityLength = 128

// ErrInvalidIdentity is returned when an identity string cannot be used as a record key.
var ErrInvalidIdentity = errors.New("invalid identity")

// NewIdentity generates a fresh random identity.
func NewIdentity() Identity {
	return Identity(uuid.NewString())
}

// ParseIdentity validates a caller supplied identity. Identities are opaque, so
// anything printable and reasonably short is accepted.
func ParseIdentity(raw string) (Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidIdentity
	}
	if len(raw) > maxIdentityLength {
		return "", ErrInvalidIdentity
	}
	for _, r := range raw {
		if unicode.IsControl(r) || r == '/' {
			return "", ErrInvalidIdentity
		}
	}
	return Identity(raw), nil
}

func (id Identity) String() string {
	return string(id)
}
