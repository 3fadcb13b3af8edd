// Package tenant defines the typed tenant identifier. A tenant is a client
// account whose documents and queries are isolated from every other client.
package tenant

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidID is returned when a string is not a usable tenant identifier.
var ErrInvalidID = errors.New("invalid tenant id")

// ID identifies a tenant. The zero value is invalid; obtain one via Parse or New.
type ID struct {
	u uuid.UUID
}

// New returns a fresh random tenant ID.
func New() ID {
	return ID{u: uuid.New()}
}

// Parse validates s as a tenant ID. Client tokens are UUIDs.
func Parse(s string) (ID, error) {
	u, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	if u == uuid.Nil {
		return ID{}, fmt.Errorf("%w: nil uuid", ErrInvalidID)
	}
	return ID{u: u}, nil
}

// MustParse is Parse for tests and constants.
func MustParse(s string) ID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// IsZero reports whether the ID was never set.
func (id ID) IsZero() bool { return id.u == uuid.Nil }

// String returns the canonical UUID form.
func (id ID) String() string { return id.u.String() }

// UUID exposes the underlying value for storage layers.
func (id ID) UUID() uuid.UUID { return id.u }

// CollectionKey returns the name of this tenant's isolation unit in a vector
// store. It is injective and uses only [a-z0-9_], so it is safe as a SQL
// identifier without quoting.
func (id ID) CollectionKey() string {
	return "kb_" + strings.ReplaceAll(id.u.String(), "-", "")
}

func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ID) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
