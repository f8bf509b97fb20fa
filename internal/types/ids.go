package types

import (
	"time"

	"github.com/google/uuid"
)

// ElementID identifies a render element within a profile.
// Any non-empty string; stable across saves so parent references survive round-trips.
type ElementID string

// KeyID identifies a plugin key record.
type KeyID string

// NewKeyID generates a UUIDv7 plugin key identifier.
// Time-ordered IDs ensure sequential inserts cluster in B-tree pages.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewKeyID() KeyID {
	return KeyID(uuid.Must(uuid.NewV7()).String())
}

// KeyIDTime extracts the creation timestamp embedded in a UUIDv7 key ID.
// Returns zero time for invalid UUIDs; caller should check IsZero().
func KeyIDTime(id KeyID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}
