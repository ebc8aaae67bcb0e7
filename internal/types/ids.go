package types

import "github.com/google/uuid"

// NewShelfID generates a UUIDv7 magic shelf identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewShelfID() ShelfID {
	return ShelfID(uuid.Must(uuid.NewV7()).String())
}

// ParseShelfID validates and converts a string to ShelfID.
// Rejects malformed UUIDs so path parameters never reach the database unchecked.
func ParseShelfID(s string) (ShelfID, error) {
	_, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return ShelfID(s), nil
}
