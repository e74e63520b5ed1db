package store

import "github.com/google/uuid"

// NewID returns a random UUID suitable as a primary key.
func NewID() string {
	return uuid.NewString()
}
