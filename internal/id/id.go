package id

import "github.com/google/uuid"

// New returns a random identifier for a book record.
func New() string {
	return uuid.NewString()
}
