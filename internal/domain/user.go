package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the credits view of a user account. Account identity, sessions and
// profile data live in the external account service; this subsystem owns only
// the balance, and only the ledger engine may change it.
type User struct {
	ID        uuid.UUID `json:"id"`
	Credits   int64     `json:"credits"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
