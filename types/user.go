package types

import "time"

// User represents an account in the system.
type User struct {
	// ID is the unique, immutable identifier of the user.
	ID int `json:"id" db:"id"`

	// Username is the unique login name. Comparison is case-sensitive.
	Username string `json:"username" db:"username"`

	// PasswordHash stores the bcrypt hash of the user's secret.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
