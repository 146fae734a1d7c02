package model

import "time"

// Account is a locally registered login (campus SSO is handled upstream; the
// service only stores a hash for accounts created through the register and
// admin-bootstrap flows).
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 8
