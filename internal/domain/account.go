package domain

import (
	"strings"
	"time"
)

// Role represents the privilege level of an account holder
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Account represents a holder's identity, balance and credentials.
// Balance is stored in minor units (e.g. paise); it is never negative after
// any committed operation.
type Account struct {
	ID            int64     `json:"accountId"`
	AccountNumber string    `json:"accountNumber"`
	HolderName    string    `json:"accountHolderName"`
	HolderAddress string    `json:"accountHolderAddress"`
	HolderEmail   string    `json:"accountHolderEmail"`
	PasswordHash  string    `json:"-"`
	Balance       int64     `json:"balance"`
	Role          Role      `json:"role"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// AccountCreate represents data needed to open a new account.
// PasswordHash is the already-hashed credential; plaintext never reaches a store.
type AccountCreate struct {
	AccountNumber  string
	HolderName     string
	HolderAddress  string
	HolderEmail    string
	PasswordHash   string
	InitialBalance int64
	Role           Role
}

// Validate checks required fields. Initial balance may be zero but not negative.
func (c *AccountCreate) Validate() error {
	if strings.TrimSpace(c.HolderName) == "" {
		return NewValidationError("holder name is required")
	}
	if strings.TrimSpace(c.HolderAddress) == "" {
		return NewValidationError("holder address is required")
	}
	if strings.TrimSpace(c.HolderEmail) == "" {
		return NewValidationError("holder email is required")
	}
	if !strings.Contains(c.HolderEmail, "@") {
		return NewValidationError("holder email is malformed")
	}
	if c.PasswordHash == "" {
		return NewValidationError("password is required")
	}
	if c.InitialBalance < 0 {
		return NewValidationError("initial balance cannot be negative")
	}
	return nil
}

// ProfileField enumerates the mutable profile attributes.
type ProfileField string

const (
	FieldHolderName    ProfileField = "holder_name"
	FieldHolderAddress ProfileField = "holder_address"
	FieldHolderEmail   ProfileField = "holder_email"
)

func (f ProfileField) Valid() bool {
	switch f {
	case FieldHolderName, FieldHolderAddress, FieldHolderEmail:
		return true
	}
	return false
}
