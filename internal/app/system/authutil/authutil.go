// internal/app/system/authutil/authutil.go
// Package authutil holds the credential rules shared by registration,
// login, password resets and admin-created accounts.
package authutil

import (
	"errors"

	"github.com/dalemusser/stayhome/internal/app/system/inputval"
	"github.com/dalemusser/stayhome/internal/app/system/normalize"
)

// Credential validation errors
var (
	ErrCredentialsRequired = errors.New("Email and password are required")
	ErrInvalidEmail        = errors.New("Please enter a valid email address.")
)

// Credentials is an email/password pair as submitted by a client.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Normalized returns c with the email trimmed and lowercased.
func (c Credentials) Normalized() Credentials {
	c.Email = normalize.Email(c.Email)
	return c
}

// Present reports whether both fields are non-empty.
func (c Credentials) Present() bool {
	return normalize.Email(c.Email) != "" && c.Password != ""
}

// ValidateNew checks credentials for a new account and returns the bcrypt
// hash of the password.
func ValidateNew(c Credentials) (string, error) {
	if !c.Present() {
		return "", ErrCredentialsRequired
	}
	if !inputval.IsValidEmail(normalize.Email(c.Email)) {
		return "", ErrInvalidEmail
	}
	return ValidateAndHash(c.Password)
}
