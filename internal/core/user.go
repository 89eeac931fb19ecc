package core

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MaxUsernameLen = 32
	MinPasswordLen = 8
	// MaxPasswordLen is bcrypt's input limit; longer passwords would be
	// silently truncated.
	MaxPasswordLen = 72
)

var (
	ErrEmptyUsername   = errors.New("username is required")
	ErrInvalidUsername = errors.New("username must be at most 32 characters without spaces")
	ErrEmptyPassword   = errors.New("password is required")
	ErrShortPassword   = errors.New("password must be at least 8 characters")
	ErrLongPassword    = errors.New("password must be at most 72 bytes")
)

// User is an account that owns transactions and goals. Usernames are unique
// without regard to case.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}

// NormalizeUsername trims surrounding space.
func NormalizeUsername(s string) string {
	return strings.TrimSpace(s)
}

// ValidateCredentials checks a signup request before anything is hashed or
// stored. username is expected to be normalized.
func ValidateCredentials(username, password string) error {
	switch {
	case username == "":
		return invalid("username", ErrEmptyUsername)
	case utf8.RuneCountInString(username) > MaxUsernameLen || strings.IndexFunc(username, unicode.IsSpace) >= 0:
		return invalid("username", ErrInvalidUsername)
	case utf8.RuneCountInString(password) < MinPasswordLen:
		return invalid("password", ErrShortPassword)
	case len(password) > MaxPasswordLen:
		return invalid("password", ErrLongPassword)
	}
	return nil
}
