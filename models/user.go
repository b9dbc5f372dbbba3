package models

import "time"

// User is an account that owns daemons. The password hash is bcrypt.
type User struct {
	Id           string
	Username     string
	PasswordHash string
	Created      time.Time
}

// ApiKey is one bearer credential for a user. Only the sha256 of the token
// is stored; Prefix keeps the first few characters in the clear for
// indexed lookup.
type ApiKey struct {
	Id       string
	UserId   string
	Name     string
	Prefix   string
	Hash     string
	Created  time.Time
	LastUsed *time.Time
}
