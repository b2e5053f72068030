package domain

import (
	"errors"
	"fmt"
)

// Role is one of the fixed authorization levels a user can hold.
type Role string

const (
	RoleAdmin Role = "Admin"
	RoleUser  Role = "User"
	RoleGuest Role = "Guest"
)

// DefaultRole is granted to every self-registered user.
const DefaultRole = RoleUser

var ErrUnknownRole = errors.New("unknown role")

// ParseRole converts a stored or encoded tag into a Role.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleAdmin, RoleUser, RoleGuest:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// HasAnyRole reports whether held and required share at least one role.
// An empty required set admits nobody.
func HasAnyRole(held, required []Role) bool {
	for _, want := range required {
		for _, have := range held {
			if have == want {
				return true
			}
		}
	}
	return false
}

// User models a registered identity owned by the credential store.
type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Roles        []Role `json:"roles"`
}
