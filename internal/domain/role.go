package domain

import (
	"crypto/subtle"
	"fmt"
	"strings"
)

// Role identifies which dashboard a viewer sees.
type Role string

const (
	RoleLocal     Role = "local"
	RoleAuthority Role = "authority"
)

// ParseRole accepts role names case-insensitively.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleLocal:
		return RoleLocal, nil
	case RoleAuthority:
		return RoleAuthority, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Authenticator is the trivial credential check in front of the authority
// dashboard. Local viewers need no credentials.
type Authenticator struct {
	username string
	password string
}

func NewAuthenticator(username, password string) *Authenticator {
	return &Authenticator{username: username, password: password}
}

// Login returns the role granted for the request.
func (a *Authenticator) Login(role Role, username, password string) (Role, error) {
	if role == RoleLocal {
		return RoleLocal, nil
	}
	if role != RoleAuthority {
		return "", fmt.Errorf("unknown role %q", role)
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) == 1
	if !userOK || !passOK {
		return "", ErrInvalidCredentials
	}
	return RoleAuthority, nil
}
