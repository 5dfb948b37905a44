package models

import (
	"strings"
	"time"

	id "emissions/pkg/domain"
	dErrors "emissions/pkg/domain-errors"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleOperator:
		return r, nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, "role must be admin or operator")
	}
}

// User is a registry account. Usernames are unique ignoring case.
type User struct {
	ID           id.UserID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

const (
	minUsernameLength = 3
	maxUsernameLength = 64
)

// NormalizeUsername trims surrounding space; case is preserved for display.
func NormalizeUsername(s string) string {
	return strings.TrimSpace(s)
}

func ValidateUsername(s string) error {
	u := NormalizeUsername(s)
	if len(u) < minUsernameLength || len(u) > maxUsernameLength {
		return dErrors.New(dErrors.CodeValidation, "username must be between 3 and 64 characters")
	}
	if strings.ContainsAny(u, " \t\n") {
		return dErrors.New(dErrors.CodeValidation, "username must not contain spaces")
	}
	return nil
}
