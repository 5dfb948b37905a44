package models

import (
	"time"

	dErrors "emissions/pkg/domain-errors"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() error {
	if NormalizeUsername(r.Username) == "" || r.Password == "" {
		return dErrors.New(dErrors.CodeValidation, "username and password are required")
	}
	return nil
}

type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        *User     `json:"user"`
}

type CreateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Validate checks shape only; password strength is enforced when hashing.
func (r *CreateUserRequest) Validate() error {
	if err := ValidateUsername(r.Username); err != nil {
		return err
	}
	if r.Password == "" {
		return dErrors.New(dErrors.CodeValidation, "password is required")
	}
	if r.Role == "" {
		r.Role = string(RoleOperator)
	}
	_, err := ParseRole(r.Role)
	return err
}

// UpdateUserRequest changes the role, resets the password, or both.
type UpdateUserRequest struct {
	Role     *string `json:"role,omitempty"`
	Password *string `json:"password,omitempty"`
}

func (r *UpdateUserRequest) Validate() error {
	if r.Role == nil && r.Password == nil {
		return dErrors.New(dErrors.CodeValidation, "role or password is required")
	}
	if r.Role != nil {
		if _, err := ParseRole(*r.Role); err != nil {
			return err
		}
	}
	return nil
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (r *ChangePasswordRequest) Validate() error {
	if r.CurrentPassword == "" || r.NewPassword == "" {
		return dErrors.New(dErrors.CodeValidation, "current_password and new_password are required")
	}
	if r.CurrentPassword == r.NewPassword {
		return dErrors.New(dErrors.CodeValidation, "new password must differ from the current one")
	}
	return nil
}
