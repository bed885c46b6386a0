package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	Role      string `json:"role" validate:"omitempty,oneof=student faculty admin"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// RegisterRequest creates a student account.
type RegisterRequest struct {
	Name           string     `json:"name" validate:"required,max=255"`
	Email          string     `json:"email" validate:"required,email"`
	Password       string     `json:"password" validate:"required,min=8"`
	Contact        *string    `json:"contact" validate:"omitempty,max=50"`
	BirthDate      *time.Time `json:"birth_date"`
	EducationLevel *string    `json:"education_level" validate:"omitempty,max=100"`
	IP             string     `json:"-"`
	UserAgent      string     `json:"-"`
}

// LoginResponse returns the issued token and user info.
type LoginResponse struct {
	User      UserInfo  `json:"user"`
	Token     string    `json:"token"`
	Role      UserRole  `json:"role"`
	ExpiresIn int64     `json:"expires_in"`
	IssuedAt  time.Time `json:"issued_at"`
}

// ChangePasswordRequest payload for updating password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID     string     `json:"id"`
	Email  string     `json:"email"`
	Name   string     `json:"name"`
	Roles  []UserRole `json:"roles"`
	Status UserStatus `json:"status"`
}

// NewUserInfo projects a user into its response shape.
func NewUserInfo(u *User) UserInfo {
	return UserInfo{ID: u.ID, Email: u.Email, Name: u.Name, Roles: u.RoleList(), Status: u.Status}
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID     string     `json:"user_id"`
	Email      string     `json:"email"`
	Name       string     `json:"name"`
	Roles      []UserRole `json:"roles"`
	ActiveRole UserRole   `json:"active_role"`
	jwt.RegisteredClaims
}

// HasRole reports whether the caller holds the role.
func (c *JWTClaims) HasRole(role UserRole) bool {
	if c == nil {
		return false
	}
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsStaff reports whether the caller is faculty or admin.
func (c *JWTClaims) IsStaff() bool {
	return c.HasRole(RoleFaculty) || c.HasRole(RoleAdmin)
}
