package models

import (
	"time"

	"github.com/lib/pq"
)

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleFaculty UserRole = "faculty"
	RoleAdmin   UserRole = "admin"
)

// Valid reports whether the role is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleStudent, RoleFaculty, RoleAdmin:
		return true
	}
	return false
}

// UserStatus tracks the account lifecycle.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusPending  UserStatus = "pending"
	UserStatusInactive UserStatus = "inactive"
)

// User represents an application user stored in the users table.
type User struct {
	ID             string         `db:"id" json:"id"`
	Name           string         `db:"name" json:"name"`
	Email          string         `db:"email" json:"email"`
	PasswordHash   string         `db:"password_hash" json:"-"`
	Contact        *string        `db:"contact" json:"contact,omitempty"`
	BirthDate      *time.Time     `db:"birth_date" json:"birth_date,omitempty"`
	EducationLevel *string        `db:"education_level" json:"education_level,omitempty"`
	Roles          pq.StringArray `db:"roles" json:"roles"`
	Status         UserStatus     `db:"status" json:"status"`
	LastLogin      *time.Time     `db:"last_login" json:"last_login,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// HasRole reports whether the user holds the given role.
func (u User) HasRole(role UserRole) bool {
	for _, r := range u.Roles {
		if UserRole(r) == role {
			return true
		}
	}
	return false
}

// RoleList returns the roles as typed values.
func (u User) RoleList() []UserRole {
	roles := make([]UserRole, 0, len(u.Roles))
	for _, r := range u.Roles {
		roles = append(roles, UserRole(r))
	}
	return roles
}

// PrimaryRole picks the role a login without an explicit role resolves to.
func (u User) PrimaryRole() UserRole {
	for _, candidate := range []UserRole{RoleAdmin, RoleFaculty, RoleStudent} {
		if u.HasRole(candidate) {
			return candidate
		}
	}
	return ""
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Status    *UserStatus
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
