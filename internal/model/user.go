package model

import "time"

// Roles stored in users.role.  GUEST accounts are created lazily for
// registrants and carry an unusable credential until claimed.
const (
	RoleGuest = "GUEST"
	RoleStaff = "STAFF"
	RoleAdmin = "ADMIN"
)

// User is a registrant or staff identity keyed by lower-cased email.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email (unique, lower-cased)
	Name         string    // users.name
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}
