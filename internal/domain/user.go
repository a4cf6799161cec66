package domain

import "time"

// Role values. Authorization semantics beyond admin gating live outside the ticket core.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is an operator account referenced as the actor of ticket changes.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// IsAdmin reports whether the user carries the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
