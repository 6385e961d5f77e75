package user

import "time"

// Role controls what a user may do within their organization.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// User is an operator belonging to one organization.
type User struct {
	ID           string
	OrgID        string
	Email        string
	Name         string
	Role         Role
	PasswordHash string `json:"-"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
