package user

import "time"

// Roles recognised by the API.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// User is an API credential holder.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
