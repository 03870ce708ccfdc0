package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/ehr/hospital/internal/platform/auth"
)

// User maps to the users table. Every user owns exactly one role profile.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	UserName     string    `db:"user_name" json:"user_name"`
	Role         auth.Role `db:"role" json:"role"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

func (u *User) Identity() auth.Identity {
	return auth.Identity{UserID: u.ID, Email: u.Email, Role: u.Role}
}

// RegisterInput carries the credential part of a new account.
type RegisterInput struct {
	UserName string
	Email    string
	Password string
	Role     auth.Role
}
