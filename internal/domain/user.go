package domain

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	RoleAdmin = "admin"
	RoleAgent = "Collecting Agent"
)

// User is a staff account: an administrator or a collecting agent.
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email,omitempty" db:"email"`
	Phone        string    `json:"phone" db:"phone"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         string    `json:"role" db:"role"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

type RegisterUserRequest struct {
	Name             string `json:"name" validate:"required"`
	Email            string `json:"email" validate:"omitempty,email"`
	Phone            string `json:"phone" validate:"required"`
	Password         string `json:"password" validate:"required,min=6"`
	Role             string `json:"role" validate:"omitempty,oneof=admin 'Collecting Agent'"`
	VerificationCode string `json:"verification_code" validate:"required"`
}

type LoginRequest struct {
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type UpdateUserRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Phone    *string `json:"phone"`
	Role     *string `json:"role" validate:"omitempty,oneof=admin 'Collecting Agent'"`
	IsActive *bool   `json:"is_active"`
	Password *string `json:"password" validate:"omitempty,min=6"`
}

type AuthResponse struct {
	User      *User     `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Claims are the session token claims. Subject carries the user ID.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}
