package domain

import (
	"time"

	"github.com/google/uuid"
)

// Borrower is a person loans are disbursed to. Borrowers are never hard
// deleted; deactivation only clears IsActive.
type Borrower struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Phone     string    `json:"phone" db:"phone"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DTOs for requests and responses

type CreateBorrowerRequest struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone" validate:"required"`
}

type UpdateBorrowerRequest struct {
	Name     *string `json:"name"`
	Phone    *string `json:"phone"`
	IsActive *bool   `json:"is_active"`
}
