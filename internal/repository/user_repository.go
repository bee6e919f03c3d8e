package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/lending-ledger/internal/domain"
	apperrors "github.com/segyhp/lending-ledger/pkg/errors"
)

const userColumns = `id, name, email, phone, password_hash, role, is_active, created_at, updated_at`

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	c := conn(ctx, r.db)
	query := c.Rebind(`
		INSERT INTO users (id, name, email, phone, password_hash, role, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := c.ExecContext(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.Phone,
		user.PasswordHash,
		user.Role,
		user.IsActive,
		user.CreatedAt.UTC(),
		user.UpdatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return apperrors.WrapPhoneTaken(user.Phone)
	}

	return err
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	c := conn(ctx, r.db)
	query := c.Rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)

	var user domain.User
	if err := sqlx.GetContext(ctx, c, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.WrapNotFound("User", id.String())
		}
		return nil, err
	}

	return &user, nil
}

func (r *userRepository) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	c := conn(ctx, r.db)
	query := c.Rebind(`SELECT ` + userColumns + ` FROM users WHERE phone = ?`)

	var user domain.User
	if err := sqlx.GetContext(ctx, c, &user, query, phone); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.WrapNotFoundBy("User", "phone", phone)
		}
		return nil, err
	}

	return &user, nil
}

func (r *userRepository) List(ctx context.Context, role string) ([]*domain.User, error) {
	c := conn(ctx, r.db)
	query := `SELECT ` + userColumns + ` FROM users`
	var args []interface{}
	if role != "" {
		query += ` WHERE role = ?`
		args = append(args, role)
	}
	query += ` ORDER BY created_at DESC`

	users := []*domain.User{}
	if err := sqlx.SelectContext(ctx, c, &users, c.Rebind(query), args...); err != nil {
		return nil, err
	}

	return users, nil
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	c := conn(ctx, r.db)
	query := c.Rebind(`
		UPDATE users
		SET name = ?, email = ?, phone = ?, password_hash = ?, role = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`)

	res, err := c.ExecContext(ctx, query,
		user.Name,
		user.Email,
		user.Phone,
		user.PasswordHash,
		user.Role,
		user.IsActive,
		user.UpdatedAt.UTC(),
		user.ID,
	)
	if isUniqueViolation(err) {
		return apperrors.WrapPhoneTaken(user.Phone)
	}
	if err != nil {
		return err
	}

	return expectAffected(res, "User", user.ID)
}

func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	c := conn(ctx, r.db)

	res, err := c.ExecContext(ctx, c.Rebind(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return err
	}

	return expectAffected(res, "User", id)
}
