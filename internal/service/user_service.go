package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/segyhp/lending-ledger/internal/config"
	"github.com/segyhp/lending-ledger/internal/domain"
	"github.com/segyhp/lending-ledger/internal/repository"
	apperrors "github.com/segyhp/lending-ledger/pkg/errors"
	"github.com/segyhp/lending-ledger/pkg/utils"
)

// UserService is the staff directory: administrators and collecting agents,
// their credentials and session tokens.
type UserService struct {
	repo   repository.UserRepository
	config *config.Config
	now    func() time.Time
}

func NewUserService(repo repository.UserRepository, config *config.Config) *UserService {
	return &UserService{repo: repo, config: config, now: time.Now}
}

// Register creates a staff account. The caller must present the configured
// registration code.
func (s *UserService) Register(ctx context.Context, req *domain.RegisterUserRequest) (*domain.User, error) {
	if req.VerificationCode != s.config.Auth.RegistrationCode {
		return nil, apperrors.Validation("Invalid verification code")
	}

	name := strings.TrimSpace(req.Name)
	phone := utils.NormalizePhone(req.Phone)
	if name == "" || phone == "" {
		return nil, apperrors.Validation("Name and phone are required")
	}

	if _, err := s.repo.GetByPhone(ctx, phone); err == nil {
		return nil, apperrors.WrapPhoneTaken(phone)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.Wrap(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	role := req.Role
	if role == "" {
		role = domain.RoleAgent
	}

	now := s.now()
	user := &domain.User{
		ID:           uuid.New(),
		Name:         name,
		Email:        strings.TrimSpace(req.Email),
		Phone:        phone,
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, apperrors.Wrap(err)
	}

	return user, nil
}

// Login checks credentials and issues a signed session token.
func (s *UserService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.AuthResponse, error) {
	user, err := s.repo.GetByPhone(ctx, utils.NormalizePhone(req.Phone))
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.Unauthorized("Invalid phone or password")
	}
	if err != nil {
		return nil, apperrors.Wrap(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apperrors.Unauthorized("Invalid phone or password")
	}

	if !user.IsActive {
		return nil, apperrors.Forbidden("Account is deactivated")
	}

	token, expiresAt, err := s.issueToken(user)
	if err != nil {
		return nil, err
	}

	return &domain.AuthResponse{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *UserService) issueToken(user *domain.User) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.config.Auth.TokenTTL)

	claims := &domain.Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Auth.JWTSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	return signed, expiresAt, nil
}

// ValidateToken verifies signature and expiry and returns the claims.
func (s *UserService) ValidateToken(tokenString string) (*domain.Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &domain.Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Auth.JWTSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, apperrors.Unauthorized("Invalid or expired token")
	}

	claims, ok := token.Claims.(*domain.Claims)
	if !ok {
		return nil, apperrors.Unauthorized("Invalid token claims")
	}
	if _, err := claims.UserID(); err != nil {
		return nil, apperrors.Unauthorized("Invalid token subject")
	}

	return claims, nil
}

// ValidateSession checks the token and then the account behind it. Deleted
// accounts are unauthorized, deactivated ones forbidden, and the role is
// taken from the directory rather than the token.
func (s *UserService) ValidateSession(ctx context.Context, tokenString string) (*domain.Claims, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	id, _ := claims.UserID()
	user, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.Unauthorized("Account no longer exists")
	}
	if err != nil {
		return nil, apperrors.Wrap(err)
	}

	if !user.IsActive {
		return nil, apperrors.Forbidden("Account is deactivated")
	}

	claims.Role = user.Role
	return claims, nil
}

func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.Wrap(err)
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context) ([]*domain.User, error) {
	users, err := s.repo.List(ctx, "")
	if err != nil {
		return nil, apperrors.Wrap(err)
	}
	return users, nil
}

func (s *UserService) ListAgents(ctx context.Context) ([]*domain.User, error) {
	users, err := s.repo.List(ctx, domain.RoleAgent)
	if err != nil {
		return nil, apperrors.Wrap(err)
	}
	return users, nil
}

func (s *UserService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateUserRequest) (*domain.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.Wrap(err)
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperrors.Validation("Name cannot be empty")
		}
		user.Name = name
	}
	if req.Email != nil {
		user.Email = strings.TrimSpace(*req.Email)
	}
	if req.Phone != nil {
		phone := utils.NormalizePhone(*req.Phone)
		if phone == "" {
			return nil, apperrors.Validation("Phone cannot be empty")
		}
		if phone != user.Phone {
			if existing, err := s.repo.GetByPhone(ctx, phone); err == nil && existing.ID != user.ID {
				return nil, apperrors.WrapPhoneTaken(phone)
			} else if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
				return nil, apperrors.Wrap(err)
			}
			user.Phone = phone
		}
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = string(hash)
	}

	user.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, apperrors.Wrap(err)
	}

	return user, nil
}

// Delete removes a collecting agent. Administrators cannot be deleted.
func (s *UserService) Delete(ctx context.Context, id uuid.UUID) error {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return apperrors.Wrap(err)
	}
	if user.IsAdmin() {
		return apperrors.Forbidden("Administrators cannot be deleted")
	}

	return apperrors.Wrap(s.repo.Delete(ctx, id))
}

// AgentExists reports whether id names an active user in the directory.
func (s *UserService) AgentExists(ctx context.Context, id uuid.UUID) (bool, error) {
	user, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.Wrap(err)
	}
	return user.IsActive, nil
}
