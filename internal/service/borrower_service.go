package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/segyhp/lending-ledger/internal/domain"
	"github.com/segyhp/lending-ledger/internal/repository"
	apperrors "github.com/segyhp/lending-ledger/pkg/errors"
	"github.com/segyhp/lending-ledger/pkg/utils"
)

// BorrowerService is the borrower registry. Phone numbers are unique after
// normalisation.
type BorrowerService struct {
	repo repository.BorrowerRepository
	now  func() time.Time
}

func NewBorrowerService(repo repository.BorrowerRepository) *BorrowerService {
	return &BorrowerService{repo: repo, now: time.Now}
}

// Create registers a new, active borrower.
func (s *BorrowerService) Create(ctx context.Context, req *domain.CreateBorrowerRequest) (*domain.Borrower, error) {
	name := strings.TrimSpace(req.Name)
	phone := utils.NormalizePhone(req.Phone)
	if name == "" || phone == "" {
		return nil, apperrors.Validation("Name and phone are required")
	}

	if err := s.ensurePhoneFree(ctx, phone, uuid.Nil); err != nil {
		return nil, err
	}

	now := s.now()
	borrower := &domain.Borrower{
		ID:        uuid.New(),
		Name:      name,
		Phone:     phone,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, borrower); err != nil {
		return nil, apperrors.Wrap(err)
	}

	return borrower, nil
}

func (s *BorrowerService) Get(ctx context.Context, id uuid.UUID) (*domain.Borrower, error) {
	borrower, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.Wrap(err)
	}
	return borrower, nil
}

func (s *BorrowerService) FindByPhone(ctx context.Context, phone string) (*domain.Borrower, error) {
	normalized := utils.NormalizePhone(phone)
	if normalized == "" {
		return nil, apperrors.Validation("Phone is required")
	}

	borrower, err := s.repo.GetByPhone(ctx, normalized)
	if err != nil {
		return nil, apperrors.Wrap(err)
	}
	return borrower, nil
}

func (s *BorrowerService) List(ctx context.Context) ([]*domain.Borrower, error) {
	borrowers, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err)
	}
	return borrowers, nil
}

// Update applies the fields present in req. A new phone must not belong to
// another borrower.
func (s *BorrowerService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateBorrowerRequest) (*domain.Borrower, error) {
	borrower, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.Wrap(err)
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperrors.Validation("Name cannot be empty")
		}
		borrower.Name = name
	}

	if req.Phone != nil {
		phone := utils.NormalizePhone(*req.Phone)
		if phone == "" {
			return nil, apperrors.Validation("Phone cannot be empty")
		}
		if phone != borrower.Phone {
			if err := s.ensurePhoneFree(ctx, phone, borrower.ID); err != nil {
				return nil, err
			}
			borrower.Phone = phone
		}
	}

	if req.IsActive != nil {
		borrower.IsActive = *req.IsActive
	}

	borrower.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, borrower); err != nil {
		return nil, apperrors.Wrap(err)
	}

	return borrower, nil
}

// Deactivate clears the active flag. Loans and payments of the borrower are
// left untouched.
func (s *BorrowerService) Deactivate(ctx context.Context, id uuid.UUID) (*domain.Borrower, error) {
	inactive := false
	return s.Update(ctx, id, &domain.UpdateBorrowerRequest{IsActive: &inactive})
}

// ResolveOrCreate returns the borrower referenced by id, or registers a new
// one from req. created reports which happened.
func (s *BorrowerService) ResolveOrCreate(ctx context.Context, id *uuid.UUID, req *domain.CreateBorrowerRequest) (borrower *domain.Borrower, created bool, err error) {
	switch {
	case id != nil:
		borrower, err = s.Get(ctx, *id)
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, false, apperrors.Validationf("Borrower with ID %s does not exist", id)
		}
		return borrower, false, err
	case req != nil:
		borrower, err = s.Create(ctx, req)
		return borrower, err == nil, err
	default:
		return nil, false, apperrors.Validation("Either borrower_id or new_borrower is required")
	}
}

func (s *BorrowerService) ensurePhoneFree(ctx context.Context, phone string, self uuid.UUID) error {
	existing, err := s.repo.GetByPhone(ctx, phone)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return nil
	case err != nil:
		return apperrors.Wrap(err)
	case existing.ID != self:
		return apperrors.WrapPhoneTaken(phone)
	}
	return nil
}
