package errors

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil))

	notFound := WrapNotFound("Loan", "42")
	assert.Same(t, notFound, Wrap(notFound))

	wrapped := Wrap(fmt.Errorf("query: %w", sql.ErrConnDone))
	assert.Equal(t, ErrCodeDatabaseError, Code(wrapped))
	assert.ErrorIs(t, wrapped, sql.ErrConnDone)
}

func TestKinds(t *testing.T) {
	tests := []struct {
		err  error
		kind error
		code string
	}{
		{WrapNotFound("Loan", "1"), ErrNotFound, ErrCodeNotFound},
		{WrapNotFoundBy("Borrower", "phone", "1"), ErrNotFound, ErrCodeNotFound},
		{WrapPhoneTaken("1"), ErrConflict, ErrCodePhoneTaken},
		{WrapLoanHasPayments("1", 2), ErrConflict, ErrCodeLoanHasPayments},
		{WrapOverpayment("10", "5"), ErrValidation, ErrCodeOverpayment},
		{WrapBorrowerMismatch("1", "2"), ErrValidation, ErrCodeBorrowerMismatch},
		{Unauthorized("no"), ErrUnauthorized, ErrCodeUnauthorized},
		{Forbidden("no"), ErrForbidden, ErrCodeForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.kind)
			assert.Equal(t, tt.code, Code(tt.err))
			assert.Equal(t, tt.code, Code(fmt.Errorf("context: %w", tt.err)))
		})
	}
}

func TestCodeOfPlainError(t *testing.T) {
	err := errors.New("boom")
	assert.Equal(t, ErrCodeUnexpected, Code(err))
	assert.Equal(t, "boom", Message(err))
}
