package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/lending-ledger/internal/domain"
	"github.com/segyhp/lending-ledger/internal/mocks"
	apperrors "github.com/segyhp/lending-ledger/pkg/errors"
)

func protected(t *testing.T, roles ...string) (http.Handler, *mocks.MockUserService) {
	t.Helper()
	validator := new(mocks.MockUserService)
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := UserIDFromContext(r.Context())
		require.True(t, ok)
		w.WriteHeader(http.StatusNoContent)
	})
	return Auth(validator)(RequireRoles(roles...)(final)), validator
}

func claimsFor(role string) *domain.Claims {
	return &domain.Claims{Role: role, RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString()}}
}

func TestAuth(t *testing.T) {
	tests := []struct {
		name       string
		prepare    func(*http.Request, *mocks.MockUserService)
		roles      []string
		wantStatus int
	}{
		{
			name:       "no credentials",
			prepare:    func(r *http.Request, v *mocks.MockUserService) {},
			roles:      []string{domain.RoleAdmin},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "malformed authorization header",
			prepare: func(r *http.Request, v *mocks.MockUserService) {
				r.Header.Set("Authorization", "Basic abc")
			},
			roles:      []string{domain.RoleAdmin},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "invalid token",
			prepare: func(r *http.Request, v *mocks.MockUserService) {
				r.Header.Set("Authorization", "Bearer bad")
				v.On("ValidateSession", mock.Anything, "bad").Return(nil, apperrors.Unauthorized("Invalid or expired token"))
			},
			roles:      []string{domain.RoleAdmin},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "bearer token with allowed role",
			prepare: func(r *http.Request, v *mocks.MockUserService) {
				r.Header.Set("Authorization", "Bearer good")
				v.On("ValidateSession", mock.Anything, "good").Return(claimsFor(domain.RoleAdmin), nil)
			},
			roles:      []string{domain.RoleAdmin},
			wantStatus: http.StatusNoContent,
		},
		{
			name: "cookie token",
			prepare: func(r *http.Request, v *mocks.MockUserService) {
				r.AddCookie(&http.Cookie{Name: TokenCookie, Value: "cookie"})
				v.On("ValidateSession", mock.Anything, "cookie").Return(claimsFor(domain.RoleAgent), nil)
			},
			roles:      []string{domain.RoleAdmin, domain.RoleAgent},
			wantStatus: http.StatusNoContent,
		},
		{
			name: "wrong role",
			prepare: func(r *http.Request, v *mocks.MockUserService) {
				r.Header.Set("Authorization", "Bearer agent")
				v.On("ValidateSession", mock.Anything, "agent").Return(claimsFor(domain.RoleAgent), nil)
			},
			roles:      []string{domain.RoleAdmin},
			wantStatus: http.StatusForbidden,
		},
		{
			name: "deactivated account",
			prepare: func(r *http.Request, v *mocks.MockUserService) {
				r.Header.Set("Authorization", "Bearer retired")
				v.On("ValidateSession", mock.Anything, "retired").Return(nil, apperrors.Forbidden("Account is deactivated"))
			},
			roles:      []string{domain.RoleAdmin, domain.RoleAgent},
			wantStatus: http.StatusForbidden,
		},
		{
			name: "directory unavailable",
			prepare: func(r *http.Request, v *mocks.MockUserService) {
				r.Header.Set("Authorization", "Bearer good")
				v.On("ValidateSession", mock.Anything, "good").Return(nil, apperrors.Wrap(errors.New("connection refused")))
			},
			roles:      []string{domain.RoleAdmin},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name: "subject is not a user id",
			prepare: func(r *http.Request, v *mocks.MockUserService) {
				r.Header.Set("Authorization", "Bearer odd")
				v.On("ValidateSession", mock.Anything, "odd").Return(&domain.Claims{Role: domain.RoleAdmin}, nil)
			},
			roles:      []string{domain.RoleAdmin},
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, validator := protected(t, tt.roles...)
			req := httptest.NewRequest(http.MethodGet, "/api/loans", nil)
			tt.prepare(req, validator)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			validator.AssertExpectations(t)
		})
	}
}

func TestRequireRolesWithoutAuth(t *testing.T) {
	h := RequireRoles(domain.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIPRateLimiter(t *testing.T) {
	limiter := NewIPRateLimiter(3)
	h := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	call := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/users/auth", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, call("10.0.0.1:5000"))
	}
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:5001"))
	assert.Equal(t, http.StatusOK, call("10.0.0.2:5000"))
}
