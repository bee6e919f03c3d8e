package handler

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/segyhp/lending-ledger/internal/domain"
	"github.com/segyhp/lending-ledger/internal/middleware"
	apperrors "github.com/segyhp/lending-ledger/pkg/errors"
	"github.com/segyhp/lending-ledger/pkg/response"
)

type UserHandler struct {
	service      UserService
	validator    *validator.Validate
	secureCookie bool
}

func NewUserHandler(service UserService, validator *validator.Validate, secureCookie bool) *UserHandler {
	return &UserHandler{service: service, validator: validator, secureCookie: secureCookie}
}

// Login returns the session token and also sets it as an HttpOnly cookie.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decode(r, h.validator, &req); err != nil {
		response.FromError(w, err)
		return
	}

	auth, err := h.service.Login(r.Context(), &req)
	if err != nil {
		response.FromError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    auth.Token,
		Path:     "/",
		Expires:  auth.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	response.WithMessage(w, http.StatusOK, "Login successful", auth)
}

func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	response.WithMessage(w, http.StatusOK, "Logged out successfully", nil)
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterUserRequest
	if err := decode(r, h.validator, &req); err != nil {
		response.FromError(w, err)
		return
	}

	user, err := h.service.Register(r.Context(), &req)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Created(w, "User registered successfully", user)
}

func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		response.FromError(w, apperrors.Unauthorized("Authentication required"))
		return
	}

	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, user)
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, users)
}

func (h *UserHandler) ListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.service.ListAgents(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, agents)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		response.FromError(w, err)
		return
	}

	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, user)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		response.FromError(w, err)
		return
	}

	var req domain.UpdateUserRequest
	if err := decode(r, h.validator, &req); err != nil {
		response.FromError(w, err)
		return
	}

	user, err := h.service.Update(r.Context(), id, &req)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.WithMessage(w, http.StatusOK, "User updated successfully", user)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		response.FromError(w, err)
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		response.FromError(w, err)
		return
	}
	response.WithMessage(w, http.StatusOK, "User deleted successfully", nil)
}
