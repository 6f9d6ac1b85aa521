package api

import (
	"net/http"

	"github.com/dukerupert/goodboy/internal/domain"
	"github.com/dukerupert/goodboy/internal/handler"
	"github.com/dukerupert/goodboy/internal/service"
)

type AuthHandler struct {
	users service.UserService
}

func NewAuthHandler(users service.UserService) *AuthHandler {
	return &AuthHandler{users: users}
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterRequest
	if err := handler.DecodeJSON(w, r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	res, err := h.users.Register(r.Context(), req)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusCreated, res)
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if err := handler.DecodeJSON(w, r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	res, err := h.users.Login(r.Context(), req)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, res)
}

// GetUser handles GET /api/auth/user/{id} (authenticated, self or admin)
func (h *AuthHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetPublic(r.Context(), domain.PrincipalFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, user)
}
