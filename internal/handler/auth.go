package handler

import (
	"net/http"

	"github.com/mustafamilyas/expense-tracker/internal/contextkeys"
	"github.com/mustafamilyas/expense-tracker/internal/domain"
	"github.com/mustafamilyas/expense-tracker/internal/service"
)

// authFromRequest extracts the context resolved by the auth middleware.
func authFromRequest(r *http.Request) (*domain.AuthContext, error) {
	auth, ok := r.Context().Value(contextkeys.AuthContext).(*domain.AuthContext)
	if !ok {
		return nil, domain.ErrUnauthorized(domain.ReasonMissingCred)
	}
	return auth, nil
}

// requireWeb rejects chat-sourced contexts; the bind flow's claim and
// confirm steps only make sense for a logged-in web session.
func requireWeb(r *http.Request) (*domain.AuthContext, error) {
	auth, err := authFromRequest(r)
	if err != nil {
		return nil, err
	}
	if auth.Source != domain.SourceWeb {
		return nil, domain.ErrForbidden(domain.ReasonGroupScope)
	}
	return auth, nil
}

// AuthHandler handles account HTTP endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	resp, err := h.auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusCreated, resp)
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	resp, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, resp)
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	auth, err := authFromRequest(r)
	if err != nil {
		Error(w, err)
		return
	}

	user, err := h.auth.GetUser(r.Context(), auth.UserID)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, user)
}
