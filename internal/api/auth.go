package api

import (
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/unifound/unifound/internal/gateway"
	"github.com/unifound/unifound/internal/model"
	"github.com/unifound/unifound/internal/session"
)

// AuthHandler handles login and registration.
type AuthHandler struct {
	GW       gateway.Gateway
	Sessions *session.Provider
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token   string `json:"token"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, "email and password required")
		return
	}

	account, err := h.GW.AccountByEmail(r.Context(), strings.ToLower(req.Email))
	if err != nil {
		failure(w, err)
		return
	}
	if account == nil {
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		slog.Warn("login failed", "email", account.Email, "remote", r.RemoteAddr)
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.Sessions.Issue(account)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	slog.Info("user logged in", "email", account.Email, "admin", account.IsAdmin)
	jsonResponse(w, http.StatusOK, tokenResponse{Token: token, Email: account.Email, IsAdmin: account.IsAdmin})
}

// Logout handles POST /api/auth/logout by revoking the presented token for
// the rest of its lifetime.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		jsonError(w, http.StatusUnauthorized, "missing or invalid authorization header")
		return
	}
	if err := h.Sessions.Revoke(strings.TrimPrefix(header, "Bearer ")); err != nil {
		jsonError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid email address")
		return
	}
	if len(req.Password) < model.MinPasswordLength {
		jsonError(w, http.StatusBadRequest, "password too short")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	account, err := h.GW.CreateAccount(r.Context(), email, string(hash), false)
	if err != nil {
		failure(w, err)
		return
	}

	token, err := h.Sessions.Issue(account)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	slog.Info("account registered", "email", account.Email)
	jsonResponse(w, http.StatusCreated, tokenResponse{Token: token, Email: account.Email})
}
