// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WhiskeyTracker Contributors

package api

import (
	"net/http"
	"time"

	"github.com/whiskeytracker/whiskeytracker/internal/auth"
	"github.com/whiskeytracker/whiskeytracker/pkg/errutil"
)

// Public messages.
const (
	WelcomeMessage        = "Welcome to the WhiskeyTracker API"
	ResetRequestedMessage = "If a user with that email exists, a password reset link has been sent."
	PasswordResetMessage  = "Password has been reset successfully"
)

// MessageResponse is a body carrying a single human-readable message.
type MessageResponse struct {
	Message string `json:"message"`
}

// TokenResponse is the OAuth2 password-grant response.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	// ExpiresIn is the token lifetime in seconds.
	ExpiresIn int64 `json:"expires_in"`
}

// TokenCheckResponse is returned by POST /api/auth/test-token.
type TokenCheckResponse struct {
	Email string `json:"email"`
	ID    int64  `json:"id"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsActive bool   `json:"is_active"`
	Role     string `json:"role"`
}

func newUserResponse(u *auth.User) UserResponse {
	return UserResponse{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		IsActive: u.IsActive,
		Role:     string(u.Role),
	}
}

func (h *handlers) welcome(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, MessageResponse{Message: WelcomeMessage})
}

// token implements the OAuth2 password grant. The form's username field
// holds the email address.
func (h *handlers) token(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		writeError(w, r, h.logger, unreadableBody(err, "request form could not be parsed"))
		return
	}

	email := r.PostForm.Get("username")
	password := r.PostForm.Get("password")
	var missing []FieldError
	if email == "" {
		missing = append(missing, FieldError{Loc: "/username", Msg: "field required"})
	}
	if password == "" {
		missing = append(missing, FieldError{Loc: "/password", Msg: "field required"})
	}
	if len(missing) > 0 {
		writeError(w, r, h.logger, invalidRequest(missing...))
		return
	}

	tok, err := h.svc.Login(r.Context(), email, password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken: tok.Token,
		TokenType:   tok.Type,
		ExpiresIn:   int64(time.Until(tok.ExpiresAt).Round(time.Second) / time.Second),
	})
}

func (h *handlers) testToken(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, TokenCheckResponse{Email: user.Email, ID: user.ID})
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := h.validator.decode(w, r, "register", &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	user, err := h.svc.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, newUserResponse(user))
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, newUserResponse(user))
}

// requestPasswordReset always answers 202 with the same message once the
// body is valid, whether or not the email belongs to an account.
func (h *handlers) requestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetRequest
	if err := h.validator.decode(w, r, "request-password-reset", &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if _, err := h.svc.RequestPasswordReset(r.Context(), req.Email); err != nil {
		errutil.LogErrorContext(r.Context(), h.logger, "password reset request failed", err)
	}
	writeJSON(w, http.StatusAccepted, MessageResponse{Message: ResetRequestedMessage})
}

func (h *handlers) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := h.validator.decode(w, r, "reset-password", &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.svc.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: PasswordResetMessage})
}
