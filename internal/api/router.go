// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WhiskeyTracker Contributors

// Package api exposes the auth core over HTTP.
//
// The router owns transport concerns only: request decoding and JSON Schema
// validation, bearer extraction, CORS, request IDs, access logging and the
// mapping from error codes to status codes. All decisions about credentials
// and tokens are made by the AuthService it is given.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/samber/oops"

	"github.com/whiskeytracker/whiskeytracker/internal/auth"
	"github.com/whiskeytracker/whiskeytracker/internal/observability"
)

// AuthService is the subset of auth.Service the HTTP layer calls.
type AuthService interface {
	Register(ctx context.Context, username, email, password string) (*auth.User, error)
	Login(ctx context.Context, email, password string) (*auth.AccessToken, error)
	CurrentUser(ctx context.Context, bearer string) (*auth.User, error)
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// Options configures NewRouter.
type Options struct {
	Logger *slog.Logger
	// Metrics may be nil, in which case requests are not counted.
	Metrics *observability.Metrics
	// CORSOrigins are glob patterns matched against the Origin header.
	// An empty list disables CORS headers entirely.
	CORSOrigins []string
}

type handlers struct {
	svc       AuthService
	logger    *slog.Logger
	validator *validator
}

// NewRouter builds the HTTP handler for the API.
func NewRouter(svc AuthService, opts Options) (http.Handler, error) {
	if svc == nil {
		return nil, oops.Code("API_INVALID_DEPENDENCY").Errorf("auth service is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cors, err := newCORS(opts.CORSOrigins)
	if err != nil {
		return nil, err
	}
	v, err := newValidator()
	if err != nil {
		return nil, err
	}

	h := &handlers{svc: svc, logger: logger, validator: v}

	r := chi.NewRouter()
	r.Use(
		requestID,
		observe(logger, opts.Metrics),
		recoverer(logger),
		cors.handler,
	)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, r, http.StatusNotFound, "NOT_FOUND", "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method Not Allowed")
	})

	r.Get("/", h.welcome)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/token", h.token)
		r.With(h.requireUser).Post("/test-token", h.testToken)
	})

	r.Route("/api/users", func(r chi.Router) {
		r.Post("/register", h.register)
		r.With(h.requireUser).Get("/me", h.me)
		r.Post("/request-password-reset", h.requestPasswordReset)
		r.Post("/reset-password", h.resetPassword)
	})

	r.Mount("/api/whiskies", http.HandlerFunc(notImplemented))

	return r, nil
}
