// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WhiskeyTracker Contributors

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/samber/oops"

	"github.com/whiskeytracker/whiskeytracker/internal/auth"
	"github.com/whiskeytracker/whiskeytracker/internal/logging"
	"github.com/whiskeytracker/whiskeytracker/pkg/errutil"
)

// Request error codes.
const (
	// CodeRequestInvalid marks a request body or form that failed validation.
	CodeRequestInvalid = "REQUEST_INVALID"
	// CodeRequestTooLarge marks a body over the size limit.
	CodeRequestTooLarge = "REQUEST_TOO_LARGE"
)

// FieldError describes one validation failure. Loc is a JSON pointer into
// the request body (or the form field name prefixed with "/").
type FieldError struct {
	Loc string `json:"loc"`
	Msg string `json:"msg"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Detail    string       `json:"detail"`
	Code      string       `json:"code"`
	RequestID string       `json:"request_id,omitempty"`
	Errors    []FieldError `json:"errors,omitempty"`
}

type errorMapping struct {
	status int
	detail string
}

// errorTable maps auth error codes to their public status and message.
// An empty detail means the error's own message is safe to show.
var errorTable = map[string]errorMapping{
	auth.CodeInvalidCredentials: {http.StatusUnauthorized, "Incorrect email or password"},
	auth.CodeUnauthenticated:    {http.StatusUnauthorized, "Could not validate credentials"},
	auth.CodeResetTokenInvalid:  {http.StatusBadRequest, "Invalid or expired token"},
	auth.CodeUserNotFound:       {http.StatusNotFound, "User not found"},
	auth.CodeDuplicateUsername:  {http.StatusBadRequest, "Username already registered"},
	auth.CodeDuplicateEmail:     {http.StatusBadRequest, "Email already registered"},
	auth.CodeInvalidUsername:    {http.StatusUnprocessableEntity, ""},
	auth.CodeInvalidEmail:       {http.StatusUnprocessableEntity, ""},
	auth.CodeInvalidPassword:    {http.StatusUnprocessableEntity, ""},
	auth.CodeInvalidRole:        {http.StatusUnprocessableEntity, ""},
	CodeRequestInvalid:          {http.StatusUnprocessableEntity, ""},
	CodeRequestTooLarge:         {http.StatusRequestEntityTooLarge, "Request body too large"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // client may have disconnected
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, r *http.Request, status int, code, detail string) {
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	writeJSON(w, status, ErrorResponse{
		Detail:    detail,
		Code:      code,
		RequestID: logging.RequestID(r.Context()),
	})
}

// writeError maps err onto a response. Internal errors are logged and
// reported with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	code := errutil.Code(err)
	m, ok := errorTable[code]
	if !ok {
		errutil.LogErrorContext(r.Context(), logger, "request failed", err)
		writeDetail(w, r, http.StatusInternalServerError, "INTERNAL", "Internal server error")
		return
	}

	resp := ErrorResponse{
		Detail:    m.detail,
		Code:      code,
		RequestID: logging.RequestID(r.Context()),
	}
	if oopsErr, isOops := oops.AsOops(err); isOops {
		if resp.Detail == "" {
			resp.Detail = oopsErr.Error()
		}
		if fields, hasFields := oopsErr.Context()["fields"].([]FieldError); hasFields {
			resp.Errors = fields
		}
	}
	if m.status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	writeJSON(w, m.status, resp)
}

func invalidRequest(fields ...FieldError) error {
	return oops.Code(CodeRequestInvalid).
		With("fields", fields).
		Errorf("request validation failed")
}

// unreadableBody maps a body read failure. Bodies cut off by
// http.MaxBytesReader are 413, anything else is a validation failure.
func unreadableBody(err error, msg string) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return oops.Code(CodeRequestTooLarge).
			With("limit", tooLarge.Limit).
			Wrapf(err, "request body exceeds %d bytes", tooLarge.Limit)
	}
	return invalidRequest(FieldError{Msg: msg})
}

func notImplemented(w http.ResponseWriter, r *http.Request) {
	writeDetail(w, r, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Not implemented")
}
