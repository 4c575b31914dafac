// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WhiskeyTracker Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned by a UserRepository when an insert collides with
// an existing username or email.
var ErrDuplicate = errors.New("duplicate")

// Error codes attached to errors returned by this package. The transport
// layer maps them to status codes; the auth core does not know about HTTP.
const (
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeUnauthenticated    = "AUTH_UNAUTHENTICATED"
	CodeResetTokenInvalid  = "RESET_TOKEN_INVALID"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeDuplicateUsername  = "USER_DUPLICATE_USERNAME"
	CodeDuplicateEmail     = "USER_DUPLICATE_EMAIL"
	CodeInvalidUsername    = "USER_INVALID_USERNAME"
	CodeInvalidEmail       = "USER_INVALID_EMAIL"
	CodeInvalidPassword    = "USER_INVALID_PASSWORD"
	CodeInvalidRole        = "USER_INVALID_ROLE"
)
