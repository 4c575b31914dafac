// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WhiskeyTracker Contributors

// Package authtest provides in-memory and mock implementations of the auth
// package interfaces for tests.
package authtest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/whiskeytracker/whiskeytracker/internal/auth"
)

// MemoryUserRepository is an auth.UserRepository backed by a map. Username
// and email uniqueness is case-insensitive, as in the PostgreSQL schema.
type MemoryUserRepository struct {
	mu     sync.RWMutex
	users  map[int64]auth.User
	nextID int64
}

// NewMemoryUserRepository creates an empty repository. IDs start at 1.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users:  make(map[int64]auth.User),
		nextID: 1,
	}
}

// Create stores a copy of user and sets its ID.
func (r *MemoryUserRepository) Create(_ context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Username, user.Username) {
			return DuplicateUsernameError(user.Username)
		}
		if strings.EqualFold(u.Email, user.Email) {
			return DuplicateEmailError(user.Email)
		}
	}

	user.ID = r.nextID
	r.nextID++
	r.users[user.ID] = *user
	return nil
}

// GetByID retrieves a user by ID.
func (r *MemoryUserRepository) GetByID(_ context.Context, id int64) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, NotFoundError("id", id)
	}
	return &u, nil
}

// GetByUsername retrieves a user by username (case-insensitive).
func (r *MemoryUserRepository) GetByUsername(_ context.Context, username string) (*auth.User, error) {
	return r.find(func(u auth.User) bool { return strings.EqualFold(u.Username, username) }, "username", username)
}

// GetByEmail retrieves a user by email (case-insensitive).
func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	return r.find(func(u auth.User) bool { return strings.EqualFold(u.Email, email) }, "email", email)
}

// UpdatePassword replaces the password hash of user id.
func (r *MemoryUserRepository) UpdatePassword(_ context.Context, id int64, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return NotFoundError("id", id)
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now().UTC()
	r.users[id] = u
	return nil
}

// SetActive flips the active flag of user id. There is no repository
// operation for this; tests use it to exercise inactive accounts.
func (r *MemoryUserRepository) SetActive(id int64, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.users[id]; ok {
		u.IsActive = active
		r.users[id] = u
	}
}

// Delete removes user id.
func (r *MemoryUserRepository) Delete(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
}

// Len returns the number of stored users.
func (r *MemoryUserRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

func (r *MemoryUserRepository) find(match func(auth.User) bool, key string, value any) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, NotFoundError(key, value)
}

// NotFoundError builds the error a repository returns when no user matches.
func NotFoundError(key string, value any) error {
	return oops.Code(auth.CodeUserNotFound).With(key, value).Wrap(auth.ErrNotFound)
}

// DuplicateUsernameError builds the error a repository returns when an
// insert collides on username.
func DuplicateUsernameError(username string) error {
	return oops.Code(auth.CodeDuplicateUsername).
		With("username", username).
		Wrapf(auth.ErrDuplicate, "username already registered")
}

// DuplicateEmailError builds the error a repository returns when an insert
// collides on email.
func DuplicateEmailError(email string) error {
	return oops.Code(auth.CodeDuplicateEmail).
		With("email", email).
		Wrapf(auth.ErrDuplicate, "email already registered")
}

var _ auth.UserRepository = (*MemoryUserRepository)(nil)
