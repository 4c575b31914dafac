// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WhiskeyTracker Contributors

// Package auth provides authentication for WhiskeyTracker.
//
// # Domain Types
//
// Users should be created with NewUser, which validates username, email and
// role. Repository implementations receive pre-validated users.
//
// # Primitives
//
//   - PasswordHasher - bcrypt or argon2id hashing with upgrade detection
//   - TokenIssuer - HMAC-signed JWT bearer tokens
//   - MemoryResetTokenStore - single-use password reset tokens
//
// # Services
//
// Service coordinates registration, login, current-user resolution and the
// password reset flow. It is created with NewService, which validates its
// dependencies.
package auth
