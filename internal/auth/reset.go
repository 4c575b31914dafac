// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WhiskeyTracker Contributors

package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"math/big"
	"sync"
	"time"

	"github.com/samber/oops"
)

// Reset token configuration.
const (
	ResetTokenLength     = 32
	DefaultResetTokenTTL = 24 * time.Hour
)

const resetTokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Reset token redemption failures. Callers outside this package see both
// under CodeResetTokenInvalid; errors.Is tells them apart.
var (
	ErrResetTokenNotFound = errors.New("reset token not found")
	ErrResetTokenExpired  = errors.New("reset token expired")
)

// ResetTokenStore maps single-use reset tokens to user IDs.
type ResetTokenStore interface {
	// Create issues a new token for userID.
	Create(userID int64) (string, error)

	// Redeem consumes token and returns the user it was issued for.
	// Fails with ErrResetTokenNotFound or ErrResetTokenExpired.
	Redeem(token string) (int64, error)
}

// GenerateResetToken returns a random token of ResetTokenLength
// alphanumeric characters read from r.
func GenerateResetToken(r io.Reader) (string, error) {
	limit := big.NewInt(int64(len(resetTokenAlphabet)))
	buf := make([]byte, ResetTokenLength)
	for i := range buf {
		n, err := rand.Int(r, limit)
		if err != nil {
			return "", oops.Code("RESET_TOKEN_GENERATE_FAILED").
				With("operation", "crypto/rand.Int").
				Wrap(err)
		}
		buf[i] = resetTokenAlphabet[n.Int64()]
	}
	return string(buf), nil
}

type resetRecord struct {
	userID    int64
	expiresAt time.Time
}

// MemoryResetTokenStore is a process-local ResetTokenStore. Records are lost
// on restart and are not shared between instances.
type MemoryResetTokenStore struct {
	mu      sync.Mutex
	records map[string]resetRecord
	ttl     time.Duration
	now     func() time.Time
	random  io.Reader
}

// MemoryResetOption configures a MemoryResetTokenStore.
type MemoryResetOption func(*MemoryResetTokenStore)

// WithResetClock overrides the store's clock.
func WithResetClock(now func() time.Time) MemoryResetOption {
	return func(s *MemoryResetTokenStore) {
		s.now = now
	}
}

// WithResetRandom overrides the source of token randomness.
func WithResetRandom(r io.Reader) MemoryResetOption {
	return func(s *MemoryResetTokenStore) {
		s.random = r
	}
}

// NewMemoryResetTokenStore creates an empty store whose tokens live for ttl.
// A non-positive ttl selects DefaultResetTokenTTL.
func NewMemoryResetTokenStore(ttl time.Duration, opts ...MemoryResetOption) *MemoryResetTokenStore {
	if ttl <= 0 {
		ttl = DefaultResetTokenTTL
	}
	s := &MemoryResetTokenStore{
		records: make(map[string]resetRecord),
		ttl:     ttl,
		now:     time.Now,
		random:  rand.Reader,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create issues a new token for userID that expires after the store's TTL.
func (s *MemoryResetTokenStore) Create(userID int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		token, err := GenerateResetToken(s.random)
		if err != nil {
			return "", err
		}
		if _, taken := s.records[token]; taken {
			continue
		}
		s.records[token] = resetRecord{userID: userID, expiresAt: s.now().Add(s.ttl)}
		return token, nil
	}
}

// Redeem looks up and deletes token under one lock, so a token is redeemed
// at most once. An expired record is deleted and reported as
// ErrResetTokenExpired.
func (s *MemoryResetTokenStore) Redeem(token string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[token]
	if !ok {
		return 0, ErrResetTokenNotFound
	}
	delete(s.records, token)

	if s.now().After(rec.expiresAt) {
		return 0, ErrResetTokenExpired
	}
	return rec.userID, nil
}

// Sweep deletes every expired record and returns how many were removed.
func (s *MemoryResetTokenStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for token, rec := range s.records {
		if now.After(rec.expiresAt) {
			delete(s.records, token)
			removed++
		}
	}
	return removed
}

// Len returns the number of records currently held, expired or not.
func (s *MemoryResetTokenStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *MemoryResetTokenStore) RunSweeper(ctx context.Context, interval time.Duration, onSweep func(removed int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := s.Sweep()
			if onSweep != nil {
				onSweep(removed)
			}
		}
	}
}

var _ ResetTokenStore = (*MemoryResetTokenStore)(nil)
