// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WhiskeyTracker Contributors

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// ErrInvalidToken is the cause of every bearer token verification failure:
// bad signature, malformed structure, wrong algorithm, missing subject or
// elapsed expiry.
var ErrInvalidToken = errors.New("invalid token")

// MinSecretKeyLength is the shortest HMAC key NewTokenIssuer accepts.
const MinSecretKeyLength = 16

// Claims is the verified payload of a bearer token.
type Claims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	// Extra holds every claim other than sub, iat and exp.
	Extra map[string]any
}

// TokenIssuer signs and verifies HMAC JWT bearer tokens with a process-wide
// key and a fixed algorithm.
type TokenIssuer struct {
	secret []byte
	method *jwt.SigningMethodHMAC
	now    func() time.Time
}

// TokenIssuerOption configures a TokenIssuer.
type TokenIssuerOption func(*TokenIssuer)

// WithTokenClock overrides the issuer's clock. Used by tests.
func WithTokenClock(now func() time.Time) TokenIssuerOption {
	return func(i *TokenIssuer) {
		i.now = now
	}
}

// NewTokenIssuer creates a TokenIssuer for one of HS256, HS384 or HS512.
func NewTokenIssuer(secret []byte, algorithm string, opts ...TokenIssuerOption) (*TokenIssuer, error) {
	if len(secret) < MinSecretKeyLength {
		return nil, oops.Code("AUTH_WEAK_SECRET").
			With("min", MinSecretKeyLength).
			Errorf("secret key must be at least %d bytes", MinSecretKeyLength)
	}
	if algorithm == "" {
		algorithm = jwt.SigningMethodHS256.Alg()
	}
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, oops.Code("AUTH_UNSUPPORTED_ALGORITHM").
			With("algorithm", algorithm).
			Errorf("unsupported signing algorithm %q", algorithm)
	}

	i := &TokenIssuer{
		secret: append([]byte(nil), secret...),
		method: method,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Issue signs a token for subject that expires ttl from now. Entries in extra
// are added as claims; sub, iat and exp cannot be overridden through it.
func (i *TokenIssuer) Issue(subject string, extra map[string]any, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", oops.Code("AUTH_TOKEN_ISSUE_FAILED").Errorf("subject cannot be empty")
	}

	now := i.now()
	claims := jwt.MapClaims{}
	for k, v := range extra {
		claims[k] = v
	}
	claims["sub"] = subject
	claims["iat"] = jwt.NewNumericDate(now)
	claims["exp"] = jwt.NewNumericDate(now.Add(ttl))

	signed, err := jwt.NewWithClaims(i.method, claims).SignedString(i.secret)
	if err != nil {
		return "", oops.Code("AUTH_TOKEN_ISSUE_FAILED").
			With("algorithm", i.method.Alg()).
			Wrap(err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of token and returns its claims.
// Every failure wraps ErrInvalidToken.
func (i *TokenIssuer) Verify(token string) (*Claims, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{i.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, fmt.Errorf("%w: missing expiry", ErrInvalidToken)
	}

	out := &Claims{
		Subject:   subject,
		ExpiresAt: exp.Time,
		Extra:     make(map[string]any, len(claims)),
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		out.IssuedAt = iat.Time
	}
	for k, v := range claims {
		switch k {
		case "sub", "iat", "exp":
		default:
			out.Extra[k] = v
		}
	}
	return out, nil
}
