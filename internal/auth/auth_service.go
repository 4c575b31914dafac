// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WhiskeyTracker Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/whiskeytracker/whiskeytracker/internal/logging"
	"github.com/whiskeytracker/whiskeytracker/pkg/errutil"
)

// DefaultAccessTokenTTL is the lifetime of bearer tokens issued by Login.
const DefaultAccessTokenTTL = 30 * time.Minute

// TokenTypeBearer is the token_type reported alongside access tokens.
const TokenTypeBearer = "bearer"

const tracerName = "github.com/whiskeytracker/whiskeytracker/internal/auth"

// dummyPassword is hashed once at construction. Login verifies against that
// hash when no user matches, so both paths cost one hash verification.
//
//nolint:gosec // G101: not a credential
const dummyPassword = "whiskeytracker-timing-equalizer"

// TokenSigner issues and verifies bearer tokens.
type TokenSigner interface {
	Issue(subject string, extra map[string]any, ttl time.Duration) (string, error)
	Verify(token string) (*Claims, error)
}

// ResetNotifier delivers a freshly issued reset token to its owner.
type ResetNotifier interface {
	NotifyPasswordReset(ctx context.Context, user *User, token string) error
}

// AccessToken is the result of a successful login.
type AccessToken struct {
	Token     string
	Type      string
	ExpiresAt time.Time
}

// Service orchestrates registration, login, current-user resolution and the
// password reset flow.
type Service struct {
	users     UserRepository
	hasher    PasswordHasher
	tokens    TokenSigner
	resets    ResetTokenStore
	notifier  ResetNotifier
	accessTTL time.Duration
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
	dummyHash string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithAccessTokenTTL sets the bearer token lifetime.
func WithAccessTokenTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.accessTTL = ttl
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTracer sets the tracer used for service spans.
func WithTracer(tracer trace.Tracer) ServiceOption {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// WithResetNotifier sets where issued reset tokens are delivered.
func WithResetNotifier(n ResetNotifier) ServiceOption {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithServiceClock overrides the clock used to compute token expiry times.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new Service. All four collaborators are required.
func NewService(users UserRepository, hasher PasswordHasher, tokens TokenSigner, resets ResetTokenStore, opts ...ServiceOption) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("user repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("token signer is required")
	}
	if resets == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("reset token store is required")
	}

	s := &Service{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		resets:    resets,
		accessTTL: DefaultAccessTokenTTL,
		logger:    slog.Default(),
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	dummy, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").
			With("operation", "hash dummy password").
			Wrap(err)
	}
	s.dummyHash = dummy

	return s, nil
}

// Register creates a standard, active user. Username collisions are checked
// before email collisions.
func (s *Service) Register(ctx context.Context, username, email, password string) (*User, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Register")
	defer span.End()

	user, err := s.register(ctx, username, email, password)
	s.finish(span, OpRegister, err)
	if err == nil {
		span.SetAttributes(attribute.Int64("user.id", user.ID))
		s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	}
	return user, err
}

func (s *Service) register(ctx context.Context, username, email, password string) (*User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, oops.Code(CodeDuplicateUsername).
			With("username", username).
			Wrapf(ErrDuplicate, "username already registered")
	} else if !errors.Is(err, ErrNotFound) {
		return nil, oops.Code("USER_REGISTER_FAILED").
			With("operation", "get user by username").
			Wrap(err)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, oops.Code(CodeDuplicateEmail).
			With("email", logging.RedactEmail(email)).
			Wrapf(ErrDuplicate, "email already registered")
	} else if !errors.Is(err, ErrNotFound) {
		return nil, oops.Code("USER_REGISTER_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("USER_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(username, email, hash, RoleStandard)
	if err != nil {
		return nil, err
	}

	// A concurrent registration can still win the race between the checks
	// above and this insert; the repository reports it as a duplicate code.
	if err := s.users.Create(ctx, user); err != nil {
		return nil, oops.Code("USER_REGISTER_FAILED").
			With("operation", "create user").
			Wrap(err)
	}
	return user, nil
}

// Login verifies email and password and issues a bearer token whose subject
// is the user ID. Unknown email, wrong password and inactive account all
// fail with the same CodeInvalidCredentials error.
func (s *Service) Login(ctx context.Context, email, password string) (*AccessToken, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Login")
	defer span.End()

	token, err := s.login(ctx, email, password)
	s.finish(span, OpLogin, err)
	return token, err
}

func (s *Service) login(ctx context.Context, email, password string) (*AccessToken, error) {
	user, lookupErr := s.users.GetByEmail(ctx, email)

	targetHash := s.dummyHash
	userExists := false
	switch {
	case lookupErr == nil:
		targetHash = user.PasswordHash
		userExists = true
	case !errors.Is(lookupErr, ErrNotFound):
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get user by email").
			Wrap(lookupErr)
	}

	// Always verify so response time does not reveal whether the email exists.
	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		if !userExists {
			return nil, invalidCredentials()
		}
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("user_id", user.ID).
			Wrap(verifyErr)
	}

	if !userExists || !valid {
		return nil, invalidCredentials()
	}
	if !user.IsActive {
		s.logger.InfoContext(ctx, "login rejected for inactive user", "user_id", user.ID)
		return nil, invalidCredentials()
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		s.upgradeHash(ctx, user.ID, password)
	}

	now := s.now()
	signed, err := s.tokens.Issue(
		strconv.FormatInt(user.ID, 10),
		map[string]any{"email": user.Email},
		s.accessTTL,
	)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "issue access token").
			With("user_id", user.ID).
			Wrap(err)
	}

	return &AccessToken{
		Token:     signed,
		Type:      TokenTypeBearer,
		ExpiresAt: now.Add(s.accessTTL),
	}, nil
}

// upgradeHash rehashes the password with the configured algorithm. Failure
// is logged and does not fail the login.
func (s *Service) upgradeHash(ctx context.Context, userID int64, password string) {
	newHash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.users.UpdatePassword(ctx, userID, newHash)
	}
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "password hash upgrade failed", err)
		return
	}
	s.logger.InfoContext(ctx, "password hash upgraded", "user_id", userID)
}

// CurrentUser resolves a bearer token to an active user. An invalid or
// expired token, a missing user and an inactive user all fail with
// CodeUnauthenticated.
func (s *Service) CurrentUser(ctx context.Context, bearer string) (*User, error) {
	ctx, span := s.tracer.Start(ctx, "auth.CurrentUser")
	defer span.End()

	user, err := s.currentUser(ctx, bearer)
	s.finish(span, OpCurrentUser, err)
	return user, err
}

func (s *Service) currentUser(ctx context.Context, bearer string) (*User, error) {
	claims, err := s.tokens.Verify(bearer)
	if err != nil {
		return nil, oops.Code(CodeUnauthenticated).Wrapf(err, "could not validate credentials")
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, oops.Code(CodeUnauthenticated).
			With("subject", claims.Subject).
			Wrapf(err, "could not validate credentials")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeUnauthenticated).
				With("user_id", id).
				Errorf("could not validate credentials")
		}
		return nil, oops.Code("AUTH_CURRENT_USER_FAILED").
			With("operation", "get user by id").
			With("user_id", id).
			Wrap(err)
	}

	if !user.IsActive {
		return nil, oops.Code(CodeUnauthenticated).
			With("user_id", id).
			Errorf("could not validate credentials")
	}
	return user, nil
}

// RequestPasswordReset issues a reset token for the user with email and
// hands it to the notifier. When no user matches it returns ("", nil), so
// callers can answer both cases identically.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "auth.RequestPasswordReset")
	defer span.End()

	token, err := s.requestPasswordReset(ctx, email)
	s.finish(span, OpResetRequest, err)
	return token, err
}

func (s *Service) requestPasswordReset(ctx context.Context, email string) (string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	token, err := s.resets.Create(user.ID)
	if err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "create reset token").
			With("user_id", user.ID).
			Wrap(err)
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyPasswordReset(ctx, user, token); err != nil {
			errutil.LogErrorContext(ctx, s.logger, "reset token delivery failed", err)
		}
	}

	s.logger.InfoContext(ctx, "password reset requested", "user_id", user.ID)
	return token, nil
}

// ResetPassword redeems a reset token and stores the hash of newPassword for
// its user. The password is validated before the token is consumed.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	ctx, span := s.tracer.Start(ctx, "auth.ResetPassword")
	defer span.End()

	err := s.resetPassword(ctx, token, newPassword)
	s.finish(span, OpResetRedeem, err)
	return err
}

func (s *Service) resetPassword(ctx context.Context, token, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	userID, err := s.resets.Redeem(token)
	if err != nil {
		return oops.Code(CodeResetTokenInvalid).Wrapf(err, "invalid or expired token")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return userNotFound(userID)
		}
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "get user by id").
			With("user_id", userID).
			Wrap(err)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		if errors.Is(err, ErrNotFound) {
			return userNotFound(user.ID)
		}
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "update password").
			With("user_id", user.ID).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "password reset completed", "user_id", user.ID)
	return nil
}

// finish records the outcome of an operation on its span and in metrics.
func (s *Service) finish(span trace.Span, op string, err error) {
	if err == nil {
		recordOperation(op, OutcomeSuccess)
		return
	}

	span.RecordError(err)
	if IsRejection(err) {
		recordOperation(op, OutcomeFailure)
		span.SetStatus(codes.Error, errutil.Code(err))
		return
	}
	recordOperation(op, OutcomeError)
	span.SetStatus(codes.Error, "internal error")
}

// IsRejection reports whether err is a rejection of the caller's input
// rather than an internal fault.
func IsRejection(err error) bool {
	switch errutil.Code(err) {
	case CodeInvalidCredentials, CodeUnauthenticated, CodeResetTokenInvalid,
		CodeUserNotFound, CodeDuplicateUsername, CodeDuplicateEmail,
		CodeInvalidUsername, CodeInvalidEmail, CodeInvalidPassword, CodeInvalidRole:
		return true
	default:
		return false
	}
}

func invalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Errorf("incorrect email or password")
}

func userNotFound(id int64) error {
	return oops.Code(CodeUserNotFound).With("user_id", id).Errorf("user not found")
}
