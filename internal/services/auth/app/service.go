package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	apperrors "github.com/vmitra/vmitra/internal/platform/errors"
	"github.com/vmitra/vmitra/internal/platform/logging"
	"github.com/vmitra/vmitra/internal/platform/requestctx"
	"github.com/vmitra/vmitra/internal/services/auth/otp"
	"github.com/vmitra/vmitra/internal/services/auth/storage"
	"github.com/vmitra/vmitra/internal/services/auth/token"
	"github.com/vmitra/vmitra/internal/services/auth/user"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/vmitra/vmitra/internal/services/auth/app")

var (
	// ErrUserExists indicates the email already belongs to a verified user.
	ErrUserExists = apperrors.New(apperrors.CodeUserAlreadyExists, "User already exists")
	// ErrInvalidCredentials indicates an unknown email or wrong password.
	ErrInvalidCredentials = apperrors.New(apperrors.CodeInvalidCredentials, "Invalid email or password")
	// ErrNotVerified indicates login before OTP verification.
	ErrNotVerified = apperrors.New(apperrors.CodeUserNotVerified, "Please verify your email first")
)

// Config wires optional collaborators. Zero values fall back to defaults.
type Config struct {
	OTP    otp.Config
	Random io.Reader
	Hasher user.PasswordHasher
	Logger *zap.Logger
	Clock  func() time.Time
}

// Session is the result of a successful login or verification.
type Session struct {
	User        user.User
	AccessToken string
	ExpiresAt   time.Time
}

// Service orchestrates auth use-cases.
type Service struct {
	store  storage.Store
	tokens *token.Manager
	codes  *otp.Issuer
	hasher user.PasswordHasher
	logger *zap.Logger
	clock  func() time.Time
}

// NewService constructs auth use-cases over store, signing with tokens.
func NewService(store storage.Store, tokens *token.Manager, cfg Config) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("auth store is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token manager is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Hasher == nil {
		cfg.Hasher = user.HashPassword
	}
	return &Service{
		store:  store,
		tokens: tokens,
		codes:  otp.NewIssuer(cfg.OTP, cfg.Random),
		hasher: cfg.Hasher,
		logger: logging.OrNop(cfg.Logger),
		clock:  cfg.Clock,
	}, nil
}

// Register stores an unverified user and issues an OTP for it.
// An unverified registration for the same email is replaced.
func (s *Service) Register(ctx context.Context, input user.RegisterInput) (message string, err error) {
	ctx, span := tracer.Start(ctx, "auth.Register")
	defer func() { endSpan(span, err) }()

	now := s.clock().UTC()
	created, err := user.CreateUser(input, func() time.Time { return now }, s.hasher)
	if err != nil {
		return "", err
	}
	span.SetAttributes(attribute.String("auth.email", created.Email))

	existing, err := s.store.GetUser(ctx, created.Email)
	switch {
	case err == nil && existing.Verified:
		return "", ErrUserExists
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return "", fmt.Errorf("lookup user: %w", err)
	}

	if err := s.store.PutUser(ctx, created); err != nil {
		return "", fmt.Errorf("store user: %w", err)
	}
	code, err := s.codes.Issue(created.Email, now)
	if err != nil {
		return "", err
	}
	if err := s.store.PutOTP(ctx, code); err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}

	s.logger.Info("otp issued",
		zap.String("email", created.Email),
		zap.String("code", code.Code),
		zap.Time("expires_at", code.ExpiresAt),
	)
	return "OTP Sent to " + created.Email, nil
}

// VerifyOTP consumes the pending code and signs the user in.
func (s *Service) VerifyOTP(ctx context.Context, email, code string) (session Session, err error) {
	ctx, span := tracer.Start(ctx, "auth.VerifyOTP")
	defer func() { endSpan(span, err) }()

	email = user.NormalizeEmail(email)
	pending, err := s.store.GetOTP(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return Session{}, otp.ErrInvalid
	}
	if err != nil {
		return Session{}, fmt.Errorf("lookup otp: %w", err)
	}

	now := s.clock().UTC()
	if err := pending.Check(code, now); err != nil {
		s.logger.Info("otp rejected", zap.String("email", email), zap.String("reason", string(apperrors.CodeOf(err))))
		return Session{}, err
	}
	if err := s.store.Verify(ctx, email, now); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Session{}, otp.ErrInvalid
		}
		return Session{}, fmt.Errorf("verify user: %w", err)
	}

	verified, err := s.store.GetUser(ctx, email)
	if err != nil {
		return Session{}, fmt.Errorf("load user: %w", err)
	}
	s.logger.Info("user verified", zap.String("email", email))
	return s.issue(verified)
}

// Login checks credentials and signs a verified user in.
func (s *Service) Login(ctx context.Context, email, password string) (session Session, err error) {
	ctx, span := tracer.Start(ctx, "auth.Login")
	defer func() { endSpan(span, err) }()

	email = user.NormalizeEmail(email)
	found, err := s.store.GetUser(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("lookup user: %w", err)
	}
	if !found.CheckPassword(password) {
		return Session{}, ErrInvalidCredentials
	}
	if !found.Verified {
		return Session{}, ErrNotVerified
	}
	return s.issue(found)
}

// Authenticate validates an access token and returns the caller identity.
func (s *Service) Authenticate(raw string) (requestctx.User, error) {
	claims, err := s.tokens.Validate(raw)
	if err != nil {
		return requestctx.User{}, err
	}
	return requestctx.User{Email: claims.Email, Name: claims.Name}, nil
}

// PurgeExpiredOTPs removes codes whose TTL ended before now.
func (s *Service) PurgeExpiredOTPs(ctx context.Context) (int64, error) {
	return s.store.DeleteExpiredOTPs(ctx, s.clock().UTC())
}

func (s *Service) issue(u user.User) (Session, error) {
	signed, claims, err := s.tokens.Issue(u.Email, u.Name)
	if err != nil {
		return Session{}, err
	}
	return Session{User: u, AccessToken: signed, ExpiresAt: claims.ExpiresAt}, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
