// Package token issues and validates the signed access tokens handed out
// after login or OTP verification.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/vmitra/vmitra/internal/platform/errors"
)

const (
	// Issuer is the iss claim on every token.
	Issuer = "vmitra"
	// DefaultTTL is the token lifetime when none is configured.
	DefaultTTL = 24 * time.Hour

	signingMethod = "HS256"
)

// ErrInvalid indicates a token that failed parsing or validation.
var ErrInvalid = apperrors.New(apperrors.CodeTokenInvalid, "token is invalid")

// Config defines how tokens are signed and validated.
type Config struct {
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time
}

// Claims are the validated token contents.
type Claims struct {
	Email     string
	Name      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// accessClaims is the JWT wire shape.
type accessClaims struct {
	jwt.RegisteredClaims
	Name string `json:"name"`
}

// Manager signs and validates access tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewManager builds a manager. The secret is required.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{secret: cfg.Secret, ttl: cfg.TTL, now: cfg.Now}, nil
}

// Issue signs a token for email and name.
func (m *Manager) Issue(email, name string) (string, Claims, error) {
	now := m.now().UTC().Truncate(time.Second)
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		Name: name,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, Claims{Email: email, Name: name, IssuedAt: now, ExpiresAt: now.Add(m.ttl)}, nil
}

// Validate parses raw and checks signature, issuer, and expiry.
func (m *Manager) Validate(raw string) (Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Claims{}, apperrors.New(apperrors.CodeUnauthorized, "token is required")
	}

	var parsed accessClaims
	_, err := jwt.ParseWithClaims(raw, &parsed, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{signingMethod}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return Claims{}, mapJWTError(err)
	}
	if strings.TrimSpace(parsed.Subject) == "" {
		return Claims{}, apperrors.New(apperrors.CodeTokenInvalid, "token subject is required")
	}

	claims := Claims{
		Email:     parsed.Subject,
		Name:      parsed.Name,
		ExpiresAt: parsed.ExpiresAt.Time.UTC(),
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return apperrors.New(apperrors.CodeTokenInvalid, "token is expired")
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return apperrors.New(apperrors.CodeTokenInvalid, "token signature is invalid")
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return apperrors.New(apperrors.CodeTokenInvalid, "token alg is invalid")
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return apperrors.New(apperrors.CodeTokenInvalid, "token issuer mismatch")
	default:
		return ErrInvalid
	}
}
