package otp

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
	"strings"
	"time"

	apperrors "github.com/vmitra/vmitra/internal/platform/errors"
)

// CodeLength is the number of digits in a code.
const CodeLength = 6

var (
	// ErrInvalid indicates a wrong, missing, or already used code.
	ErrInvalid = apperrors.New(apperrors.CodeOTPInvalid, "Invalid OTP")
	// ErrExpired indicates the code outlived its TTL.
	ErrExpired = apperrors.New(apperrors.CodeOTPExpired, "OTP expired")
)

// OTP is one issued code for an email.
type OTP struct {
	Email     string
	Code      string
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
}

// Issuer creates codes according to a Config.
type Issuer struct {
	cfg    Config
	random io.Reader
}

// NewIssuer builds an issuer. A nil random reader uses crypto/rand.
func NewIssuer(cfg Config, random io.Reader) *Issuer {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if random == nil {
		random = rand.Reader
	}
	return &Issuer{cfg: cfg, random: random}
}

// Issue creates a fresh code for email valid from now.
func (i *Issuer) Issue(email string, now time.Time) (OTP, error) {
	code := i.cfg.FixedCode
	if code == "" {
		generated, err := randomCode(i.random)
		if err != nil {
			return OTP{}, err
		}
		code = generated
	}
	now = now.UTC()
	return OTP{
		Email:     email,
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(i.cfg.TTL),
	}, nil
}

// Check validates code against the stored OTP at now.
func (o OTP) Check(code string, now time.Time) error {
	code = strings.TrimSpace(code)
	if o.UsedAt != nil || !validCode(code) {
		return ErrInvalid
	}
	if subtle.ConstantTimeCompare([]byte(code), []byte(o.Code)) != 1 {
		return ErrInvalid
	}
	if !now.Before(o.ExpiresAt) {
		return ErrExpired
	}
	return nil
}

// digitLimit is the largest multiple of 10 a byte can hold. Bytes at or
// above it are discarded so every digit is equally likely.
const digitLimit = 250

func randomCode(random io.Reader) (string, error) {
	digits := make([]byte, 0, CodeLength)
	buf := make([]byte, CodeLength)
	for len(digits) < CodeLength {
		chunk := buf[:CodeLength-len(digits)]
		if _, err := io.ReadFull(random, chunk); err != nil {
			return "", fmt.Errorf("generate otp: %w", err)
		}
		for _, b := range chunk {
			if b < digitLimit {
				digits = append(digits, '0'+b%10)
			}
		}
	}
	return string(digits), nil
}

func validCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
