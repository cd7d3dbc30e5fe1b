package user

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/vmitra/vmitra/internal/platform/errors"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 6

var (
	// ErrInvalidEmail indicates the email is missing or malformed.
	ErrInvalidEmail = apperrors.New(apperrors.CodeUserInvalidEmail, "email must contain @")
	// ErrEmptyName indicates a missing display name.
	ErrEmptyName = apperrors.New(apperrors.CodeUserEmptyName, "name is required")
	// ErrWeakPassword indicates a password shorter than MinPasswordLength.
	ErrWeakPassword = apperrors.New(apperrors.CodeUserWeakPassword, fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
)

// User is a registered shop owner.
type User struct {
	Email        string
	Name         string
	PasswordHash string
	Verified     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RegisterInput describes the fields needed to register a user.
type RegisterInput struct {
	Email    string
	Name     string
	Password string
}

// PasswordHasher turns a plaintext password into a stored hash.
type PasswordHasher func(password string) (string, error)

// HashPassword hashes with bcrypt at the default cost.
func HashPassword(password string) (string, error) {
	return HasherWithCost(bcrypt.DefaultCost)(password)
}

// HasherWithCost returns a bcrypt hasher using cost.
func HasherWithCost(cost int) PasswordHasher {
	return func(password string) (string, error) {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
		if err != nil {
			return "", fmt.Errorf("hash password: %w", err)
		}
		return string(hash), nil
	}
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail requires a non-empty local part and domain around "@".
func ValidateEmail(email string) error {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" {
		return ErrInvalidEmail
	}
	return nil
}

// NormalizeRegisterInput trims fields and validates registration rules.
func NormalizeRegisterInput(input RegisterInput) (RegisterInput, error) {
	input.Email = NormalizeEmail(input.Email)
	input.Name = strings.TrimSpace(input.Name)
	if err := ValidateEmail(input.Email); err != nil {
		return RegisterInput{}, err
	}
	if input.Name == "" {
		return RegisterInput{}, ErrEmptyName
	}
	if len([]rune(input.Password)) < MinPasswordLength {
		return RegisterInput{}, ErrWeakPassword
	}
	return input, nil
}

// CreateUser builds an unverified user from registration input.
func CreateUser(input RegisterInput, now func() time.Time, hash PasswordHasher) (User, error) {
	if now == nil {
		now = time.Now
	}
	if hash == nil {
		hash = HashPassword
	}
	normalized, err := NormalizeRegisterInput(input)
	if err != nil {
		return User{}, err
	}
	passwordHash, err := hash(normalized.Password)
	if err != nil {
		return User{}, err
	}
	createdAt := now().UTC()
	return User{
		Email:        normalized.Email,
		Name:         normalized.Name,
		PasswordHash: passwordHash,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}, nil
}

// CheckPassword reports whether password matches the stored hash.
func (u User) CheckPassword(password string) bool {
	if u.PasswordHash == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}
