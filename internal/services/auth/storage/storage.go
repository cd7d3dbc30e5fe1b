package storage

import (
	"context"
	"time"

	"github.com/vmitra/vmitra/internal/platform/errors"
	"github.com/vmitra/vmitra/internal/services/auth/otp"
	"github.com/vmitra/vmitra/internal/services/auth/user"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New(errors.CodeNotFound, "record not found")

// UserStore persists owner accounts keyed by email.
type UserStore interface {
	PutUser(ctx context.Context, u user.User) error
	GetUser(ctx context.Context, email string) (user.User, error)
	CountUsers(ctx context.Context) (int, error)
}

// OTPStore keeps the latest code per email.
type OTPStore interface {
	// PutOTP replaces any previous code for the same email.
	PutOTP(ctx context.Context, code otp.OTP) error
	GetOTP(ctx context.Context, email string) (otp.OTP, error)
	// Verify marks the code used and the user verified in one transaction.
	Verify(ctx context.Context, email string, at time.Time) error
	DeleteExpiredOTPs(ctx context.Context, before time.Time) (int64, error)
}

// Store is the full auth persistence surface.
type Store interface {
	UserStore
	OTPStore
}
