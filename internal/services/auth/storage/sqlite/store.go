package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/vmitra/vmitra/internal/platform/storage/sqlitemigrate"
	"github.com/vmitra/vmitra/internal/services/auth/otp"
	"github.com/vmitra/vmitra/internal/services/auth/storage"
	"github.com/vmitra/vmitra/internal/services/auth/storage/sqlite/migrations"
	"github.com/vmitra/vmitra/internal/services/auth/user"
	_ "modernc.org/sqlite"
)

var _ storage.Store = (*Store)(nil)

// Store persists auth state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite auth store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlitemigrate.ApplyMigrations(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// PutUser upserts a user record.
func (s *Store) PutUser(ctx context.Context, u user.User) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(u.Email) == "" {
		return fmt.Errorf("user email is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO users (email, name, password_hash, verified, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(email) DO UPDATE SET
		   name = excluded.name,
		   password_hash = excluded.password_hash,
		   verified = excluded.verified,
		   created_at = excluded.created_at,
		   updated_at = excluded.updated_at`,
		u.Email,
		u.Name,
		u.PasswordHash,
		boolToInt(u.Verified),
		toMillis(u.CreatedAt),
		toMillis(u.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

// GetUser fetches a user by email.
func (s *Store) GetUser(ctx context.Context, email string) (user.User, error) {
	if err := s.ready(ctx); err != nil {
		return user.User{}, err
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT email, name, password_hash, verified, created_at, updated_at FROM users WHERE email = ?`,
		email,
	)
	var (
		u         user.User
		verified  int
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&u.Email, &u.Name, &u.PasswordHash, &verified, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, storage.ErrNotFound
		}
		return user.User{}, fmt.Errorf("get user: %w", err)
	}
	u.Verified = verified != 0
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return u, nil
}

// CountUsers returns the number of registered users.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	var count int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

// PutOTP stores code as the only pending code for its email.
func (s *Store) PutOTP(ctx context.Context, code otp.OTP) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(code.Email) == "" {
		return fmt.Errorf("otp email is required")
	}
	var usedAt sql.NullInt64
	if code.UsedAt != nil {
		usedAt = sql.NullInt64{Int64: toMillis(*code.UsedAt), Valid: true}
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO otps (email, code, created_at, expires_at, used_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(email) DO UPDATE SET
		   code = excluded.code,
		   created_at = excluded.created_at,
		   expires_at = excluded.expires_at,
		   used_at = excluded.used_at`,
		code.Email,
		code.Code,
		toMillis(code.CreatedAt),
		toMillis(code.ExpiresAt),
		usedAt,
	)
	if err != nil {
		return fmt.Errorf("put otp: %w", err)
	}
	return nil
}

// GetOTP fetches the pending code for email.
func (s *Store) GetOTP(ctx context.Context, email string) (otp.OTP, error) {
	if err := s.ready(ctx); err != nil {
		return otp.OTP{}, err
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT email, code, created_at, expires_at, used_at FROM otps WHERE email = ?`,
		email,
	)
	var (
		code      otp.OTP
		createdAt int64
		expiresAt int64
		usedAt    sql.NullInt64
	)
	if err := row.Scan(&code.Email, &code.Code, &createdAt, &expiresAt, &usedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return otp.OTP{}, storage.ErrNotFound
		}
		return otp.OTP{}, fmt.Errorf("get otp: %w", err)
	}
	code.CreatedAt = fromMillis(createdAt)
	code.ExpiresAt = fromMillis(expiresAt)
	if usedAt.Valid {
		used := fromMillis(usedAt.Int64)
		code.UsedAt = &used
	}
	return code, nil
}

// Verify consumes the pending code and marks the user verified.
// A code that was already consumed yields ErrNotFound.
func (s *Store) Verify(ctx context.Context, email string, at time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin verify: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `UPDATE otps SET used_at = ? WHERE email = ? AND used_at IS NULL`, toMillis(at), email)
	if err != nil {
		return fmt.Errorf("consume otp: %w", err)
	}
	if affected, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("consume otp: %w", err)
	} else if affected == 0 {
		return storage.ErrNotFound
	}

	result, err = tx.ExecContext(ctx, `UPDATE users SET verified = 1, updated_at = ? WHERE email = ?`, toMillis(at), email)
	if err != nil {
		return fmt.Errorf("verify user: %w", err)
	}
	if affected, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("verify user: %w", err)
	} else if affected == 0 {
		return storage.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit verify: %w", err)
	}
	return nil
}

// DeleteExpiredOTPs removes codes that expired before the cutoff.
func (s *Store) DeleteExpiredOTPs(ctx context.Context, before time.Time) (int64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM otps WHERE expires_at < ?`, toMillis(before))
	if err != nil {
		return 0, fmt.Errorf("delete expired otps: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired otps: %w", err)
	}
	return deleted, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
