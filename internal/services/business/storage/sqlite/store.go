package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/vmitra/vmitra/internal/platform/id"
	sqlitemigrate "github.com/vmitra/vmitra/internal/platform/storage/sqlitemigrate"
	"github.com/vmitra/vmitra/internal/services/business/inventory"
	"github.com/vmitra/vmitra/internal/services/business/storage"
	"github.com/vmitra/vmitra/internal/services/business/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

var _ storage.Store = (*Store)(nil)

// Store persists business state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// likePattern wraps a search term for a LIKE ... ESCAPE '\' clause.
func likePattern(term string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(strings.TrimSpace(term)) + "%"
}

// Open opens a SQLite business store and applies embedded migrations.
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

// OpeningBalanceNote marks the adjustment that replaces pruned history.
const OpeningBalanceNote = "Opening balance"

// Prune removes chat sessions and stock adjustments dated before the
// cutoff. Each item's pruned adjustments are folded into one Correction
// dated at the cutoff, so the ledger still sums to the stock change. A
// dry run only counts.
func (s *Store) Prune(ctx context.Context, before time.Time, dryRun bool) (storage.PruneCounts, error) {
	if err := s.ready(ctx); err != nil {
		return storage.PruneCounts{}, err
	}
	if before.IsZero() {
		return storage.PruneCounts{}, fmt.Errorf("cutoff is required")
	}
	cutoff := toMillis(before)

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.PruneCounts{}, fmt.Errorf("begin prune: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var counts storage.PruneCounts
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_sessions WHERE date < ?`, cutoff).Scan(&counts.ChatSessions); err != nil {
		return storage.PruneCounts{}, fmt.Errorf("count chat sessions: %w", err)
	}
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM stock_adjustments WHERE date < ?`, cutoff).Scan(&counts.Adjustments); err != nil {
		return storage.PruneCounts{}, fmt.Errorf("count adjustments: %w", err)
	}
	if dryRun {
		return counts, nil
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_messages WHERE session_id IN (SELECT id FROM chat_sessions WHERE date < ?)`, cutoff); err != nil {
		return storage.PruneCounts{}, fmt.Errorf("prune chat messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_sessions WHERE date < ?`, cutoff); err != nil {
		return storage.PruneCounts{}, fmt.Errorf("prune chat sessions: %w", err)
	}
	balances, err := openingBalances(ctx, tx, cutoff)
	if err != nil {
		return storage.PruneCounts{}, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM stock_adjustments WHERE date < ?`, cutoff); err != nil {
		return storage.PruneCounts{}, fmt.Errorf("prune adjustments: %w", err)
	}
	for _, balance := range balances {
		adjustmentID, err := id.NewID()
		if err != nil {
			return storage.PruneCounts{}, fmt.Errorf("opening balance id: %w", err)
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO stock_adjustments (id, item_id, date, change, type, new_stock, note)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			adjustmentID, balance.itemID, cutoff, balance.change, string(inventory.AdjustmentCorrection), balance.newStock, OpeningBalanceNote,
		); err != nil {
			return storage.PruneCounts{}, fmt.Errorf("write opening balance for %s: %w", balance.itemID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return storage.PruneCounts{}, fmt.Errorf("commit prune: %w", err)
	}
	return counts, nil
}

type openingBalance struct {
	itemID   string
	change   int
	newStock int
}

// openingBalances sums the adjustments older than cutoff per item, with
// the stock level after the newest of them. Net-zero items are skipped.
func openingBalances(ctx context.Context, q querier, cutoff int64) ([]openingBalance, error) {
	rows, err := q.QueryContext(
		ctx,
		`SELECT a.item_id, SUM(a.change),
		        (SELECT b.new_stock FROM stock_adjustments b
		         WHERE b.item_id = a.item_id AND b.date < ?
		         ORDER BY b.date DESC, b.rowid DESC LIMIT 1)
		 FROM stock_adjustments a
		 WHERE a.date < ?
		 GROUP BY a.item_id
		 ORDER BY a.item_id`,
		cutoff, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("sum pruned adjustments: %w", err)
	}
	defer rows.Close()

	var balances []openingBalance
	for rows.Next() {
		var balance openingBalance
		if err := rows.Scan(&balance.itemID, &balance.change, &balance.newStock); err != nil {
			return nil, fmt.Errorf("scan pruned adjustments: %w", err)
		}
		if balance.change != 0 {
			balances = append(balances, balance)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pruned adjustments: %w", err)
	}
	return balances, nil
}
