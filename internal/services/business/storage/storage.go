// Package storage defines persistence contracts for the business ledger.
package storage

import (
	"context"
	"time"

	"github.com/vmitra/vmitra/internal/platform/errors"
	"github.com/vmitra/vmitra/internal/services/business/activity"
	"github.com/vmitra/vmitra/internal/services/business/history"
	"github.com/vmitra/vmitra/internal/services/business/inventory"
	"github.com/vmitra/vmitra/internal/services/business/sale"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New(errors.CodeNotFound, "record not found")

// ErrStockConflict indicates a stock change would drive an item negative
// or targets an item that no longer exists.
var ErrStockConflict = errors.New(errors.CodeSaleOutOfStock, "stock changed concurrently")

// ItemStore persists inventory items and their adjustment ledger.
type ItemStore interface {
	PutItem(ctx context.Context, item inventory.Item) error
	GetItem(ctx context.Context, itemID string) (inventory.Item, error)
	// ListItems returns items ordered by name then ID. A non-empty search
	// filters by case-insensitive substring of name or category.
	ListItems(ctx context.Context, search string) ([]inventory.Item, error)
	DeleteItem(ctx context.Context, itemID string) error
	// ListAdjustments returns the item's adjustments, newest first.
	ListAdjustments(ctx context.Context, itemID string) ([]inventory.Adjustment, error)
}

// Mutation is one atomic ledger write. Item, when set, is upserted before
// the adjustments run, so its Stock must be the level they start from.
// Each adjustment's Change is added to its item's stock under a
// non-negative guard.
type Mutation struct {
	Item         *inventory.Item
	Sale         *sale.Sale
	DeleteSaleID string
	Adjustments  []inventory.Adjustment
	Activity     *activity.Entry
	At           time.Time
}

// SaleStore persists completed bills.
type SaleStore interface {
	Commit(ctx context.Context, mutation Mutation) error
	GetSale(ctx context.Context, saleID string) (sale.Sale, error)
	// ListSales returns sales newest first. A non-empty search matches the
	// sale ID or any line name.
	ListSales(ctx context.Context, search string) ([]sale.Sale, error)
	// ListSalesBetween returns sales dated in [from, to).
	ListSalesBetween(ctx context.Context, from time.Time, to time.Time) ([]sale.Sale, error)
	CountSales(ctx context.Context) (int, error)
}

// ActivityStore reads the recent-activity feed.
type ActivityStore interface {
	ListActivity(ctx context.Context, limit int) ([]activity.Entry, error)
}

// HistoryStore persists saved assistant conversations.
type HistoryStore interface {
	PutChatSession(ctx context.Context, session history.ChatSession) error
	GetChatSession(ctx context.Context, sessionID string) (history.ChatSession, error)
	// ListChatSessions returns sessions newest first.
	ListChatSessions(ctx context.Context) ([]history.ChatSession, error)
	DeleteChatSession(ctx context.Context, sessionID string) error
	ClearChatSessions(ctx context.Context) error
	SetMessageFeedback(ctx context.Context, sessionID string, messageID string, feedback history.Feedback) error
}

// PruneCounts reports rows removed, or that would be removed, by a prune.
type PruneCounts struct {
	ChatSessions int
	Adjustments  int
}

// Pruner removes history older than a cutoff.
type Pruner interface {
	Prune(ctx context.Context, before time.Time, dryRun bool) (PruneCounts, error)
}

// Store is the full business persistence surface.
type Store interface {
	ItemStore
	SaleStore
	ActivityStore
	HistoryStore
	Pruner
}
