package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/vmitra/vmitra/internal/services/business/inventory"
	"github.com/vmitra/vmitra/internal/services/business/money"
	"github.com/vmitra/vmitra/internal/services/business/storage"
)

const itemColumns = `id, name, category, stock, unit, price, cost_price, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// PutItem upserts an inventory item.
func (s *Store) PutItem(ctx context.Context, item inventory.Item) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	item.ID = strings.TrimSpace(item.ID)
	if item.ID == "" {
		return fmt.Errorf("item id is required")
	}
	if strings.TrimSpace(item.Name) == "" {
		return fmt.Errorf("item name is required")
	}
	return putItem(ctx, s.sqlDB, item)
}

func putItem(ctx context.Context, q querier, item inventory.Item) error {
	_, err := q.ExecContext(
		ctx,
		`INSERT INTO items (`+itemColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   category = excluded.category,
		   stock = excluded.stock,
		   unit = excluded.unit,
		   price = excluded.price,
		   cost_price = excluded.cost_price,
		   updated_at = excluded.updated_at`,
		item.ID,
		item.Name,
		item.Category,
		item.Stock,
		item.Unit,
		int64(item.Price),
		int64(item.CostPrice),
		toMillis(item.CreatedAt),
		toMillis(item.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

// GetItem returns one inventory item.
func (s *Store) GetItem(ctx context.Context, itemID string) (inventory.Item, error) {
	if err := s.ready(ctx); err != nil {
		return inventory.Item{}, err
	}
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return inventory.Item{}, fmt.Errorf("item id is required")
	}
	return getItem(ctx, s.sqlDB, itemID)
}

func getItem(ctx context.Context, q querier, itemID string) (inventory.Item, error) {
	row := q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, itemID)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return inventory.Item{}, storage.ErrNotFound
		}
		return inventory.Item{}, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// ListItems returns items by name, optionally filtered by name or category.
func (s *Store) ListItems(ctx context.Context, search string) ([]inventory.Item, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	var (
		rows *sql.Rows
		err  error
	)
	if strings.TrimSpace(search) == "" {
		rows, err = s.sqlDB.QueryContext(ctx, `SELECT `+itemColumns+` FROM items ORDER BY name COLLATE NOCASE, id`)
	} else {
		pattern := likePattern(search)
		rows, err = s.sqlDB.QueryContext(
			ctx,
			`SELECT `+itemColumns+`
			 FROM items
			 WHERE name LIKE ? ESCAPE '\' OR category LIKE ? ESCAPE '\'
			 ORDER BY name COLLATE NOCASE, id`,
			pattern,
			pattern,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := make([]inventory.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// DeleteItem removes an item and its adjustment ledger.
func (s *Store) DeleteItem(ctx context.Context, itemID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return fmt.Errorf("item id is required")
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete item: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM stock_adjustments WHERE item_id = ?`, itemID); err != nil {
		return fmt.Errorf("delete item adjustments: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, itemID)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete item: %w", err)
	}
	return nil
}

// ListAdjustments returns an item's stock movements, newest first.
func (s *Store) ListAdjustments(ctx context.Context, itemID string) ([]inventory.Adjustment, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return nil, fmt.Errorf("item id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, item_id, date, change, type, new_stock, note
		 FROM stock_adjustments
		 WHERE item_id = ?
		 ORDER BY date DESC, rowid DESC`,
		itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("list adjustments: %w", err)
	}
	defer rows.Close()

	adjustments := make([]inventory.Adjustment, 0)
	for rows.Next() {
		var adj inventory.Adjustment
		var date int64
		var kind string
		if err := rows.Scan(&adj.ID, &adj.ItemID, &date, &adj.Change, &kind, &adj.NewStock, &adj.Note); err != nil {
			return nil, fmt.Errorf("scan adjustment: %w", err)
		}
		adj.Date = fromMillis(date)
		adj.Type = inventory.AdjustmentType(kind)
		adjustments = append(adjustments, adj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list adjustments: %w", err)
	}
	return adjustments, nil
}

func scanItem(row rowScanner) (inventory.Item, error) {
	var item inventory.Item
	var price, costPrice int64
	var createdAt, updatedAt int64
	if err := row.Scan(
		&item.ID,
		&item.Name,
		&item.Category,
		&item.Stock,
		&item.Unit,
		&price,
		&costPrice,
		&createdAt,
		&updatedAt,
	); err != nil {
		return inventory.Item{}, err
	}
	item.Price = money.Money(price)
	item.CostPrice = money.Money(costPrice)
	item.CreatedAt = fromMillis(createdAt)
	item.UpdatedAt = fromMillis(updatedAt)
	return item, nil
}
