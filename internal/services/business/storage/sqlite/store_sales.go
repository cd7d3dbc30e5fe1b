package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vmitra/vmitra/internal/services/business/activity"
	"github.com/vmitra/vmitra/internal/services/business/money"
	"github.com/vmitra/vmitra/internal/services/business/sale"
	"github.com/vmitra/vmitra/internal/services/business/storage"
)

const saleColumns = `id, date, total_amount, total_cost, payment_method`

// Commit writes an item edit, a sale, its stock movements, and its activity
// entry in one transaction. Any failure rolls the whole mutation back.
func (s *Store) Commit(ctx context.Context, mutation storage.Mutation) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	at := mutation.At
	if at.IsZero() {
		at = time.Now()
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if id := strings.TrimSpace(mutation.DeleteSaleID); id != "" {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sale_lines WHERE sale_id = ?`, id); err != nil {
			return fmt.Errorf("delete sale lines: %w", err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM sales WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete sale: %w", err)
		}
		if affected, err := result.RowsAffected(); err != nil {
			return fmt.Errorf("delete sale: %w", err)
		} else if affected == 0 {
			return storage.ErrNotFound
		}
	}

	if mutation.Item != nil {
		item := *mutation.Item
		item.ID = strings.TrimSpace(item.ID)
		if item.ID == "" || strings.TrimSpace(item.Name) == "" {
			return fmt.Errorf("item id and name are required")
		}
		if err := putItem(ctx, tx, item); err != nil {
			return err
		}
	}

	if mutation.Sale != nil {
		if err := insertSale(ctx, tx, *mutation.Sale); err != nil {
			return err
		}
	}

	for _, adj := range mutation.Adjustments {
		result, err := tx.ExecContext(
			ctx,
			`UPDATE items SET stock = stock + ?, updated_at = ?
			 WHERE id = ? AND stock + ? >= 0`,
			adj.Change,
			toMillis(at),
			adj.ItemID,
			adj.Change,
		)
		if err != nil {
			return fmt.Errorf("update stock for %s: %w", adj.ItemID, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("update stock for %s: %w", adj.ItemID, err)
		}
		if affected == 0 {
			return storage.ErrStockConflict
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO stock_adjustments (id, item_id, date, change, type, new_stock, note)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			adj.ID,
			adj.ItemID,
			toMillis(adj.Date),
			adj.Change,
			string(adj.Type),
			adj.NewStock,
			adj.Note,
		); err != nil {
			return fmt.Errorf("insert adjustment: %w", err)
		}
	}

	if mutation.Activity != nil {
		if err := insertActivity(ctx, tx, *mutation.Activity); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertSale(ctx context.Context, q querier, record sale.Sale) error {
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("sale id is required")
	}
	if _, err := q.ExecContext(
		ctx,
		`INSERT INTO sales (`+saleColumns+`) VALUES (?, ?, ?, ?, ?)`,
		record.ID,
		toMillis(record.Date),
		int64(record.TotalAmount),
		int64(record.TotalCost),
		string(record.PaymentMethod),
	); err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}
	for position, line := range record.Items {
		if _, err := q.ExecContext(
			ctx,
			`INSERT INTO sale_lines (sale_id, position, item_id, name, quantity, price, cost_price)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			record.ID,
			position,
			line.ItemID,
			line.Name,
			line.Quantity,
			int64(line.Price),
			int64(line.CostPrice),
		); err != nil {
			return fmt.Errorf("insert sale line: %w", err)
		}
	}
	return nil
}

func insertActivity(ctx context.Context, q querier, entry activity.Entry) error {
	if _, err := q.ExecContext(
		ctx,
		`INSERT INTO activity (id, type, text, amount, time) VALUES (?, ?, ?, ?, ?)`,
		entry.ID,
		string(entry.Type),
		entry.Text,
		int64(entry.Amount),
		toMillis(entry.Time),
	); err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// GetSale returns one sale with its lines.
func (s *Store) GetSale(ctx context.Context, saleID string) (sale.Sale, error) {
	if err := s.ready(ctx); err != nil {
		return sale.Sale{}, err
	}
	saleID = strings.TrimSpace(saleID)
	if saleID == "" {
		return sale.Sale{}, fmt.Errorf("sale id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = ?`, saleID)
	record, err := scanSale(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sale.Sale{}, storage.ErrNotFound
		}
		return sale.Sale{}, fmt.Errorf("get sale: %w", err)
	}
	if record.Items, err = s.saleLines(ctx, record.ID); err != nil {
		return sale.Sale{}, err
	}
	return record, nil
}

// ListSales returns sales newest first, optionally filtered by ID or line name.
func (s *Store) ListSales(ctx context.Context, search string) ([]sale.Sale, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if strings.TrimSpace(search) == "" {
		return s.querySales(ctx, `SELECT `+saleColumns+` FROM sales ORDER BY date DESC, id DESC`)
	}
	pattern := likePattern(search)
	return s.querySales(
		ctx,
		`SELECT `+saleColumns+`
		 FROM sales s
		 WHERE s.id LIKE ? ESCAPE '\'
		    OR EXISTS (
		      SELECT 1 FROM sale_lines l
		      WHERE l.sale_id = s.id AND l.name LIKE ? ESCAPE '\'
		    )
		 ORDER BY date DESC, id DESC`,
		pattern,
		pattern,
	)
}

// ListSalesBetween returns sales dated in [from, to), newest first.
func (s *Store) ListSalesBetween(ctx context.Context, from time.Time, to time.Time) ([]sale.Sale, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if !to.After(from) {
		return nil, fmt.Errorf("sale range end must be after start")
	}
	return s.querySales(
		ctx,
		`SELECT `+saleColumns+` FROM sales WHERE date >= ? AND date < ? ORDER BY date DESC, id DESC`,
		toMillis(from),
		toMillis(to),
	)
}

// CountSales returns the number of recorded sales.
func (s *Store) CountSales(ctx context.Context) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	var count int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM sales`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count sales: %w", err)
	}
	return count, nil
}

func (s *Store) querySales(ctx context.Context, query string, args ...any) ([]sale.Sale, error) {
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	records := make([]sale.Sale, 0)
	for rows.Next() {
		record, err := scanSale(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("list sales: %w", err)
	}
	_ = rows.Close()

	for i := range records {
		if records[i].Items, err = s.saleLines(ctx, records[i].ID); err != nil {
			return nil, err
		}
	}
	return records, nil
}

func (s *Store) saleLines(ctx context.Context, saleID string) ([]sale.Line, error) {
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT item_id, name, quantity, price, cost_price
		 FROM sale_lines
		 WHERE sale_id = ?
		 ORDER BY position`,
		saleID,
	)
	if err != nil {
		return nil, fmt.Errorf("list sale lines: %w", err)
	}
	defer rows.Close()

	lines := make([]sale.Line, 0)
	for rows.Next() {
		var line sale.Line
		var price, costPrice int64
		if err := rows.Scan(&line.ItemID, &line.Name, &line.Quantity, &price, &costPrice); err != nil {
			return nil, fmt.Errorf("scan sale line: %w", err)
		}
		line.Price = money.Money(price)
		line.CostPrice = money.Money(costPrice)
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sale lines: %w", err)
	}
	return lines, nil
}

func scanSale(row rowScanner) (sale.Sale, error) {
	var record sale.Sale
	var date, totalAmount, totalCost int64
	var method string
	if err := row.Scan(&record.ID, &date, &totalAmount, &totalCost, &method); err != nil {
		return sale.Sale{}, err
	}
	record.Date = fromMillis(date)
	record.TotalAmount = money.Money(totalAmount)
	record.TotalCost = money.Money(totalCost)
	record.PaymentMethod = sale.PaymentMethod(method)
	return record, nil
}

// ListActivity returns the newest activity entries.
func (s *Store) ListActivity(ctx context.Context, limit int) ([]activity.Entry, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, type, text, amount, time FROM activity ORDER BY time DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	entries := make([]activity.Entry, 0, limit)
	for rows.Next() {
		var entry activity.Entry
		var kind string
		var amount, at int64
		if err := rows.Scan(&entry.ID, &kind, &entry.Text, &amount, &at); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		entry.Type = activity.Type(kind)
		entry.Amount = money.Money(amount)
		entry.Time = fromMillis(at)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return entries, nil
}
