package app

import (
	"context"
	"fmt"
	"time"

	"github.com/vmitra/vmitra/internal/services/business/activity"
	"github.com/vmitra/vmitra/internal/services/business/money"
)

// Stats is the dashboard's daily snapshot.
type Stats struct {
	TodaySales       money.Money      `json:"todaySales"`
	TodayProfit      money.Money      `json:"todayProfit"`
	LowStockItems    []string         `json:"lowStockItems"`
	LowStockCount    int              `json:"lowStockCount"`
	TransactionCount int              `json:"transactionCount"`
	RecentActivity   []activity.Entry `json:"recentActivity"`
}

// Stats summarizes sales for the local calendar day containing now.
func (s *Service) Stats(ctx context.Context) (stats Stats, err error) {
	ctx, span := startSpan(ctx, "Stats")
	defer func() { endSpan(span, err) }()

	from, to := s.dayBounds(s.now())
	today, err := s.store.ListSalesBetween(ctx, from, to)
	if err != nil {
		return Stats{}, fmt.Errorf("load today's sales: %w", err)
	}
	for _, record := range today {
		stats.TodaySales += record.TotalAmount
		stats.TodayProfit += record.Profit()
	}

	low, err := s.LowStock(ctx, s.threshold)
	if err != nil {
		return Stats{}, fmt.Errorf("load low stock: %w", err)
	}
	stats.LowStockItems = make([]string, 0, len(low))
	for _, item := range low {
		stats.LowStockItems = append(stats.LowStockItems, item.Name)
	}
	stats.LowStockCount = len(low)

	if stats.TransactionCount, err = s.store.CountSales(ctx); err != nil {
		return Stats{}, fmt.Errorf("count sales: %w", err)
	}
	if stats.RecentActivity, err = s.store.ListActivity(ctx, s.recent); err != nil {
		return Stats{}, fmt.Errorf("load activity: %w", err)
	}
	return stats, nil
}

// dayBounds returns the UTC instants bounding the local day of t.
func (s *Service) dayBounds(t time.Time) (time.Time, time.Time) {
	local := t.In(s.location)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.location)
	return start.UTC(), start.AddDate(0, 0, 1).UTC()
}
