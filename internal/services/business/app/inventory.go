package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/vmitra/vmitra/internal/platform/errors"
	"github.com/vmitra/vmitra/internal/services/business/activity"
	"github.com/vmitra/vmitra/internal/services/business/inventory"
	"github.com/vmitra/vmitra/internal/services/business/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// RestockResult reports a stock top-up.
type RestockResult struct {
	Success   bool             `json:"success"`
	Message   string           `json:"message"`
	Items     []inventory.Item `json:"items"`
	Unmatched []string         `json:"unmatched,omitempty"`
}

// Restock adds the requested quantities to matching items.
func (s *Service) Restock(ctx context.Context, requests []inventory.RestockRequest) (result RestockResult, err error) {
	ctx, span := startSpan(ctx, "Restock")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.Int("restock.requests", len(requests)))

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	items, err := s.store.ListItems(ctx, "")
	if err != nil {
		return RestockResult{}, fmt.Errorf("load inventory: %w", err)
	}
	plan, err := inventory.PlanRestock(requests, items, s.matcher)
	if err != nil {
		return RestockResult{}, err
	}

	adjustments := make([]inventory.Adjustment, 0, len(plan.Items))
	names := make([]string, 0, len(plan.Items))
	latest := make(map[string]int, len(plan.Items))
	for i, item := range plan.Items {
		adj, err := inventory.NewAdjustment(item, plan.Changes[i], inventory.AdjustmentRestock, inventory.RestockNote, s.now, s.newID)
		if err != nil {
			return RestockResult{}, err
		}
		adjustments = append(adjustments, adj)
		if _, seen := latest[item.ID]; !seen {
			names = append(names, item.Name)
		}
		latest[item.ID] = i
	}
	entry, err := activity.New(activity.TypeRestock, activity.RestockText(names), 0, s.now, s.newID)
	if err != nil {
		return RestockResult{}, err
	}

	if err := s.store.Commit(ctx, storage.Mutation{Adjustments: adjustments, Activity: &entry, At: s.now()}); err != nil {
		return RestockResult{}, fmt.Errorf("commit restock: %w", err)
	}

	updated := make([]inventory.Item, 0, len(latest))
	for i, item := range plan.Items {
		if latest[item.ID] == i {
			item.UpdatedAt = entry.Time
			updated = append(updated, item)
		}
	}
	s.logger.Info("stock restocked", zap.Strings("items", names), zap.Strings("unmatched", plan.Unmatched))
	return RestockResult{
		Success:   true,
		Message:   inventory.MessageRestocked,
		Items:     updated,
		Unmatched: plan.Unmatched,
	}, nil
}

// AdjustStock sets an item's stock directly and records a correction.
func (s *Service) AdjustStock(ctx context.Context, itemID string, newStock int, note string) (item inventory.Item, err error) {
	ctx, span := startSpan(ctx, "AdjustStock")
	defer func() { endSpan(span, err) }()

	if newStock < 0 {
		return inventory.Item{}, inventory.ErrNegativeStock
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	item, err = s.store.GetItem(ctx, strings.TrimSpace(itemID))
	if err != nil {
		return inventory.Item{}, err
	}
	change := newStock - item.Stock
	if change == 0 {
		return item, nil
	}
	item.Stock = newStock
	if err := s.commitCorrection(ctx, item, change, note, nil); err != nil {
		return inventory.Item{}, err
	}
	item.UpdatedAt = s.now()
	return item, nil
}

// commitCorrection records change as a Correction. A non-nil fields edit is
// written in the same transaction.
func (s *Service) commitCorrection(ctx context.Context, item inventory.Item, change int, note string, fields *inventory.Item) error {
	if strings.TrimSpace(note) == "" {
		note = "Stock theek kiya"
	}
	adj, err := inventory.NewAdjustment(item, change, inventory.AdjustmentCorrection, note, s.now, s.newID)
	if err != nil {
		return err
	}
	entry, err := activity.New(activity.TypeCorrection, fmt.Sprintf("Stock theek kiya: %s (%+d)", item.Name, change), 0, s.now, s.newID)
	if err != nil {
		return err
	}
	if err := s.store.Commit(ctx, storage.Mutation{
		Item:        fields,
		Adjustments: []inventory.Adjustment{adj},
		Activity:    &entry,
		At:          adj.Date,
	}); err != nil {
		return fmt.Errorf("commit correction: %w", err)
	}
	s.logger.Info("stock corrected", zap.String("item_id", item.ID), zap.Int("change", change), zap.Int("stock", item.Stock))
	return nil
}

// ListInventory returns items, optionally filtered by name or category.
func (s *Service) ListInventory(ctx context.Context, search string) (items []inventory.Item, err error) {
	ctx, span := startSpan(ctx, "ListInventory")
	defer func() { endSpan(span, err) }()
	return s.store.ListItems(ctx, strings.TrimSpace(search))
}

// LowStock returns items under threshold, or the configured threshold
// when threshold is not positive.
func (s *Service) LowStock(ctx context.Context, threshold int) ([]inventory.Item, error) {
	if threshold <= 0 {
		threshold = s.threshold
	}
	items, err := s.store.ListItems(ctx, "")
	if err != nil {
		return nil, err
	}
	low := make([]inventory.Item, 0)
	for _, item := range items {
		if item.Low(threshold) {
			low = append(low, item)
		}
	}
	return low, nil
}

// GetItem returns one item.
func (s *Service) GetItem(ctx context.Context, itemID string) (inventory.Item, error) {
	return s.store.GetItem(ctx, strings.TrimSpace(itemID))
}

// PutItem creates an item, or updates it when the ID exists. A stock
// change on update is recorded as a correction.
func (s *Service) PutItem(ctx context.Context, input inventory.ItemInput) (item inventory.Item, err error) {
	ctx, span := startSpan(ctx, "PutItem")
	defer func() { endSpan(span, err) }()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.putItem(ctx, input)
}

func (s *Service) putItem(ctx context.Context, input inventory.ItemInput) (inventory.Item, error) {
	itemID := strings.TrimSpace(input.ID)
	if itemID != "" {
		existing, err := s.store.GetItem(ctx, itemID)
		switch {
		case err == nil:
			return s.updateItem(ctx, existing, input)
		case !errors.Is(err, storage.ErrNotFound):
			return inventory.Item{}, err
		}
	}

	item, err := inventory.CreateItem(input, s.now, s.newID)
	if err != nil {
		return inventory.Item{}, err
	}
	if err := s.store.PutItem(ctx, item); err != nil {
		return inventory.Item{}, err
	}
	s.logger.Info("item created", zap.String("item_id", item.ID), zap.String("name", item.Name))
	return item, nil
}

func (s *Service) updateItem(ctx context.Context, existing inventory.Item, input inventory.ItemInput) (inventory.Item, error) {
	updated, err := inventory.Apply(existing, input, s.now)
	if err != nil {
		return inventory.Item{}, err
	}
	change := updated.Stock - existing.Stock

	fields := updated
	fields.Stock = existing.Stock
	if change == 0 {
		if err := s.store.PutItem(ctx, fields); err != nil {
			return inventory.Item{}, err
		}
		return updated, nil
	}
	if err := s.commitCorrection(ctx, updated, change, "Item edit", &fields); err != nil {
		return inventory.Item{}, err
	}
	return updated, nil
}

// DeleteItem removes an item and its ledger.
func (s *Service) DeleteItem(ctx context.Context, itemID string) (err error) {
	ctx, span := startSpan(ctx, "DeleteItem")
	defer func() { endSpan(span, err) }()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.store.DeleteItem(ctx, strings.TrimSpace(itemID)); err != nil {
		return err
	}
	s.logger.Info("item deleted", zap.String("item_id", itemID))
	return nil
}

// ItemHistory returns an item's stock movements, newest first.
func (s *Service) ItemHistory(ctx context.Context, itemID string) ([]inventory.Adjustment, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return nil, apperrors.New(apperrors.CodeInvalidRequest, "item id is required")
	}
	if _, err := s.store.GetItem(ctx, itemID); err != nil {
		return nil, err
	}
	return s.store.ListAdjustments(ctx, itemID)
}
