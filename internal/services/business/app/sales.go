package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vmitra/vmitra/internal/services/business/activity"
	"github.com/vmitra/vmitra/internal/services/business/inventory"
	"github.com/vmitra/vmitra/internal/services/business/money"
	"github.com/vmitra/vmitra/internal/services/business/sale"
	"github.com/vmitra/vmitra/internal/services/business/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// DeleteSaleNote labels the correction written when a bill is removed.
const DeleteSaleNote = "Bill cancel"

// SaleResult reports a recorded bill.
type SaleResult struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Amount    money.Money `json:"amount"`
	Profit    money.Money `json:"profit"`
	Sale      sale.Sale   `json:"sale"`
	Unmatched []string    `json:"unmatched,omitempty"`
}

// RecordSale bills the requested items against current stock. Each
// request sells at most what is in stock. The bill, stock deductions,
// ledger rows, and activity entry commit together.
func (s *Service) RecordSale(ctx context.Context, requests []sale.Request, paymentMethod string) (result SaleResult, err error) {
	ctx, span := startSpan(ctx, "RecordSale")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.Int("sale.requests", len(requests)))

	method, err := sale.ParsePaymentMethod(paymentMethod)
	if err != nil {
		return SaleResult{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	items, err := s.store.ListItems(ctx, "")
	if err != nil {
		return SaleResult{}, fmt.Errorf("load inventory: %w", err)
	}
	plan, err := sale.PlanSale(requests, items, s.matcher)
	if err != nil {
		return SaleResult{}, err
	}

	record, err := sale.NewSale(plan, method, s.now, s.newID)
	if err != nil {
		return SaleResult{}, err
	}
	adjustments := make([]inventory.Adjustment, 0, len(plan.Items))
	for i, item := range plan.Items {
		adj, err := inventory.NewAdjustment(item, plan.Changes[i], inventory.AdjustmentSale, sale.AdjustmentNote, s.now, s.newID)
		if err != nil {
			return SaleResult{}, err
		}
		adjustments = append(adjustments, adj)
	}
	entry, err := activity.New(activity.TypeSale, activity.SaleText(record.Names()), record.TotalAmount, s.now, s.newID)
	if err != nil {
		return SaleResult{}, err
	}

	if err := s.store.Commit(ctx, storage.Mutation{
		Sale:        &record,
		Adjustments: adjustments,
		Activity:    &entry,
		At:          record.Date,
	}); err != nil {
		return SaleResult{}, fmt.Errorf("commit sale: %w", err)
	}

	span.SetAttributes(
		attribute.String("sale.id", record.ID),
		attribute.Int64("sale.amount_paise", int64(record.TotalAmount)),
	)
	s.logger.Info("sale recorded",
		zap.String("sale_id", record.ID),
		zap.Int("lines", len(record.Items)),
		zap.Stringer("amount", record.TotalAmount),
		zap.String("payment_method", string(record.PaymentMethod)),
		zap.Strings("unmatched", plan.Unmatched),
	)
	return SaleResult{
		Success:   true,
		Message:   sale.MessageSaved,
		Amount:    record.TotalAmount,
		Profit:    record.Profit(),
		Sale:      record,
		Unmatched: plan.Unmatched,
	}, nil
}

// ListSales returns bills newest first, optionally filtered.
func (s *Service) ListSales(ctx context.Context, search string) (sales []sale.Sale, err error) {
	ctx, span := startSpan(ctx, "ListSales")
	defer func() { endSpan(span, err) }()
	return s.store.ListSales(ctx, strings.TrimSpace(search))
}

// GetSale returns one bill.
func (s *Service) GetSale(ctx context.Context, saleID string) (sale.Sale, error) {
	return s.store.GetSale(ctx, strings.TrimSpace(saleID))
}

// DeleteSale removes a bill and returns its quantities to stock. Lines
// whose item has since been deleted are skipped.
func (s *Service) DeleteSale(ctx context.Context, saleID string) (err error) {
	ctx, span := startSpan(ctx, "DeleteSale")
	defer func() { endSpan(span, err) }()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	record, err := s.store.GetSale(ctx, strings.TrimSpace(saleID))
	if err != nil {
		return err
	}

	stock := make(map[string]inventory.Item)
	adjustments := make([]inventory.Adjustment, 0, len(record.Items))
	for _, line := range record.Items {
		item, ok := stock[line.ItemID]
		if !ok {
			item, err = s.store.GetItem(ctx, line.ItemID)
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("load item %s: %w", line.ItemID, err)
			}
		}
		item.Stock += line.Quantity
		stock[line.ItemID] = item
		adj, err := inventory.NewAdjustment(item, line.Quantity, inventory.AdjustmentCorrection, DeleteSaleNote, s.now, s.newID)
		if err != nil {
			return err
		}
		adjustments = append(adjustments, adj)
	}
	entry, err := activity.New(activity.TypeCorrection, fmt.Sprintf("%s: %s", DeleteSaleNote, record.ID), -record.TotalAmount, s.now, s.newID)
	if err != nil {
		return err
	}

	if err := s.store.Commit(ctx, storage.Mutation{
		DeleteSaleID: record.ID,
		Adjustments:  adjustments,
		Activity:     &entry,
		At:           s.now(),
	}); err != nil {
		return fmt.Errorf("delete sale: %w", err)
	}
	s.logger.Info("sale deleted", zap.String("sale_id", record.ID), zap.Int("restored_lines", len(adjustments)))
	return nil
}
