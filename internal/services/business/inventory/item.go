// Package inventory models shop stock and its adjustment ledger.
package inventory

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/vmitra/vmitra/internal/platform/errors"
	"github.com/vmitra/vmitra/internal/platform/id"
	"github.com/vmitra/vmitra/internal/services/business/money"
)

var (
	// ErrEmptyName indicates a missing item name.
	ErrEmptyName = apperrors.New(apperrors.CodeItemEmptyName, "item name is required")
	// ErrNegativeStock indicates a stock level below zero.
	ErrNegativeStock = apperrors.New(apperrors.CodeItemNegativeStock, "stock cannot be negative")
	// ErrNegativePrice indicates a negative selling or cost price.
	ErrNegativePrice = apperrors.New(apperrors.CodeItemNegativePrice, "price cannot be negative")
)

// Item is a stocked product.
type Item struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Category  string      `json:"category"`
	Stock     int         `json:"stock"`
	Unit      string      `json:"unit"`
	Price     money.Money `json:"price"`
	CostPrice money.Money `json:"costPrice"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// CatalogName returns the name used for matching.
func (i Item) CatalogName() string {
	return i.Name
}

// Low reports whether the stock sits under threshold.
func (i Item) Low(threshold int) bool {
	return i.Stock < threshold
}

// ItemInput describes a create or update request.
type ItemInput struct {
	ID        string
	Name      string
	Category  string
	Stock     int
	Unit      string
	Price     money.Money
	CostPrice money.Money
}

// NormalizeItemInput trims fields and enforces item constraints.
func NormalizeItemInput(input ItemInput) (ItemInput, error) {
	input.ID = strings.TrimSpace(input.ID)
	input.Name = strings.TrimSpace(input.Name)
	input.Category = strings.TrimSpace(input.Category)
	input.Unit = strings.TrimSpace(input.Unit)
	if input.Name == "" {
		return ItemInput{}, ErrEmptyName
	}
	if input.Stock < 0 {
		return ItemInput{}, ErrNegativeStock
	}
	if input.Price < 0 || input.CostPrice < 0 {
		return ItemInput{}, ErrNegativePrice
	}
	if input.Category == "" {
		input.Category = "General"
	}
	if input.Unit == "" {
		input.Unit = "pcs"
	}
	return input, nil
}

// CreateItem builds a new item from validated input. An ID in the input
// is kept so seeded catalogs stay stable.
func CreateItem(input ItemInput, now func() time.Time, idGenerator func() (string, error)) (Item, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeItemInput(input)
	if err != nil {
		return Item{}, err
	}

	itemID := normalized.ID
	if itemID == "" {
		itemID, err = idGenerator()
		if err != nil {
			return Item{}, fmt.Errorf("generate item id: %w", err)
		}
	}

	createdAt := now().UTC()
	return Item{
		ID:        itemID,
		Name:      normalized.Name,
		Category:  normalized.Category,
		Stock:     normalized.Stock,
		Unit:      normalized.Unit,
		Price:     normalized.Price,
		CostPrice: normalized.CostPrice,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}, nil
}

// Apply returns a copy of existing with the input's editable fields.
func Apply(existing Item, input ItemInput, now func() time.Time) (Item, error) {
	if now == nil {
		now = time.Now
	}
	normalized, err := NormalizeItemInput(input)
	if err != nil {
		return Item{}, err
	}
	existing.Name = normalized.Name
	existing.Category = normalized.Category
	existing.Stock = normalized.Stock
	existing.Unit = normalized.Unit
	existing.Price = normalized.Price
	existing.CostPrice = normalized.CostPrice
	existing.UpdatedAt = now().UTC()
	return existing, nil
}
