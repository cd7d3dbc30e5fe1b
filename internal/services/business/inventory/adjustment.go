package inventory

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/vmitra/vmitra/internal/platform/errors"
	"github.com/vmitra/vmitra/internal/platform/id"
)

// AdjustmentType names why stock changed.
type AdjustmentType string

const (
	AdjustmentSale       AdjustmentType = "Sale"
	AdjustmentRestock    AdjustmentType = "Restock"
	AdjustmentCorrection AdjustmentType = "Correction"
)

// Valid reports whether t is a known adjustment type.
func (t AdjustmentType) Valid() bool {
	switch t {
	case AdjustmentSale, AdjustmentRestock, AdjustmentCorrection:
		return true
	}
	return false
}

// Adjustment is one ledger row of stock movement.
type Adjustment struct {
	ID       string         `json:"id"`
	ItemID   string         `json:"itemId"`
	Date     time.Time      `json:"date"`
	Change   int            `json:"change"`
	Type     AdjustmentType `json:"type"`
	NewStock int            `json:"newStock"`
	Note     string         `json:"note,omitempty"`
}

// NewAdjustment records a stock change for item that has already been
// applied to item.Stock.
func NewAdjustment(item Item, change int, kind AdjustmentType, note string, now func() time.Time, idGenerator func() (string, error)) (Adjustment, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	if !kind.Valid() {
		return Adjustment{}, apperrors.New(apperrors.CodeItemInvalidAdjust, fmt.Sprintf("unknown adjustment type %q", kind))
	}
	if item.Stock < 0 {
		return Adjustment{}, ErrNegativeStock
	}
	adjID, err := idGenerator()
	if err != nil {
		return Adjustment{}, fmt.Errorf("generate adjustment id: %w", err)
	}
	return Adjustment{
		ID:       adjID,
		ItemID:   item.ID,
		Date:     now().UTC(),
		Change:   change,
		Type:     kind,
		NewStock: item.Stock,
		Note:     strings.TrimSpace(note),
	}, nil
}
