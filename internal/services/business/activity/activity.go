// Package activity records the dashboard's recent business events.
package activity

import (
	"fmt"
	"strings"
	"time"

	"github.com/vmitra/vmitra/internal/platform/id"
	"github.com/vmitra/vmitra/internal/services/business/money"
)

// Type classifies an activity entry.
type Type string

const (
	TypeSale       Type = "SALE"
	TypeRestock    Type = "RESTOCK"
	TypeCorrection Type = "CORRECTION"
)

// Entry is one line of the recent-activity feed.
type Entry struct {
	ID     string      `json:"id"`
	Type   Type        `json:"type"`
	Text   string      `json:"text"`
	Amount money.Money `json:"amount"`
	Time   time.Time   `json:"time"`
}

// New builds an entry stamped with now.
func New(kind Type, text string, amount money.Money, now func() time.Time, idGenerator func() (string, error)) (Entry, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	entryID, err := idGenerator()
	if err != nil {
		return Entry{}, fmt.Errorf("generate activity id: %w", err)
	}
	return Entry{
		ID:     entryID,
		Type:   kind,
		Text:   strings.TrimSpace(text),
		Amount: amount,
		Time:   now().UTC(),
	}, nil
}

// SaleText renders "Bikri: Atta, Sugar".
func SaleText(names []string) string {
	return "Bikri: " + strings.Join(names, ", ")
}

// RestockText renders "Stock aaya: Atta, Sugar".
func RestockText(names []string) string {
	return "Stock aaya: " + strings.Join(names, ", ")
}
