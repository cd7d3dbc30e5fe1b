package inventory

import (
	"fmt"
	"strings"

	apperrors "github.com/vmitra/vmitra/internal/platform/errors"
	"github.com/vmitra/vmitra/internal/services/business/matcher"
)

const (
	// MessageRestocked confirms a stock update.
	MessageRestocked = "Stock update ho gaya!"
	// RestockNote labels restock adjustments.
	RestockNote = "Restock"
)

// ErrRestockNoMatch indicates no restock request matched an item.
var ErrRestockNoMatch = apperrors.New(apperrors.CodeRestockNoMatch, "Samaan nahi mila.")

// RestockRequest adds Quantity units to the item matching Name.
type RestockRequest struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// RestockPlan holds one entry per applied request, in request order: the
// item's stock after that request and the quantity it added. An item named
// twice appears twice.
type RestockPlan struct {
	Items     []Item
	Changes   []int
	Unmatched []string
}

// PlanRestock matches requests with the same rules as sales and adds stock.
func PlanRestock(requests []RestockRequest, items []Item, m *matcher.Matcher) (RestockPlan, error) {
	if len(requests) == 0 {
		return RestockPlan{}, apperrors.New(apperrors.CodeRestockInvalidRequest, "at least one item is required")
	}
	for i, req := range requests {
		if strings.TrimSpace(req.Name) == "" || req.Quantity <= 0 {
			return RestockPlan{}, apperrors.New(apperrors.CodeRestockInvalidRequest, fmt.Sprintf("item %d: name and positive quantity are required", i+1))
		}
	}
	if m == nil {
		m = matcher.New(nil)
	}

	working := make([]Item, len(items))
	copy(working, items)

	var plan RestockPlan
	for _, req := range requests {
		index := matcher.FindFirst(m, req.Name, working)
		if index < 0 {
			plan.Unmatched = append(plan.Unmatched, strings.TrimSpace(req.Name))
			continue
		}
		working[index].Stock += req.Quantity
		plan.Items = append(plan.Items, working[index])
		plan.Changes = append(plan.Changes, req.Quantity)
	}
	if len(plan.Items) == 0 {
		return RestockPlan{}, ErrRestockNoMatch
	}
	return plan, nil
}
