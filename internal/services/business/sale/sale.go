// Package sale turns spoken sale requests into priced bills against the
// current inventory.
package sale

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/vmitra/vmitra/internal/platform/errors"
	"github.com/vmitra/vmitra/internal/platform/id"
	"github.com/vmitra/vmitra/internal/services/business/inventory"
	"github.com/vmitra/vmitra/internal/services/business/matcher"
	"github.com/vmitra/vmitra/internal/services/business/money"
)

const (
	// MessageNoMatch is shown when no request names a known item.
	MessageNoMatch = "Samaan nahi mila."
	// MessageOutOfStock is shown when every matched item has run out.
	MessageOutOfStock = "Samaan nahi mila ya stock khatam hai."
	// MessageSaved confirms a recorded bill.
	MessageSaved = "Bill save ho gaya!"
	// AdjustmentNote labels the stock movement written for each line.
	AdjustmentNote = "Bikri"
)

var (
	// ErrNoMatch indicates no request matched an inventory item.
	ErrNoMatch = apperrors.New(apperrors.CodeSaleNoMatch, MessageNoMatch)
	// ErrOutOfStock indicates matches were found but nothing could be sold.
	ErrOutOfStock = apperrors.New(apperrors.CodeSaleOutOfStock, MessageOutOfStock)
)

// PaymentMethod is how the customer paid.
type PaymentMethod string

const (
	PaymentCash PaymentMethod = "Cash"
	PaymentUPI  PaymentMethod = "UPI"
	PaymentCard PaymentMethod = "Card"
)

// ParsePaymentMethod accepts a case-insensitive method name. Empty input
// yields PaymentCash.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return PaymentCash, nil
	}
	for _, method := range []PaymentMethod{PaymentCash, PaymentUPI, PaymentCard} {
		if strings.EqualFold(string(method), trimmed) {
			return method, nil
		}
	}
	return "", apperrors.New(apperrors.CodeSaleInvalidPayment, fmt.Sprintf("unknown payment method %q", value))
}

// Request is one spoken line of a sale: "2 cheeni".
type Request struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// ValidateRequests rejects empty lists, blank names, and non-positive
// quantities with code.
func ValidateRequests(requests []Request, code apperrors.Code) error {
	if len(requests) == 0 {
		return apperrors.New(code, "at least one item is required")
	}
	for i, req := range requests {
		if strings.TrimSpace(req.Name) == "" {
			return apperrors.New(code, fmt.Sprintf("item %d: name is required", i+1))
		}
		if req.Quantity <= 0 {
			return apperrors.New(code, fmt.Sprintf("item %d: quantity must be positive", i+1))
		}
	}
	return nil
}

// Line is a billed item. Prices are captured at the time of sale.
type Line struct {
	ItemID    string      `json:"itemId"`
	Name      string      `json:"name"`
	Quantity  int         `json:"quantity"`
	Price     money.Money `json:"price"`
	CostPrice money.Money `json:"costPrice"`
}

// Sale is a completed bill.
type Sale struct {
	ID            string        `json:"id"`
	Date          time.Time     `json:"date"`
	Items         []Line        `json:"items"`
	TotalAmount   money.Money   `json:"totalAmount"`
	TotalCost     money.Money   `json:"totalCost"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
}

// Profit is the bill total less its cost.
func (s Sale) Profit() money.Money {
	return s.TotalAmount - s.TotalCost
}

// Names lists line names in bill order.
func (s Sale) Names() []string {
	names := make([]string, 0, len(s.Items))
	for _, line := range s.Items {
		names = append(names, line.Name)
	}
	return names
}

// Plan is the outcome of matching requests against inventory. Lines, Items
// and Changes hold one entry per applied request, in request order: an item
// sold twice appears twice, each copy carrying the stock after that line.
type Plan struct {
	Lines     []Line
	Items     []inventory.Item
	Changes   []int
	Unmatched []string
}

// PlanSale matches each request to the first catalog item and deducts
// min(requested, stock). Items are not modified; callers persist the plan.
func PlanSale(requests []Request, items []inventory.Item, m *matcher.Matcher) (Plan, error) {
	if err := ValidateRequests(requests, apperrors.CodeSaleInvalidRequest); err != nil {
		return Plan{}, err
	}
	if m == nil {
		m = matcher.New(nil)
	}

	working := make([]inventory.Item, len(items))
	copy(working, items)

	var plan Plan
	matched := false
	for _, req := range requests {
		index := matcher.FindFirst(m, req.Name, working)
		if index < 0 {
			plan.Unmatched = append(plan.Unmatched, strings.TrimSpace(req.Name))
			continue
		}
		matched = true
		item := &working[index]
		quantity := min(req.Quantity, item.Stock)
		if quantity <= 0 {
			continue
		}
		item.Stock -= quantity
		plan.Lines = append(plan.Lines, Line{
			ItemID:    item.ID,
			Name:      item.Name,
			Quantity:  quantity,
			Price:     item.Price,
			CostPrice: item.CostPrice,
		})
		plan.Items = append(plan.Items, *item)
		plan.Changes = append(plan.Changes, -quantity)
	}

	if !matched {
		return Plan{}, ErrNoMatch
	}
	if len(plan.Lines) == 0 {
		return Plan{}, ErrOutOfStock
	}
	return plan, nil
}

// NewSale prices a plan into a bill.
func NewSale(plan Plan, method PaymentMethod, now func() time.Time, idGenerator func() (string, error)) (Sale, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	if len(plan.Lines) == 0 {
		return Sale{}, ErrOutOfStock
	}
	if method == "" {
		method = PaymentCash
	}

	saleID, err := idGenerator()
	if err != nil {
		return Sale{}, fmt.Errorf("generate sale id: %w", err)
	}

	result := Sale{
		ID:            "T" + saleID,
		Date:          now().UTC(),
		Items:         append([]Line(nil), plan.Lines...),
		PaymentMethod: method,
	}
	for _, line := range result.Items {
		result.TotalAmount += line.Price.Times(line.Quantity)
		result.TotalCost += line.CostPrice.Times(line.Quantity)
	}
	return result, nil
}
