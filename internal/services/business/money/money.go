// Package money represents rupee amounts as integer paise.
package money

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/vmitra/vmitra/internal/platform/i18n"
)

// Money is an amount in paise. JSON carries it as a rupee number.
type Money int64

// FromRupees converts a rupee amount, rounding to the nearest paisa.
func FromRupees(rupees float64) Money {
	return Money(math.Round(rupees * 100))
}

// Rupees returns the amount as a rupee float.
func (m Money) Rupees() float64 {
	return float64(m) / 100
}

// Times multiplies the amount by a quantity.
func (m Money) Times(quantity int) Money {
	return m * Money(quantity)
}

// String renders the amount as "₹1,234" or "₹1,234.50".
func (m Money) String() string {
	sign := ""
	value := int64(m)
	if value < 0 {
		sign = "-"
		value = -value
	}
	printer := i18n.Printer()
	rupees, paise := value/100, value%100
	if paise == 0 {
		return printer.Sprintf("%s₹%d", sign, rupees)
	}
	return printer.Sprintf("%s₹%d.%02d", sign, rupees, paise)
}

// MarshalJSON encodes the amount in rupees.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Rupees())
}

// UnmarshalJSON decodes a rupee number.
func (m *Money) UnmarshalJSON(data []byte) error {
	var rupees float64
	if err := json.Unmarshal(data, &rupees); err != nil {
		return fmt.Errorf("decode money: %w", err)
	}
	*m = FromRupees(rupees)
	return nil
}
