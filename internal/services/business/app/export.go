package app

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/vmitra/vmitra/internal/services/business/money"
)

var exportHeader = []string{"id", "date", "payment", "items", "total", "cost", "profit"}

// ExportSales writes the sale history as CSV, newest first. Dates are
// rendered in the shop's timezone.
func (s *Service) ExportSales(ctx context.Context, w io.Writer) (err error) {
	ctx, span := startSpan(ctx, "ExportSales")
	defer func() { endSpan(span, err) }()

	records, err := s.store.ListSales(ctx, "")
	if err != nil {
		return fmt.Errorf("load sales: %w", err)
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, record := range records {
		lines := make([]string, 0, len(record.Items))
		for _, line := range record.Items {
			lines = append(lines, fmt.Sprintf("%s x%d", line.Name, line.Quantity))
		}
		row := []string{
			record.ID,
			record.Date.In(s.location).Format(time.RFC3339),
			string(record.PaymentMethod),
			strings.Join(lines, "; "),
			rupees(record.TotalAmount),
			rupees(record.TotalCost),
			rupees(record.Profit()),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func rupees(m money.Money) string {
	return strconv.FormatFloat(m.Rupees(), 'f', 2, 64)
}
