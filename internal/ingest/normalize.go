package ingest

import (
	"fmt"
	"iter"
	"time"

	"github.com/Brownbull/gabeda-backend/internal/apiserver/database"
)

// RowRejected is the per-row diagnostic for a row that could not become a transaction
type RowRejected struct {
	Row    int
	Field  Field
	Reason string
}

func (e *RowRejected) Error() string {
	return fmt.Sprintf("row %d: %s: %s", e.Row, e.Field, e.Reason)
}

// Diagnostic converts the rejection to its persisted form
func (e *RowRejected) Diagnostic() database.RowDiagnostic {
	return database.RowDiagnostic{Row: e.Row, Reason: fmt.Sprintf("%s: %s", e.Field, e.Reason)}
}

// Outcome is the result of normalizing one data row. Exactly one of Record and Rejection is set.
type Outcome struct {
	Row       int
	Record    *database.Transaction
	Rejection *RowRejected
}

// Normalizer turns raw rows into typed transaction records
type Normalizer struct {
	columns  *ColumnMap
	layouts  []string
	location *time.Location
}

// NewNormalizer builds a normalizer. A non-empty tenant date format is the only
// layout accepted; otherwise the fallback layouts are tried in order.
func NewNormalizer(columns *ColumnMap, dateFormat string, fallback []string) *Normalizer {
	layouts := fallback
	if dateFormat != "" {
		layouts = []string{DateLayout(dateFormat)}
	} else if len(layouts) == 0 {
		layouts = DefaultDateLayouts
	}
	return &Normalizer{
		columns:  columns,
		layouts:  layouts,
		location: time.UTC,
	}
}

// Normalize lazily normalizes every data row of the table. A rejected row never
// stops the rows after it.
func (n *Normalizer) Normalize(table *Table) iter.Seq[Outcome] {
	return func(yield func(Outcome) bool) {
		for i, row := range table.Rows {
			if !yield(n.NormalizeRow(i+1, row)) {
				return
			}
		}
	}
}

// NormalizeRow normalizes one data row; rowNum is 1-based
func (n *Normalizer) NormalizeRow(rowNum int, row []string) Outcome {
	reject := func(f Field, format string, args ...any) Outcome {
		return Outcome{Row: rowNum, Rejection: &RowRejected{Row: rowNum, Field: f, Reason: fmt.Sprintf(format, args...)}}
	}
	cols := n.columns

	rawDate, ok := cols.Value(row, FieldDate)
	if !ok {
		return reject(FieldDate, "missing value")
	}
	date, hasClock, err := parseDate(rawDate, n.layouts, n.location)
	if err != nil {
		return reject(FieldDate, "%v", err)
	}

	product, ok := cols.Value(row, FieldProduct)
	if !ok {
		return reject(FieldProduct, "missing value")
	}

	rawRevenue, ok := cols.Value(row, FieldRevenue)
	if !ok {
		return reject(FieldRevenue, "missing value")
	}
	revenue, err := parseNumber(rawRevenue)
	if err != nil {
		return reject(FieldRevenue, "not a number: %q", rawRevenue)
	}

	quantity := 1.0
	if raw, ok := cols.Value(row, FieldQuantity); ok {
		if q, err := parseNumber(raw); err == nil {
			if q < 0 {
				return reject(FieldQuantity, "negative quantity: %q", raw)
			}
			quantity = q
		}
	}

	var hour *int
	if hasClock {
		h := date.Hour()
		hour = &h
	} else if raw, ok := cols.Value(row, FieldTime); ok {
		if h, m, s, err := parseClock(raw); err == nil {
			date = time.Date(date.Year(), date.Month(), date.Day(), h, m, s, 0, date.Location())
			hour = &h
		}
	}

	rec := &database.Transaction{
		Date:      date,
		Hour:      hour,
		Weekday:   (int(date.Weekday()) + 6) % 7,
		Month:     int(date.Month()),
		ProductID: product,
		Quantity:  quantity,
		Revenue:   revenue,
		UnitPrice: revenue / max(quantity, 1),
	}
	if v, ok := cols.Value(row, FieldTransactionID); ok {
		rec.ExternalID = v
	}
	if v, ok := cols.Value(row, FieldDescription); ok {
		rec.Description = v
	}
	if v, ok := cols.Value(row, FieldCustomer); ok {
		rec.CustomerID = v
	}
	if v, ok := cols.Value(row, FieldCategory); ok {
		rec.Category = v
	}
	if raw, ok := cols.Value(row, FieldCost); ok {
		if c, err := parseNumber(raw); err == nil {
			rec.Cost = &c
		}
	}
	return Outcome{Row: rowNum, Record: rec}
}

// Partition drains the outcomes into accepted records and rejections, both in row order
func Partition(outcomes iter.Seq[Outcome]) ([]*database.Transaction, []*RowRejected) {
	var records []*database.Transaction
	var rejections []*RowRejected
	for o := range outcomes {
		if o.Rejection != nil {
			rejections = append(rejections, o.Rejection)
			continue
		}
		records = append(records, o.Record)
	}
	return records, rejections
}
