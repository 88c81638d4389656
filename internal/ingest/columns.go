package ingest

import (
	"fmt"
	"strings"

	"github.com/Brownbull/gabeda-backend/internal/apiserver/database"
)

// Field is a logical transaction field
type Field string

const (
	FieldDate          Field = "date"
	FieldProduct       Field = "product"
	FieldDescription   Field = "description"
	FieldRevenue       Field = "revenue"
	FieldQuantity      Field = "quantity"
	FieldTransactionID Field = "transaction_id"
	FieldCost          Field = "cost"
	FieldCustomer      Field = "customer"
	FieldCategory      Field = "category"
	FieldTime          Field = "time"
)

// RequiredFields must resolve to a column for a file to be processed
var RequiredFields = []Field{FieldDate, FieldProduct, FieldRevenue}

type binding struct {
	field Field
	name  string
}

func physicalNames(cfg database.ColumnConfig) []binding {
	return []binding{
		{FieldDate, cfg.DateCol},
		{FieldProduct, cfg.ProductCol},
		{FieldDescription, cfg.DescriptionCol},
		{FieldRevenue, cfg.RevenueCol},
		{FieldQuantity, cfg.QuantityCol},
		{FieldTransactionID, cfg.TransactionCol},
		{FieldCost, cfg.CostCol},
		{FieldCustomer, cfg.CustomerCol},
		{FieldCategory, cfg.CategoryCol},
		{FieldTime, cfg.TimeCol},
	}
}

// MissingColumn names a required field and the header it was declared as
type MissingColumn struct {
	Field    Field
	Physical string
}

// SchemaError is returned when required columns are absent from the header
type SchemaError struct {
	Missing []MissingColumn
}

func (e *SchemaError) Error() string {
	parts := make([]string, len(e.Missing))
	for i, m := range e.Missing {
		if m.Physical == "" {
			parts[i] = fmt.Sprintf("%s (no column declared)", m.Field)
			continue
		}
		parts[i] = fmt.Sprintf("%s (%q)", m.Field, m.Physical)
	}
	return "required columns missing: " + strings.Join(parts, ", ")
}

// ColumnMap resolves logical fields to column indexes of one file
type ColumnMap struct {
	index map[Field]int
}

// ResolveColumns matches the declared physical names against the header,
// exactly first and then ignoring case and surrounding spaces
func ResolveColumns(cfg database.ColumnConfig, header []string) (*ColumnMap, error) {
	m := &ColumnMap{index: make(map[Field]int)}
	for _, pn := range physicalNames(cfg) {
		if pn.name == "" {
			continue
		}
		if idx, ok := lookupHeader(header, pn.name); ok {
			m.index[pn.field] = idx
		}
	}

	var missing []MissingColumn
	declared := map[Field]string{}
	for _, pn := range physicalNames(cfg) {
		declared[pn.field] = pn.name
	}
	for _, f := range RequiredFields {
		if _, ok := m.index[f]; !ok {
			missing = append(missing, MissingColumn{Field: f, Physical: declared[f]})
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}
	return m, nil
}

func lookupHeader(header []string, name string) (int, bool) {
	for i, h := range header {
		if h == name {
			return i, true
		}
	}
	want := strings.TrimSpace(name)
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), want) {
			return i, true
		}
	}
	return 0, false
}

// Has reports whether the field resolved to a column
func (m *ColumnMap) Has(f Field) bool {
	_, ok := m.index[f]
	return ok
}

// Value returns the trimmed cell of a field, false when the column is absent or the cell is empty
func (m *ColumnMap) Value(row []string, f Field) (string, bool) {
	idx, ok := m.index[f]
	if !ok || idx >= len(row) {
		return "", false
	}
	v := strings.TrimSpace(row[idx])
	if v == "" {
		return "", false
	}
	return v, true
}
