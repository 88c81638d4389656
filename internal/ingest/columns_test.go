package ingest

import (
	"errors"
	"testing"

	"github.com/Brownbull/gabeda-backend/internal/apiserver/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveColumns(t *testing.T) {
	cfg := database.ColumnConfig{DateCol: "fecha", ProductCol: "producto", RevenueCol: "total"}.WithDefaults()

	t.Run("exact and case insensitive", func(t *testing.T) {
		m, err := ResolveColumns(cfg, []string{"Fecha ", "PRODUCTO", "total", "cantidad"})
		require.NoError(t, err)
		assert.True(t, m.Has(FieldDate))
		assert.True(t, m.Has(FieldQuantity))
		assert.False(t, m.Has(FieldCost))

		v, ok := m.Value([]string{"2024-01-01", " A ", "10", ""}, FieldProduct)
		assert.True(t, ok)
		assert.Equal(t, "A", v)
		_, ok = m.Value([]string{"2024-01-01", "A", "10", ""}, FieldQuantity)
		assert.False(t, ok)
		_, ok = m.Value([]string{"2024-01-01"}, FieldRevenue)
		assert.False(t, ok)
	})

	t.Run("missing required", func(t *testing.T) {
		_, err := ResolveColumns(cfg, []string{"fecha", "descripcion", "monto"})
		var schemaErr *SchemaError
		require.True(t, errors.As(err, &schemaErr))
		require.Len(t, schemaErr.Missing, 2)
		assert.Equal(t, FieldProduct, schemaErr.Missing[0].Field)
		assert.Equal(t, FieldRevenue, schemaErr.Missing[1].Field)
		assert.Contains(t, err.Error(), `revenue ("total")`)
	})

	t.Run("category read by default", func(t *testing.T) {
		assert.Equal(t, "category", cfg.CategoryCol)
		m, err := ResolveColumns(cfg, []string{"fecha", "producto", "total", "Category"})
		require.NoError(t, err)
		require.True(t, m.Has(FieldCategory))

		out := NewNormalizer(m, "", nil).NormalizeRow(1, []string{"2024-01-01", "A", "10", "bakery"})
		require.Nil(t, out.Rejection)
		assert.Equal(t, "bakery", out.Record.Category)
	})

	t.Run("tenant mapping overrides defaults", func(t *testing.T) {
		custom := database.ColumnConfig{RevenueCol: "monto"}.WithDefaults()
		m, err := ResolveColumns(custom, []string{"fecha", "producto", "monto", "total"})
		require.NoError(t, err)
		v, _ := m.Value([]string{"2024-01-01", "A", "7", "99"}, FieldRevenue)
		assert.Equal(t, "7", v)
	})
}
