package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRecord(t *testing.T) {
	assert.NoError(t, ValidateRecord(map[string]any{
		"waktu":    "2025-01-10 19:30",
		"penjual":  "Warung Bu Sri",
		"barang":   "Es Teh",
		"harga":    float64(5000),
		"jumlah":   float64(2),
		"subtotal": float64(10000),
	}))

	// money fields may arrive as strings
	assert.NoError(t, ValidateRecord(map[string]any{
		"barang":   "Kopi",
		"subtotal": "18.000",
	}))

	// unknown keys are tolerated
	assert.NoError(t, ValidateRecord(map[string]any{
		"barang":  "Roti",
		"catatan": "promo",
	}))

	// wrong types are rejected
	assert.Error(t, ValidateRecord(map[string]any{"barang": true}))
	assert.Error(t, ValidateRecord(map[string]any{"subtotal": []any{1}}))
}

func TestRecordFromMap_Defaults(t *testing.T) {
	rec := RecordFromMap(map[string]any{})
	assert.Equal(t, "-", rec.TransactionTime)
	assert.Equal(t, "-", rec.Seller)
	assert.Equal(t, "-", rec.ItemName)
	assert.Zero(t, rec.UnitPrice)
	assert.Zero(t, rec.Subtotal)
}

func TestRecordFromMap_StringCoercion(t *testing.T) {
	rec := RecordFromMap(map[string]any{
		"barang":   "Mie Goreng",
		"harga":    "15000",
		"jumlah":   float64(3),
		"subtotal": "45000",
	})
	assert.Equal(t, "Mie Goreng", rec.ItemName)
	assert.Equal(t, float64(15000), rec.UnitPrice)
	assert.Equal(t, float64(3), rec.Quantity)
	assert.Equal(t, float64(45000), rec.Subtotal)
}

func TestRecordFromMap_BackComputesUnitPrice(t *testing.T) {
	rec := RecordFromMap(map[string]any{
		"jumlah":   float64(4),
		"subtotal": float64(20000),
	})
	require.Equal(t, float64(5000), rec.UnitPrice)

	// no back-compute without a quantity
	rec = RecordFromMap(map[string]any{"subtotal": float64(20000)})
	assert.Zero(t, rec.UnitPrice)
}
