package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_JSONFence(t *testing.T) {
	raw := "```json\n[{\"penjual\": \"Toko A\", \"subtotal\": 15000}]\n```"
	recs, err := Normalize(raw)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Toko A", recs[0]["penjual"])
	assert.Equal(t, float64(15000), recs[0]["subtotal"])
}

func TestNormalize_GenericFence(t *testing.T) {
	raw := "```\n[{\"barang\": \"Kopi\"}]\n```"
	recs, err := Normalize(raw)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Kopi", recs[0]["barang"])
}

func TestNormalize_ProseBeforeJSON(t *testing.T) {
	// the model sometimes prefixes an emoji or a sentence
	raw := "🧾 Berikut hasilnya: [{\"barang\": \"Teh\"}] semoga membantu"
	recs, err := Normalize(raw)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Teh", recs[0]["barang"])
}

func TestNormalize_BareObject(t *testing.T) {
	recs, err := Normalize(`{"barang": "Nasi", "subtotal": 12000}`)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Nasi", recs[0]["barang"])
}

func TestNormalize_TrailingComma(t *testing.T) {
	recs, err := Normalize(`[{"barang": "Ayam", "jumlah": 2,}]`)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, float64(2), recs[0]["jumlah"])
}

func TestNormalize_EmptyArrayIsNoData(t *testing.T) {
	recs, err := Normalize("```json\n[]\n```")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestNormalize_SkipsNonObjectElements(t *testing.T) {
	recs, err := Normalize(`[{"barang": "A"}, "stray", 42, {"barang": "B"}]`)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "A", recs[0]["barang"])
	assert.Equal(t, "B", recs[1]["barang"])
}

func TestNormalize_Garbage(t *testing.T) {
	for _, raw := range []string{"", "   ", "maaf, tidak ada data", "```json\n```"} {
		_, err := Normalize(raw)
		var nerr *NormalizationError
		assert.ErrorAs(t, err, &nerr, "input %q", raw)
	}
}

func TestSliceBrackets(t *testing.T) {
	assert.Equal(t, `[{"a":1}]`, sliceBrackets(`junk [{"a":1}] tail`))
	assert.Equal(t, `{"a":1}`, sliceBrackets(`note: {"a":1}`))
	assert.Equal(t, "no brackets here", sliceBrackets("no brackets here"))
}
