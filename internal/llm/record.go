package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildRecordJSONSchema returns the JSON-Schema (draft 2020-12 subset) one
// extracted line item must satisfy. Money-ish fields accept number or string;
// coercion happens in RecordFromMap. Unknown keys are tolerated — the model
// occasionally volunteers extras and they are simply ignored.
func BuildRecordJSONSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"waktu":    map[string]any{"type": "string"},
			"penjual":  map[string]any{"type": "string"},
			"barang":   map[string]any{"type": "string"},
			"harga":    numericProp(),
			"jumlah":   numericProp(),
			"service":  numericProp(),
			"pajak":    numericProp(),
			"ppn":      numericProp(),
			"subtotal": numericProp(),
		},
	}
}

func numericProp() map[string]any {
	return map[string]any{"type": []string{"number", "string"}}
}

// ValidateAgainstSchema validates data against schemaMap.
func ValidateAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("record.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("record.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// ValidateRecord checks one normalized mapping against the record schema.
func ValidateRecord(m map[string]any) error {
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	return ValidateAgainstSchema(BuildRecordJSONSchema(), b)
}

// RecordFromMap fills an ExtractedRecord from a normalized mapping.
// String fields default to "-", numeric fields to 0. When harga is absent it
// is back-computed as subtotal/jumlah — subtotal is the authoritative total.
func RecordFromMap(m map[string]any) ExtractedRecord {
	rec := ExtractedRecord{
		TransactionTime: strField(m, "waktu"),
		Seller:          strField(m, "penjual"),
		ItemName:        strField(m, "barang"),
		UnitPrice:       numField(m, "harga"),
		Quantity:        numField(m, "jumlah"),
		ServiceFee:      numField(m, "service"),
		Tax:             numField(m, "pajak"),
		VAT:             numField(m, "ppn"),
		Subtotal:        numField(m, "subtotal"),
	}
	if rec.UnitPrice == 0 && rec.Quantity > 0 && rec.Subtotal != 0 {
		rec.UnitPrice = rec.Subtotal / rec.Quantity
	}
	return rec
}

func strField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return "-"
}

func numField(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case json.Number:
		f, _ := v.Float64()
		return f
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return 0
}
