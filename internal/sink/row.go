package sink

import (
	"strings"
	"time"

	"github.com/basangdata/invoice-ingest/internal/llm"
)

// Row is one appended line item: the nine extracted fields followed by
// the owning user and the append timestamp. DefaultColumns fixes the
// canonical order; users may override the selection per sheet.
type Row struct {
	TransactionTime string
	Seller          string
	ItemName        string
	UnitPrice       float64
	Quantity        float64
	ServiceFee      float64
	Tax             float64
	VAT             float64
	Subtotal        float64
	UserID          int64
	AppendedAt      int64
}

// DefaultColumns is the canonical column order, keyed the way records
// arrive from extraction.
var DefaultColumns = []string{
	"waktu", "penjual", "barang", "harga", "jumlah",
	"service", "pajak", "ppn", "subtotal", "user_id", "timestamp",
}

// Headers are the display names matching DefaultColumns positionally.
var Headers = []string{
	"Waktu", "Penjual", "Barang", "Harga", "Jumlah",
	"Service", "Pajak", "PPN", "Subtotal", "User ID", "Timestamp",
}

func FromRecord(rec llm.ExtractedRecord, userID int64, at time.Time) Row {
	return Row{
		TransactionTime: rec.TransactionTime,
		Seller:          rec.Seller,
		ItemName:        rec.ItemName,
		UnitPrice:       rec.UnitPrice,
		Quantity:        rec.Quantity,
		ServiceFee:      rec.ServiceFee,
		Tax:             rec.Tax,
		VAT:             rec.VAT,
		Subtotal:        rec.Subtotal,
		UserID:          userID,
		AppendedAt:      at.Unix(),
	}
}

func (r Row) value(column string) any {
	switch strings.ToLower(strings.TrimSpace(column)) {
	case "waktu":
		return r.TransactionTime
	case "penjual":
		return r.Seller
	case "barang":
		return r.ItemName
	case "harga":
		return r.UnitPrice
	case "jumlah":
		return r.Quantity
	case "service":
		return r.ServiceFee
	case "pajak":
		return r.Tax
	case "ppn":
		return r.VAT
	case "subtotal":
		return r.Subtotal
	case "user_id":
		return r.UserID
	case "timestamp":
		return r.AppendedAt
	default:
		return ""
	}
}

// Values returns the row in canonical column order.
func (r Row) Values() []any {
	return r.ValuesFor(DefaultColumns)
}

// ValuesFor projects the row onto an explicit column selection; unknown
// column keys yield empty cells rather than errors.
func (r Row) ValuesFor(columns []string) []any {
	if len(columns) == 0 {
		columns = DefaultColumns
	}
	out := make([]any, len(columns))
	for i, c := range columns {
		out[i] = r.value(c)
	}
	return out
}
