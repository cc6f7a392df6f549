package llm

import "context"

// ExtractedRecord is one structured line item recovered from model output.
// JSON keys follow the upstream sheet contract and the extraction prompt.
type ExtractedRecord struct {
	TransactionTime string  `json:"waktu"` // DD/MM/YYYY HH:MM:SS
	Seller          string  `json:"penjual"`
	ItemName        string  `json:"barang"`
	UnitPrice       float64 `json:"harga"`
	Quantity        float64 `json:"jumlah"`
	ServiceFee      float64 `json:"service"`
	Tax             float64 `json:"pajak"`
	VAT             float64 `json:"ppn"`
	Subtotal        float64 `json:"subtotal"` // authoritative line total
}

// ExtractRequest describes a single-shot completion request. When ImageData
// is set the request carries an inlined base64 data-URI image part.
type ExtractRequest struct {
	Prompt    string
	ImageData []byte
	ImageMIME string
}

// Extractor is the interface the pipeline depends on.
type Extractor interface {
	Extract(ctx context.Context, req ExtractRequest) ([]ExtractedRecord, error)
}
