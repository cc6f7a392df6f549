// Package sink persists extracted rows: either appended straight to a
// remote spreadsheet, or buffered into a per-user session and written
// out as a local XLSX workbook.
package sink

import "context"

// Destination names the target sheet and its column selection. Empty
// Columns means the canonical order.
type Destination struct {
	SpreadsheetID string
	Columns       []string
}

// RowSink appends rows for a user. Implementations must tolerate being
// called once per extracted record batch within a unit.
type RowSink interface {
	Append(ctx context.Context, dest Destination, rows []Row) error
}

// SinkError wraps a failed append. Retryable marks transient failures
// (rate limiting, transport errors) that a caller may reattempt.
type SinkError struct {
	Message   string
	Retryable bool
	Cause     error
}

func (e *SinkError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *SinkError) Unwrap() error { return e.Cause }
