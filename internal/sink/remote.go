package sink

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/basangdata/invoice-ingest/internal/llm"
)

// SheetSink appends rows to a remote spreadsheet over its REST API.
type SheetSink struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *slog.Logger
}

var _ RowSink = (*SheetSink)(nil)

func NewSheetSink(baseURL, token string, logger *slog.Logger) *SheetSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SheetSink{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        logger.With("component", "sheet_sink"),
	}
}

// NewSheetSinkWithHTTP is used by tests to inject a transport.
func NewSheetSinkWithHTTP(baseURL, token string, client *http.Client, logger *slog.Logger) *SheetSink {
	s := NewSheetSink(baseURL, token, logger)
	s.httpClient = client
	return s
}

type appendRequest struct {
	Values [][]any `json:"values"`
}

// Append posts the rows to the spreadsheet's append endpoint in a single
// request, projected onto the destination's column selection. A 429 or
// 5xx status is reported as retryable.
func (s *SheetSink) Append(ctx context.Context, dest Destination, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	body := appendRequest{Values: make([][]any, 0, len(rows))}
	for _, r := range rows {
		body.Values = append(body.Values, r.ValuesFor(dest.Columns))
	}

	endpoint := fmt.Sprintf("%s/spreadsheets/%s/values/%s:append?valueInputOption=USER_ENTERED&insertDataOption=INSERT_ROWS",
		s.baseURL, url.PathEscape(dest.SpreadsheetID), url.PathEscape("A:K"))

	headers := map[string]string{"Authorization": "Bearer " + s.token}
	_, status, err := llm.SendJSON(ctx, s.httpClient, endpoint, body, headers, s.log)
	if err != nil {
		retryable := status == http.StatusTooManyRequests || status >= 500 || status == 0
		s.log.ErrorContext(ctx, "sink.append.error",
			"spreadsheet_id", dest.SpreadsheetID,
			"rows", len(rows),
			"status", status,
			"retryable", retryable,
			"error", err)
		return &SinkError{Message: "sheet append failed", Retryable: retryable, Cause: err}
	}

	s.log.InfoContext(ctx, "sink.append.ok", "spreadsheet_id", dest.SpreadsheetID, "rows", len(rows))
	return nil
}
