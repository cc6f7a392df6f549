package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config holds the vision/LLM backend settings.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int

	// ConnectTimeout bounds dialing; ReadTimeout bounds the whole request.
	// Vision completions are slow, so the read budget is the long one.
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

// ExtractionError is a failed completion attempt: network failure, timeout,
// non-2xx response, or empty/null model content. Timeout gets a distinct
// user-facing treatment (suggest retry).
type ExtractionError struct {
	Reason  string
	Timeout bool
	Cause   error
}

func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("extract: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("extract: %s", e.Reason)
}

func (e *ExtractionError) Unwrap() error { return e.Cause }

// Client issues single-shot chat-completion requests. Stateless beyond the
// shared http.Client.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 60 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 120 * time.Second
	}
	transport := &http.Transport{
		DialContext: (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Transport: transport, Timeout: cfg.ReadTimeout},
		log:        logger,
	}
}

// NewClientWithHTTP injects a prebuilt http.Client (tests).
func NewClientWithHTTP(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	c := NewClient(cfg, logger)
	if httpClient != nil {
		c.httpClient = httpClient
	}
	return c
}

var _ Extractor = (*Client)(nil)

// Extract sends one completion request and returns normalized records.
// An empty result with a nil error means the model found nothing — callers
// interpret empty as "nothing extracted", not failure.
func (c *Client) Extract(ctx context.Context, req ExtractRequest) ([]ExtractedRecord, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"prompt_len", len(req.Prompt),
		"has_image", len(req.ImageData) > 0,
	)

	var content any = req.Prompt
	if len(req.ImageData) > 0 {
		mime := req.ImageMIME
		if mime == "" {
			mime = "image/png"
		}
		dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(req.ImageData)
		content = []map[string]any{
			{"type": "text", "text": req.Prompt},
			{"type": "image_url", "image_url": map[string]any{"url": dataURL}},
		}
	}

	body := map[string]any{
		"model":       c.cfg.Model,
		"messages":    []map[string]any{{"role": "user", "content": content}},
		"temperature": c.cfg.Temperature,
		"max_tokens":  c.cfg.MaxTokens,
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	raw, status, err := SendJSON(ctx, c.httpClient, endpoint, body, headers, c.log)
	if err != nil {
		extErr := &ExtractionError{Reason: "backend request failed", Cause: err}
		if status > 0 {
			extErr.Reason = fmt.Sprintf("backend status %d", status)
		}
		if isTimeout(err) {
			extErr.Reason = "backend timeout"
			extErr.Timeout = true
		}
		c.log.Error("llm.extract.http_error",
			"req_id", rid, "status", status, "timeout", extErr.Timeout, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, extErr
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content *string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("llm.extract.decode_error", "req_id", rid, "error", err, "raw_bytes", len(raw))
		return nil, &ExtractionError{Reason: "decode backend response", Cause: err}
	}
	if len(cc.Choices) == 0 {
		c.log.Error("llm.extract.no_choices", "req_id", rid, "raw_bytes", len(raw))
		return nil, &ExtractionError{Reason: "no choices in backend response"}
	}
	if cc.Choices[0].Message.Content == nil {
		c.log.Error("llm.extract.null_content", "req_id", rid)
		return nil, &ExtractionError{Reason: "null content in backend response"}
	}

	maps, err := Normalize(*cc.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	records := make([]ExtractedRecord, 0, len(maps))
	for i, m := range maps {
		if verr := ValidateRecord(m); verr != nil {
			c.log.Warn("llm.extract.record_rejected", "req_id", rid, "index", i, "error", verr)
			continue
		}
		records = append(records, RecordFromMap(m))
	}

	c.log.Info("llm.extract.ok",
		"req_id", rid,
		"records", len(records),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return records, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
