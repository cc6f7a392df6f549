package pipeline

import (
	"github.com/basangdata/invoice-ingest/internal/llm"
	"github.com/basangdata/invoice-ingest/internal/quota"
)

// BatchState is the terminal state of a batch run.
type BatchState string

const (
	StateDone     BatchState = "done"
	StateRejected BatchState = "rejected"
)

// BatchOutcome summarizes one batch run. Skipped counts units the quota
// plan excluded; they were never sent for extraction.
type BatchOutcome struct {
	State       BatchState
	UnitsTotal  int
	Processed   int
	Failed      int
	Skipped     int
	Partial     bool
	Records     []llm.ExtractedRecord
	TotalAmount float64
	Quota       quota.Status
}

// Appended reports how many records reached the sink.
func (o BatchOutcome) Appended() int { return len(o.Records) }

// Err returns a typed quota error for rejected batches, nil otherwise.
func (o BatchOutcome) Err() error {
	if o.State == StateRejected {
		return &quota.QuotaExceededError{Status: o.Quota}
	}
	return nil
}
