// Package pipeline coordinates one batch end to end: quota check, plan,
// per-unit extraction and append, then aggregation.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/basangdata/invoice-ingest/constants"
	"github.com/basangdata/invoice-ingest/internal/common"
	"github.com/basangdata/invoice-ingest/internal/fanout"
	"github.com/basangdata/invoice-ingest/internal/llm"
	"github.com/basangdata/invoice-ingest/internal/quota"
	"github.com/basangdata/invoice-ingest/internal/repository"
	"github.com/basangdata/invoice-ingest/internal/sink"
)

// errNoRecords fails a unit whose extraction came back empty.
var errNoRecords = errors.New("no records extracted")

type Config struct {
	// DefaultSpreadsheetID receives rows for users without their own sheet.
	DefaultSpreadsheetID string
}

type Orchestrator struct {
	cfg       Config
	extractor llm.Extractor
	sink      sink.RowSink
	activity  repository.ActivityRepository
	ledger    *quota.Ledger
	log       *slog.Logger
	now       func() time.Time
}

func NewOrchestrator(cfg Config, extractor llm.Extractor, s sink.RowSink, activity repository.ActivityRepository, ledger *quota.Ledger, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:       cfg,
		extractor: extractor,
		sink:      s,
		activity:  activity,
		ledger:    ledger,
		log:       logger.With("component", "pipeline"),
		now:       time.Now,
	}
}

// Process runs a batch of units for the user. A batch rejected by quota
// produces exactly one limit_exceeded activity row; otherwise units are
// taken in ascending sequence order up to the granted count, and each
// unit fails or succeeds independently.
func (o *Orchestrator) Process(ctx context.Context, user *repository.User, units []fanout.Unit) (BatchOutcome, error) {
	out := BatchOutcome{UnitsTotal: len(units)}
	if len(units) == 0 {
		out.State = StateDone
		return out, nil
	}

	st, err := o.ledger.Check(ctx, user.ID, user.Tier, user.DailyLimit)
	if err != nil {
		return out, common.WrapError(err, "quota check")
	}
	out.Quota = st

	if !st.CanProceed {
		o.appendActivity(ctx, user.ID, units[0], constants.StatusLimitExceeded, "daily quota exhausted", 0)
		o.log.InfoContext(ctx, "pipeline.rejected",
			"user_id", user.ID,
			"tier", st.Tier,
			"used_today", st.UsedToday,
			"daily_limit", st.DailyLimit,
			"units", len(units))
		out.State = StateRejected
		out.Skipped = len(units)
		return out, nil
	}

	sort.Slice(units, func(i, j int) bool { return units[i].SequenceIndex < units[j].SequenceIndex })
	grant := o.ledger.Plan(st, len(units))
	out.Partial = grant.Partial
	out.Skipped = len(units) - grant.Allowed

	dest := sink.Destination{SpreadsheetID: user.SpreadsheetID, Columns: user.ColumnList()}
	if dest.SpreadsheetID == "" {
		dest.SpreadsheetID = o.cfg.DefaultSpreadsheetID
	}

	start := o.now()
	for _, unit := range units[:grant.Allowed] {
		recs, err := o.processUnit(ctx, user, dest, unit)
		if err != nil {
			out.Failed++
			o.appendActivity(ctx, user.ID, unit, constants.StatusFailed, err.Error(), 0)
			continue
		}
		out.Processed++
		out.Records = append(out.Records, recs...)
		for _, rec := range recs {
			out.TotalAmount += rec.Subtotal
		}
		o.appendActivity(ctx, user.ID, unit, constants.StatusSuccess, "", len(recs))
	}

	out.State = StateDone
	o.log.InfoContext(ctx, "pipeline.done",
		"user_id", user.ID,
		"units", out.UnitsTotal,
		"processed", out.Processed,
		"failed", out.Failed,
		"skipped", out.Skipped,
		"partial", out.Partial,
		"records", len(out.Records),
		"elapsed_ms", time.Since(start).Milliseconds())
	return out, nil
}

// processUnit extracts one unit and appends its records. A sink failure
// fails the unit; no retry happens here, so rows are appended at most
// once per unit.
func (o *Orchestrator) processUnit(ctx context.Context, user *repository.User, dest sink.Destination, unit fanout.Unit) ([]llm.ExtractedRecord, error) {
	req := llm.ExtractRequest{}
	switch unit.Kind {
	case constants.UnitText:
		req.Prompt = llm.BuildTextPrompt(user.CustomPrompt, unit.Text)
	default:
		req.Prompt = llm.BuildImagePrompt(user.CustomPrompt)
		req.ImageData = unit.Payload
		req.ImageMIME = unit.MIMEType
	}

	recs, err := o.extractor.Extract(ctx, req)
	if err != nil {
		o.log.WarnContext(ctx, "pipeline.unit.extract_failed",
			"user_id", user.ID,
			"artifact_id", unit.ArtifactID,
			"seq", unit.SequenceIndex,
			"kind", unit.Kind,
			"error", err)
		return nil, common.WrapError(err, "extract")
	}
	// An empty extraction means the model saw nothing usable; the unit
	// fails and consumes no quota.
	if len(recs) == 0 {
		o.log.WarnContext(ctx, "pipeline.unit.no_records",
			"user_id", user.ID, "artifact_id", unit.ArtifactID, "seq", unit.SequenceIndex)
		return nil, errNoRecords
	}

	rows := make([]sink.Row, 0, len(recs))
	at := o.now()
	for _, rec := range recs {
		rows = append(rows, sink.FromRecord(rec, user.ID, at))
	}
	if err := o.sink.Append(ctx, dest, rows); err != nil {
		o.log.WarnContext(ctx, "pipeline.unit.append_failed",
			"user_id", user.ID,
			"artifact_id", unit.ArtifactID,
			"seq", unit.SequenceIndex,
			"rows", len(rows),
			"error", err)
		return nil, common.WrapError(err, "append rows")
	}
	return recs, nil
}

func (o *Orchestrator) appendActivity(ctx context.Context, userID int64, unit fanout.Unit, status constants.ActivityStatus, detail string, items int) {
	rec := repository.Activity{
		UserID:         userID,
		UnitKind:       unit.Kind,
		Status:         status,
		Detail:         detail,
		ItemsExtracted: items,
		SizeBytes:      int64(len(unit.Payload)),
	}
	if err := o.activity.Append(ctx, rec); err != nil {
		o.log.ErrorContext(ctx, "pipeline.activity_error", "user_id", userID, "status", status, "error", err)
	}
}
