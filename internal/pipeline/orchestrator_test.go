package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basangdata/invoice-ingest/constants"
	"github.com/basangdata/invoice-ingest/internal/fanout"
	"github.com/basangdata/invoice-ingest/internal/llm"
	"github.com/basangdata/invoice-ingest/internal/quota"
	"github.com/basangdata/invoice-ingest/internal/repository"
	"github.com/basangdata/invoice-ingest/internal/sink"
)

type fakeExtractor struct {
	calls   int
	records []llm.ExtractedRecord
	errAt   map[int]error // call index (1-based) -> error
}

func (f *fakeExtractor) Extract(_ context.Context, _ llm.ExtractRequest) ([]llm.ExtractedRecord, error) {
	f.calls++
	if err, ok := f.errAt[f.calls]; ok {
		return nil, err
	}
	return f.records, nil
}

type fakeSink struct {
	appended []sink.Row
	dests    []sink.Destination
	err      error
}

func (f *fakeSink) Append(_ context.Context, dest sink.Destination, rows []sink.Row) error {
	if f.err != nil {
		return f.err
	}
	f.dests = append(f.dests, dest)
	f.appended = append(f.appended, rows...)
	return nil
}

// fakeActivity records appends and serves quota counting from a fixed
// starting count plus successes appended during the run.
type fakeActivity struct {
	entries []repository.Activity
	used    int
}

func (f *fakeActivity) Append(_ context.Context, a repository.Activity) error {
	f.entries = append(f.entries, a)
	if a.Status == constants.StatusSuccess {
		f.used++
	}
	return nil
}

func (f *fakeActivity) CountSuccessSince(context.Context, int64, time.Time) (int, error) {
	return f.used, nil
}

func (f *fakeActivity) Stats(context.Context, int64, time.Time) (repository.ActivityStats, error) {
	return repository.ActivityStats{Success: f.used}, nil
}

func (f *fakeActivity) Overview(context.Context, time.Time) (repository.AdminOverview, error) {
	return repository.AdminOverview{}, nil
}

func imageUnits(n int) []fanout.Unit {
	units := make([]fanout.Unit, n)
	for i := range units {
		units[i] = fanout.Unit{
			SequenceIndex: i,
			Kind:          constants.UnitPDFPage,
			Payload:       []byte{0x89},
			MIMEType:      "image/png",
			ArtifactID:    "art-1",
		}
	}
	return units
}

func freeUser() *repository.User {
	return &repository.User{ID: 7, TelegramID: 7, Tier: constants.TierFree, DailyLimit: 5}
}

func newTestOrchestrator(ext llm.Extractor, s sink.RowSink, act *fakeActivity) *Orchestrator {
	ledger := quota.NewLedger(act, time.UTC, slog.Default())
	return NewOrchestrator(Config{DefaultSpreadsheetID: "default-sheet"}, ext, s, act, ledger, slog.Default())
}

func TestProcess_AllUnitsWithinQuota(t *testing.T) {
	ext := &fakeExtractor{records: []llm.ExtractedRecord{
		{ItemName: "Kopi", Subtotal: 20000},
		{ItemName: "Roti", Subtotal: 15000},
	}}
	sk := &fakeSink{}
	act := &fakeActivity{}

	out, err := newTestOrchestrator(ext, sk, act).Process(context.Background(), freeUser(), imageUnits(2))
	require.NoError(t, err)

	assert.Equal(t, StateDone, out.State)
	assert.Equal(t, 2, out.Processed)
	assert.Zero(t, out.Failed)
	assert.Zero(t, out.Skipped)
	assert.False(t, out.Partial)
	assert.Len(t, out.Records, 4)
	assert.Equal(t, float64(70000), out.TotalAmount)
	assert.Len(t, sk.appended, 4)

	require.Len(t, act.entries, 2)
	for _, e := range act.entries {
		assert.Equal(t, constants.StatusSuccess, e.Status)
		assert.Equal(t, 2, e.ItemsExtracted)
		assert.Equal(t, int64(1), e.SizeBytes)
	}
}

func TestProcess_RejectedBatchLogsOnce(t *testing.T) {
	ext := &fakeExtractor{}
	sk := &fakeSink{}
	act := &fakeActivity{used: 5} // free tier is exhausted

	out, err := newTestOrchestrator(ext, sk, act).Process(context.Background(), freeUser(), imageUnits(3))
	require.NoError(t, err)

	assert.Equal(t, StateRejected, out.State)
	assert.Equal(t, 3, out.Skipped)
	assert.Zero(t, ext.calls, "rejected batches must not reach the model")
	assert.Empty(t, sk.appended)

	require.Len(t, act.entries, 1)
	assert.Equal(t, constants.StatusLimitExceeded, act.entries[0].Status)
}

func TestProcess_PartialGrantTakesLowestPagesFirst(t *testing.T) {
	ext := &fakeExtractor{records: []llm.ExtractedRecord{{ItemName: "X", Subtotal: 1000}}}
	sk := &fakeSink{}
	act := &fakeActivity{used: 3} // remaining = 2

	units := imageUnits(4)
	// shuffled input must still be granted in ascending order
	units[0], units[3] = units[3], units[0]

	out, err := newTestOrchestrator(ext, sk, act).Process(context.Background(), freeUser(), units)
	require.NoError(t, err)

	assert.Equal(t, StateDone, out.State)
	assert.True(t, out.Partial)
	assert.Equal(t, 2, out.Processed)
	assert.Equal(t, 2, out.Skipped)
	assert.Equal(t, 2, ext.calls)
	assert.Len(t, out.Records, 2)
}

func TestProcess_UnitFailureContinues(t *testing.T) {
	ext := &fakeExtractor{
		records: []llm.ExtractedRecord{{ItemName: "Kopi", Subtotal: 5000}},
		errAt:   map[int]error{2: errors.New("backend blew up")},
	}
	sk := &fakeSink{}
	act := &fakeActivity{}

	out, err := newTestOrchestrator(ext, sk, act).Process(context.Background(), freeUser(), imageUnits(3))
	require.NoError(t, err)

	assert.Equal(t, StateDone, out.State)
	assert.Equal(t, 2, out.Processed)
	assert.Equal(t, 1, out.Failed)
	assert.Len(t, out.Records, 2)

	var statuses []constants.ActivityStatus
	for _, e := range act.entries {
		statuses = append(statuses, e.Status)
	}
	assert.Equal(t, []constants.ActivityStatus{
		constants.StatusSuccess, constants.StatusFailed, constants.StatusSuccess,
	}, statuses)
}

func TestProcess_SinkFailureFailsUnit(t *testing.T) {
	ext := &fakeExtractor{records: []llm.ExtractedRecord{{ItemName: "Kopi", Subtotal: 5000}}}
	sk := &fakeSink{err: &sink.SinkError{Message: "append failed", Retryable: true}}
	act := &fakeActivity{}

	out, err := newTestOrchestrator(ext, sk, act).Process(context.Background(), freeUser(), imageUnits(1))
	require.NoError(t, err)

	assert.Equal(t, 1, out.Failed)
	assert.Zero(t, out.Processed)
	assert.Empty(t, out.Records)
	require.Len(t, act.entries, 1)
	assert.Equal(t, constants.StatusFailed, act.entries[0].Status)
}

func TestProcess_NoRecordsFailsUnitWithoutBilling(t *testing.T) {
	ext := &fakeExtractor{} // returns nil records
	sk := &fakeSink{}
	act := &fakeActivity{used: 4} // one quota unit left

	out, err := newTestOrchestrator(ext, sk, act).Process(context.Background(), freeUser(), imageUnits(1))
	require.NoError(t, err)

	assert.Zero(t, out.Processed)
	assert.Equal(t, 1, out.Failed)
	assert.Empty(t, out.Records)
	assert.Empty(t, sk.appended)

	require.Len(t, act.entries, 1)
	assert.Equal(t, constants.StatusFailed, act.entries[0].Status)
	assert.Contains(t, act.entries[0].Detail, "no records")
	assert.Equal(t, 4, act.used, "an empty unit must not consume the last quota unit")
}

func TestProcess_EmptyBatch(t *testing.T) {
	act := &fakeActivity{}
	out, err := newTestOrchestrator(&fakeExtractor{}, &fakeSink{}, act).Process(context.Background(), freeUser(), nil)
	require.NoError(t, err)
	assert.Equal(t, StateDone, out.State)
	assert.Empty(t, act.entries)
}

func TestProcess_TextUnitUsesTextPrompt(t *testing.T) {
	var gotPrompt string
	var gotImage []byte
	ext := extractorFunc(func(_ context.Context, req llm.ExtractRequest) ([]llm.ExtractedRecord, error) {
		gotPrompt = req.Prompt
		gotImage = req.ImageData
		return []llm.ExtractedRecord{
			{ItemName: "Item A", Subtotal: 100000},
			{ItemName: "Item B", Subtotal: 50000},
		}, nil
	})
	act := &fakeActivity{}

	units := []fanout.Unit{{SequenceIndex: 0, Kind: constants.UnitText, Text: "- Item A:100k\n- Item B:50k"}}
	out, err := newTestOrchestrator(ext, &fakeSink{}, act).Process(context.Background(), freeUser(), units)
	require.NoError(t, err)

	assert.Contains(t, gotPrompt, "- Item A:100k")
	assert.Nil(t, gotImage)
	assert.Len(t, out.Records, 2)
	assert.Equal(t, float64(150000), out.TotalAmount)
}

type extractorFunc func(context.Context, llm.ExtractRequest) ([]llm.ExtractedRecord, error)

func (f extractorFunc) Extract(ctx context.Context, req llm.ExtractRequest) ([]llm.ExtractedRecord, error) {
	return f(ctx, req)
}

func TestProcess_DestinationRouting(t *testing.T) {
	ext := &fakeExtractor{records: []llm.ExtractedRecord{{ItemName: "Kopi", Subtotal: 1000}}}
	sk := &fakeSink{}
	act := &fakeActivity{}
	orch := newTestOrchestrator(ext, sk, act)

	// no per-user sheet: rows go to the configured default
	_, err := orch.Process(context.Background(), freeUser(), imageUnits(1))
	require.NoError(t, err)
	require.Len(t, sk.dests, 1)
	assert.Equal(t, "default-sheet", sk.dests[0].SpreadsheetID)
	assert.Nil(t, sk.dests[0].Columns)

	// per-user sheet and column selection win
	u := freeUser()
	u.SpreadsheetID = "user-sheet"
	u.SheetColumns = "waktu, barang, subtotal"
	_, err = orch.Process(context.Background(), u, imageUnits(1))
	require.NoError(t, err)
	require.Len(t, sk.dests, 2)
	assert.Equal(t, "user-sheet", sk.dests[1].SpreadsheetID)
	assert.Equal(t, []string{"waktu", "barang", "subtotal"}, sk.dests[1].Columns)
}

func TestOutcomeErr(t *testing.T) {
	act := &fakeActivity{used: 5}
	out, err := newTestOrchestrator(&fakeExtractor{}, &fakeSink{}, act).Process(context.Background(), freeUser(), imageUnits(1))
	require.NoError(t, err)

	var qerr *quota.QuotaExceededError
	require.ErrorAs(t, out.Err(), &qerr)
	assert.Equal(t, 5, qerr.Status.UsedToday)

	done := BatchOutcome{State: StateDone}
	assert.NoError(t, done.Err())
}
