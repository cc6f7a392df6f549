package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrSessionOpen is returned when a user starts a bulk session while
	// one is already open. The open session and its buffer are preserved.
	ErrSessionOpen = errors.New("bulk session already open")

	// ErrNoSession is returned when finalizing a user with no open session.
	ErrNoSession = errors.New("no open bulk session")
)

// SessionStore tracks per-user bulk sessions and their buffered rows.
type SessionStore interface {
	Start(userID int64) error
	// Add buffers rows into the user's open session. It reports false
	// when the user has no session, leaving the rows for the caller.
	Add(userID int64, rows []Row) (bool, error)
	// Finish closes the user's session and returns its buffered rows.
	Finish(userID int64) ([]Row, error)
	Open(userID int64) bool
}

// MemoryStore is an in-process SessionStore. Sessions do not survive a
// restart; buffered rows are lost with the process.
type MemoryStore struct {
	mu  sync.Mutex
	buf map[int64][]Row
}

var _ SessionStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buf: make(map[int64][]Row)}
}

func (m *MemoryStore) Start(userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buf[userID]; ok {
		return ErrSessionOpen
	}
	m.buf[userID] = []Row{}
	return nil
}

func (m *MemoryStore) Add(userID int64, rows []Row) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.buf[userID]
	if !ok {
		return false, nil
	}
	m.buf[userID] = append(cur, rows...)
	return true, nil
}

func (m *MemoryStore) Finish(userID int64) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.buf[userID]
	if !ok {
		return nil, ErrNoSession
	}
	delete(m.buf, userID)
	return rows, nil
}

func (m *MemoryStore) Open(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.buf[userID]
	return ok
}

// BatchSink routes rows into an open bulk session when the user has one,
// and falls through to the remote sink otherwise.
type BatchSink struct {
	sessions SessionStore
	remote   RowSink
	log      *slog.Logger
}

var _ RowSink = (*BatchSink)(nil)

func NewBatchSink(sessions SessionStore, remote RowSink, logger *slog.Logger) *BatchSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchSink{sessions: sessions, remote: remote, log: logger.With("component", "batch_sink")}
}

func (b *BatchSink) Append(ctx context.Context, dest Destination, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	buffered, err := b.sessions.Add(rows[0].UserID, rows)
	if err != nil {
		return err
	}
	if buffered {
		b.log.DebugContext(ctx, "sink.batch.buffered", "user_id", rows[0].UserID, "rows", len(rows))
		return nil
	}
	return b.remote.Append(ctx, dest, rows)
}

// Start opens a bulk session for the user.
func (b *BatchSink) Start(userID int64) error {
	return b.sessions.Start(userID)
}

// Finalize closes the user's session and renders its rows as an XLSX
// workbook. The row count is returned alongside the bytes.
func (b *BatchSink) Finalize(ctx context.Context, userID int64) ([]byte, int, error) {
	rows, err := b.sessions.Finish(userID)
	if err != nil {
		return nil, 0, err
	}
	buf, err := BuildWorkbook(rows)
	if err != nil {
		return nil, 0, err
	}
	b.log.InfoContext(ctx, "sink.batch.finalized", "user_id", userID, "rows", len(rows))
	return buf, len(rows), nil
}

// BuildWorkbook renders rows into a single-sheet XLSX workbook with a
// header row.
func BuildWorkbook(rows []Row) ([]byte, error) {
	start := time.Now()
	f := excelize.NewFile()
	const sheet = "Invoices"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	if defIdx, _ := f.GetSheetIndex("Sheet1"); defIdx != -1 {
		_ = f.DeleteSheet("Sheet1")
	}

	for i, h := range Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for ri, r := range rows {
		for ci, v := range r.Values() {
			cell, _ := excelize.CoordinatesToCellName(ci+1, ri+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 20) // transaction time
	_ = f.SetColWidth(sheet, "B", "C", 28) // seller, item
	_ = f.SetColWidth(sheet, "D", "I", 12) // amounts
	_ = f.SetColWidth(sheet, "J", "K", 16) // user id, timestamp

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	slog.Debug("sink.workbook.ok", "rows", len(rows), "elapsed_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}
