package sink

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSheetSink(t *testing.T, handler http.HandlerFunc) *SheetSink {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewSheetSinkWithHTTP(srv.URL, "tok", srv.Client(), nil)
}

func TestSheetSinkAppend_OK(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody appendRequest
	s := newTestSheetSink(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{}`))
	})

	rows := []Row{sampleRow(7, "Kopi"), sampleRow(7, "Teh")}
	require.NoError(t, s.Append(context.Background(), Destination{SpreadsheetID: "sheet-42"}, rows))

	assert.Equal(t, "/spreadsheets/sheet-42/values/A:K:append", gotPath)
	assert.Equal(t, "Bearer tok", gotAuth)
	require.Len(t, gotBody.Values, 2)
	assert.Equal(t, "Kopi", gotBody.Values[0][2])
}

func TestSheetSinkAppend_EmptyIsNoop(t *testing.T) {
	called := false
	s := newTestSheetSink(t, func(http.ResponseWriter, *http.Request) { called = true })
	require.NoError(t, s.Append(context.Background(), Destination{SpreadsheetID: "sheet-42"}, nil))
	assert.False(t, called)
}

func TestSheetSinkAppend_RateLimited(t *testing.T) {
	s := newTestSheetSink(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	err := s.Append(context.Background(), Destination{SpreadsheetID: "sheet-42"}, []Row{sampleRow(7, "Kopi")})
	var serr *SinkError
	require.ErrorAs(t, err, &serr)
	assert.True(t, serr.Retryable)
}

func TestSheetSinkAppend_BadRequest(t *testing.T) {
	s := newTestSheetSink(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	err := s.Append(context.Background(), Destination{SpreadsheetID: "sheet-42"}, []Row{sampleRow(7, "Kopi")})
	var serr *SinkError
	require.ErrorAs(t, err, &serr)
	assert.False(t, serr.Retryable)
}

func TestSheetSinkAppend_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	s := NewSheetSinkWithHTTP(srv.URL, "tok", srv.Client(), nil)
	srv.Close()

	err := s.Append(context.Background(), Destination{SpreadsheetID: "sheet-42"}, []Row{sampleRow(7, "Kopi")})
	var serr *SinkError
	require.ErrorAs(t, err, &serr)
	assert.True(t, serr.Retryable)
}
