package videos

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_tube/internal/engine"
)

func TestAppendToSheet(t *testing.T) {
	var posted sheetRow
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &posted))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
	}))
	defer srv.Close()

	engine.Init(engine.Config{SheetWebhook: srv.URL, HTTPClient: srv.Client()})

	record := SummaryRecord{
		Title:       "Market Update",
		ChannelName: "test channel",
		PublishedAt: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC),
		URL:         "https://youtu.be/aaaaaaaaaaa",
		Summary:     "summary body",
		ProcessedAt: time.Date(2026, 1, 10, 10, 30, 0, 0, time.UTC),
	}
	require.NoError(t, AppendToSheet(context.Background(), record))

	assert.Equal(t, "Market Update", posted.Title)
	assert.Equal(t, "2026-01-10", posted.PublishedAt)
	assert.Equal(t, "https://youtu.be/aaaaaaaaaaa", posted.URL)
	assert.Equal(t, "summary body", posted.Summary)
	assert.Equal(t, "2026-01-10T10:30:00Z", posted.ProcessedAt)
}

func TestAppendToSheetUnconfigured(t *testing.T) {
	engine.Init(engine.Config{})
	assert.NoError(t, AppendToSheet(context.Background(), SummaryRecord{}))
}

func TestAppendToSheetErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	engine.Init(engine.Config{SheetWebhook: srv.URL, HTTPClient: srv.Client()})
	assert.Error(t, AppendToSheet(context.Background(), SummaryRecord{}))
}
