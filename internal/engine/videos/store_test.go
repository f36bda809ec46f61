package videos

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anatolykoptev/go_tube/internal/engine"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	engine.Init(engine.Config{OutputDir: t.TempDir(), HTTPClient: http.DefaultClient})

	published := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	records := []SummaryRecord{
		rec("https://youtu.be/aaaaaaaaaaa", published, published.Add(time.Hour), "a"),
		rec("https://youtu.be/bbbbbbbbbbb", published.Add(time.Hour), published.Add(time.Hour), "b"),
	}
	if err := SaveRecords(records); err != nil {
		t.Fatalf("SaveRecords() error = %v", err)
	}

	got := LoadRecords(context.Background())
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].Summary != "b" {
		t.Errorf("expected newest publish first, got %+v", got[0])
	}
}

func TestLoadRecordsRemoteFallback(t *testing.T) {
	published := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	remote := SiteData{
		GeneratedAt: time.Now().UTC(),
		Count:       1,
		Items:       []SummaryRecord{rec("https://youtu.be/aaaaaaaaaaa", published, published, "remote")},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/latest.json" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `{"generatedAt":%q,"count":1,"items":[{"title":"t","channelName":"c","publishedAt":%q,"url":%q,"summary":"remote","processedAt":%q}]}`,
			remote.GeneratedAt.Format(time.RFC3339), published.Format(time.RFC3339),
			remote.Items[0].URL, published.Format(time.RFC3339))
	}))
	defer srv.Close()

	engine.Init(engine.Config{
		OutputDir:  t.TempDir(), // no local latest.json
		RemoteBase: srv.URL,
		HTTPClient: srv.Client(),
	})

	got := LoadRecords(context.Background())
	if len(got) != 1 || got[0].Summary != "remote" {
		t.Errorf("expected remote records, got %+v", got)
	}
}

func TestLoadRecordsEmptyWhenNothingConfigured(t *testing.T) {
	engine.Init(engine.Config{OutputDir: t.TempDir(), HTTPClient: http.DefaultClient})
	if got := LoadRecords(context.Background()); got != nil {
		t.Errorf("expected nil on fresh dir, got %+v", got)
	}
}

func TestGroupByDate(t *testing.T) {
	d1 := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 1, 11, 23, 59, 0, 0, time.UTC)
	groups := GroupByDate([]SummaryRecord{
		rec("https://youtu.be/aaaaaaaaaaa", d1, d1, "a"),
		rec("https://youtu.be/bbbbbbbbbbb", d1.Add(time.Hour), d1, "b"),
		rec("https://youtu.be/ccccccccccc", d2, d2, "c"),
	})

	if len(groups) != 2 {
		t.Fatalf("expected 2 shards, got %d: %v", len(groups), groups)
	}
	if len(groups["summaries/2026-01-10.json"]) != 2 {
		t.Errorf("expected 2 records on 2026-01-10, got %+v", groups["summaries/2026-01-10.json"])
	}
	if len(groups["summaries/2026-01-11.json"]) != 1 {
		t.Errorf("expected 1 record on 2026-01-11, got %+v", groups["summaries/2026-01-11.json"])
	}
}
