package videos

import (
	"testing"
	"time"
)

func rec(url string, published, processed time.Time, summary string) SummaryRecord {
	return SummaryRecord{
		Title:       "title " + url,
		ChannelName: "channel",
		PublishedAt: published,
		URL:         url,
		Summary:     summary,
		ProcessedAt: processed,
	}
}

func TestMergeRecency(t *testing.T) {
	published := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	older := rec("https://youtu.be/aaaaaaaaaaa", published, published.Add(1*time.Hour), "old")
	newer := rec("https://youtu.be/aaaaaaaaaaa", published, published.Add(2*time.Hour), "new")

	t.Run("newer incoming wins", func(t *testing.T) {
		got := Merge([]SummaryRecord{older}, []SummaryRecord{newer})
		if len(got) != 1 || got[0].Summary != "new" {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("older incoming loses", func(t *testing.T) {
		got := Merge([]SummaryRecord{newer}, []SummaryRecord{older})
		if len(got) != 1 || got[0].Summary != "new" {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("equal processedAt keeps existing", func(t *testing.T) {
		same := rec("https://youtu.be/aaaaaaaaaaa", published, older.ProcessedAt, "incoming-copy")
		got := Merge([]SummaryRecord{older}, []SummaryRecord{same})
		if len(got) != 1 || got[0].Summary != "old" {
			t.Errorf("got %+v", got)
		}
	})
}

func TestMergeIdempotent(t *testing.T) {
	published := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	records := []SummaryRecord{
		rec("https://youtu.be/aaaaaaaaaaa", published, published.Add(time.Hour), "a"),
		rec("https://youtu.be/bbbbbbbbbbb", published.Add(time.Hour), published.Add(time.Hour), "b"),
	}

	once := Merge(nil, records)
	twice := Merge(once, records)
	if len(twice) != len(once) {
		t.Fatalf("merge not idempotent: %d vs %d records", len(twice), len(once))
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Errorf("record %d changed on re-merge:\n%+v\n%+v", i, once[i], twice[i])
		}
	}
}

func TestMergeKeysByURL(t *testing.T) {
	published := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	got := Merge(
		[]SummaryRecord{rec("https://youtu.be/aaaaaaaaaaa", published, published, "a")},
		[]SummaryRecord{rec("https://youtu.be/bbbbbbbbbbb", published, published, "b")},
	)
	if len(got) != 2 {
		t.Fatalf("expected 2 records for distinct URLs, got %d", len(got))
	}
}

func TestSortRecords(t *testing.T) {
	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	records := []SummaryRecord{
		rec("https://youtu.be/aaaaaaaaaaa", base, base.Add(1*time.Hour), "a"),
		rec("https://youtu.be/bbbbbbbbbbb", base.Add(24*time.Hour), base, "b"),
		rec("https://youtu.be/ccccccccccc", base, base.Add(2*time.Hour), "c"),
	}
	SortRecords(records)

	want := []string{"b", "c", "a"} // newest publish first, then newest processed
	for i, w := range want {
		if records[i].Summary != w {
			t.Errorf("position %d = %q, want %q", i, records[i].Summary, w)
		}
	}
}
