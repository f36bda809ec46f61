package videos

import (
	"sort"
	"time"
)

// SummaryRecord is one published summary. The URL is the identity key
// everywhere: merges, stores and the site data all dedupe on it.
type SummaryRecord struct {
	Title       string    `json:"title"`
	ChannelName string    `json:"channelName"`
	PublishedAt time.Time `json:"publishedAt"`
	URL         string    `json:"url"`
	Summary     string    `json:"summary"`
	ProcessedAt time.Time `json:"processedAt"`
}

// Merge combines two record sets keyed by URL. When both sides carry the
// same URL the incoming record wins only with a strictly newer
// ProcessedAt; ties keep the existing record, so re-merging the same data
// is a no-op. The result is sorted newest first.
func Merge(existing, incoming []SummaryRecord) []SummaryRecord {
	byURL := make(map[string]SummaryRecord, len(existing)+len(incoming))
	for _, r := range existing {
		byURL[r.URL] = r
	}
	for _, r := range incoming {
		if prev, ok := byURL[r.URL]; ok && !r.ProcessedAt.After(prev.ProcessedAt) {
			continue
		}
		byURL[r.URL] = r
	}

	merged := make([]SummaryRecord, 0, len(byURL))
	for _, r := range byURL {
		merged = append(merged, r)
	}
	SortRecords(merged)
	return merged
}

// SortRecords orders records by PublishedAt descending, breaking ties by
// ProcessedAt descending.
func SortRecords(records []SummaryRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].PublishedAt.Equal(records[j].PublishedAt) {
			return records[i].PublishedAt.After(records[j].PublishedAt)
		}
		return records[i].ProcessedAt.After(records[j].ProcessedAt)
	})
}
