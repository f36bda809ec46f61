package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters across the engine.
var metrics struct {
	FeedRequests       atomic.Int64
	CaptionRequests    atomic.Int64
	TranscriptRequests atomic.Int64
	YtdlpRuns          atomic.Int64
	LLMCalls           atomic.Int64
	LLMErrors          atomic.Int64
	LLMKeySwitches     atomic.Int64
	SheetAppends       atomic.Int64
	R2Uploads          atomic.Int64
	R2Skips            atomic.Int64
}

// GetMetrics returns a snapshot of all metrics including cache stats.
func GetMetrics() map[string]int64 {
	hits, misses := CacheStats()
	return map[string]int64{
		"feed_requests":       metrics.FeedRequests.Load(),
		"caption_requests":    metrics.CaptionRequests.Load(),
		"transcript_requests": metrics.TranscriptRequests.Load(),
		"ytdlp_runs":          metrics.YtdlpRuns.Load(),
		"llm_calls":           metrics.LLMCalls.Load(),
		"llm_errors":          metrics.LLMErrors.Load(),
		"llm_key_switches":    metrics.LLMKeySwitches.Load(),
		"sheet_appends":       metrics.SheetAppends.Load(),
		"r2_uploads":          metrics.R2Uploads.Load(),
		"r2_skips":            metrics.R2Skips.Load(),
		"cache_hits":          hits,
		"cache_misses":        misses,
	}
}

// FormatMetrics returns metrics as a simple text format for the end-of-run report.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	keys := []string{
		"feed_requests", "caption_requests", "transcript_requests", "ytdlp_runs",
		"llm_calls", "llm_errors", "llm_key_switches",
		"sheet_appends", "r2_uploads", "r2_skips",
		"cache_hits", "cache_misses",
	}
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// Incrementors for sources/ and videos/ sub-packages.
func IncrFeedRequests()       { metrics.FeedRequests.Add(1) }
func IncrCaptionRequests()    { metrics.CaptionRequests.Add(1) }
func IncrTranscriptRequests() { metrics.TranscriptRequests.Add(1) }
func IncrYtdlpRuns()          { metrics.YtdlpRuns.Add(1) }
func IncrLLMCalls()           { metrics.LLMCalls.Add(1) }
func IncrLLMErrors()          { metrics.LLMErrors.Add(1) }
func IncrLLMKeySwitches()     { metrics.LLMKeySwitches.Add(1) }
func IncrSheetAppends()       { metrics.SheetAppends.Add(1) }
func IncrR2Uploads()          { metrics.R2Uploads.Add(1) }
func IncrR2Skips()            { metrics.R2Skips.Add(1) }

// TrackOperation logs a warning if an operation takes longer than threshold.
func TrackOperation(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if elapsed > 5*time.Second {
		slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
