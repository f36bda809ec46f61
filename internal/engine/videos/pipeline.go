package videos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/anatolykoptev/go_tube/internal/engine"
	"github.com/anatolykoptev/go_tube/internal/engine/sources"
)

// Batch pipeline: discover channel videos, skip what the ledger already
// knows, then acquire, summarize and publish the rest. Quota exhaustion
// halts the whole batch instead of burning through the remaining videos,
// but everything finished before the halt is flushed first.

// Report summarizes one pipeline run.
type Report struct {
	Total      int
	Summarized int
	Skipped    int
	Failed     int
	Halted     bool
	HaltReason string
}

func (r Report) String() string {
	s := fmt.Sprintf("processed %d/%d (skipped %d, failed %d)",
		r.Summarized, r.Total, r.Skipped, r.Failed)
	if r.Halted {
		s += ", halted: " + r.HaltReason
	}
	return s
}

// Pipeline wires the acquisition chain, summarizer and stores together.
type Pipeline struct {
	summarizer *engine.Summarizer
	ledger     *Ledger
	r2         *R2Client // nil when R2 is not configured
	db         *RecordDB // nil when Postgres is not configured

	// acquire is sources.Acquire, swappable in tests.
	acquire func(ctx context.Context, videoID, lang string) ([]sources.Segment, *sources.VideoDetails, error)
}

// NewPipeline assembles a pipeline from engine config. The ledger is
// required; R2 and Postgres are attached only when configured.
func NewPipeline(ctx context.Context) (*Pipeline, error) {
	c := engine.Cfg
	if c.GeminiAPIKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	ledger, err := OpenLedger()
	if err != nil {
		return nil, err
	}

	r2, err := NewR2Client(ctx)
	if err != nil {
		ledger.Close()
		return nil, err
	}
	db, err := ConnectRecordDB(ctx, c.DatabaseURL)
	if err != nil {
		ledger.Close()
		return nil, err
	}

	return &Pipeline{
		summarizer: engine.NewSummarizer(c.GeminiAPIKey, c.GeminiAPIKeySecondary, c.GeminiModel, c.HTTPClient),
		ledger:     ledger,
		r2:         r2,
		db:         db,
		acquire:    sources.Acquire,
	}, nil
}

// Close releases the pipeline's stores.
func (p *Pipeline) Close() {
	p.ledger.Close()
	if p.db != nil {
		p.db.Close()
	}
}

// Run executes one monitoring cycle over the configured channels.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	c := engine.Cfg
	videos := sources.MultipleChannelsVideos(ctx, c.ChannelIDs, c.MaxVideosPerCheck)
	slog.Info("channel check complete",
		slog.Int("channels", len(c.ChannelIDs)), slog.Int("videos", len(videos)))
	return p.Process(ctx, videos)
}

// Process runs the pipeline over an explicit video list. Already-ledgered
// videos are filtered out first; the rest are processed in order. A rate
// limit or service outage from the summarizer halts the batch after
// flushing what already succeeded.
func (p *Pipeline) Process(ctx context.Context, videos []sources.VideoInfo) (Report, error) {
	var report Report
	pending := make([]sources.VideoInfo, 0, len(videos))
	for _, v := range videos {
		done, err := p.ledger.IsProcessed(ctx, v.VideoID)
		if err != nil {
			return report, err
		}
		if !done {
			pending = append(pending, v)
		}
	}
	report.Total = len(pending)
	if len(pending) == 0 {
		slog.Info("nothing new to process")
		return report, nil
	}

	// Videos with a cached transcript go first: after a rate-limit halt
	// they are one API call from done, and a repeat halt should land after
	// them, not before.
	cached := make(map[string]bool, len(pending))
	for _, v := range pending {
		_, ok := engine.CacheGet(ctx, engine.TranscriptKey(v.VideoID))
		cached[v.VideoID] = ok
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return cached[pending[i].VideoID] && !cached[pending[j].VideoID]
	})

	lang := engine.Cfg.SubtitleLanguage
	var newRecords []SummaryRecord

	for _, video := range pending {
		if err := ctx.Err(); err != nil {
			report.Halted = true
			report.HaltReason = err.Error()
			break
		}

		record, result, err := p.processOne(ctx, video, lang)
		switch result {
		case outcomeSummarized:
			newRecords = append(newRecords, record)
			report.Summarized++
			if sheetErr := AppendToSheet(ctx, record); sheetErr != nil {
				slog.Warn("sheet append failed", slog.String("id", video.VideoID), slog.Any("err", sheetErr))
			}
		case outcomeSkipped:
			report.Skipped++
		case outcomeFailed:
			report.Failed++
			slog.Warn("video failed", slog.String("id", video.VideoID), slog.Any("err", err))
		case outcomeHalt:
			report.Halted = true
			report.HaltReason = err.Error()
			var rle *engine.RateLimitError
			if errors.As(err, &rle) {
				slog.Error("rate limited, halting batch", slog.String("diagnostics", rle.Diagnostics()))
			} else {
				slog.Error("summarizer unavailable, halting batch", slog.Any("err", err))
			}
		}
		if report.Halted {
			break
		}
	}

	if err := p.flush(ctx, newRecords); err != nil {
		return report, err
	}
	slog.Info("run finished", slog.String("report", report.String()))
	return report, nil
}

type outcome int

const (
	outcomeSummarized outcome = iota
	outcomeSkipped
	outcomeFailed
	outcomeHalt
)

// processOne takes a single video through acquire, summarize and the
// ledger. Halt-class summarizer errors are reported without a ledger
// entry so the video is retried on the next run.
func (p *Pipeline) processOne(ctx context.Context, video sources.VideoInfo, lang string) (SummaryRecord, outcome, error) {
	text, details, err := p.transcriptText(ctx, video.VideoID, lang)
	if err != nil {
		p.mark(ctx, video.VideoID, LedgerFailed, err.Error())
		return SummaryRecord{}, outcomeFailed, err
	}

	summary, err := p.summaryFor(ctx, video.VideoID, text, lang)
	if err != nil {
		var rle *engine.RateLimitError
		var sue *engine.ServiceUnavailableError
		if errors.As(err, &rle) || errors.As(err, &sue) {
			return SummaryRecord{}, outcomeHalt, err
		}
		p.mark(ctx, video.VideoID, LedgerFailed, err.Error())
		return SummaryRecord{}, outcomeFailed, err
	}
	if summary.Skipped {
		slog.Info("no summarizable content", slog.String("id", video.VideoID))
		p.mark(ctx, video.VideoID, LedgerSuccess, "no summarizable content")
		return SummaryRecord{}, outcomeSkipped, nil
	}

	record := SummaryRecord{
		Title:       video.Title,
		ChannelName: video.ChannelName,
		PublishedAt: video.PublishedAt,
		URL:         video.URL,
		Summary:     summary.Text,
		ProcessedAt: time.Now().UTC(),
	}
	if record.URL == "" {
		record.URL = sources.WatchURL(video.VideoID)
	}
	if details != nil {
		if record.Title == "" {
			record.Title = details.Title
		}
		if record.ChannelName == "" {
			record.ChannelName = details.Author
		}
	}
	p.mark(ctx, video.VideoID, LedgerSuccess, "")
	return record, outcomeSummarized, nil
}

// transcriptText returns the normalized plain transcript, from cache when
// possible. Only the flattened text is cached; segments never leave the
// acquisition layer.
func (p *Pipeline) transcriptText(ctx context.Context, videoID, lang string) (string, *sources.VideoDetails, error) {
	key := engine.TranscriptKey(videoID)
	if cached, ok := engine.CacheGet(ctx, key); ok {
		return cached, nil, nil
	}

	var segments []sources.Segment
	var details *sources.VideoDetails
	err := engine.TrackOperation(ctx, "acquire "+videoID, func(ctx context.Context) error {
		var err error
		segments, details, err = p.acquire(ctx, videoID, lang)
		return err
	})
	if err != nil {
		return "", nil, err
	}
	text := sources.PlainText(segments)
	if text == "" {
		return "", details, fmt.Errorf("empty transcript for %s", videoID)
	}
	engine.CacheSet(ctx, key, text)
	return text, details, nil
}

// summaryFor returns the summary for a transcript, from cache when
// possible. Skipped summaries are not cached: the sentinel answer is
// cheap to reproduce and models change their minds.
func (p *Pipeline) summaryFor(ctx context.Context, videoID, text, lang string) (engine.Summary, error) {
	key := engine.SummaryKey(videoID)
	if cached, ok := engine.CacheGet(ctx, key); ok {
		return engine.Summary{Text: cached}, nil
	}

	summary, err := p.summarizer.Summarize(ctx, text, lang)
	if err != nil {
		return engine.Summary{}, err
	}
	if !summary.Skipped {
		engine.CacheSet(ctx, key, summary.Text)
	}
	return summary, nil
}

func (p *Pipeline) mark(ctx context.Context, videoID string, status LedgerStatus, msg string) {
	if err := p.ledger.Mark(ctx, videoID, status, msg); err != nil {
		slog.Warn("ledger write failed", slog.String("id", videoID), slog.Any("err", err))
	}
}

// loadArchive returns the current archive for merging. A fresh host has
// neither the local file nor a remote base, so the published R2 shards
// and then Postgres are consulted before giving up; merging into an
// empty set would drop history from the next publish.
func (p *Pipeline) loadArchive(ctx context.Context) []SummaryRecord {
	if records := LoadRecords(ctx); len(records) > 0 {
		return records
	}
	if p.r2 != nil {
		records, err := p.r2.DownloadAll(ctx)
		if err != nil {
			slog.Warn("r2 archive load failed", slog.Any("err", err))
		} else if len(records) > 0 {
			slog.Info("archive seeded from r2", slog.Int("count", len(records)))
			return records
		}
	}
	if p.db != nil {
		records, err := p.db.Load(ctx)
		if err != nil {
			slog.Warn("postgres archive load failed", slog.Any("err", err))
		} else if len(records) > 0 {
			slog.Info("archive seeded from postgres", slog.Int("count", len(records)))
			return records
		}
	}
	return nil
}

// flush merges new records into the archive and pushes the result to
// every configured store. Called even on halted runs.
func (p *Pipeline) flush(ctx context.Context, newRecords []SummaryRecord) error {
	if len(newRecords) == 0 {
		return nil
	}

	merged := Merge(p.loadArchive(ctx), newRecords)
	if err := SaveRecords(merged); err != nil {
		return err
	}
	if p.r2 != nil {
		if err := p.r2.Publish(ctx, merged); err != nil {
			slog.Error("r2 publish failed", slog.Any("err", err))
		}
	}
	if p.db != nil {
		if err := p.db.Save(ctx, newRecords); err != nil {
			slog.Error("postgres save failed", slog.Any("err", err))
		}
	}
	return nil
}
