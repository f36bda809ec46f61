package sources

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Transcript acquisition: an ordered chain of three strategies, each tried
// exactly once per call with the requested language only. Availability is
// wildly inconsistent across videos, so the exhaustion error carries the
// full attempt log, which is the primary diagnostic surface.

// NotFoundError means every acquisition strategy was exhausted.
type NotFoundError struct {
	VideoID  string
	Attempts []string
	LastErr  error
}

func (e *NotFoundError) Error() string {
	attempts := "no attempts"
	if len(e.Attempts) > 0 {
		attempts = strings.Join(e.Attempts, ", ")
	}
	last := "none"
	if e.LastErr != nil {
		last = e.LastErr.Error()
	}
	return fmt.Sprintf("no transcript found for %s (tried: %s; last error: %s)", e.VideoID, attempts, last)
}

func (e *NotFoundError) Unwrap() error { return e.LastErr }

// Acquire fetches the transcript for a video in the requested language,
// normalized and ordered. Strategies run strictly in order, never
// concurrently; an empty segment list counts as failure, because several
// endpoints answer 200 with an empty payload when captions are absent.
// Video details are returned when a strategy happened to surface them.
func Acquire(ctx context.Context, videoID, lang string) ([]Segment, *VideoDetails, error) {
	var attempts []string
	var lastErr error
	var details *VideoDetails

	record := func(strategy string, segCount int, err error) bool {
		switch {
		case err != nil:
			lastErr = err
			attempts = append(attempts, fmt.Sprintf("%s:%s(error:%s)", strategy, lang, err.Error()))
			slog.Warn("transcript strategy failed",
				slog.String("id", videoID), slog.String("strategy", strategy), slog.Any("err", err))
		case segCount == 0:
			attempts = append(attempts, fmt.Sprintf("%s:%s(empty)", strategy, lang))
			slog.Debug("transcript strategy empty",
				slog.String("id", videoID), slog.String("strategy", strategy))
		default:
			return true
		}
		return false
	}

	segments, d, err := fetchCaptionsViaWatchPage(ctx, videoID, lang)
	if d != nil {
		details = d
	}
	if record("captions", len(segments), err) {
		return NormalizeSegments(segments), details, nil
	}

	segments, err = fetchTranscriptViaEngagementPanel(ctx, videoID, lang)
	if record("transcript", len(segments), err) {
		return NormalizeSegments(segments), details, nil
	}

	segments, err = fetchCaptionsViaYtdlp(ctx, videoID, lang)
	if record("ytdlp", len(segments), err) {
		return NormalizeSegments(segments), details, nil
	}

	return nil, details, &NotFoundError{VideoID: videoID, Attempts: attempts, LastErr: lastErr}
}
