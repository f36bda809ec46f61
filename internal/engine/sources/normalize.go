package sources

import (
	"regexp"
	"strings"

	"github.com/anatolykoptev/go_tube/internal/engine"
)

// Auto-generated captions emit rolling near-duplicate cues: the same
// growing sentence repeated on every animation tick. One left-to-right
// pass collapses them against the last accepted segment.

// maxDupGapSeconds is the largest start-to-prev-end gap at which two cues
// still count as the same rolling caption.
const maxDupGapSeconds = 2.0

var comparableRe = regexp.MustCompile(`[^a-zA-Z0-9가-힣]+`)

// comparableText reduces cue text to a duplicate-detection form:
// whitespace collapsed, everything outside letters/digits/Hangul
// stripped, lowercased.
func comparableText(text string) string {
	return strings.ToLower(comparableRe.ReplaceAllString(engine.CollapseSpaces(text), ""))
}

// NormalizeSegments deduplicates overlapping caption segments.
// Pure over its input order, deterministic, idempotent. Rules against the
// last accepted segment, applied only when the gap (new start minus
// accepted end) is within maxDupGapSeconds:
//   - identical comparable text → drop the new cue
//   - new text contained in the accepted one → drop (trailing fragment)
//   - accepted text contained in the new one → merge forward: keep the
//     accepted start, take the longer text, extend duration to the new end
func NormalizeSegments(segments []Segment) []Segment {
	var out []Segment
	for _, seg := range segments {
		text := engine.CollapseSpaces(seg.Text)
		if text == "" {
			continue
		}
		cur := comparableText(text)

		if len(out) > 0 {
			prev := &out[len(out)-1]
			prevCmp := comparableText(prev.Text)
			gap := seg.Start - prev.End()

			if gap <= maxDupGapSeconds && cur != "" && prevCmp != "" {
				if cur == prevCmp {
					continue
				}
				if strings.Contains(prevCmp, cur) {
					continue
				}
				if strings.Contains(cur, prevCmp) {
					dur := seg.End() - prev.Start
					if dur < 0 {
						dur = 0
					}
					prev.Text = text
					prev.Duration = dur
					continue
				}
			}
		}

		out = append(out, Segment{Text: text, Start: seg.Start, Duration: seg.Duration})
	}
	return out
}

// PlainText flattens segments into the single-space-joined transcript
// text fed to the summarizer.
func PlainText(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		parts = append(parts, seg.Text)
	}
	return strings.Join(parts, " ")
}
