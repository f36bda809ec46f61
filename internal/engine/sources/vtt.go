package sources

import (
	"strconv"
	"strings"

	"github.com/anatolykoptev/go_tube/internal/engine"
)

// WebVTT parsing for yt-dlp caption output.
// Auto-generated tracks are full of inline <c>/<00:00:01.234> tags and
// rolling duplicate cues; tags are stripped here, duplicates are the
// normalizer's job.

// ParseVTT converts raw WebVTT content into timed segments:
// header/metadata/blank lines skipped, "start --> end" timing lines parsed
// to seconds, inline markup stripped, multi-line cues joined with a single
// space, cues that parse to empty text dropped.
func ParseVTT(content string) []Segment {
	lines := strings.Split(content, "\n")
	var segments []Segment

	i := 0
	for i < len(lines) {
		line := strings.TrimSpace(strings.TrimRight(lines[i], "\r"))
		if line == "" || strings.HasPrefix(line, "WEBVTT") ||
			strings.HasPrefix(line, "Kind:") || strings.HasPrefix(line, "Language:") ||
			strings.HasPrefix(line, "NOTE") {
			i++
			continue
		}
		if !strings.Contains(line, "-->") {
			i++
			continue
		}

		parts := strings.SplitN(line, "-->", 2)
		start := vttTimestampSeconds(strings.TrimSpace(parts[0]))
		end := vttTimestampSeconds(strings.TrimSpace(parts[1]))
		i++

		var textLines []string
		for i < len(lines) {
			cue := strings.TrimSpace(strings.TrimRight(lines[i], "\r"))
			if cue == "" {
				break
			}
			cleaned := engine.CleanMarkup(cue)
			if cleaned != "" {
				textLines = append(textLines, cleaned)
			}
			i++
		}

		text := strings.TrimSpace(strings.Join(textLines, " "))
		if text != "" {
			dur := end - start
			if dur < 0 {
				dur = 0
			}
			segments = append(segments, Segment{Text: text, Start: start, Duration: dur})
		}
		i++
	}
	return segments
}

// vttTimestampSeconds parses "HH:MM:SS.mmm" or "MM:SS.mmm" into seconds.
// Timing lines may carry position metadata after the timestamp ("align:
// start position:0%"); only the first token counts. Malformed values
// parse to 0 rather than killing the whole track.
func vttTimestampSeconds(value string) float64 {
	if idx := strings.IndexByte(value, ' '); idx >= 0 {
		value = value[:idx]
	}
	parts := strings.Split(value, ":")
	if len(parts) > 3 {
		return 0
	}

	var total float64
	for _, p := range parts {
		n, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return 0
		}
		total = total*60 + n
	}
	return total
}
