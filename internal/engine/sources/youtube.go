package sources

import (
	"fmt"
	"regexp"
	"time"
)

// VideoInfo describes one discovered channel video.
type VideoInfo struct {
	VideoID     string
	Title       string
	ChannelID   string
	ChannelName string
	PublishedAt time.Time
	URL         string
}

// Segment is one timed caption cue.
type Segment struct {
	Text     string
	Start    float64 // seconds
	Duration float64 // seconds
}

// End returns the segment end time in seconds.
func (s Segment) End() float64 { return s.Start + s.Duration }

var videoIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

var videoURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`youtube\.com/watch\?v=([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/embed/([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`youtu\.be/([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/v/([A-Za-z0-9_-]{11})`),
}

// ExtractVideoID returns the 11-character video ID from a YouTube URL,
// or the input itself when it already is a bare ID.
func ExtractVideoID(urlOrID string) (string, error) {
	if videoIDRe.MatchString(urlOrID) {
		return urlOrID, nil
	}
	for _, re := range videoURLPatterns {
		if m := re.FindStringSubmatch(urlOrID); m != nil {
			return m[1], nil
		}
	}
	return "", fmt.Errorf("not a YouTube URL or video ID: %q", urlOrID)
}

// WatchURL returns the canonical watch page URL for a video ID.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
