package sources

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/anatolykoptev/go_tube/internal/engine"
)

// Strategy 1: scrape the watch page for ytInitialPlayerResponse, pick the
// caption track for the exact requested language, and fetch its timedtext
// XML. An empty segment list is a failure: YouTube happily answers 200
// with an empty payload when captions are absent.

// VideoDetails is the metadata embedded in the player response.
type VideoDetails struct {
	VideoID string
	Title   string
	Author  string
}

// ytInitialPlayerResponseMarker marks the start of the player response JSON in watch page HTML.
const ytInitialPlayerResponseMarker = "ytInitialPlayerResponse = "

// needsPoToken reports whether a caption track URL requires a PoToken (browser-only).
// Tracks with &exp=xpe cannot be fetched server-side.
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

// pickTrack selects the caption track for exactly the requested language.
// Manual tracks win over auto-generated ("asr") ones; other languages are
// never substituted; emptiness has to surface so the next strategy runs.
func pickTrack(tracks []captionTrack, lang string) (captionTrack, bool) {
	usable := make([]captionTrack, 0, len(tracks))
	for _, t := range tracks {
		if !needsPoToken(t.BaseURL) {
			usable = append(usable, t)
		}
	}
	for _, t := range usable {
		if t.LanguageCode == lang && t.Kind != "asr" {
			return t, true
		}
	}
	for _, t := range usable {
		if t.LanguageCode == lang {
			return t, true
		}
	}
	return captionTrack{}, false
}

// fetchWatchPage downloads the watch page HTML, preferring the browser
// TLS client when configured (datacenter IPs get PoToken-gated tracks on
// plain clients far more often).
func fetchWatchPage(ctx context.Context, videoID string) ([]byte, error) {
	watchURL := WatchURL(videoID)

	if bc := engine.Cfg.BrowserClient; bc != nil {
		body, status, err := bc.Do(http.MethodGet, watchURL, engine.ChromeHeaders(), nil)
		if err != nil {
			return nil, fmt.Errorf("watch page: %w", err)
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("watch page: HTTP %d", status)
		}
		return body, nil
	}

	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, watchURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", engine.UserAgentChrome)
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		return engine.Cfg.HTTPClient.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("watch page: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 6*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read watch page: %w", err)
	}
	return body, nil
}

// parsePlayerResponse extracts ytInitialPlayerResponse JSON from watch page HTML.
func parsePlayerResponse(body []byte) (*playerResp, error) {
	idx := strings.Index(string(body), ytInitialPlayerResponseMarker)
	if idx < 0 {
		return nil, errors.New("ytInitialPlayerResponse not found in watch page")
	}
	jsonData := extractJSON(body[idx+len(ytInitialPlayerResponseMarker):])
	if jsonData == nil {
		return nil, errors.New("failed to extract ytInitialPlayerResponse JSON")
	}

	var pr playerResp
	if err := json.Unmarshal(jsonData, &pr); err != nil {
		return nil, fmt.Errorf("decode ytInitialPlayerResponse: %w", err)
	}
	return &pr, nil
}

// fetchTimedText fetches and parses a timedtext XML caption URL into timed segments.
func fetchTimedText(ctx context.Context, baseURL string) ([]Segment, error) {
	if err := ytLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", engine.UserAgentBot)
		return engine.Cfg.HTTPClient.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch timedtext: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	if err != nil {
		return nil, err
	}

	var tt ytTimedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return nil, fmt.Errorf("parse timedtext XML: %w", err)
	}

	segments := make([]Segment, 0, len(tt.Lines))
	for _, line := range tt.Lines {
		text := engine.CleanMarkup(line.Text)
		if text == "" {
			continue
		}
		segments = append(segments, Segment{Text: text, Start: line.Start, Duration: line.Dur})
	}
	return segments, nil
}

// fetchCaptionsViaWatchPage runs strategy 1 end to end. Also returns the
// video details the player response carries, so callers without discovery
// metadata (single-video mode) get title and channel for free.
func fetchCaptionsViaWatchPage(ctx context.Context, videoID, lang string) ([]Segment, *VideoDetails, error) {
	engine.IncrCaptionRequests()

	body, err := fetchWatchPage(ctx, videoID)
	if err != nil {
		return nil, nil, err
	}

	pr, err := parsePlayerResponse(body)
	if err != nil {
		return nil, nil, err
	}

	var details *VideoDetails
	if pr.VideoDetails != nil {
		details = &VideoDetails{
			VideoID: pr.VideoDetails.VideoID,
			Title:   pr.VideoDetails.Title,
			Author:  pr.VideoDetails.Author,
		}
	}

	if pr.Captions == nil {
		reason := ""
		if pr.PlayabilityStatus != nil {
			reason = pr.PlayabilityStatus.Reason
		}
		if reason != "" {
			return nil, details, fmt.Errorf("captions unavailable: %s", reason)
		}
		return nil, details, errors.New("no captions in player response")
	}
	tracks := pr.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
	if len(tracks) == 0 {
		return nil, details, errors.New("no caption tracks")
	}
	track, ok := pickTrack(tracks, lang)
	if !ok {
		return nil, details, fmt.Errorf("no usable %q caption track", lang)
	}

	segments, err := fetchTimedText(ctx, track.BaseURL)
	if err != nil {
		return nil, details, err
	}
	return segments, details, nil
}
