package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"

	"github.com/anatolykoptev/go_tube/internal/engine"
)

// Strategy 2: the transcript engagement panel. POST /next for the video,
// pull the getTranscriptEndpoint continuation token out of the raw JSON,
// then POST /get_transcript with the requested language in the client
// context. More tolerant than caption tracks for some videos, and works
// from datacenter IPs where timedtext URLs come back PoToken-gated.

// getTranscriptRE extracts the continuation token from a raw /next JSON response.
var getTranscriptRE = regexp.MustCompile(`"getTranscriptEndpoint":\{"params":"([^"]+)"`)

func extractTranscriptToken(data []byte) (string, error) {
	if m := getTranscriptRE.FindSubmatch(data); len(m) >= 2 {
		// The params value in the /next JSON response is URL-encoded.
		// /get_transcript expects the decoded (raw base64) form.
		decoded, err := url.QueryUnescape(string(m[1]))
		if err != nil {
			return string(m[1]), nil
		}
		return decoded, nil
	}
	return "", errors.New("getTranscriptEndpoint not found in engagement panels")
}

// parseTranscriptSegments converts a /get_transcript JSON response into
// timed segments. startMs/endMs arrive as decimal strings.
func parseTranscriptSegments(resp ytGetTranscriptResp) []Segment {
	var segments []Segment
	for _, action := range resp.Actions {
		if action.UpdateEngagementPanelAction == nil {
			continue
		}
		segs := action.UpdateEngagementPanelAction.Content.
			TranscriptRenderer.Content.
			TranscriptSearchPanelRenderer.Body.
			TranscriptSegmentListRenderer.InitialSegments
		for _, seg := range segs {
			r := seg.TranscriptSegmentRenderer
			if r == nil {
				continue
			}
			var text string
			for _, run := range r.Snippet.Runs {
				if run.Text == "" {
					continue
				}
				if text != "" {
					text += " "
				}
				text += run.Text
			}
			if text == "" {
				continue
			}
			startMs, _ := strconv.ParseFloat(r.StartMs, 64)
			endMs, _ := strconv.ParseFloat(r.EndMs, 64)
			dur := (endMs - startMs) / 1000
			if dur < 0 {
				dur = 0
			}
			segments = append(segments, Segment{Text: text, Start: startMs / 1000, Duration: dur})
		}
	}
	return segments
}

// fetchTranscriptViaEngagementPanel runs strategy 2 end to end:
//  1. POST /next → engagementPanels containing the transcript continuation token
//  2. POST /get_transcript with the token → timed JSON segments
func fetchTranscriptViaEngagementPanel(ctx context.Context, videoID, lang string) ([]Segment, error) {
	engine.IncrTranscriptRequests()
	visitorData := generateVisitorData()

	nextData, err := postInnerTubeWEB(ctx, ytNextURL, map[string]any{
		"videoId": videoID,
		"context": ytWebContext(visitorData, lang),
	}, visitorData)
	if err != nil {
		return nil, fmt.Errorf("/next: %w", err)
	}

	token, err := extractTranscriptToken(nextData)
	if err != nil {
		return nil, fmt.Errorf("token: %w", err)
	}

	transcriptData, err := postInnerTubeWEB(ctx, ytGetTranscriptURL, map[string]any{
		"params": token,
		"context": map[string]any{
			"client": ytWebClientCtx{
				ClientName:    "WEB",
				ClientVersion: ytWebVersion,
				VisitorData:   visitorData,
				Hl:            lang,
				Gl:            "US",
			},
		},
	}, visitorData)
	if err != nil {
		return nil, fmt.Errorf("/get_transcript: %w", err)
	}

	var transcriptResp ytGetTranscriptResp
	if err := json.Unmarshal(transcriptData, &transcriptResp); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}

	return parseTranscriptSegments(transcriptResp), nil
}
