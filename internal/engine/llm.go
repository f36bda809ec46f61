package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// SkipSentinel is the literal provider reply meaning "transcript out of
// topical scope, deliberately not summarized". It is a valid terminal
// outcome, never an error, and must never be retried.
const SkipSentinel = "NO_RESPONSE"

const defaultGeminiBase = "https://generativelanguage.googleapis.com/v1beta"

// Summary is the outcome of one summarization call.
type Summary struct {
	Text    string
	Skipped bool // provider replied with exactly SkipSentinel
}

// Summarizer calls the Gemini generateContent API. Credential state
// (sticky secondary-key override, last captured rate-limit diagnostics)
// lives on the Summarizer instance, owned by the batch orchestrator, so
// concurrent runs in tests get independent state.
type Summarizer struct {
	client    *http.Client
	baseURL   string
	model     string
	primary   string
	secondary string
	switched  bool          // sticky: once on the secondary key, stay there
	backoff   time.Duration // wait before the single 503 retry

	// LastRateLimit holds diagnostics from the most recent 429, reset at
	// the start of each call. The pipeline reports it on a systemic halt.
	LastRateLimit *RateLimitError
}

// SummarizerOption configures a Summarizer.
type SummarizerOption func(*Summarizer)

// WithBaseURL overrides the provider endpoint (tests point it at httptest).
func WithBaseURL(u string) SummarizerOption {
	return func(s *Summarizer) { s.baseURL = strings.TrimSuffix(u, "/") }
}

// WithBackoff overrides the transient-failure backoff interval.
func WithBackoff(d time.Duration) SummarizerOption {
	return func(s *Summarizer) { s.backoff = d }
}

// NewSummarizer builds a Summarizer with a primary and optional secondary
// API key. The secondary key is swapped in once, process-wide sticky,
// after the primary hits a rate limit.
func NewSummarizer(primary, secondary, model string, client *http.Client, opts ...SummarizerOption) *Summarizer {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	s := &Summarizer{
		client:    client,
		baseURL:   defaultGeminiBase,
		model:     model,
		primary:   primary,
		secondary: secondary,
		backoff:   5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Summarizer) activeKey() string {
	if s.switched && s.secondary != "" {
		return s.secondary
	}
	return s.primary
}

// Summarize turns transcript text into a short summary in the requested
// language. Failure modes:
//   - 503 twice in a row → *ServiceUnavailableError (halts the batch)
//   - 429 with no viable secondary key → *RateLimitError (halts the batch)
//   - anything else → generic wrapped error (batch continues per item)
func (s *Summarizer) Summarize(ctx context.Context, transcriptText, lang string) (Summary, error) {
	s.LastRateLimit = nil
	prompt := BuildSummaryPrompt(transcriptText, lang)

	transientRetried := false
	for {
		key := s.activeKey()
		IncrLLMCalls()
		status, headers, body, err := s.generate(ctx, key, prompt)
		if err != nil {
			IncrLLMErrors()
			return Summary{}, fmt.Errorf("gemini request: %w", err)
		}

		switch {
		case status >= 200 && status < 300:
			text, err := extractCandidateText(body)
			if err != nil {
				IncrLLMErrors()
				return Summary{}, err
			}
			if strings.TrimSpace(text) == SkipSentinel {
				return Summary{Text: SkipSentinel, Skipped: true}, nil
			}
			return Summary{Text: strings.TrimSpace(text)}, nil

		case status == http.StatusServiceUnavailable:
			IncrLLMErrors()
			if !transientRetried {
				transientRetried = true
				slog.Warn("gemini 503, retrying once", slog.Duration("backoff", s.backoff))
				select {
				case <-time.After(s.backoff):
				case <-ctx.Done():
					return Summary{}, ctx.Err()
				}
				continue
			}
			return Summary{}, &ServiceUnavailableError{Status: status, Body: Truncate(string(body), 512)}

		case status == http.StatusTooManyRequests:
			IncrLLMErrors()
			// Failover: swap to the secondary key and redo the whole call
			// once. The 503 retry is available again on the new key.
			if s.secondary != "" && !s.switched && s.secondary != key {
				s.switched = true
				transientRetried = false
				IncrLLMKeySwitches()
				slog.Warn("gemini 429, switching to secondary API key")
				continue
			}
			rle := captureRateLimit(status, headers, body, time.Now())
			s.LastRateLimit = rle
			return Summary{}, rle

		default:
			IncrLLMErrors()
			return Summary{}, fmt.Errorf("gemini HTTP %d: %s", status, Truncate(string(body), 512))
		}
	}
}

// --- Gemini wire types ---

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type geminiErrorBody struct {
	Error struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Status  string          `json:"status"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

// generate issues one generateContent call and returns the raw status,
// headers, and body. Headers are first-class here: rate-limit handling
// needs them, so no transport-level interception.
func (s *Summarizer) generate(ctx context.Context, apiKey, prompt string) (int, http.Header, []byte, error) {
	reqBody, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return 0, nil, nil, err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", s.baseURL, s.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return 0, nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return resp.StatusCode, resp.Header, nil, err
	}
	return resp.StatusCode, resp.Header, body, nil
}

func extractCandidateText(body []byte) (string, error) {
	var gr geminiResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}
	if len(gr.Candidates) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}
	var sb strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("gemini returned an empty candidate")
	}
	return sb.String(), nil
}

// captureRateLimit builds the RateLimitError diagnostics from a 429
// response: raw Retry-After header, resolved seconds, all response
// headers, and the structured error details verbatim.
func captureRateLimit(status int, headers http.Header, body []byte, now time.Time) *RateLimitError {
	rle := &RateLimitError{
		Status:            status,
		RetryAfterHeader:  headers.Get("Retry-After"),
		RetryAfterSeconds: -1,
		Headers:           headers,
	}

	var eb geminiErrorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		rle.ErrorDetails = eb.Error.Details
	}

	if secs, ok := parseRetryAfter(rle.RetryAfterHeader, now); ok {
		rle.RetryAfterSeconds = secs
	} else if secs, ok := retryDelayFromDetails(rle.ErrorDetails); ok {
		rle.RetryAfterSeconds = secs
	}
	return rle
}

// parseRetryAfter resolves a Retry-After header value to seconds from now.
// Accepts delta-seconds ("120") or an HTTP-date.
func parseRetryAfter(value string, now time.Time) (int, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		return secs, true
	}
	if t, err := http.ParseTime(value); err == nil {
		secs := int(t.Sub(now).Seconds())
		if secs < 0 {
			secs = 0
		}
		return secs, true
	}
	return 0, false
}

// retryDelayFromDetails digs a RetryInfo retryDelay out of the structured
// error details. Accepts both the duration-string form ("30s") and the
// object form ({"seconds": 30}).
func retryDelayFromDetails(details json.RawMessage) (int, bool) {
	if len(details) == 0 {
		return 0, false
	}
	var items []struct {
		Type       string          `json:"@type"`
		RetryDelay json.RawMessage `json:"retryDelay"`
	}
	if err := json.Unmarshal(details, &items); err != nil {
		return 0, false
	}
	for _, item := range items {
		if len(item.RetryDelay) == 0 {
			continue
		}
		var asString string
		if err := json.Unmarshal(item.RetryDelay, &asString); err == nil {
			if d, err := time.ParseDuration(asString); err == nil {
				return int(d.Seconds()), true
			}
			continue
		}
		var asObject struct {
			Seconds int `json:"seconds"`
		}
		if err := json.Unmarshal(item.RetryDelay, &asObject); err == nil {
			return asObject.Seconds, true
		}
	}
	return 0, false
}
