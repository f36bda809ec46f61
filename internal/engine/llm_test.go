package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func geminiOK(text string) string {
	return fmt.Sprintf(`{"candidates":[{"content":{"parts":[{"text":%q}]}}]}`, text)
}

func TestSummarizeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-goog-api-key"); got != "key-a" {
			t.Errorf("api key header = %q, want %q", got, "key-a")
		}
		fmt.Fprint(w, geminiOK("summary text"))
	}))
	defer srv.Close()

	s := NewSummarizer("key-a", "", "gemini-2.5-flash", srv.Client(), WithBaseURL(srv.URL))
	got, err := s.Summarize(context.Background(), "transcript", "ko")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Skipped {
		t.Error("unexpected Skipped")
	}
	if got.Text != "summary text" {
		t.Errorf("got %q, want %q", got.Text, "summary text")
	}
}

func TestSummarizeSkipSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, geminiOK("  NO_RESPONSE\n"))
	}))
	defer srv.Close()

	s := NewSummarizer("key-a", "", "gemini-2.5-flash", srv.Client(), WithBaseURL(srv.URL))
	got, err := s.Summarize(context.Background(), "off-topic transcript", "ko")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Skipped {
		t.Fatal("expected Skipped for sentinel reply")
	}
}

func TestSummarize503RetryThenSuccess(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, geminiOK("recovered"))
	}))
	defer srv.Close()

	s := NewSummarizer("key-a", "", "gemini-2.5-flash", srv.Client(),
		WithBaseURL(srv.URL), WithBackoff(time.Millisecond))
	got, err := s.Summarize(context.Background(), "transcript", "ko")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Text != "recovered" {
		t.Errorf("got %q, want %q", got.Text, "recovered")
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestSummarize503Twice(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewSummarizer("key-a", "", "gemini-2.5-flash", srv.Client(),
		WithBaseURL(srv.URL), WithBackoff(time.Millisecond))
	_, err := s.Summarize(context.Background(), "transcript", "ko")

	var sue *ServiceUnavailableError
	if !errors.As(err, &sue) {
		t.Fatalf("expected ServiceUnavailableError, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected exactly 2 calls (one retry), got %d", calls)
	}
}

func TestSummarize429Failover(t *testing.T) {
	var keys []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("x-goog-api-key")
		keys = append(keys, key)
		if key == "key-a" {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, geminiOK("via secondary"))
	}))
	defer srv.Close()

	s := NewSummarizer("key-a", "key-b", "gemini-2.5-flash", srv.Client(), WithBaseURL(srv.URL))
	got, err := s.Summarize(context.Background(), "transcript", "ko")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Text != "via secondary" {
		t.Errorf("got %q, want %q", got.Text, "via secondary")
	}

	// The switch is sticky: the next call starts on the secondary key.
	if _, err := s.Summarize(context.Background(), "another transcript", "ko"); err != nil {
		t.Fatalf("unexpected error on second call: %v", err)
	}
	want := []string{"key-a", "key-b", "key-b"}
	if len(keys) != len(want) {
		t.Fatalf("expected %d requests, got %d: %v", len(want), len(keys), keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("request %d used key %q, want %q", i, keys[i], want[i])
		}
	}
}

func TestSummarize429NoSecondary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`)
	}))
	defer srv.Close()

	s := NewSummarizer("key-a", "", "gemini-2.5-flash", srv.Client(), WithBaseURL(srv.URL))
	_, err := s.Summarize(context.Background(), "transcript", "ko")

	var rle *RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if rle.RetryAfterSeconds != 120 {
		t.Errorf("RetryAfterSeconds = %d, want 120", rle.RetryAfterSeconds)
	}
	if rle.RetryAfterHeader != "120" {
		t.Errorf("RetryAfterHeader = %q, want %q", rle.RetryAfterHeader, "120")
	}
	if s.LastRateLimit != rle {
		t.Error("LastRateLimit not set on the summarizer")
	}
}

func TestSummarize429SecondaryAlsoLimited(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := NewSummarizer("key-a", "key-b", "gemini-2.5-flash", srv.Client(), WithBaseURL(srv.URL))
	_, err := s.Summarize(context.Background(), "transcript", "ko")

	var rle *RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if calls != 2 { // primary once, secondary once, then give up
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		value string
		want  int
		ok    bool
	}{
		{"delta seconds", "120", 120, true},
		{"zero", "0", 0, true},
		{"http date", now.Add(60 * time.Second).Format(http.TimeFormat), 60, true},
		{"past http date", now.Add(-60 * time.Second).Format(http.TimeFormat), 0, true},
		{"negative", "-5", 0, false},
		{"empty", "", 0, false},
		{"garbage", "soon", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseRetryAfter(tt.value, now)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRetryDelayFromDetails(t *testing.T) {
	tests := []struct {
		name    string
		details string
		want    int
		ok      bool
	}{
		{
			"duration string",
			`[{"@type":"type.googleapis.com/google.rpc.RetryInfo","retryDelay":"30s"}]`,
			30, true,
		},
		{
			"seconds object",
			`[{"@type":"type.googleapis.com/google.rpc.RetryInfo","retryDelay":{"seconds":30}}]`,
			30, true,
		},
		{"no retry info", `[{"@type":"type.googleapis.com/google.rpc.ErrorInfo"}]`, 0, false},
		{"empty", ``, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := retryDelayFromDetails(json.RawMessage(tt.details))
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}
