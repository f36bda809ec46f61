package engine

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// RateLimitError is raised when the provider reports quota exhaustion and
// no secondary credential can take over. It must propagate to the top of
// the run and halt the remainder of the batch; a 429 almost certainly
// affects every subsequent call.
type RateLimitError struct {
	Status            int
	RetryAfterHeader  string
	RetryAfterSeconds int // -1 when unresolvable
	Headers           http.Header
	ErrorDetails      json.RawMessage
}

func (e *RateLimitError) Error() string {
	if e.RetryAfterSeconds >= 0 {
		return fmt.Sprintf("gemini rate limited (HTTP %d, retry after %ds)", e.Status, e.RetryAfterSeconds)
	}
	return fmt.Sprintf("gemini rate limited (HTTP %d, retry-after unknown)", e.Status)
}

// Diagnostics renders everything a human needs to decide when to rerun:
// status, retry-after, sorted response headers, and the raw error details.
func (e *RateLimitError) Diagnostics() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "status: %d\n", e.Status)
	if e.RetryAfterHeader != "" {
		fmt.Fprintf(&sb, "retry-after header: %s\n", e.RetryAfterHeader)
	} else {
		sb.WriteString("retry-after header: (none)\n")
	}
	if e.RetryAfterSeconds >= 0 {
		fmt.Fprintf(&sb, "retry after: %ds (~%.2fh)\n", e.RetryAfterSeconds, float64(e.RetryAfterSeconds)/3600)
	} else {
		sb.WriteString("retry after: unknown\n")
	}
	if len(e.Headers) > 0 {
		sb.WriteString("response headers:\n")
		keys := make([]string, 0, len(e.Headers))
		for k := range e.Headers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "  %s: %s\n", k, strings.Join(e.Headers[k], ", "))
		}
	}
	if len(e.ErrorDetails) > 0 {
		fmt.Fprintf(&sb, "error details: %s\n", string(e.ErrorDetails))
	} else {
		sb.WriteString("error details: (none)\n")
	}
	return sb.String()
}

// ServiceUnavailableError is raised when the provider stays unavailable
// through the single transient retry. Like RateLimitError it halts the
// remainder of the batch.
type ServiceUnavailableError struct {
	Status int
	Body   string
}

func (e *ServiceUnavailableError) Error() string {
	return fmt.Sprintf("gemini service unavailable (HTTP %d)", e.Status)
}
