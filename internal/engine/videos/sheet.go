package videos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/anatolykoptev/go_tube/internal/engine"
)

// Sheet webhook sink: each new summary is POSTed to a configured webhook
// (an Apps Script endpoint appending rows to a spreadsheet). Append-only
// and best-effort; the archive never depends on it.

type sheetRow struct {
	Title       string `json:"title"`
	ChannelName string `json:"channelName"`
	PublishedAt string `json:"publishedAt"`
	URL         string `json:"url"`
	Summary     string `json:"summary"`
	ProcessedAt string `json:"processedAt"`
}

// AppendToSheet posts one record to the sheet webhook. No-op when the
// webhook is not configured.
func AppendToSheet(ctx context.Context, record SummaryRecord) error {
	webhook := engine.Cfg.SheetWebhook
	if webhook == "" {
		return nil
	}

	body, err := json.Marshal(sheetRow{
		Title:       record.Title,
		ChannelName: record.ChannelName,
		PublishedAt: record.PublishedAt.Format("2006-01-02"),
		URL:         record.URL,
		// Sheets rejects cells over 50k characters.
		Summary:     engine.TruncateRunes(record.Summary, 45000, "…"),
		ProcessedAt: record.ProcessedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal sheet row: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("sheet request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := engine.Cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("sheet post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sheet post: http %d", resp.StatusCode)
	}

	engine.IncrSheetAppends()
	slog.Debug("sheet row appended", slog.String("url", record.URL))
	return nil
}
