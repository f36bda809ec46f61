package videos

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anatolykoptev/go_tube/internal/engine"
)

// Site data store: a single latest.json holding every published summary,
// written locally and mirrored to R2. On a fresh machine the local file
// is missing, so loading falls back to the deployed copy to keep the
// archive append-only across hosts.

const latestFile = "latest.json"

// SiteData is the latest.json document shape.
type SiteData struct {
	GeneratedAt time.Time       `json:"generatedAt"`
	Count       int             `json:"count"`
	Items       []SummaryRecord `json:"items"`
}

// LoadRecords returns the current archive: the local latest.json when
// present, otherwise the remote copy when a remote base is configured,
// otherwise empty. A corrupt or unreachable source degrades to empty
// rather than blocking the run.
func LoadRecords(ctx context.Context) []SummaryRecord {
	path := filepath.Join(engine.Cfg.OutputDir, latestFile)
	if data, err := os.ReadFile(path); err == nil {
		records, err := decodeSiteData(data)
		if err == nil {
			return records
		}
		slog.Warn("local site data corrupt, ignoring", slog.String("path", path), slog.Any("err", err))
	}

	if base := engine.Cfg.RemoteBase; base != "" {
		records, err := loadRemoteRecords(ctx, base)
		if err != nil {
			slog.Warn("remote site data unavailable", slog.Any("err", err))
			return nil
		}
		slog.Info("loaded site data from remote", slog.Int("count", len(records)))
		return records
	}
	return nil
}

func loadRemoteRecords(ctx context.Context, base string) ([]SummaryRecord, error) {
	url := strings.TrimRight(base, "/") + "/" + latestFile
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := engine.Cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: http %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return decodeSiteData(data)
}

func decodeSiteData(data []byte) ([]SummaryRecord, error) {
	var doc SiteData
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.Items, nil
}

// SaveRecords writes the full archive to latest.json, creating the
// output directory as needed. Records are sorted before writing so the
// file is deterministic for a given record set.
func SaveRecords(records []SummaryRecord) error {
	SortRecords(records)
	doc := SiteData{
		GeneratedAt: time.Now().UTC(),
		Count:       len(records),
		Items:       records,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal site data: %w", err)
	}

	if err := os.MkdirAll(engine.Cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(engine.Cfg.OutputDir, latestFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	slog.Info("site data written", slog.String("path", path), slog.Int("count", len(records)))
	return nil
}
