package sources

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/anatolykoptev/go_tube/internal/engine"
)

// Strategy 3: yt-dlp. Slowest path, but survives most of what breaks the
// API strategies (region locks, login walls), especially with cookies.
// Each run owns a fresh temp directory that is removed on every exit path.

// ytdlpBinary returns the configured yt-dlp path or the bare binary name.
func ytdlpBinary() string {
	if p := engine.Cfg.YtdlpPath; p != "" {
		return p
	}
	return "yt-dlp"
}

// ytdlpArgs builds the fixed argument contract, optionally prefixed with
// cookie flags. outputTemplate is yt-dlp's -o value inside the temp dir.
func ytdlpArgs(videoID, lang, outputTemplate string) []string {
	args := []string{
		"--skip-download",
		"--write-sub",
		"--write-auto-sub",
		"--sub-lang", lang,
		"--sub-format", "vtt",
		"-o", outputTemplate,
		WatchURL(videoID),
	}
	if c := engine.Cfg.YtdlpCookies; c != "" {
		args = append([]string{"--cookies", c}, args...)
	} else if b := engine.Cfg.YtdlpCookiesFromBrowser; b != "" {
		args = append([]string{"--cookies-from-browser", b}, args...)
	}
	return args
}

// pickVTTFile prefers the manual track (id.lang.vtt) over the
// auto-generated one (id.a.lang.vtt), over anything else that was written.
func pickVTTFile(names []string, lang string) string {
	var manual, auto, any string
	for _, name := range names {
		if !strings.HasSuffix(name, ".vtt") {
			continue
		}
		switch {
		case strings.HasSuffix(name, "."+lang+".vtt") && !strings.Contains(name, ".a."+lang+"."):
			manual = name
		case strings.HasSuffix(name, ".a."+lang+".vtt"):
			auto = name
		default:
			if any == "" {
				any = name
			}
		}
	}
	if manual != "" {
		return manual
	}
	if auto != "" {
		return auto
	}
	return any
}

// fetchCaptionsViaYtdlp runs strategy 3 end to end. The temp directory is
// exclusively owned by this call and removed before it returns: success,
// empty result, and error paths alike.
func fetchCaptionsViaYtdlp(ctx context.Context, videoID, lang string) ([]Segment, error) {
	engine.IncrYtdlpRuns()

	tmpDir, err := os.MkdirTemp("", "yt-sub-")
	if err != nil {
		return nil, fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	outputTemplate := filepath.Join(tmpDir, "%(id)s.%(ext)s")
	cmd := exec.CommandContext(ctx, ytdlpBinary(), ytdlpArgs(videoID, lang, outputTemplate)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("yt-dlp: %w: %s", err, engine.Truncate(string(out), 512))
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return nil, fmt.Errorf("read temp dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}

	vttFile := pickVTTFile(names, lang)
	if vttFile == "" {
		return nil, nil // no subtitle written: empty result, not an error
	}

	content, err := os.ReadFile(filepath.Join(tmpDir, vttFile))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", vttFile, err)
	}
	return ParseVTT(string(content)), nil
}
