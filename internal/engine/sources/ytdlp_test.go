package sources

import (
	"strings"
	"testing"

	"github.com/anatolykoptev/go_tube/internal/engine"
)

func TestYtdlpArgs(t *testing.T) {
	engine.Init(engine.Config{})
	args := ytdlpArgs("dQw4w9WgXcQ", "ko", "/tmp/x/%(id)s.%(ext)s")

	joined := strings.Join(args, " ")
	for _, want := range []string{
		"--skip-download",
		"--write-sub",
		"--write-auto-sub",
		"--sub-lang ko",
		"--sub-format vtt",
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %v", want, args)
		}
	}
	if strings.Contains(joined, "--cookies") {
		t.Errorf("unexpected cookie flags without config: %v", args)
	}
}

func TestYtdlpArgsCookies(t *testing.T) {
	engine.Init(engine.Config{YtdlpCookies: "/etc/cookies.txt"})
	args := ytdlpArgs("dQw4w9WgXcQ", "ko", "out")
	if args[0] != "--cookies" || args[1] != "/etc/cookies.txt" {
		t.Errorf("expected cookie flags first, got %v", args)
	}

	engine.Init(engine.Config{YtdlpCookiesFromBrowser: "firefox"})
	args = ytdlpArgs("dQw4w9WgXcQ", "ko", "out")
	if args[0] != "--cookies-from-browser" || args[1] != "firefox" {
		t.Errorf("expected browser cookie flags first, got %v", args)
	}
}

func TestPickVTTFile(t *testing.T) {
	tests := []struct {
		name  string
		files []string
		want  string
	}{
		{
			"manual preferred over auto",
			[]string{"id.a.ko.vtt", "id.ko.vtt"},
			"id.ko.vtt",
		},
		{
			"auto when no manual",
			[]string{"id.a.ko.vtt", "id.description"},
			"id.a.ko.vtt",
		},
		{
			"any vtt as last resort",
			[]string{"id.en.vtt"},
			"id.en.vtt",
		},
		{
			"nothing usable",
			[]string{"id.info.json"},
			"",
		},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pickVTTFile(tt.files, "ko"); got != tt.want {
				t.Errorf("pickVTTFile() = %q, want %q", got, tt.want)
			}
		})
	}
}
