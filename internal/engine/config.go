package engine

import (
	"net/http"
	"time"
)

// Config holds all engine configuration, injected from main.
type Config struct {
	ChannelIDs        []string
	MaxVideosPerCheck int
	SubtitleLanguage  string

	GeminiAPIKey          string
	GeminiAPIKeySecondary string
	GeminiModel           string

	YtdlpPath               string
	YtdlpCookies            string // path to a cookies.txt file
	YtdlpCookiesFromBrowser string // browser name for cookie extraction

	OutputDir    string
	RemoteBase   string // remote site-data base URL, load fallback when local latest.json is missing
	R2Bucket     string
	R2AccountID  string
	R2AccessKey  string
	R2SecretKey  string
	SheetWebhook string
	DatabaseURL  string // optional Postgres record store
	LedgerPath   string

	CacheMaxEntries      int
	CacheCleanupInterval time.Duration

	HTTPClient    *http.Client
	BrowserClient *BrowserClient // nil = watch-page scrape falls back to HTTPClient
}

var cfg Config

// Cfg exposes the engine configuration for sub-packages (sources, videos).
// Always points to the current cfg value.
var Cfg = &cfg

// Init initializes the engine with the given configuration.
func Init(c Config) {
	cfg = c
	Cfg = &cfg
}
