// go_tube — YouTube channel monitor that turns new videos into
// AI-written summaries.
//
// Each run discovers recent uploads, pulls transcripts through a chain of
// fallback strategies, summarizes them with Gemini and publishes the
// merged archive as site JSON, to R2, and optionally to Postgres and a
// spreadsheet webhook. Runs once by default; --watch keeps it on an
// hourly schedule.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/robfig/cron/v3"

	"github.com/anatolykoptev/go_tube/internal/engine"
	"github.com/anatolykoptev/go_tube/internal/engine/videos"
)

var version = "dev"

func main() {
	watch := flag.Bool("watch", false, "keep running on an hourly schedule")
	schedule := flag.String("schedule", "@hourly", "cron schedule for --watch mode")
	flag.Parse()

	initEngine()
	slog.Info("starting go_tube", slog.String("version", version), slog.Bool("watch", *watch))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline, err := videos.NewPipeline(ctx)
	if err != nil {
		slog.Error("pipeline init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pipeline.Close()

	if !*watch {
		if err := runOnce(ctx, pipeline); err != nil {
			os.Exit(1)
		}
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(*schedule, func() { runOnce(ctx, pipeline) }); err != nil {
		slog.Error("bad schedule", slog.String("schedule", *schedule), slog.Any("error", err))
		os.Exit(1)
	}
	runOnce(ctx, pipeline) // first cycle immediately, then on schedule
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	slog.Info("shutting down")
}

func runOnce(ctx context.Context, pipeline *videos.Pipeline) error {
	report, err := pipeline.Run(ctx)
	if err != nil {
		slog.Error("run failed", slog.Any("error", err))
		return err
	}
	slog.Info("cycle complete",
		slog.String("report", report.String()),
		slog.String("metrics", engine.FormatMetrics()),
	)
	return nil
}

func initEngine() {
	c := engine.Config{
		ChannelIDs:        env.List("CHANNEL_IDS", ""),
		MaxVideosPerCheck: env.Int("MAX_VIDEOS_PER_CHECK", 5),
		SubtitleLanguage:  env.Str("SUBTITLE_LANGUAGE", "ko"),

		GeminiAPIKey:          env.Str("GEMINI_API_KEY", ""),
		GeminiAPIKeySecondary: env.Str("GEMINI_API_KEY_SECONDARY", ""),
		GeminiModel:           env.Str("GEMINI_MODEL", "gemini-1.5-flash"),

		YtdlpPath:               env.Str("YTDLP_PATH", ""),
		YtdlpCookies:            env.Str("YTDLP_COOKIES", ""),
		YtdlpCookiesFromBrowser: env.Str("YTDLP_COOKIES_FROM_BROWSER", ""),

		OutputDir:    env.Str("OUTPUT_DIR", "site-data"),
		RemoteBase:   env.Str("REMOTE_BASE", ""),
		R2Bucket:     env.Str("R2_BUCKET", ""),
		R2AccountID:  env.Str("R2_ACCOUNT_ID", ""),
		R2AccessKey:  env.Str("R2_ACCESS_KEY_ID", ""),
		R2SecretKey:  env.Str("R2_SECRET_ACCESS_KEY", ""),
		SheetWebhook: env.Str("SHEET_WEBHOOK", ""),
		DatabaseURL:  env.Str("DATABASE_URL", ""),
		LedgerPath:   env.Str("LEDGER_PATH", ""),

		CacheMaxEntries:      env.Int("CACHE_MAX_ENTRIES", 1000),
		CacheCleanupInterval: env.Duration("CACHE_CLEANUP_INTERVAL", 300*time.Second),

		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}

	bc, err := engine.NewBrowserClient()
	if err != nil {
		slog.Warn("browser client init failed, using plain http for watch pages", slog.Any("error", err))
	} else {
		c.BrowserClient = bc
	}

	engine.Init(c)
	engine.InitCache(
		env.Str("REDIS_URL", ""),
		env.Duration("CACHE_TTL", time.Hour),
		c.CacheMaxEntries,
		c.CacheCleanupInterval,
	)
}
