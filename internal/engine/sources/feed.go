package sources

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/mmcdole/gofeed"

	"github.com/anatolykoptev/go_tube/internal/engine"
)

// Channel discovery via the public per-channel Atom feed. No API key, no
// quota. The feed only carries the latest ~15 uploads, which is all a
// periodic monitor needs.

const channelFeedURL = "https://www.youtube.com/feeds/videos.xml?channel_id=%s"

// ChannelVideos fetches the newest videos of one channel, capped at maxVideos.
func ChannelVideos(ctx context.Context, channelID string, maxVideos int) ([]VideoInfo, error) {
	engine.IncrFeedRequests()

	parser := gofeed.NewParser()
	parser.Client = engine.Cfg.HTTPClient
	feed, err := parser.ParseURLWithContext(fmt.Sprintf(channelFeedURL, channelID), ctx)
	if err != nil {
		return nil, fmt.Errorf("channel feed %s: %w", channelID, err)
	}

	var videos []VideoInfo
	for _, item := range feed.Items {
		if len(videos) >= maxVideos {
			break
		}
		videoID, err := ExtractVideoID(item.Link)
		if err != nil {
			continue
		}
		info := VideoInfo{
			VideoID:     videoID,
			Title:       item.Title,
			ChannelID:   channelID,
			ChannelName: feed.Title,
			URL:         item.Link,
		}
		if info.Title == "" {
			info.Title = "Unknown Title"
		}
		if info.ChannelName == "" {
			info.ChannelName = "Unknown Channel"
		}
		if item.PublishedParsed != nil {
			info.PublishedAt = *item.PublishedParsed
		}
		if info.URL == "" {
			info.URL = WatchURL(videoID)
		}
		videos = append(videos, info)
	}
	return videos, nil
}

// MultipleChannelsVideos fetches the newest videos across channels,
// newest first. A failing channel is logged and skipped so one broken
// feed never starves the rest of the batch.
func MultipleChannelsVideos(ctx context.Context, channelIDs []string, maxPerChannel int) []VideoInfo {
	var all []VideoInfo
	for _, channelID := range channelIDs {
		videos, err := ChannelVideos(ctx, channelID, maxPerChannel)
		if err != nil {
			slog.Warn("channel fetch failed", slog.String("channel", channelID), slog.Any("err", err))
			continue
		}
		all = append(all, videos...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].PublishedAt.After(all[j].PublishedAt)
	})
	return all
}
