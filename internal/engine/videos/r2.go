package videos

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/anatolykoptev/go_tube/internal/engine"
)

// R2 publisher. The archive is sharded into one summaries/YYYY-MM-DD.json
// object per publish date plus an index.json listing the dates. Historical
// shards rarely change, so each upload is skipped when the local MD5
// matches the stored ETag. R2 serves single-part ETags as plain MD5, which
// is what makes the comparison valid here.

const (
	summariesPrefix = "summaries/"
	indexKey        = "index.json"

	shardCacheControl = "public, max-age=3600"
	indexCacheControl = "public, max-age=300"
)

// R2Client publishes the summary archive to a Cloudflare R2 bucket.
type R2Client struct {
	s3     *s3.Client
	bucket string
}

// NewR2Client builds the publisher from engine config. Returns nil when
// R2 is not configured, which the pipeline treats as "publishing off".
func NewR2Client(ctx context.Context) (*R2Client, error) {
	c := engine.Cfg
	if c.R2Bucket == "" || c.R2AccountID == "" || c.R2AccessKey == "" || c.R2SecretKey == "" {
		return nil, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.R2AccessKey, c.R2SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("r2 config: %w", err)
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.R2AccountID)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})
	return &R2Client{s3: client, bucket: c.R2Bucket}, nil
}

// GroupByDate buckets records into shard keys by publish date (UTC).
func GroupByDate(records []SummaryRecord) map[string][]SummaryRecord {
	groups := make(map[string][]SummaryRecord)
	for _, r := range records {
		key := summariesPrefix + r.PublishedAt.UTC().Format("2006-01-02") + ".json"
		groups[key] = append(groups[key], r)
	}
	return groups
}

// Publish uploads every date shard plus index.json. Shards whose content
// already matches the stored object are skipped, except today's shard,
// which is always written because it is the one still accumulating. The
// index is always rewritten.
func (c *R2Client) Publish(ctx context.Context, records []SummaryRecord) error {
	groups := GroupByDate(records)
	todayKey := summariesPrefix + time.Now().UTC().Format("2006-01-02") + ".json"

	dates := make([]string, 0, len(groups))
	for key, shard := range groups {
		SortRecords(shard)
		data, err := json.Marshal(shard)
		if err != nil {
			return fmt.Errorf("marshal shard %s: %w", key, err)
		}

		if key != todayKey && c.etagMatches(ctx, key, data) {
			engine.IncrR2Skips()
			slog.Debug("r2 shard unchanged", slog.String("key", key))
		} else if err := c.put(ctx, key, data, shardCacheControl); err != nil {
			return err
		}
		dates = append(dates, strings.TrimSuffix(strings.TrimPrefix(key, summariesPrefix), ".json"))
	}

	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	index, err := json.Marshal(map[string]any{
		"generatedAt": time.Now().UTC(),
		"dates":       dates,
		"count":       len(records),
	})
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	return c.put(ctx, indexKey, index, indexCacheControl)
}

// etagMatches reports whether the stored object's ETag equals the MD5 of
// data. Any HeadObject failure counts as "no match" so the shard gets
// uploaded anyway.
func (c *R2Client) etagMatches(ctx context.Context, key string, data []byte) bool {
	head, err := c.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if !errors.As(err, &notFound) {
			slog.Debug("r2 head failed", slog.String("key", key), slog.Any("err", err))
		}
		return false
	}
	sum := md5.Sum(data)
	return strings.Trim(aws.ToString(head.ETag), `"`) == hex.EncodeToString(sum[:])
}

func (c *R2Client) put(ctx context.Context, key string, data []byte, cacheControl string) error {
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(c.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String("application/json"),
		CacheControl: aws.String(cacheControl),
	})
	if err != nil {
		return fmt.Errorf("r2 put %s: %w", key, err)
	}
	engine.IncrR2Uploads()
	slog.Info("r2 uploaded", slog.String("key", key), slog.Int("bytes", len(data)))
	return nil
}

// DownloadAll pulls every date shard from the bucket and merges them into
// one record set. Used to seed a fresh host from the published archive.
func (c *R2Client) DownloadAll(ctx context.Context) ([]SummaryRecord, error) {
	var all []SummaryRecord
	paginator := s3.NewListObjectsV2Paginator(c.s3, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(summariesPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("r2 list: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, ".json") {
				continue
			}
			shard, err := c.getShard(ctx, key)
			if err != nil {
				return nil, err
			}
			all = Merge(all, shard)
		}
	}
	return all, nil
}

func (c *R2Client) getShard(ctx context.Context, key string) ([]SummaryRecord, error) {
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("r2 get %s: %w", key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("r2 read %s: %w", key, err)
	}
	var shard []SummaryRecord
	if err := json.Unmarshal(data, &shard); err != nil {
		return nil, fmt.Errorf("r2 decode %s: %w", key, err)
	}
	return shard, nil
}
