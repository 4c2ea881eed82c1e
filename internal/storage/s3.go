package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/zfogg/sidechain/backend/internal/telemetry"
)

// S3Uploader archives raw segment PCM and fingerprint snapshots to S3 for
// audit, off the Detection's fingerprint_snapshot path (spec.md §4.6).
type S3Uploader struct {
	client  *s3.Client
	bucket  string
	region  string
	baseURL string
}

// UploadResult describes an object written to S3.
type UploadResult struct {
	Key    string `json:"key"`
	URL    string `json:"url"`
	Bucket string `json:"bucket"`
	Region string `json:"region"`
	Size   int64  `json:"size"`
}

// NewS3Uploader creates a new S3 uploader
func NewS3Uploader(region, bucket, baseURL string) (*S3Uploader, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg)

	return &S3Uploader{
		client:  client,
		bucket:  bucket,
		region:  region,
		baseURL: baseURL,
	}, nil
}

// ArchiveSegmentPCM uploads a single Segmenter-emitted segment's raw PCM,
// organized by station and day so an auditor can locate the audio behind
// a disputed Detection without re-pulling the stream.
func (u *S3Uploader) ArchiveSegmentPCM(ctx context.Context, stationID string, segmentStartedAtMS int64, pcm []byte) (*UploadResult, error) {
	day := time.UnixMilli(segmentStartedAtMS).UTC().Format("2006/01/02")
	key := fmt.Sprintf("segments/%s/%s/%s.pcm", stationID, day, uuid.New().String())

	ctx, span := telemetry.TraceS3Call(ctx, "put_object", map[string]interface{}{
		"bucket":       u.bucket,
		"key":          key,
		"content_type": "audio/l16",
		"size_bytes":   int64(len(pcm)),
	})
	defer span.End()

	putObjectInput := &s3.PutObjectInput{
		Bucket:       aws.String(u.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(pcm),
		ContentType:  aws.String("audio/l16"),
		CacheControl: aws.String("max-age=86400"),
		Metadata: map[string]string{
			"station-id":  stationID,
			"started-at":  time.UnixMilli(segmentStartedAtMS).UTC().Format(time.RFC3339),
			"file-type":   "segment-pcm",
			"sample-rate": "44100",
		},
	}

	if _, err := u.client.PutObject(ctx, putObjectInput); err != nil {
		telemetry.RecordServiceError(span, "s3", err)
		return nil, fmt.Errorf("failed to archive segment pcm: %w", err)
	}
	telemetry.RecordServiceSuccess(span, map[string]interface{}{})

	return &UploadResult{
		Key:    key,
		URL:    u.publicURL(key),
		Bucket: u.bucket,
		Region: u.region,
		Size:   int64(len(pcm)),
	}, nil
}

// ArchiveFingerprintSnapshot uploads the fingerprint hash blob recorded
// alongside a Detection, keyed by the Detection it belongs to.
func (u *S3Uploader) ArchiveFingerprintSnapshot(ctx context.Context, detectionID string, snapshot []byte) (*UploadResult, error) {
	key := fmt.Sprintf("fingerprints/%s.bin", detectionID)

	putObjectInput := &s3.PutObjectInput{
		Bucket:       aws.String(u.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(snapshot),
		ContentType:  aws.String("application/octet-stream"),
		CacheControl: aws.String("max-age=31536000"),
		Metadata: map[string]string{
			"detection-id": detectionID,
			"file-type":    "fingerprint-snapshot",
		},
	}

	if _, err := u.client.PutObject(ctx, putObjectInput); err != nil {
		return nil, fmt.Errorf("failed to archive fingerprint snapshot: %w", err)
	}

	return &UploadResult{
		Key:    key,
		URL:    u.publicURL(key),
		Bucket: u.bucket,
		Region: u.region,
		Size:   int64(len(snapshot)),
	}, nil
}

// DeleteFile deletes an archived object from S3. Nothing in the service
// calls it.
func (u *S3Uploader) DeleteFile(ctx context.Context, key string) error {
	_, err := u.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}

	return nil
}

// CheckBucketAccess verifies that we can access the S3 bucket
func (u *S3Uploader) CheckBucketAccess(ctx context.Context) error {
	_, err := u.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(u.bucket),
	})
	if err != nil {
		return fmt.Errorf("cannot access S3 bucket %s: %w", u.bucket, err)
	}

	return nil
}

func (u *S3Uploader) publicURL(key string) string {
	return fmt.Sprintf("%s/%s", strings.TrimSuffix(u.baseURL, "/"), key)
}
