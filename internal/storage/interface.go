package storage

import "context"

// SegmentArchiver uploads raw segment audio and fingerprint snapshots for
// audit purposes, off the Detection's fingerprint_snapshot path. Archival
// is optional: a nil SegmentArchiver means it is simply skipped.
type SegmentArchiver interface {
	ArchiveSegmentPCM(ctx context.Context, stationID string, segmentStartedAtMS int64, pcm []byte) (*UploadResult, error)
	ArchiveFingerprintSnapshot(ctx context.Context, detectionID string, snapshot []byte) (*UploadResult, error)
}

// Ensure S3Uploader implements SegmentArchiver.
var _ SegmentArchiver = (*S3Uploader)(nil)
