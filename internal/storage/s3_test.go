package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUploadResultStruct(t *testing.T) {
	result := UploadResult{
		Key:    "segments/station-1/2026/07/31/abc123.pcm",
		URL:    "https://cdn.example.com/segments/station-1/2026/07/31/abc123.pcm",
		Bucket: "my-bucket",
		Region: "us-east-1",
		Size:   1024000,
	}

	assert.Equal(t, "segments/station-1/2026/07/31/abc123.pcm", result.Key)
	assert.Equal(t, "https://cdn.example.com/segments/station-1/2026/07/31/abc123.pcm", result.URL)
	assert.Equal(t, "my-bucket", result.Bucket)
	assert.Equal(t, "us-east-1", result.Region)
	assert.Equal(t, int64(1024000), result.Size)
}

func TestS3UploaderStruct(t *testing.T) {
	uploader := &S3Uploader{
		bucket:  "test-bucket",
		region:  "us-west-2",
		baseURL: "https://cdn.test.com",
	}

	assert.Equal(t, "test-bucket", uploader.bucket)
	assert.Equal(t, "us-west-2", uploader.region)
	assert.Equal(t, "https://cdn.test.com", uploader.baseURL)
}

func TestPublicURL_TrimsTrailingSlashOnBaseURL(t *testing.T) {
	uploader := &S3Uploader{baseURL: "https://cdn.test.com/"}
	assert.Equal(t, "https://cdn.test.com/segments/x.pcm", uploader.publicURL("segments/x.pcm"))
}
