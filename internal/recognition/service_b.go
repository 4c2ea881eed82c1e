package recognition

import (
	"bytes"
	"context"

	"github.com/go-resty/resty/v2"
	"github.com/zfogg/sidechain/backend/internal/config"
	"github.com/zfogg/sidechain/backend/internal/telemetry"
)

type serviceBResponse struct {
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album"`
	Label       string `json:"label"`
	ReleaseDate string `json:"release_date"`
	ISRC        string `json:"isrc"`
	Score       float64 `json:"score"`
	Match       bool    `json:"match"`
}

// ServiceBClient calls the external audio-identification service: a
// multipart upload of a short raw-audio clip rather than a fingerprint,
// used only after service A comes back empty (spec.md §4.5, §6).
type ServiceBClient struct {
	http *resty.Client
	cfg  config.ExternalServiceConfig
}

func NewServiceBClient(cfg config.ExternalServiceConfig) *ServiceBClient {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.RequestTimeout)
	return &ServiceBClient{http: client, cfg: cfg}
}

// Recognize truncates clip to the configured MaxBodySize, uploads it,
// and returns at most one candidate.
func (c *ServiceBClient) Recognize(ctx context.Context, clip []byte) (*Candidate, error) {
	if int64(len(clip)) > c.cfg.MaxBodySize {
		clip = clip[:c.cfg.MaxBodySize]
	}

	ctx, span := telemetry.TraceRecognitionServiceCall(ctx, "service_b", "identify", map[string]interface{}{})
	defer span.End()

	var body serviceBResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetFileReader("audio", "clip.raw", bytes.NewReader(clip)).
		SetFormData(map[string]string{"api_key": c.cfg.APIKey}).
		SetResult(&body).
		Post("/v1/identify")
	if err != nil {
		telemetry.RecordServiceError(span, "service_b", err)
		return nil, &TransientServiceError{Service: "B", Err: err}
	}
	if resp.IsError() {
		err := classifyHTTPError("B", resp.StatusCode(), resp.String())
		telemetry.RecordServiceError(span, "service_b", err)
		return nil, err
	}
	if !body.Match {
		telemetry.RecordServiceSuccess(span, map[string]interface{}{"item_count": 0})
		return nil, nil
	}
	telemetry.RecordServiceSuccess(span, map[string]interface{}{"item_count": 1})

	return &Candidate{
		Descriptor: Descriptor{
			Title:  body.Title,
			Artist: body.Artist,
			Album:  body.Album,
			Label:  body.Label,
			ISRC:   body.ISRC,
		},
		Score: body.Score,
	}, nil
}
