package recognition

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/zfogg/sidechain/backend/internal/config"
	"github.com/zfogg/sidechain/backend/internal/telemetry"
)

// Candidate is one recognition hit from either external service, still
// unfiltered by external_min_confidence — callers apply that floor.
type Candidate struct {
	Descriptor Descriptor
	Score      float64
}

type serviceACandidate struct {
	Title  string   `json:"title"`
	Artist string   `json:"artist"`
	ISRC   []string `json:"isrc"`
	Score  float64  `json:"score"`
}

type serviceAResponse struct {
	Results []serviceACandidate `json:"results"`
}

// ServiceAClient calls the external fingerprint-lookup service. Requests
// always go as a form-encoded POST body rather than query parameters —
// the size policy spec.md §4.5/§6 requires to avoid tripping service A's
// URL-length limit (the known 413 fix).
type ServiceAClient struct {
	http *resty.Client
	cfg  config.ExternalServiceConfig
}

func NewServiceAClient(cfg config.ExternalServiceConfig) *ServiceAClient {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.RequestTimeout)
	return &ServiceAClient{http: client, cfg: cfg}
}

// Recognize submits a fingerprint hash and the segment's duration in
// seconds, returning every candidate service A reports.
func (c *ServiceAClient) Recognize(ctx context.Context, fpHash string, durationS float64) ([]Candidate, error) {
	ctx, span := telemetry.TraceRecognitionServiceCall(ctx, "service_a", "lookup", map[string]interface{}{})
	defer span.End()

	var body serviceAResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"api_key":     c.cfg.APIKey,
			"fingerprint": fpHash,
			"duration":    fmt.Sprintf("%d", int(durationS)),
		}).
		SetResult(&body).
		Post("/v2/lookup")
	if err != nil {
		telemetry.RecordServiceError(span, "service_a", err)
		return nil, &TransientServiceError{Service: "A", Err: err}
	}
	if resp.IsError() {
		err := classifyHTTPError("A", resp.StatusCode(), resp.String())
		telemetry.RecordServiceError(span, "service_a", err)
		return nil, err
	}

	candidates := make([]Candidate, 0, len(body.Results))
	for _, r := range body.Results {
		d := Descriptor{Title: r.Title, Artist: r.Artist}
		if len(r.ISRC) > 0 {
			d.ISRC = r.ISRC[0]
		}
		candidates = append(candidates, Candidate{Descriptor: d, Score: r.Score})
	}
	telemetry.RecordServiceSuccess(span, map[string]interface{}{"item_count": len(candidates)})
	return candidates, nil
}
