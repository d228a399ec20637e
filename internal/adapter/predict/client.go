// Package predict is the HTTP client for the sea-state prediction service.
package predict

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/waveguard-alert-service/internal/domain"
	"github.com/go-resty/resty/v2"
)

// Client implements domain.Predictor against POST /predict.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

// NewClient creates a prediction client for the service at baseURL.
func NewClient(baseURL string, timeout time.Duration, retries int, logger *slog.Logger) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(100 * time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{http: client, logger: logger}
}

// Predict posts the feature vector and maps the response onto a result.
// Transport failures, non-2xx statuses and unparseable bodies all wrap
// domain.ErrGatewayUnavailable.
func (c *Client) Predict(ctx context.Context, features domain.Features) (domain.PredictionResult, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]float64(features)).
		Post("/predict")
	if err != nil {
		return domain.PredictionResult{}, fmt.Errorf("%w: predict request: %w", domain.ErrGatewayUnavailable, err)
	}

	if resp.IsError() {
		return domain.PredictionResult{}, fmt.Errorf("%w: status %d: %s", domain.ErrGatewayUnavailable, resp.StatusCode(), resp.String())
	}

	var body response
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return domain.PredictionResult{}, fmt.Errorf("%w: decode response: %w", domain.ErrGatewayUnavailable, err)
	}
	if body.Error != "" {
		return domain.PredictionResult{}, fmt.Errorf("%w: service error: %s", domain.ErrGatewayUnavailable, body.Error)
	}
	if body.Prediction == "" && body.Value == nil {
		return domain.PredictionResult{}, fmt.Errorf("%w: response has no prediction", domain.ErrGatewayUnavailable)
	}

	result := domain.NewPredictionResult(body.Prediction, body.Confidence, body.Value)
	c.logger.Debug("prediction received",
		"label", result.Label,
		"confidence", result.Confidence,
		"tier", result.Tier,
		"duration", resp.Time(),
	)
	return result, nil
}

// Prediction service response.

type response struct {
	Prediction string `json:"prediction"`
	Confidence string `json:"confidence"`
	Value      *int   `json:"value"`
	Error      string `json:"error"`
}
