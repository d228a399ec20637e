package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Labels returned by the prediction service.
const (
	LabelHighRisk = "Kallakkadal"
	LabelNormal   = "Normal"
)

// PredictionResult is the normalized outcome of one classification request.
// A result with IsError set means "unknown": it is neither Safe nor Danger.
type PredictionResult struct {
	Label      string `json:"label,omitempty"`
	Confidence string `json:"confidence,omitempty"`
	Tier       Tier   `json:"tier"`
	IsError    bool   `json:"is_error"`
	Error      string `json:"error,omitempty"`
}

// Predictor calls the external prediction service.
type Predictor interface {
	Predict(ctx context.Context, features Features) (PredictionResult, error)
}

// NewPredictionResult maps a service response onto a tier. The label
// decides; the numeric value is consulted only when the label is empty.
func NewPredictionResult(label, confidence string, value *int) PredictionResult {
	tier := TierSafe
	switch {
	case strings.TrimSpace(label) != "":
		if strings.EqualFold(strings.TrimSpace(label), LabelHighRisk) {
			tier = TierDanger
		}
	case value != nil && *value == 1:
		tier = TierDanger
	}
	return PredictionResult{
		Label:      label,
		Confidence: confidence,
		Tier:       tier,
	}
}

// ErrorResult converts a gateway failure into an unknown-tier result.
func ErrorResult(err error) PredictionResult {
	msg := "prediction failed"
	if err != nil {
		msg = err.Error()
	}
	return PredictionResult{Tier: TierUnknown, IsError: true, Error: msg}
}

// HighSeverity reports whether the result is the highest-severity classification.
func (p PredictionResult) HighSeverity() bool {
	return !p.IsError && p.Tier == TierDanger
}

// Predict invokes predictor and degrades any failure into an error result
// instead of returning it. Context cancellation is reported as a stale
// response so callers can drop it quietly.
func Predict(ctx context.Context, predictor Predictor, features Features, logger *slog.Logger) PredictionResult {
	if predictor == nil {
		return ErrorResult(ErrGatewayUnavailable)
	}

	result, err := predictor.Predict(ctx, features)
	if err != nil {
		if ctx.Err() != nil {
			return ErrorResult(ErrStaleResponse)
		}
		logger.Warn("prediction failed",
			"tp", features[FeaturePeakPeriod],
			"error", err,
		)
		if !errors.Is(err, ErrGatewayUnavailable) {
			err = fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
		}
		return ErrorResult(err)
	}
	return result
}
