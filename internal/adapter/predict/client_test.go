package predict

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/waveguard-alert-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testClient(baseURL string) *Client {
	return NewClient(baseURL, 2*time.Second, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testFeatures() domain.Features {
	return domain.BuildFeatures(domain.DefaultMeasurements(), time.Date(2024, 6, 15, 14, 0, 0, 0, time.UTC))
}

func TestClient_Predict_HighRisk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/predict", r.URL.Path)

		var body map[string]float64
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.InDelta(t, 10.0, body["Tp"], 0)
		assert.InDelta(t, 190.0, body["Peak Direction"], 0)
		assert.InDelta(t, 14.0, body["hour"], 0)
		assert.Contains(t, body, "Tp_rolling_6h")

		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"prediction":"Kallakkadal","value":1,"confidence":"93.41%"}`))
	}))
	defer srv.Close()

	result, err := testClient(srv.URL).Predict(context.Background(), testFeatures())
	require.NoError(t, err)

	assert.Equal(t, domain.LabelHighRisk, result.Label)
	assert.Equal(t, "93.41%", result.Confidence)
	assert.Equal(t, domain.TierDanger, result.Tier)
	assert.True(t, result.HighSeverity())
}

func TestClient_Predict_Normal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"prediction":"Normal","value":0,"confidence":"71.00%"}`))
	}))
	defer srv.Close()

	result, err := testClient(srv.URL).Predict(context.Background(), testFeatures())
	require.NoError(t, err)
	assert.Equal(t, domain.TierSafe, result.Tier)
	assert.False(t, result.IsError)
}

func TestClient_Predict_LabelOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"prediction":"Kallakkadal","confidence":"60.00%"}`))
	}))
	defer srv.Close()

	result, err := testClient(srv.URL).Predict(context.Background(), testFeatures())
	require.NoError(t, err)
	assert.Equal(t, domain.TierDanger, result.Tier)
}

func TestClient_Predict_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"error":"model not loaded"}`},
		{name: "bad request", status: http.StatusBadRequest, body: `{"error":"missing feature Tp"}`},
		{name: "malformed body", status: http.StatusOK, body: `not json`},
		{name: "error field on 200", status: http.StatusOK, body: `{"error":"boom"}`},
		{name: "empty object", status: http.StatusOK, body: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set(headerContentType, contentTypeJSON)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := testClient(srv.URL).Predict(context.Background(), testFeatures())
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
		})
	}
}

func TestClient_Predict_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := testClient(url).Predict(context.Background(), testFeatures())
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
}

func TestClient_Predict_Cancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := testClient(srv.URL).Predict(ctx, testFeatures())
	assert.Error(t, err)
}
