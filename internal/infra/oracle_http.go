package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/study_mon/internal/domain"
)

// HTTPOracle posts {window_title, process_name} to a classification
// endpoint and reads {verdict, reason, confidence} back.
type HTTPOracle struct {
	client   *http.Client
	endpoint string
	logger   *zap.Logger
}

// NewHTTPOracle creates an oracle for endpoint. Deadlines come from the
// caller's context.
func NewHTTPOracle(endpoint string, logger *zap.Logger) *HTTPOracle {
	return &HTTPOracle{
		client:   &http.Client{},
		endpoint: endpoint,
		logger:   logger,
	}
}

// Name identifies the backend in logs.
func (o *HTTPOracle) Name() string {
	return "http"
}

// Classify returns the raw verdict string.
func (o *HTTPOracle) Classify(ctx context.Context, in domain.OracleRequest) (string, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "studymon")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("oracle request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", fmt.Errorf("oracle returned status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var out domain.OracleResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to parse oracle response: %w", err)
	}

	o.logger.Debug("oracle verdict",
		zap.String("verdict", out.Verdict),
		zap.String("reason", out.Reason),
		zap.Float64("confidence", out.Confidence))

	return out.Verdict, nil
}

var _ domain.Oracle = (*HTTPOracle)(nil)
