package sondehub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultURL is the SondeHub v2 API base
const DefaultURL = "https://api.v2.sondehub.org"

// telemetryAccepted is the body returned when every record was stored
const telemetryAccepted = "^v^ telm logged"

// Client uploads telemetry records
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewClient creates a new SondeHub client
func NewClient(baseURL string, logger *logrus.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 20 * time.Second},
		logger:     logger,
	}
}

// UploadTelemetry sends a batch of records in one request
func (c *Client) UploadTelemetry(ctx context.Context, payloads []TelemetryPayload) error {
	if len(payloads) == 0 {
		return nil
	}

	body, err := json.Marshal(payloads)
	if err != nil {
		return fmt.Errorf("failed to encode telemetry: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/amateur/telemetry", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload telemetry: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read upload response: %w", err)
	}
	text := strings.TrimSpace(string(respBody))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("sondehub returned %s: %s", resp.Status, text)
	}
	if strings.Trim(text, `"`) != telemetryAccepted {
		return fmt.Errorf("sondehub rejected telemetry: %s", text)
	}

	c.logger.WithFields(logrus.Fields{
		"records": len(payloads),
		"payload": payloads[0].PayloadCallsign,
	}).Debug("Uploaded telemetry to SondeHub")

	return nil
}
