// Package gateway talks to the Farapayamak bulk SMS web service.
package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sendbulk-reconciler/internal/config"
	"github.com/sendbulk-reconciler/internal/domain/batch"
	"github.com/sendbulk-reconciler/internal/platform/calendar"
)

const maxResponseBytes = 1 << 20

// Client polls batch delivery status through the GetBulkDetails SOAP call.
type Client struct {
	statusURL  string
	username   string
	password   string
	httpClient *http.Client
	location   *time.Location
	logger     *slog.Logger
}

// NewClient builds a status client. A nil httpClient gets one with the
// configured timeout.
func NewClient(cfg *config.GatewayConfig, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	loc, err := calendar.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		statusURL:  cfg.StatusURL,
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: httpClient,
		location:   loc,
		logger:     logger.With("component", "gateway_client"),
	}, nil
}

// PollStatus returns the batch's current gateway status, or nil when the
// poll failed for any reason. Failures are logged, never returned.
func (c *Client) PollStatus(ctx context.Context, batchID string) *batch.GatewayStatus {
	status, err := c.FetchStatus(ctx, batchID)
	if err != nil {
		c.logger.Warn("Gateway status poll failed", "batch_id", batchID, "error", err)
		return nil
	}

	c.logger.Debug("Gateway status received",
		"batch_id", batchID,
		"send_status", status.RawStatusCode,
		"sent_count", status.SentCount,
		"failed_count", status.FailedCount)

	return status
}

// FetchStatus performs one GetBulkDetails request.
func (c *Client) FetchStatus(ctx context.Context, batchID string) (*batch.GatewayStatus, error) {
	payload, err := buildStatusRequest(c.username, c.password, batchID)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.statusURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", getBulkAction)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return parseStatusResponse(body, c.location)
}
