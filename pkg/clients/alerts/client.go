// Package alerts posts operator-visible warnings to an optional webhook, so
// a dead sync subscription on a field device shows up somewhere a human
// looks. With no URL configured every call is a no-op.
package alerts

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Client delivers alert messages over HTTP.
type Client struct {
	httpClient *resty.Client
	device     string
	logger     *zap.Logger
	enabled    bool
}

// NewClient builds a webhook alert client. An empty webhookURL disables it.
func NewClient(webhookURL, device string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{device: device, logger: logger}
	if webhookURL == "" {
		return c
	}

	restyClient := resty.New()
	restyClient.
		SetBaseURL(webhookURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(10 * time.Second)

	c.httpClient = restyClient
	c.enabled = true
	return c
}

type alertPayload struct {
	Level   string `json:"level"`
	Subject string `json:"subject"`
	Detail  string `json:"detail"`
	Device  string `json:"device"`
	SentAt  string `json:"sentAt"`
}

// Warn posts a warning-level alert. Delivery failures are logged, never
// returned: an alert channel outage must not cascade into the caller.
func (c *Client) Warn(ctx context.Context, subject, detail string) {
	c.send(ctx, "warning", subject, detail)
}

// Info posts an informational alert.
func (c *Client) Info(ctx context.Context, subject, detail string) {
	c.send(ctx, "info", subject, detail)
}

func (c *Client) send(ctx context.Context, level, subject, detail string) {
	if !c.enabled {
		return
	}

	payload := alertPayload{
		Level:   level,
		Subject: subject,
		Detail:  detail,
		Device:  c.device,
		SentAt:  time.Now().UTC().Format(time.RFC3339),
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		Post("")
	if err != nil {
		c.logger.Warn("alert delivery failed", zap.String("subject", subject), zap.Error(err))
		return
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		c.logger.Warn("alert rejected by webhook",
			zap.String("subject", subject),
			zap.String("status", fmt.Sprintf("%d", resp.StatusCode())))
	}
}
