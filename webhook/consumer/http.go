// Package consumer delivers dispatched events to helper endpoints.
package consumer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/marcelsud/assistant-gateway/policy"
	"github.com/marcelsud/assistant-gateway/webhook"
	"github.com/marcelsud/assistant-gateway/webhook/dispatch"
)

// maxErrorBody bounds how much of a failed response ends up in the delivery log
const maxErrorBody = 512

/* HTTP posts the event payload to a helper URL
 * The expected status means success; 408, 429 and 5xx are retried;
 * any other 4xx is fatal since resending the same payload cannot succeed
 */
type HTTP struct {
	client         *http.Client
	targetURL      string
	expectedStatus int
	helper         policy.HelperID
}

// NewHTTP creates a consumer for targetURL. A nil client uses one with a 30s timeout;
// the dispatcher deadline still applies through the request context.
func NewHTTP(targetURL string, expectedStatus int, helper policy.HelperID, client *http.Client) *HTTP {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if expectedStatus == 0 {
		expectedStatus = http.StatusAccepted
	}
	return &HTTP{
		client:         client,
		targetURL:      strings.TrimSpace(targetURL),
		expectedStatus: expectedStatus,
		helper:         helper,
	}
}

// Consume implements dispatch.Consumer
func (c *HTTP) Consume(ctx context.Context, ev webhook.Event) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.targetURL, bytes.NewReader(ev.PayloadCopy()))
	if err != nil {
		return dispatch.Fatal(fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("webhook-id", ev.ID)
	req.Header.Set("X-Webhook-Source", ev.Source.String())
	req.Header.Set("X-Event-Type", ev.EventType)
	req.Header.Set("X-Correlation-Key", ev.CorrelationKey)
	if c.helper != "" {
		req.Header.Set("X-Helper-Id", string(c.helper))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return dispatch.Transient(fmt.Errorf("posting to helper: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == c.expectedStatus {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	failure := fmt.Errorf("helper returned status %d (expected %d): %s", resp.StatusCode, c.expectedStatus, strings.TrimSpace(string(body)))

	switch {
	case resp.StatusCode == http.StatusRequestTimeout, resp.StatusCode == http.StatusTooManyRequests:
		return dispatch.Transient(failure)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return dispatch.Fatal(failure)
	default:
		return dispatch.Transient(failure)
	}
}

// Target returns the helper URL
func (c *HTTP) Target() string {
	return c.targetURL
}
