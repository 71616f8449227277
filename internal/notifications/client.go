// Package notifications posts run outcomes to an ntfy-compatible webhook.
// The client is inert unless a URL is configured.
package notifications

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"naver_cart_stock/internal/retry"
)

// circuitCooldown is how long sends stay suppressed after repeated failures.
const circuitCooldown = 30 * time.Second

const circuitThreshold = 3

type Client struct {
	httpClient *http.Client
	url        string
	priority   string
	retryCfg   retry.Config

	mutex       sync.Mutex
	failures    int
	lastFailure time.Time
}

type NotificationError struct {
	Type       string
	StatusCode int
	Underlying error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notification failed [%s]: %v", e.Type, e.Underlying)
}

func (e *NotificationError) IsRetryable() bool {
	switch e.Type {
	case "network", "server", "rate_limit":
		return true
	case "client":
		return false
	default:
		return e.StatusCode >= 500
	}
}

// NewClient builds a webhook client for url. An empty url returns a client
// whose sends are silent no-ops.
func NewClient(url, priority string, retryCfg retry.Config) *Client {
	if retryCfg.Retryable == nil {
		retryCfg.Retryable = func(err error) bool {
			ne, ok := err.(*NotificationError)
			return ok && ne.IsRetryable()
		}
	}
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		url:        url,
		priority:   priority,
		retryCfg:   retryCfg,
	}
}

func (c *Client) Enabled() bool {
	return c.url != ""
}

// NotifyRunSummary posts the end-of-run totals.
func (c *Client) NotifyRunSummary(ctx context.Context, stores, products, readings int, elapsed time.Duration) {
	var sb strings.Builder
	sb.WriteString("Cart stock run finished\n")
	sb.WriteString(fmt.Sprintf("Stores: %d, products: %d, readings: %d\n", stores, products, readings))
	sb.WriteString(fmt.Sprintf("Elapsed: %s", elapsed.Round(time.Second)))
	c.send(ctx, sb.String())
}

// NotifyDepleted posts immediately when an option reads as out of stock.
func (c *Client) NotifyDepleted(ctx context.Context, storeName, productName, optionName string) {
	msg := fmt.Sprintf("Sold out: %s / %s", storeName, productName)
	if optionName != "" && optionName != "null" {
		msg += fmt.Sprintf(" / %s", optionName)
	}
	c.send(ctx, msg)
}

func (c *Client) send(ctx context.Context, message string) {
	if !c.Enabled() {
		log.Debug().Msg("Notifications disabled, skipping")
		return
	}
	if c.circuitOpen() {
		log.Warn().Msg("Notification circuit open, skipping")
		return
	}

	_, err := retry.WithRetry(ctx, c.retryCfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.post(ctx, message)
	})
	if err != nil {
		c.recordFailure()
		log.Warn().Err(err).Msg("Notification failed")
		return
	}
	c.recordSuccess()
}

func (c *Client) post(ctx context.Context, message string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBufferString(message))
	if err != nil {
		return &NotificationError{Type: "client", Underlying: err}
	}
	req.Header.Set("Content-Type", "text/plain")
	if c.priority != "" {
		req.Header.Set("Priority", c.priority)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NotificationError{Type: "network", Underlying: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &NotificationError{
			Type:       categorizeHTTPError(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Underlying: fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status),
		}
	}
	return nil
}

func categorizeHTTPError(status int) string {
	switch {
	case status == http.StatusTooManyRequests:
		return "rate_limit"
	case status >= 500:
		return "server"
	default:
		return "client"
	}
}

func (c *Client) circuitOpen() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.failures < circuitThreshold {
		return false
	}
	if time.Since(c.lastFailure) > circuitCooldown {
		// Half-open: let the next send through.
		c.failures = circuitThreshold - 1
		return false
	}
	return true
}

func (c *Client) recordFailure() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.failures++
	c.lastFailure = time.Now()
}

func (c *Client) recordSuccess() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.failures = 0
}
