package slacksink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

const maxErrorBodyBytes = 512

// WebhookClient posts messages to a Slack incoming webhook.
// Each client owns its own connection pool; it is never shared between sinks.
type WebhookClient struct {
	client    *http.Client
	transport *http.Transport

	mu     sync.RWMutex
	closed bool
}

// NewWebhookClient creates a client whose requests time out after timeout.
func NewWebhookClient(timeout time.Duration) *WebhookClient {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          4,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   timeout,
		ExpectContinueTimeout: time.Second,
	}

	return &WebhookClient{
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		transport: transport,
	}
}

// Deliver posts msg to webhookURL as a single JSON request.
// It returns nil for a 2xx response, a *DeliveryError for any other status
// and an error wrapping ErrDelivery for transport failures. It never retries.
func (c *WebhookClient) Deliver(ctx context.Context, webhookURL string, msg *Message) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrClientClosed
	}

	body, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("%w: encode message: %w", ErrDelivery, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: create request: %w", ErrDelivery, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "slacksink/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: send request: %w", ErrDelivery, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		_, _ = io.Copy(io.Discard, resp.Body)

		return &DeliveryError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(b))}
	}

	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}

// Close releases pooled connections. It waits for in-flight deliveries and is safe to call twice.
func (c *WebhookClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	c.transport.CloseIdleConnections()

	return nil
}
