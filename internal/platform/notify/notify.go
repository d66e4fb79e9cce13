// Package notify delivers clinic events to a configured webhook endpoint
// with HMAC-SHA256 payload signing and bounded retries.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event types emitted by the clinic workflow.
const (
	EventCaseCompleted  = "surgical_case.completed"
	EventStayDischarged = "stay.discharged"
)

// Event is the payload delivered to the webhook endpoint.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Resource   string          `json:"resource"`
	ResourceID string          `json:"resource_id"`
	Payload    json.RawMessage `json:"payload"`
	Timestamp  time.Time       `json:"timestamp"`
}

// SignPayload computes an HMAC-SHA256 signature of the payload using the
// given secret, returning the hex-encoded result.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature returns true when the hex-encoded signature matches the
// HMAC-SHA256 of payload under the given secret.
func VerifySignature(payload []byte, secret, signature string) bool {
	expected := SignPayload(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Notifier posts signed events to a single configured endpoint. A Notifier
// with an empty URL drops every event, so callers never need a nil check.
type Notifier struct {
	url        string
	secret     string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
	logger     zerolog.Logger
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithHTTPClient overrides the default HTTP client used for deliveries.
func WithHTTPClient(c *http.Client) Option {
	return func(n *Notifier) { n.httpClient = c }
}

// WithMaxRetries sets the maximum number of delivery attempts.
func WithMaxRetries(retries int) Option {
	return func(n *Notifier) { n.maxRetries = retries }
}

// WithRetryDelay sets the pause between delivery attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(n *Notifier) { n.retryDelay = d }
}

// New creates a Notifier for the given endpoint.
func New(url, secret string, logger zerolog.Logger, opts ...Option) *Notifier {
	n := &Notifier{
		url:        url,
		secret:     secret,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		maxRetries: 3,
		retryDelay: time.Second,
		logger:     logger,
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Enabled reports whether a webhook endpoint is configured.
func (n *Notifier) Enabled() bool {
	return n.url != ""
}

// Emit delivers the event asynchronously. Delivery failures are logged,
// never surfaced to the caller; webhook outages must not block workflow
// transitions.
func (n *Notifier) Emit(eventType, resource, resourceID string, payload interface{}) {
	if !n.Enabled() {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		n.logger.Error().Err(err).Str("event", eventType).Msg("notify: marshal payload")
		return
	}
	event := Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		Resource:   resource,
		ResourceID: resourceID,
		Payload:    raw,
		Timestamp:  time.Now().UTC(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := n.Deliver(ctx, event); err != nil {
			n.logger.Error().Err(err).
				Str("event", eventType).
				Str("resource_id", resourceID).
				Msg("notify: delivery failed")
		}
	}()
}

// Deliver posts the event synchronously, retrying on failure up to the
// configured attempt count.
func (n *Notifier) Deliver(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	sig := SignPayload(body, n.secret)

	var lastErr error
	for attempt := 1; attempt <= n.maxRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(n.retryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		lastErr = n.post(ctx, body, sig, event)
		if lastErr == nil {
			return nil
		}
		n.logger.Warn().Err(lastErr).
			Str("event", event.Type).
			Int("attempt", attempt).
			Msg("notify: delivery attempt failed")
	}
	return lastErr
}

func (n *Notifier) post(ctx context.Context, body []byte, sig string, event Event) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", "sha256="+sig)
	req.Header.Set("X-Webhook-Event", event.Type)
	req.Header.Set("X-Webhook-Timestamp", event.Timestamp.Format(time.RFC3339))

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("non-2xx response: %d", resp.StatusCode)
	}
	return nil
}
