package atv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-remote/internal/session"
)

// DefaultRequestTimeout is how long a request waits for the bridge to answer.
const DefaultRequestTimeout = 10 * time.Second

// MQTTClient is the subset of the MQTT client the bridge client needs.
// main.go adapts *mqtt.Client to it.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// Unsubscribe removes a subscription.
	Unsubscribe(topic string) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// Logger is the logging interface used by the bridge client.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ClientOptions holds configuration for creating a Client.
type ClientOptions struct {
	// MQTTClient is the broker connection. Required.
	MQTTClient MQTTClient

	// RequestTimeout bounds each request. Zero selects DefaultRequestTimeout.
	RequestTimeout time.Duration

	// QoS is used for requests and subscriptions.
	QoS byte

	// Logger is optional.
	Logger Logger
}

// Client correlates requests to the bridge with their responses.
type Client struct {
	mqtt    MQTTClient
	timeout time.Duration
	qos     byte

	pending   map[string]chan ResponseMessage
	pendingMu sync.Mutex

	health   HealthMessage
	healthMu sync.RWMutex

	started   bool
	startedMu sync.RWMutex

	logger Logger
}

// NewClient creates a bridge client. Call Start before making requests.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Client{
		mqtt:    opts.MQTTClient,
		timeout: timeout,
		qos:     opts.QoS,
		pending: make(map[string]chan ResponseMessage),
		logger:  logger,
	}, nil
}

// Start subscribes to bridge responses and health.
func (c *Client) Start() error {
	if err := c.mqtt.Subscribe(ResponseSubscribeTopic(), c.qos, c.handleResponse); err != nil {
		return fmt.Errorf("subscribe to responses: %w", err)
	}
	if err := c.mqtt.Subscribe(HealthTopic(), c.qos, c.handleHealth); err != nil {
		return fmt.Errorf("subscribe to bridge health: %w", err)
	}

	c.startedMu.Lock()
	c.started = true
	c.startedMu.Unlock()

	c.logger.Info("media bridge client started", "responses", ResponseSubscribeTopic())
	return nil
}

// Stop unsubscribes and fails every in-flight request with ErrNotStarted.
func (c *Client) Stop() {
	c.startedMu.Lock()
	wasStarted := c.started
	c.started = false
	c.startedMu.Unlock()
	if !wasStarted {
		return
	}

	if err := c.mqtt.Unsubscribe(ResponseSubscribeTopic()); err != nil {
		c.logger.Warn("failed to unsubscribe from responses", "error", err)
	}
	if err := c.mqtt.Unsubscribe(HealthTopic()); err != nil {
		c.logger.Warn("failed to unsubscribe from bridge health", "error", err)
	}

	c.pendingMu.Lock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()
}

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// BridgeStatus returns the last health status published by the bridge,
// or "unknown" if none has been seen.
func (c *Client) BridgeStatus() string {
	c.healthMu.RLock()
	defer c.healthMu.RUnlock()
	if c.health.Status == "" {
		return "unknown"
	}
	return c.health.Status
}

// HealthCheck reports whether the bridge is usable. A degraded bridge still
// counts as up.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.mqtt.IsConnected() {
		return ErrNotConnected
	}
	switch status := c.BridgeStatus(); status {
	case HealthHealthy, HealthDegraded:
		return nil
	default:
		return fmt.Errorf("%w: status %s", ErrBridgeUnavailable, status)
	}
}

// PendingCount returns the number of requests awaiting a response.
func (c *Client) PendingCount() int {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	return len(c.pending)
}

// Request sends action to the bridge and decodes the response data into out
// (which may be nil). wait overrides the client timeout when positive.
func (c *Client) Request(ctx context.Context, action, deviceID string, params map[string]any, wait time.Duration, out any) error {
	c.startedMu.RLock()
	started := c.started
	c.startedMu.RUnlock()
	if !started {
		return ErrNotStarted
	}
	if !c.mqtt.IsConnected() {
		return ErrNotConnected
	}
	if wait <= 0 {
		wait = c.timeout
	}

	req := RequestMessage{
		RequestID:  uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		Action:     action,
		DeviceID:   deviceID,
		Parameters: params,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", action, err)
	}

	ch := make(chan ResponseMessage, 1)
	c.pendingMu.Lock()
	c.pending[req.RequestID] = ch
	c.pendingMu.Unlock()
	defer c.forget(req.RequestID)

	start := time.Now()
	if err := c.mqtt.Publish(RequestTopic(req.RequestID), payload, c.qos, false); err != nil {
		return fmt.Errorf("publish %s request: %w", action, err)
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	var resp ResponseMessage
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%w: %s after %v", ErrTimeout, action, wait)
	case r, ok := <-ch:
		if !ok {
			return ErrNotStarted
		}
		resp = r
	}

	c.logger.Debug("bridge response",
		"action", action,
		"device_id", deviceID,
		"success", resp.Success,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if !resp.Success {
		return responseError(action, resp.Error)
	}
	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidResponse, action, err)
	}
	return nil
}

func (c *Client) forget(requestID string) {
	c.pendingMu.Lock()
	delete(c.pending, requestID)
	c.pendingMu.Unlock()
}

// handleResponse routes a response to the waiting request.
// Late or unknown responses are dropped.
func (c *Client) handleResponse(topic string, payload []byte) {
	var resp ResponseMessage
	if err := json.Unmarshal(payload, &resp); err != nil {
		c.logger.Warn("invalid bridge response", "topic", topic, "error", err)
		return
	}
	if resp.RequestID == "" {
		parts := strings.Split(topic, "/")
		resp.RequestID = parts[len(parts)-1]
	}

	c.pendingMu.Lock()
	ch, ok := c.pending[resp.RequestID]
	if ok {
		delete(c.pending, resp.RequestID)
	}
	c.pendingMu.Unlock()

	if !ok {
		c.logger.Debug("dropping unmatched bridge response", "request_id", resp.RequestID)
		return
	}
	ch <- resp
}

func (c *Client) handleHealth(topic string, payload []byte) {
	var msg HealthMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		c.logger.Warn("invalid bridge health message", "topic", topic, "error", err)
		return
	}

	c.healthMu.Lock()
	prev := c.health.Status
	c.health = msg
	c.healthMu.Unlock()

	if prev != msg.Status {
		c.logger.Info("media bridge status changed", "status", msg.Status, "reason", msg.Reason)
	}
}

// responseError converts a bridge failure into a Go error. UNSUPPORTED maps
// to session.ErrOperationUnsupported so the session layer can tell a missing
// operation from a failed one.
func responseError(action string, e *ResponseError) error {
	if e == nil {
		return fmt.Errorf("%w: %s failed", ErrBridge, action)
	}
	switch e.Code {
	case ErrCodeUnsupported:
		return fmt.Errorf("%w: %s: %s", session.ErrOperationUnsupported, action, e.Message)
	case ErrCodeTimeout:
		return fmt.Errorf("%w: %s: %s", ErrTimeout, action, e.Message)
	default:
		return fmt.Errorf("%w: %s: %s: %s", ErrBridge, action, e.Code, e.Message)
	}
}

// IsUnknownConnection reports whether err says the bridge no longer knows a
// connection ID, which happens after a bridge restart.
func IsUnknownConnection(err error) bool {
	return errors.Is(err, ErrBridge) && strings.Contains(err.Error(), ErrCodeUnknownConnection)
}
