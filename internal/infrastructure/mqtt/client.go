package mqtt

import (
	"context"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-remote/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang for the remote service.
//
// It owns the broker connection used to reach the media bridge and to
// publish session events. Subscriptions are tracked so they survive a
// reconnect.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	client  pahomqtt.Client
	options *pahomqtt.ClientOptions
	cfg     config.MQTTConfig

	subscriptions map[string]subscription
	subMu         sync.RWMutex

	connected bool
	connMu    sync.RWMutex

	onConnect    func()
	onDisconnect func(err error)
	callbackMu   sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
}

// Logger is the subset of logging.Logger the client uses.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// MessageHandler is the callback signature for received messages.
//
// Handlers run on paho's delivery goroutines and must not block.
// A returned error is logged and otherwise ignored.
type MessageHandler func(topic string, payload []byte) error

// Connect establishes a connection to the MQTT broker.
//
// It configures a Last Will on the system status topic, enables
// auto-reconnect, waits for the initial connection and then publishes a
// retained online status.
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: ErrConnectionFailed if the broker cannot be reached in time
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := newClient(cfg)

	c.client = pahomqtt.NewClient(c.options)
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnect callback runs asynchronously; mark the state here so
	// IsConnected is true as soon as Connect returns.
	c.setConnected(true)

	return c, nil
}

// newClient builds an unconnected client with its paho options and callbacks.
func newClient(cfg config.MQTTConfig) *Client {
	c := &Client{
		cfg:           cfg,
		options:       buildClientOptions(cfg),
		subscriptions: make(map[string]subscription),
	}
	configureLWT(c.options, cfg.Broker.ClientID)

	c.options.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})
	c.options.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})
	c.options.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		if logger := c.getLogger(); logger != nil {
			logger.Info("reconnecting to MQTT broker")
		}
	})
	return c
}

func (c *Client) handleConnect() {
	c.setConnected(true)
	c.restoreSubscriptions()
	c.publishStatus(statusOnline, "")

	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

func (c *Client) handleDisconnect(err error) {
	c.setConnected(false)
	if logger := c.getLogger(); logger != nil {
		logger.Warn("MQTT connection lost", "error", err)
	}

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

func (c *Client) setConnected(v bool) {
	c.connMu.Lock()
	c.connected = v
	c.connMu.Unlock()
}

// restoreSubscriptions re-subscribes to every tracked topic after a reconnect.
func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for _, sub := range c.subscriptions {
		c.client.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
	}
}

func (c *Client) publishStatus(status, reason string) {
	payload, err := statusPayload(c.cfg.Broker.ClientID, status, reason)
	if err != nil {
		return
	}
	token := c.client.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true, payload)
	token.WaitTimeout(defaultPublishTimeout)
}

// Close publishes a graceful offline status and disconnects.
// Closing an unconnected client is not an error.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		c.publishStatus(statusOffline, "graceful_shutdown")
	}

	c.client.Disconnect(defaultDisconnectQuiesce)
	c.setConnected(false)

	return nil
}

// HealthCheck reports whether the broker connection is usable.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the last known connection state.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client != nil && c.client.IsConnected()
}

// SetOnConnect sets a callback invoked on the initial connect and every reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback invoked when the connection is lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

// SetLogger sets the logger for connection and handler diagnostics.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// wrapHandler adapts a MessageHandler to paho, recovering panics and
// logging handler errors.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.dispatch(handler, msg.Topic(), msg.Payload())
	}
}

func (c *Client) dispatch(handler MessageHandler, topic string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Error("MQTT handler panic recovered", "topic", topic, "panic", r)
			}
		}
	}()

	if err := handler(topic, payload); err != nil {
		if logger := c.getLogger(); logger != nil {
			logger.Warn("MQTT handler returned error", "topic", topic, "error", err)
		}
	}
}
