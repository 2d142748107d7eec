package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-remote/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is in milliseconds, as paho expects.
	defaultDisconnectQuiesce = 1000

	defaultKeepAlive = 60 * time.Second

	maxQoS = 2

	tlsMinVersion = tls.VersionTLS12
)

// Status values published on the system status topic.
const (
	statusOnline  = "online"
	statusOffline = "offline"
)

// buildClientOptions creates paho options from the MQTT config section.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	opts.AddBroker(brokerURL(cfg.Broker))
	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	// No persistent broker session: pending bridge requests are
	// meaningless after a restart.
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}

	return opts
}

// brokerURL returns tcp://host:port, or ssl:// when TLS is enabled.
func brokerURL(b config.MQTTBrokerConfig) string {
	scheme := "tcp"
	if b.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, b.Host, b.Port)
}

// configureLWT registers the retained offline status the broker publishes
// if this client disappears without a clean disconnect.
func configureLWT(opts *pahomqtt.ClientOptions, clientID string) {
	payload, err := statusPayload(clientID, statusOffline, "unexpected_disconnect")
	if err != nil {
		return
	}
	opts.SetWill(Topics{}.SystemStatus(), string(payload), 1, true)
}

// systemStatus is the JSON body published on the system status topic.
type systemStatus struct {
	Status    string    `json:"status"`
	ClientID  string    `json:"client_id"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func statusPayload(clientID, status, reason string) ([]byte, error) {
	return json.Marshal(systemStatus{
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Truncate(time.Second),
	})
}
