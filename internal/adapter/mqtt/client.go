// Package mqtt connects the service to an MQTT broker: it relays alerts
// between instances and consumes the buoy device feeds.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/waveguard-alert-service/internal/config"
	"github.com/couchcryptid/waveguard-alert-service/internal/domain"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	qosAtLeastOnce = 1
	tokenTimeout   = 10 * time.Second
	disconnectWait = 250 // ms
)

var errTimeout = errors.New("mqtt operation timed out")

// Client wraps a paho client. Subscriptions made through it are restored
// after every reconnect.
type Client struct {
	client mqtt.Client
	logger *slog.Logger

	mu     sync.Mutex
	routes map[string]mqtt.MessageHandler
	lost   chan struct{}
}

// Connect dials the configured broker.
func Connect(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	c := &Client{
		logger: logger,
		routes: make(map[string]mqtt.MessageHandler),
		lost:   make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTTBroker)
	opts.SetClientID(cfg.MQTTClientID)
	if cfg.MQTTUsername != "" {
		opts.SetUsername(cfg.MQTTUsername)
	}
	if cfg.MQTTPassword != "" {
		opts.SetPassword(cfg.MQTTPassword)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(tokenTimeout)
	opts.OnConnect = c.onConnect
	opts.OnConnectionLost = c.onConnectionLost

	c.client = mqtt.NewClient(opts)
	token := c.client.Connect()
	if err := wait(token); err != nil {
		return nil, fmt.Errorf("connect to mqtt broker %s: %w", cfg.MQTTBroker, err)
	}
	return c, nil
}

// IsConnected reports the broker connection state.
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// CheckReadiness fails while the broker connection is down, which stalls the
// device feeds.
func (c *Client) CheckReadiness(_ context.Context) error {
	if !c.IsConnected() {
		return fmt.Errorf("%w: mqtt broker", domain.ErrChannelDisconnected)
	}
	return nil
}

// Close disconnects from the broker.
func (c *Client) Close() error {
	c.client.Disconnect(disconnectWait)
	return nil
}

// Publish sends payload to topic with at-least-once delivery.
func (c *Client) Publish(topic string, payload []byte) error {
	if err := wait(c.client.Publish(topic, qosAtLeastOnce, false, payload)); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// subscribe registers handler for topic and keeps it across reconnects.
func (c *Client) subscribe(topic string, handler mqtt.MessageHandler) error {
	c.mu.Lock()
	c.routes[topic] = handler
	c.mu.Unlock()

	if err := wait(c.client.Subscribe(topic, qosAtLeastOnce, handler)); err != nil {
		c.mu.Lock()
		delete(c.routes, topic)
		c.mu.Unlock()
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}
	c.logger.Info("mqtt subscribed", "topic", topic)
	return nil
}

func (c *Client) unsubscribe(topic string) {
	c.mu.Lock()
	delete(c.routes, topic)
	c.mu.Unlock()

	if err := wait(c.client.Unsubscribe(topic)); err != nil {
		c.logger.Debug("mqtt unsubscribe failed", "topic", topic, "error", err)
	}
}

// connectionLost is closed when the current connection drops.
func (c *Client) connectionLost() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lost
}

func (c *Client) onConnect(client mqtt.Client) {
	c.mu.Lock()
	routes := make(map[string]mqtt.MessageHandler, len(c.routes))
	for topic, h := range c.routes {
		routes[topic] = h
	}
	c.mu.Unlock()

	c.logger.Info("mqtt connected", "subscriptions", len(routes))
	for topic, h := range routes {
		if err := wait(client.Subscribe(topic, qosAtLeastOnce, h)); err != nil {
			c.logger.Error("mqtt resubscribe failed", "topic", topic, "error", err)
		}
	}
}

func (c *Client) onConnectionLost(_ mqtt.Client, err error) {
	c.logger.Warn("mqtt connection lost", "error", err)
	c.mu.Lock()
	close(c.lost)
	c.lost = make(chan struct{})
	c.mu.Unlock()
}

func wait(token mqtt.Token) error {
	if !token.WaitTimeout(tokenTimeout) {
		return errTimeout
	}
	return token.Error()
}
