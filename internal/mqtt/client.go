package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"govee-decoder/internal/config"
	"govee-decoder/pkg/types"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MessageHandler receives the raw body of every message on a subscribed topic.
type MessageHandler func(topic string, payload []byte)

type Client struct {
	client    mqtt.Client
	cfg       config.Config
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool
	subs      map[string]MessageHandler

	stopCh   chan struct{}
	stopOnce sync.Once
}

type BridgeStatus struct {
	Online    bool      `json:"online"`
	ClientID  string    `json:"client_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewClient(cfg config.Config, logger *slog.Logger) *Client {
	c := &Client{
		cfg:    cfg,
		logger: logger,
		subs:   make(map[string]MessageHandler),
		stopCh: make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)

	// Session settings
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	// Keepalive / timeouts
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	if will, err := json.Marshal(BridgeStatus{Online: false, ClientID: cfg.MQTTClientID}); err == nil {
		opts.SetBinaryWill(c.statusTopic(), will, 1, true)
	}

	opts.SetOnConnectHandler(c.onConnect)

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	c.client = mqtt.NewClient(opts)
	return c
}

// Connect establishes connection to the MQTT broker.
// This function waits for the initial connection, and respects ctx and Disconnect().
func (c *Client) Connect(ctx context.Context) error {
	select {
	case <-c.stopCh:
		return fmt.Errorf("client stopped")
	default:
	}

	if c.IsConnected() {
		return nil
	}

	// With ConnectRetry(true), paho keeps retrying internally until the token completes.
	token := c.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			c.client.Disconnect(0)
			return ctx.Err()
		case <-c.stopCh:
			c.client.Disconnect(0)
			return fmt.Errorf("client stopped")
		default:
		}
	}
}

// onConnect re-applies subscriptions, which a clean session forgets, and only
// then reports the client as connected.
func (c *Client) onConnect(client mqtt.Client) {
	c.logger.Info("mqtt connected", "broker", c.cfg.MQTTBroker, "port", c.cfg.MQTTPort)
	c.resubscribe(client)
	c.setConnected(true)
	if err := c.PublishStatus(true); err != nil {
		c.logger.Warn("mqtt status publish failed", "error", err)
	}
}

// Subscribe registers handler for topic. It takes effect immediately when
// connected and again after every reconnect.
func (c *Client) Subscribe(topic string, handler MessageHandler) error {
	c.mu.Lock()
	c.subs[topic] = handler
	c.mu.Unlock()

	if !c.IsConnected() {
		return nil
	}
	return c.subscribe(c.client, topic, handler)
}

func (c *Client) resubscribe(client mqtt.Client) {
	c.mu.RLock()
	subs := make(map[string]MessageHandler, len(c.subs))
	for t, h := range c.subs {
		subs[t] = h
	}
	c.mu.RUnlock()

	for topic, handler := range subs {
		if err := c.subscribe(client, topic, handler); err != nil {
			c.logger.Error("mqtt subscribe failed", "topic", topic, "error", err)
		}
	}
}

func (c *Client) subscribe(client mqtt.Client, topic string, handler MessageHandler) error {
	qos := byte(1)
	token := client.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		c.logger.Debug("received mqtt message", "topic", msg.Topic(), "size", len(msg.Payload()))
		handler(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}
	c.logger.Info("subscribed to mqtt topic", "topic", topic, "qos", qos)
	return nil
}

// Name identifies the client as a reading sink.
func (c *Client) Name() string { return "mqtt" }

// Publish sends a decoded reading to <prefix>/<address>/reading.
func (c *Client) Publish(ctx context.Context, reading types.GoveeReading) error {
	if !c.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	topic := ReadingTopic(c.cfg.MQTTReadingTopicPrefix, reading.Address)

	data, err := json.Marshal(reading)
	if err != nil {
		return fmt.Errorf("marshal reading: %w", err)
	}

	if err := c.publish(ctx, topic, false, data); err != nil {
		c.logger.Error("failed to publish reading", "topic", topic, "error", err)
		return fmt.Errorf("publish reading: %w", err)
	}

	c.logger.Debug("published reading", "topic", topic, "address", reading.Address, "model", reading.Model)
	return nil
}

// PublishStatus publishes the retained bridge online/offline state.
func (c *Client) PublishStatus(online bool) error {
	data, err := json.Marshal(BridgeStatus{Online: online, ClientID: c.cfg.MQTTClientID, Timestamp: time.Now()})
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	return c.publish(context.Background(), c.statusTopic(), true, data)
}

func (c *Client) publish(ctx context.Context, topic string, retained bool, data []byte) error {
	token := c.client.Publish(topic, 1, retained, data)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	return token.Error()
}

func (c *Client) statusTopic() string {
	return c.cfg.MQTTReadingTopicPrefix + "/bridge/status"
}

// ReadingTopic builds the per-device reading topic. Wildcards and separators
// in the address are replaced so one device maps to exactly one topic level.
func ReadingTopic(prefix, address string) string {
	addr := strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(address)
	if addr == "" {
		addr = "unknown"
	}
	return prefix + "/" + addr + "/reading"
}

// IsConnected returns whether the client is connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client.IsConnected()
}

// Disconnect stops the client and closes the MQTT connection.
// Idempotent and safe to call multiple times.
func (c *Client) Disconnect() {
	c.stopOnce.Do(func() { close(c.stopCh) })

	if c.client != nil && c.IsConnected() {
		if err := c.PublishStatus(false); err != nil {
			c.logger.Warn("mqtt status publish failed", "error", err)
		}
		c.mu.RLock()
		topics := make([]string, 0, len(c.subs))
		for t := range c.subs {
			topics = append(topics, t)
		}
		c.mu.RUnlock()
		if len(topics) > 0 {
			c.client.Unsubscribe(topics...).WaitTimeout(2 * time.Second)
		}
	}

	// Paho Disconnect quiesces in-flight work for the given ms.
	if c.client != nil {
		c.client.Disconnect(250)
	}

	c.setConnected(false)
	c.logger.Info("mqtt disconnected")
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}
