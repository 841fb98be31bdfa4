package isochrone

import (
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// RequestHandler is called for every request message. profile is taken from
// the last topic segment and may be empty.
type RequestHandler func(profile string, payload []byte)

// MQTTClient manages the broker connection and the request subscription
type MQTTClient struct {
	client      mqtt.Client
	config      MQTTConfig
	handler     RequestHandler
	logger      *slog.Logger
	isConnected bool
	mu          sync.RWMutex
}

// InitMQTT connects to the configured broker in the background.
// If no broker is set via MQTT_BROKER or config, MQTT is disabled and this returns nil.
func InitMQTT(config MQTTConfig, handler RequestHandler, logger *slog.Logger) *MQTTClient {
	if broker := os.Getenv("MQTT_BROKER"); broker != "" {
		config.Broker = broker
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.Broker == "" {
		logger.Info("MQTT disabled: no broker configured")
		return nil
	}

	c := &MQTTClient{config: config, handler: handler, logger: logger}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)

	clientID := os.Getenv("MQTT_CLIENT_ID")
	if clientID == "" {
		clientID = config.ClientID
	}
	if clientID == "" {
		clientID = "isoreach"
	}
	opts.SetClientID(clientID)

	username := os.Getenv("MQTT_USERNAME")
	if username == "" {
		username = config.Username
	}
	if username != "" {
		opts.SetUsername(username)
		password := os.Getenv("MQTT_PASSWORD")
		if password == "" {
			password = config.Password
		}
		opts.SetPassword(password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(false) // keep the subscription across reconnects
	opts.SetOrderMatters(false)

	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(c.onReconnecting)

	c.client = mqtt.NewClient(opts)
	go c.connectWithRetry()
	return c
}

// newMQTTClientWith wraps an existing client, used with mocks in tests
func newMQTTClientWith(client mqtt.Client, config MQTTConfig, handler RequestHandler) *MQTTClient {
	return &MQTTClient{client: client, config: config, handler: handler, logger: slog.Default()}
}

// connectWithRetry connects with exponential backoff
func (c *MQTTClient) connectWithRetry() {
	retryDelay := 1 * time.Second
	maxRetryDelay := 60 * time.Second

	for {
		c.logger.Info("connecting to MQTT broker", "broker", c.config.Broker)

		token := c.client.Connect()
		if token.WaitTimeout(10 * time.Second) {
			if token.Error() == nil {
				c.logger.Info("connected to MQTT broker")
				c.setConnected(true)
				return
			}
			c.logger.Warn("MQTT connection failed", "error", token.Error())
		} else {
			c.logger.Warn("MQTT connection timeout")
		}

		c.logger.Info("retrying MQTT connection", "delay", retryDelay)
		time.Sleep(retryDelay)
		retryDelay *= 2
		if retryDelay > maxRetryDelay {
			retryDelay = maxRetryDelay
		}
	}
}

// requestFilter is the subscription covering bare and per-profile request topics
func (c *MQTTClient) requestFilter() string {
	return strings.TrimSuffix(c.config.RequestTopic, "/") + "/#"
}

func (c *MQTTClient) onConnect(client mqtt.Client) {
	c.setConnected(true)

	filter := c.requestFilter()
	token := client.Subscribe(filter, c.config.QoS, c.messageHandler)
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		c.logger.Error("subscribing to request topic", "topic", filter, "error", token.Error())
		return
	}
	c.logger.Info("subscribed to request topic", "topic", filter)
}

func (c *MQTTClient) onConnectionLost(client mqtt.Client, err error) {
	c.logger.Warn("MQTT connection interrupted, auto-reconnect will retry", "error", err)
	c.setConnected(false)
}

func (c *MQTTClient) onReconnecting(client mqtt.Client, opts *mqtt.ClientOptions) {
	c.logger.Info("MQTT reconnecting")
}

func (c *MQTTClient) messageHandler(client mqtt.Client, msg mqtt.Message) {
	payload := msg.Payload()
	profile := profileFromTopic(c.config.RequestTopic, msg.Topic())
	c.logger.Debug("received isochrone request",
		"topic", msg.Topic(), "profile", profile, "bytes", len(payload))
	if c.handler != nil {
		c.handler(profile, payload)
	}
}

// profileFromTopic returns the segment following the request topic, if any.
// Example: ("isoreach/request", "isoreach/request/cycling-regular") -> "cycling-regular"
func profileFromTopic(requestTopic, topic string) string {
	rest := strings.TrimPrefix(topic, strings.TrimSuffix(requestTopic, "/"))
	rest = strings.Trim(rest, "/")
	if rest == "" || strings.Contains(rest, "/") {
		return ""
	}
	return rest
}

// IsConnected returns true if the MQTT client is connected
func (c *MQTTClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

func (c *MQTTClient) setConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isConnected = connected
}

// Disconnect gracefully closes the MQTT connection
func (c *MQTTClient) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		c.logger.Info("disconnecting from MQTT broker")
		c.client.Disconnect(250)
		c.setConnected(false)
	}
}

// GetClient returns the underlying MQTT client for publishing
func (c *MQTTClient) GetClient() mqtt.Client {
	return c.client
}
