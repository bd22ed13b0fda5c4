package mqtt

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/hvcrate-core/internal/infrastructure/config"
)

// maxPayloadSize bounds a single publish. A full catalog of a 16-slot
// crate is well under this.
const maxPayloadSize = 1 << 20

// Logger is the subset of logging.Logger the client reports through.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Hooks are optional callbacks passed to Connect.
type Hooks struct {
	Logger Logger

	// OnConnect runs after every connection to the broker, once the
	// subscriptions have been restored. reconnect is false the first time.
	OnConnect func(reconnect bool)

	// OnDisconnect runs when the connection is lost unexpectedly.
	OnDisconnect func(err error)
}

// MessageHandler receives one message. A returned error is logged and
// otherwise ignored; MQTT has no negative acknowledgement.
type MessageHandler func(topic string, payload []byte) error

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Client is the broker connection shared by the hv bridge and its health
// reporter. Subscriptions survive reconnects: paho runs with a clean
// session, so they are replayed from the client's own table.
//
// All methods are safe for concurrent use.
type Client struct {
	paho  pahomqtt.Client
	cfg   config.MQTTConfig
	hooks Hooks

	mu        sync.RWMutex
	subs      map[string]subscription
	connected bool
	connects  int
}

// Connect dials the broker from cfg and waits for the first CONNACK.
//
// The client registers a retained last will on the system status topic,
// so subscribers see "offline/unexpected_disconnect" if the process dies,
// and publishes "online" on every (re)connect.
//
// Parameters:
//   - cfg: MQTT configuration
//   - hooks: Optional logger and connection callbacks
//
// Returns:
//   - *Client: Connected client
//   - error: ErrConnectionFailed wrapping the cause
func Connect(cfg config.MQTTConfig, hooks Hooks) (*Client, error) {
	c := &Client{
		cfg:   cfg,
		hooks: hooks,
		subs:  make(map[string]subscription),
	}

	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.onConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.onConnectionLost(err) })
	opts.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		if c.hooks.Logger != nil {
			c.hooks.Logger.Warn("MQTT reconnecting", "client_id", cfg.Broker.ClientID)
		}
	})

	c.paho = pahomqtt.NewClient(opts)
	if err := await(c.paho.Connect(), defaultConnectTimeout, ErrConnectionFailed); err != nil {
		return nil, err
	}

	// The OnConnect handler runs on its own goroutine and may lag behind.
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	return c, nil
}

func (c *Client) onConnect() {
	c.mu.Lock()
	c.connected = true
	c.connects++
	reconnect := c.connects > 1
	subs := make(map[string]subscription, len(c.subs))
	for topic, s := range c.subs {
		subs[topic] = s
	}
	c.mu.Unlock()

	for topic, s := range subs {
		// Not awaited: this runs on paho's callback goroutine.
		c.paho.Subscribe(topic, s.qos, c.dispatch(s.handler))
	}
	c.paho.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true,
		buildStatusPayload(c.cfg.Broker.ClientID, StatusOnline, ""))

	if c.hooks.OnConnect != nil {
		c.hooks.OnConnect(reconnect)
	}
}

func (c *Client) onConnectionLost(err error) {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	if c.hooks.OnDisconnect != nil {
		c.hooks.OnDisconnect(err)
	}
}

// Close publishes a retained "offline/graceful_shutdown" status, which
// replaces the last will, and disconnects. Close on an unconnected client
// is a no-op.
func (c *Client) Close() error {
	if c.paho == nil {
		return nil
	}

	if c.IsConnected() {
		token := c.paho.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true,
			buildStatusPayload(c.cfg.Broker.ClientID, StatusOffline, ReasonGracefulShutdown))
		token.WaitTimeout(defaultOperationTimeout)
	}
	c.paho.Disconnect(defaultDisconnectQuiesce)

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	return nil
}

// HealthCheck reports ErrNotConnected while the broker is unreachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports whether the client is connected right now.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.paho != nil && c.paho.IsConnected()
}

// Publish sends payload to topic and waits for the broker's acknowledgement
// (for QoS 1 and 2). State, catalog and health topics are published
// retained; commands, acks and responses are not.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := validate(topic, qos); err != nil {
		return err
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload of %d bytes exceeds %d", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return await(c.paho.Publish(topic, qos, retained, payload), defaultOperationTimeout, ErrPublishFailed)
}

// Subscribe registers handler for topic, which may contain + and #
// wildcards. Subscribing to the same topic again replaces the handler.
//
// Handlers run on paho's goroutines; a panic in one is recovered and
// logged.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if err := validate(topic, qos); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.mu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: handler}
	c.mu.Unlock()

	if err := await(c.paho.Subscribe(topic, qos, c.dispatch(handler)), defaultOperationTimeout, ErrSubscribeFailed); err != nil {
		c.mu.Lock()
		delete(c.subs, topic)
		c.mu.Unlock()
		return err
	}
	return nil
}

// Unsubscribe drops the subscription for topic, which must match the
// string passed to Subscribe.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.mu.Lock()
	delete(c.subs, topic)
	c.mu.Unlock()

	return await(c.paho.Unsubscribe(topic), defaultOperationTimeout, ErrUnsubscribeFailed)
}

// Subscriptions returns the subscribed topic filters, sorted.
func (c *Client) Subscriptions() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	topics := make([]string, 0, len(c.subs))
	for topic := range c.subs {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// dispatch adapts a MessageHandler to paho, recovering panics.
func (c *Client) dispatch(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		log := c.hooks.Logger
		defer func() {
			if r := recover(); r != nil && log != nil {
				log.Error("MQTT handler panic recovered", "topic", msg.Topic(), "panic", r)
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil && log != nil {
			log.Warn("MQTT handler returned error", "topic", msg.Topic(), "error", err)
		}
	}
}

func validate(topic string, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	return nil
}

// await waits for token and wraps a timeout or broker error in failure.
func await(token pahomqtt.Token, timeout time.Duration, failure error) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w: %w after %v", failure, ErrTimeout, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", failure, err)
	}
	return nil
}
