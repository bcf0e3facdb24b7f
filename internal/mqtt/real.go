package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/vent-controller/internal/logic"
	"github.com/sweeney/vent-controller/internal/report"
)

// Options configures a Client.
type Options struct {
	Broker     string
	ClientID   string
	Username   string
	Password   string
	BufferSize int
	Fans       int
}

// Client publishes to an actual MQTT broker and tracks remote commands.
// Publishes made while disconnected are buffered and replayed on reconnect.
type Client struct {
	client   paho.Client
	log      *zap.SugaredLogger
	fans     int
	commands *CommandState

	mu     sync.Mutex
	buffer *ringBuffer
}

// NewClient creates a client and starts connecting in the background.
// Connection failures are retried by paho and never returned here.
func NewClient(o Options, log *zap.SugaredLogger) (*Client, error) {
	if o.Broker == "" {
		return nil, errors.New("mqtt: broker not configured")
	}
	if o.ClientID == "" {
		o.ClientID = "vent-controller"
	}

	c := &Client{
		log:      log,
		fans:     o.Fans,
		commands: NewCommandState(),
		buffer:   newRingBuffer(o.BufferSize),
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetUsername(o.Username).
		SetPassword(o.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetMaxReconnectInterval(30*time.Second).
		SetWill(TopicStatus, WillPayload, 1, false).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)

	c.client = paho.NewClient(opts)
	c.client.Connect()
	return c, nil
}

func (c *Client) onConnect(cl paho.Client) {
	c.log.Infow("mqtt connected")

	token := cl.Subscribe(TopicCommand, 1, c.onMessage)
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		c.log.Errorw("subscribe failed", "topic", TopicCommand, "error", token.Error())
	}

	c.mu.Lock()
	pending := c.buffer.drainAll()
	c.mu.Unlock()

	for i, msg := range pending {
		if err := c.send(msg); err != nil {
			c.log.Warnw("replay interrupted", "sent", i, "pending", len(pending)-i, "error", err)
			c.mu.Lock()
			for _, m := range pending[i:] {
				c.buffer.push(m)
			}
			c.mu.Unlock()
			return
		}
	}
	if len(pending) > 0 {
		c.log.Infow("replayed buffered messages", "count", len(pending))
	}
}

func (c *Client) onConnectionLost(_ paho.Client, err error) {
	c.log.Warnw("mqtt connection lost", "error", err)
}

func (c *Client) onMessage(_ paho.Client, m paho.Message) {
	intents, err := c.commands.Apply(m.Payload())
	if err != nil {
		c.log.Warnw("bad remote command", "topic", m.Topic(), "error", err)
		return
	}
	c.log.Infow("remote command", "topic", m.Topic(), "intents", intents)
}

// PublishStatus sends a status report.
func (c *Client) PublishStatus(s report.Status) error {
	if s.Fans == 0 {
		s.Fans = c.fans
	}
	payload, err := report.FormatStatus(s)
	if err != nil {
		return fmt.Errorf("format status: %w", err)
	}
	return c.publish(bufferedMsg{topic: TopicStatus, payload: payload, qos: qosStatus})
}

// PublishAlert sends an alert report.
func (c *Client) PublishAlert(a report.Alert) error {
	payload, err := report.FormatAlert(a)
	if err != nil {
		return fmt.Errorf("format alert: %w", err)
	}
	return c.publish(bufferedMsg{topic: TopicAlert, payload: payload, qos: qosAlert})
}

func (c *Client) publish(msg bufferedMsg) error {
	if !c.client.IsConnectionOpen() {
		c.mu.Lock()
		dropped := c.buffer.push(msg)
		n := c.buffer.len()
		c.mu.Unlock()
		if dropped {
			c.log.Warnw("offline buffer full, dropping oldest", "buffered", n)
		}
		return nil
	}
	return c.send(msg)
}

func (c *Client) send(msg bufferedMsg) error {
	token := c.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (c *Client) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// PollLatest returns the latest remote command.
func (c *Client) PollLatest() (logic.Intents, bool) {
	return c.commands.PollLatest()
}

// Buffered returns the number of messages waiting for reconnection.
func (c *Client) Buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer.len()
}

// Close disconnects from the broker.
func (c *Client) Close() error {
	c.client.Disconnect(1000)
	return nil
}
