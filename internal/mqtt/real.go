package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/drivestats/internal/ring"
)

// BufferCapacity is how many messages are held while the broker is unreachable.
const BufferCapacity = 256

// AckTimeout is how long a message may wait for the broker's acknowledgement
// before it goes back into the buffer.
const AckTimeout = 5 * time.Second

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client     paho.Client
	topic      string
	ackTimeout time.Duration

	mu       sync.Mutex
	pending  *ring.Buffer[bufferedMsg]
	overflow bool // true if any message was dropped since last drain
}

// NewRealPublisher creates a publisher connected to the given broker.
func NewRealPublisher(broker, clientID string) (*RealPublisher, error) {
	p := newPublisher(nil)

	will, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE"})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicSystem, string(will), 1, false).
		SetOnConnectHandler(func(paho.Client) { p.replay() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

func newPublisher(client paho.Client) *RealPublisher {
	return &RealPublisher{
		client:     client,
		topic:      Topic,
		ackTimeout: AckTimeout,
		pending:    ring.New[bufferedMsg](BufferCapacity),
	}
}

// Publish sends a stats or setup event to the MQTT broker.
func (p *RealPublisher) Publish(event Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 1: a flushed session should not be lost to a dropped packet.
	return p.send(bufferedMsg{topic: p.topic, payload: payload, qos: 1})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.send(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for a reconnect.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending.Len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	if n := p.Buffered(); n > 0 {
		log.Printf("mqtt: closing with %d unsent messages", n)
	}
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}

// send never blocks the caller on the broker. A token that has already
// resolved reports its error here; otherwise the acknowledgement is awaited
// in the background and a timeout or failure re-buffers the message.
func (p *RealPublisher) send(msg bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		p.buffer(msg)
		return nil
	}
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			p.buffer(msg)
			return fmt.Errorf("publish to %s: %w", msg.topic, err)
		}
		return nil
	default:
	}
	go func() {
		if err := p.await(msg.topic, token); err != nil {
			log.Printf("mqtt: %v, buffering for reconnect", err)
			p.buffer(msg)
		}
	}()
	return nil
}

// publish sends msg and waits for the acknowledgement. Only replay uses it;
// it runs on paho's connect handler, not on the tick loop.
func (p *RealPublisher) publish(msg bufferedMsg) error {
	return p.await(msg.topic, p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload))
}

func (p *RealPublisher) await(topic string, token paho.Token) error {
	if !token.WaitTimeout(p.ackTimeout) {
		return fmt.Errorf("publish to %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func (p *RealPublisher) buffer(msg bufferedMsg) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending.Push(msg) && !p.overflow {
		log.Printf("mqtt: buffer full (%d messages), dropping oldest", p.pending.Cap())
		p.overflow = true
	}
}

// replay runs on every (re)connect and sends buffered messages oldest first.
// A message that fails again goes back into the buffer.
func (p *RealPublisher) replay() {
	p.mu.Lock()
	msgs := p.pending.Drain()
	p.overflow = false
	p.mu.Unlock()

	if len(msgs) == 0 {
		return
	}
	log.Printf("mqtt: connected, replaying %d buffered messages", len(msgs))
	for _, msg := range msgs {
		if err := p.publish(msg); err != nil {
			log.Printf("mqtt: replay failed: %v", err)
			p.buffer(msg)
		}
	}
}
