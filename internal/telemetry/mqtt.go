package telemetry

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// DefaultTopic is where a sim bridge publishes telemetry frames.
const DefaultTopic = "drivestats/telemetry"

// MQTTSource keeps the latest frame published by a sim bridge. Messages are
// applied on top of the previous frame, so the bridge may publish partial
// documents.
type MQTTSource struct {
	client     paho.Client
	topic      string
	staleAfter time.Duration
	now        func() time.Time

	mu       sync.Mutex
	last     Frame
	have     bool
	received time.Time
}

// NewMQTTSource connects to broker and subscribes to topic. A frame older
// than staleAfter is reported as ErrNoSamples; zero disables the check.
func NewMQTTSource(broker, clientID, topic string, staleAfter time.Duration) (*MQTTSource, error) {
	if topic == "" {
		topic = DefaultTopic
	}
	s := &MQTTSource{topic: topic, staleAfter: staleAfter, now: time.Now}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		// Subscriptions do not survive a clean-session reconnect.
		SetOnConnectHandler(func(c paho.Client) {
			token := c.Subscribe(s.topic, 0, func(_ paho.Client, msg paho.Message) {
				s.handle(msg.Payload())
			})
			if token.WaitTimeout(5*time.Second) && token.Error() != nil {
				log.Printf("telemetry: subscribe %s: %v", s.topic, token.Error())
			}
		})

	s.client = paho.NewClient(opts)
	token := s.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return s, nil
}

func (s *MQTTSource) handle(payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := mergeFrame(s.last, payload)
	if err != nil {
		log.Printf("telemetry: bad frame on %s: %v", s.topic, err)
		return
	}
	s.last = next
	s.have = true
	s.received = s.now()
}

// Read returns the latest frame.
func (s *MQTTSource) Read(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.have {
		return Frame{}, ErrNoSamples
	}
	if s.staleAfter > 0 && s.now().Sub(s.received) > s.staleAfter {
		return s.last, fmt.Errorf("last frame %s old: %w", s.now().Sub(s.received).Truncate(time.Millisecond), ErrNoSamples)
	}
	return s.last, nil
}

// Close disconnects from the broker.
func (s *MQTTSource) Close() error {
	if s.client != nil {
		s.client.Disconnect(250)
	}
	return nil
}
