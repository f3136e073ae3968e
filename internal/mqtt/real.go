package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/dewheater/internal/logger"
	"github.com/sweeney/dewheater/internal/logic"
	"github.com/sweeney/dewheater/internal/status"
)

// DefaultBufferSize is how many messages are held while the broker is away.
const DefaultBufferSize = 256

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	Username   string
	Password   string
	BufferSize int
}

// RealPublisher publishes to an MQTT broker, buffering while disconnected
// and replaying in order after reconnect.
type RealPublisher struct {
	client paho.Client
	log    *logger.Logger

	mu       sync.Mutex
	buf      *ringBuffer
	flushing bool // a replay owns the backlog

	publishTimeout time.Duration
}

// NewRealPublisher creates a publisher for the given broker. The initial
// connection is retried in the background; messages published before it
// succeeds are buffered.
func NewRealPublisher(o Options, log *logger.Logger) *RealPublisher {
	if o.ClientID == "" {
		o.ClientID = "dewheater"
	}
	p := newPublisher(nil, o.BufferSize, log)

	lwt, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE"})
	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetUsername(o.Username).
		SetPassword(o.Password).
		SetWill(TopicSystem, string(lwt), 1, true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(paho.Client) {
			log.Infow("mqtt connected", "broker", o.Broker)
			go p.flush()
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warnw("mqtt connection lost", "error", err)
		})

	p.client = paho.NewClient(opts)
	p.client.Connect()
	return p
}

func newPublisher(client paho.Client, bufferSize int, log *logger.Logger) *RealPublisher {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &RealPublisher{
		client:         client,
		log:            log,
		buf:            newRingBuffer(bufferSize),
		publishTimeout: 5 * time.Second,
	}
}

// PublishStatus sends a cycle snapshot (QoS 0, retained).
func (p *RealPublisher) PublishStatus(s status.Snapshot) error {
	payload, err := FormatStatusPayload(s)
	if err != nil {
		return fmt.Errorf("format status payload: %w", err)
	}
	return p.publish(TopicStatus, 0, true, payload)
}

// PublishEvent sends a heater transition (QoS 1).
func (p *RealPublisher) PublishEvent(event HeaterEvent) error {
	if event.Command == logic.CommandNone {
		return nil
	}
	payload, err := FormatEventPayload(event)
	if err != nil {
		return fmt.Errorf("format event payload: %w", err)
	}
	return p.publish(TopicEvents, 1, false, payload)
}

// PublishSystem sends a system lifecycle event (QoS 1).
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(TopicSystem, 1, event.Retained, payload)
}

func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	msg := bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained}

	p.mu.Lock()
	open := p.client.IsConnectionOpen()
	if open && p.buf.len() == 0 && !p.flushing {
		p.mu.Unlock()
		return p.send(msg)
	}
	// Keep ordering behind anything still waiting for replay.
	p.push(msg)
	replay := open && !p.flushing
	p.mu.Unlock()

	if replay {
		go p.flush()
	}
	return nil
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(p.publishTimeout) {
		return fmt.Errorf("publish %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

// push must be called with mu held.
func (p *RealPublisher) push(msg bufferedMsg) {
	if p.buf.push(msg) {
		p.log.Warnw("mqtt buffer full, dropping oldest", "capacity", len(p.buf.buf))
	}
}

// flush replays buffered messages oldest first. Sends happen without mu
// held; messages published meanwhile queue behind the batch in flight. A
// failed send puts the remainder back ahead of them and the next publish
// or reconnect starts another replay.
func (p *RealPublisher) flush() {
	p.mu.Lock()
	if p.flushing {
		p.mu.Unlock()
		return
	}
	p.flushing = true
	p.mu.Unlock()

	replayed := 0
	for {
		p.mu.Lock()
		msgs := p.buf.drain()
		if len(msgs) == 0 {
			p.flushing = false
			p.mu.Unlock()
			break
		}
		p.mu.Unlock()

		for i, msg := range msgs {
			if err := p.send(msg); err != nil {
				p.log.Warnw("mqtt replay failed", "error", err, "remaining", len(msgs)-i)
				p.requeue(msgs[i:])
				return
			}
			replayed++
		}
	}
	if replayed > 0 {
		p.log.Infow("mqtt replayed buffered messages", "count", replayed)
	}
}

// requeue puts unsent replay messages back ahead of anything published
// while they were in flight, and ends the replay.
func (p *RealPublisher) requeue(rest []bufferedMsg) {
	p.mu.Lock()
	defer p.mu.Unlock()
	newer := p.buf.drain()
	for _, msg := range rest {
		p.push(msg)
	}
	for _, msg := range newer {
		p.push(msg)
	}
	p.flushing = false
}

// Buffered returns the number of messages waiting for replay.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// IsConnected reports whether the broker connection is currently open.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}
