package mqtt

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/dewheater/internal/logger"
	"github.com/sweeney/dewheater/internal/logic"
	"github.com/sweeney/dewheater/internal/status"
)

func snapshot() status.Snapshot {
	return status.Snapshot{
		Time:        time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		TempIn:      6.1,
		DewPointIn:  1.234,
		HumidityIn:  70,
		TempExt:     5,
		DewPointExt: 4.556,
		HumidityExt: 93,
		HeaterOn:    true,
	}
}

func TestFormatStatusPayload(t *testing.T) {
	payload, err := FormatStatusPayload(snapshot())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed StatusPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	d := parsed.DewHeater
	if d.Timestamp != "2026-02-02T22:18:12Z" {
		t.Errorf("unexpected timestamp: %s", d.Timestamp)
	}
	if d.DewPointIn != 1.23 || d.DewPointExt != 4.56 {
		t.Errorf("dew points not rounded: %v %v", d.DewPointIn, d.DewPointExt)
	}
	if !d.HeaterOn {
		t.Error("expected heater_on true")
	}
}

func TestFormatEventPayload(t *testing.T) {
	event := HeaterEvent{
		Timestamp:   time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Command:     logic.CommandOn,
		TempIn:      10,
		DewPointExt: 8,
		TDiff:       2.5,
	}
	payload, err := FormatEventPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed EventPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	h := parsed.Heater
	if h.Event != "HEATER_ON" || h.State != "ON" {
		t.Errorf("unexpected event/state: %s/%s", h.Event, h.State)
	}
	if h.OnThreshold != 10.5 || h.OffThreshold != 11 {
		t.Errorf("thresholds: got %v/%v, want 10.5/11", h.OnThreshold, h.OffThreshold)
	}
}

func TestFormatSystemPayload(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"system":{"timestamp":"2026-02-02T22:18:12Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(payload) != want {
		t.Errorf("payload:\n got %s\nwant %s", payload, want)
	}
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"status":{}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "STARTUP", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("expected raw payload, got %s", payload)
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()
	if err := f.PublishStatus(snapshot()); err != nil {
		t.Fatal(err)
	}
	if err := f.PublishEvent(HeaterEvent{Command: logic.CommandOff}); err != nil {
		t.Fatal(err)
	}
	if err := f.PublishSystem(SystemEvent{Event: "STARTUP"}); err != nil {
		t.Fatal(err)
	}
	if len(f.Statuses) != 1 || len(f.Events) != 1 || len(f.SystemEvents) != 1 || len(f.Payloads) != 3 {
		t.Errorf("recorded: %d statuses, %d events, %d system, %d payloads",
			len(f.Statuses), len(f.Events), len(f.SystemEvents), len(f.Payloads))
	}

	f.PublishError = errors.New("broker down")
	if err := f.PublishStatus(snapshot()); err == nil {
		t.Error("expected injected error")
	}

	f.Close()
	if !f.Closed {
		t.Error("expected Closed")
	}
	f.Reset()
	if f.Closed || f.PublishError != nil || len(f.Payloads) != 0 {
		t.Error("Reset did not clear state")
	}
}

// fakeToken completes immediately with err.
type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type sent struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakeClient implements the parts of paho.Client the publisher uses.
type fakeClient struct {
	paho.Client

	mu        sync.Mutex
	open      bool
	err       error
	sent      []sent
	disconned bool

	// gate, if set, holds every Publish until it is closed.
	gate     chan struct{}
	entering chan struct{}
}

func (c *fakeClient) IsConnectionOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	if c.gate != nil {
		c.entering <- struct{}{}
		<-c.gate
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return &fakeToken{err: c.err}
	}
	c.sent = append(c.sent, sent{topic, qos, retained, payload.([]byte)})
	return &fakeToken{}
}

func (c *fakeClient) Disconnect(uint) {
	c.disconned = true
}

func (c *fakeClient) setOpen(open bool) {
	c.mu.Lock()
	c.open = open
	c.mu.Unlock()
}

func (c *fakeClient) setErr(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

func (c *fakeClient) topics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	for i, m := range c.sent {
		out[i] = m.topic
	}
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for condition")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRealPublisherSendsWhenConnected(t *testing.T) {
	client := &fakeClient{open: true}
	p := newPublisher(client, 10, logger.Nop())

	if err := p.PublishStatus(snapshot()); err != nil {
		t.Fatal(err)
	}
	if err := p.PublishEvent(HeaterEvent{Command: logic.CommandOn}); err != nil {
		t.Fatal(err)
	}
	if err := p.PublishSystem(SystemEvent{Event: "STARTUP", Retained: true}); err != nil {
		t.Fatal(err)
	}

	if len(client.sent) != 3 {
		t.Fatalf("sent: got %d, want 3", len(client.sent))
	}
	want := []struct {
		topic    string
		qos      byte
		retained bool
	}{
		{TopicStatus, 0, true},
		{TopicEvents, 1, false},
		{TopicSystem, 1, true},
	}
	for i, w := range want {
		got := client.sent[i]
		if got.topic != w.topic || got.qos != w.qos || got.retained != w.retained {
			t.Errorf("message %d: got %s qos=%d retained=%v, want %s qos=%d retained=%v",
				i, got.topic, got.qos, got.retained, w.topic, w.qos, w.retained)
		}
	}
}

func TestRealPublisherSkipsNoneEvent(t *testing.T) {
	client := &fakeClient{open: true}
	p := newPublisher(client, 10, logger.Nop())
	if err := p.PublishEvent(HeaterEvent{Command: logic.CommandNone}); err != nil {
		t.Fatal(err)
	}
	if len(client.sent) != 0 {
		t.Errorf("expected nothing sent, got %d", len(client.sent))
	}
}

func TestRealPublisherBuffersAndReplays(t *testing.T) {
	client := &fakeClient{}
	p := newPublisher(client, 10, logger.Nop())

	for i := 0; i < 3; i++ {
		s := snapshot()
		s.TempIn = float64(i)
		if err := p.PublishStatus(s); err != nil {
			t.Fatalf("publish while disconnected: %v", err)
		}
	}
	if p.Buffered() != 3 || len(client.sent) != 0 {
		t.Fatalf("buffered=%d sent=%d, want 3/0", p.Buffered(), len(client.sent))
	}

	client.setOpen(true)
	p.flush()

	if p.Buffered() != 0 {
		t.Errorf("buffered after flush: got %d", p.Buffered())
	}
	if len(client.sent) != 3 {
		t.Fatalf("sent after flush: got %d, want 3", len(client.sent))
	}
	for i, m := range client.sent {
		var parsed StatusPayload
		if err := json.Unmarshal(m.payload, &parsed); err != nil {
			t.Fatal(err)
		}
		if parsed.DewHeater.TempIn != float64(i) {
			t.Errorf("replay order: message %d has temp_in %v", i, parsed.DewHeater.TempIn)
		}
	}
}

func TestRealPublisherFailedReplayKeepsRemainder(t *testing.T) {
	client := &fakeClient{}
	p := newPublisher(client, 10, logger.Nop())
	p.PublishSystem(SystemEvent{Event: "STARTUP"})
	p.PublishStatus(snapshot())

	client.setOpen(true)
	client.setErr(errors.New("publish timeout"))
	p.flush()
	if p.Buffered() != 2 {
		t.Errorf("buffered after failed flush: got %d, want 2", p.Buffered())
	}

	// The connection never dropped, so no reconnect will replay the
	// backlog. The next publish has to.
	client.setErr(nil)
	if err := p.PublishEvent(HeaterEvent{Command: logic.CommandOn}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(client.topics()) == 3 })

	got := client.topics()
	want := []string{TopicSystem, TopicStatus, TopicEvents}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message %d: got %s, want %s", i, got[i], want[i])
		}
	}
	waitFor(t, func() bool { return p.Buffered() == 0 })
}

func TestRealPublisherQueuesBehindBacklog(t *testing.T) {
	client := &fakeClient{}
	p := newPublisher(client, 10, logger.Nop())
	p.PublishSystem(SystemEvent{Event: "STARTUP"})

	// Connected, but the backlog has not been replayed yet.
	client.setOpen(true)
	if err := p.PublishStatus(snapshot()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(client.topics()) == 2 })

	got := client.topics()
	if got[0] != TopicSystem || got[1] != TopicStatus {
		t.Errorf("order: got %v, want [%s %s]", got, TopicSystem, TopicStatus)
	}
}

func TestRealPublisherPublishDoesNotWaitForReplay(t *testing.T) {
	client := &fakeClient{
		gate:     make(chan struct{}),
		entering: make(chan struct{}, 4),
	}
	p := newPublisher(client, 10, logger.Nop())
	p.PublishSystem(SystemEvent{Event: "STARTUP"})

	client.setOpen(true)
	go p.flush()
	<-client.entering

	// The replay is stuck inside Publish; new messages still queue.
	done := make(chan error, 1)
	go func() { done <- p.PublishStatus(snapshot()) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("PublishStatus blocked behind replay")
	}
	if p.Buffered() != 1 {
		t.Errorf("buffered during replay: got %d, want 1", p.Buffered())
	}

	close(client.gate)
	waitFor(t, func() bool { return len(client.topics()) == 2 })
	got := client.topics()
	if got[0] != TopicSystem || got[1] != TopicStatus {
		t.Errorf("order: got %v, want [%s %s]", got, TopicSystem, TopicStatus)
	}
}

func TestRealPublisherSendError(t *testing.T) {
	client := &fakeClient{open: true, err: errors.New("boom")}
	p := newPublisher(client, 10, logger.Nop())
	if err := p.PublishStatus(snapshot()); err == nil {
		t.Error("expected publish error")
	}
}

func TestRealPublisherClose(t *testing.T) {
	client := &fakeClient{open: true}
	p := newPublisher(client, 10, logger.Nop())
	if !p.IsConnected() {
		t.Error("expected connected")
	}
	p.Close()
	if !client.disconned {
		t.Error("expected Disconnect")
	}
}
