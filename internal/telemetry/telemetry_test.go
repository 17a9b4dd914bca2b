package telemetry

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ivlev/scrubber/internal/sequence"
)

type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type published struct {
	topic    string
	retained bool
	payload  []byte
}

type fakeClient struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, published{topic, retained, payload.([]byte)})
	return &fakeToken{err: c.err}
}

func TestPublisherSendsStates(t *testing.T) {
	client := &fakeClient{}
	p := NewPublisher(client, "scrubber/state", log.New(io.Discard, "", 0))

	p.ObserveState(sequence.PlaybackState{Sequence: sequence.First, FrameIndex: 41, Opacity: 1})
	p.ObserveState(sequence.PlaybackState{Sequence: sequence.Second, FrameIndex: 239, Opacity: 1})
	p.Close()

	if len(client.msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(client.msgs))
	}
	first := client.msgs[0]
	if first.topic != "scrubber/state" || !first.retained {
		t.Errorf("unexpected publish %+v", first)
	}

	var msg Message
	if err := json.Unmarshal(first.payload, &msg); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if msg.Locator != "/Sequence1/ezgif-frame-042.jpg" || msg.FrameIndex != 41 || !msg.Visible {
		t.Errorf("unexpected message %+v", msg)
	}
	if st := p.Stats(); st.Published != 2 || st.Errors != 0 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestPublisherCountsErrors(t *testing.T) {
	client := &fakeClient{err: errors.New("broker gone")}
	p := NewPublisher(client, "t", log.New(io.Discard, "", 0))

	p.ObserveState(sequence.Initial())
	p.Close()
	p.Close()

	if st := p.Stats(); st.Errors != 1 || st.Published != 0 {
		t.Errorf("expected one error, got %+v", st)
	}
}
