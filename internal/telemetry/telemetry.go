// Package telemetry publishes playback state changes to an MQTT broker.
package telemetry

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ivlev/scrubber/internal/config"
	"github.com/ivlev/scrubber/internal/sequence"
)

// Client is the part of mqtt.Client the publisher needs.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Message is the JSON payload of one state change.
type Message struct {
	sequence.PlaybackState
	Locator string `json:"locator"`
	Visible bool   `json:"visible"`
	Time    int64  `json:"ts"` // unix milliseconds
}

type Stats struct {
	Published uint64
	Dropped   uint64
	Errors    uint64
}

// Publisher observes playback state and forwards it without blocking the
// scroll path. When the broker falls behind, states are dropped.
type Publisher struct {
	client Client
	topic  string
	logger *log.Logger

	states chan sequence.PlaybackState
	done   chan struct{}
	once   sync.Once

	mu    sync.Mutex
	stats Stats
}

func NewPublisher(client Client, topic string, logger *log.Logger) *Publisher {
	if logger == nil {
		logger = log.Default()
	}
	p := &Publisher{
		client: client,
		topic:  topic,
		logger: logger,
		states: make(chan sequence.PlaybackState, 64),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

// ObserveState queues st for publishing.
func (p *Publisher) ObserveState(st sequence.PlaybackState) {
	select {
	case p.states <- st:
	default:
		p.mu.Lock()
		p.stats.Dropped++
		p.mu.Unlock()
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	for st := range p.states {
		if err := p.publish(st); err != nil {
			p.mu.Lock()
			p.stats.Errors++
			p.mu.Unlock()
			p.logger.Printf("[!] telemetry: %v", err)
			continue
		}
		p.mu.Lock()
		p.stats.Published++
		p.mu.Unlock()
	}
}

func (p *Publisher) publish(st sequence.PlaybackState) error {
	payload, err := json.Marshal(Message{
		PlaybackState: st,
		Locator:       st.Key().Locator(),
		Visible:       st.Visible(),
		Time:          time.Now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	token := p.client.Publish(p.topic, 0, true, payload)
	if !token.WaitTimeout(2 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}

// Close publishes what is queued and stops.
func (p *Publisher) Close() {
	p.once.Do(func() { close(p.states) })
	<-p.done
}

func (p *Publisher) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Connect dials the broker named in cfg.
func Connect(cfg config.MQTTConfig) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.URL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetryInterval(2 * time.Second).
		SetMaxReconnectInterval(30 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username).SetPassword(cfg.Password)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		log.Printf("[!] mqtt connection lost: %v", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return nil, fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}
	log.Printf("[*] Connected to MQTT broker %s", cfg.URL)
	return client, nil
}
