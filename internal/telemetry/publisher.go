// Package telemetry emits issuance events with fail-open semantics.
//
// The certificate builder fires an event per issued certificate recording
// which vaccinations were used and which were excluded. Telemetry must never
// fail or slow issuance: events flow through a bounded channel into a
// background worker, and are dropped when the channel is full or the broker is
// down.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"healthcert/internal/domain"
)

var (
	eventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "healthcert_telemetry_events_dropped_total",
		Help: "Issuance telemetry events dropped because the buffer was full",
	})
	eventsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "healthcert_telemetry_events_published_total",
		Help: "Issuance telemetry events delivered to the broker",
	})
)

// Event records one certificate issuance for analytics.
type Event struct {
	Scenario        domain.Scenario        `json:"scenario"`
	CertificateType domain.CertificateType `json:"certificate_type"`
	UVCI            string                 `json:"uvci"`
	UsedResults     []string               `json:"used_results"`
	ExcludedResults []string               `json:"excluded_results"`
	Timestamp       time.Time              `json:"timestamp"`
}

// Publisher buffers issuance events and ships them to Kafka from a background
// worker.
type Publisher struct {
	client *kgo.Client
	topic  string
	inbox  chan Event
	done   chan struct{}
	logger *slog.Logger
}

// NewPublisher connects to the brokers, ensures the topic exists, and starts
// the delivery worker.
func NewPublisher(ctx context.Context, brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("connect telemetry brokers: %w", err)
	}

	admin := kadm.NewClient(client)
	if _, err := admin.CreateTopic(ctx, 1, 1, nil, topic); err != nil && logger != nil {
		// pre-existing topic is the normal case; anything else is logged and
		// tolerated because telemetry is fail-open
		logger.DebugContext(ctx, "telemetry topic create", "topic", topic, "error", err)
	}

	p := &Publisher{
		client: client,
		topic:  topic,
		inbox:  make(chan Event, 1024),
		done:   make(chan struct{}),
		logger: logger,
	}
	go p.run()
	return p, nil
}

// Emit queues an event without blocking. A full buffer drops the event; the
// caller's certificate issuance is never affected.
func (p *Publisher) Emit(event Event) {
	if p == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case p.inbox <- event:
	default:
		eventsDropped.Inc()
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	for event := range p.inbox {
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		record := &kgo.Record{Topic: p.topic, Key: []byte(event.UVCI), Value: payload}
		p.client.Produce(context.Background(), record, func(_ *kgo.Record, err error) {
			if err != nil {
				if p.logger != nil {
					p.logger.Warn("telemetry produce failed", "error", err)
				}
				return
			}
			eventsPublished.Inc()
		})
	}
	p.client.Flush(context.Background())
}

// Close drains the buffer and releases the client.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	close(p.inbox)
	<-p.done
	p.client.Close()
}
