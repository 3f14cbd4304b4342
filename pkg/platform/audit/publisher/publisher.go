// Package publisher streams committed audit entries to Kafka for
// downstream compliance consumers. The database remains the source of
// truth; publishing is best-effort and happens after commit, so a broker
// outage never blocks or fails a verification.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "veridoc/pkg/platform/audit"
)

var (
	publishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veridoc_audit_published_total",
		Help: "Audit entries published to Kafka by result",
	}, []string{"result"})
)

// Publisher produces audit entries onto a Kafka topic.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// New connects to the brokers and ensures the audit topic exists.
func New(brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerLinger(5*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}

	p := &Publisher{client: client, topic: topic, logger: logger}
	if err := p.ensureTopic(context.Background()); err != nil {
		client.Close()
		return nil, err
	}
	return p, nil
}

// ensureTopic creates the audit topic if it does not exist yet.
func (p *Publisher) ensureTopic(ctx context.Context) error {
	adm := kadm.NewClient(p.client)
	resp, err := adm.CreateTopics(ctx, 3, 1, nil, p.topic)
	if err != nil {
		return fmt.Errorf("create audit topic: %w", err)
	}
	for _, res := range resp {
		if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create audit topic %s: %w", res.Topic, res.Err)
		}
	}
	return nil
}

// wirePayload is the JSON shape on the topic. Additive evolution only; the
// schema_version field lets consumers branch on older shapes.
type wirePayload struct {
	ID             string `json:"id"`
	VerificationID string `json:"verification_id"`
	FromState      string `json:"from_state"`
	ToState        string `json:"to_state"`
	Actor          string `json:"actor"`
	ActorIP        string `json:"actor_ip,omitempty"`
	ActorAgent     string `json:"actor_agent,omitempty"`
	Reason         string `json:"reason,omitempty"`
	SchemaVersion  int    `json:"schema_version"`
	CommittedAt    string `json:"committed_at"`
	Seq            int64  `json:"seq"`
}

// Publish produces one entry, keyed by verification ID so a record's
// transitions stay ordered within a partition. Delivery failures are
// logged and counted, never propagated.
func (p *Publisher) Publish(ctx context.Context, entry audit.Entry) {
	payload, err := json.Marshal(wirePayload{
		ID:             entry.ID.String(),
		VerificationID: entry.VerificationID.String(),
		FromState:      entry.FromState,
		ToState:        entry.ToState,
		Actor:          entry.Actor,
		ActorIP:        entry.ActorIP,
		ActorAgent:     entry.ActorAgent,
		Reason:         entry.Reason,
		SchemaVersion:  entry.Schema,
		CommittedAt:    entry.Timestamp.Format(time.RFC3339Nano),
		Seq:            entry.Seq,
	})
	if err != nil {
		publishedTotal.WithLabelValues("marshal_error").Inc()
		p.logger.ErrorContext(ctx, "marshal audit payload", "error", err)
		return
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(entry.VerificationID.String()),
		Value: payload,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			publishedTotal.WithLabelValues("error").Inc()
			p.logger.Error("publish audit entry",
				"verification_id", entry.VerificationID,
				"error", err,
			)
			return
		}
		publishedTotal.WithLabelValues("ok").Inc()
	})
}

// Close flushes in-flight produces and releases the client.
func (p *Publisher) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = p.client.Flush(ctx)
	p.client.Close()
}
