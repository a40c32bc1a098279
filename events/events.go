// Package events publishes domain events (invoice created, quote converted, ...) to NATS
// JetStream on invoicing.<uid>.<event>.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"invoicing-backend/logger"
)

const (
	InvoiceCreated          = "invoice.created"
	InvoicePaid             = "invoice.paid"
	QuoteConverted          = "quote.converted"
	StatementCreated        = "statement.created"
	SubscriptionUpdated     = "user.subscription.updated"
	streamName              = "INVOICING_EVENTS"
	subjectPrefix           = "invoicing"
	defaultStreamMaxAgeDays = 7
)

// Event is the envelope on the wire.
type Event struct {
	Type       string    `json:"type"`
	UID        string    `json:"uid"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// Publisher never fails the caller: errors are logged.
type Publisher interface {
	Publish(ctx context.Context, uid, eventType string, data any)
	Close()
}

// Subject returns the subject an event for uid is published on.
func Subject(uid, eventType string) string {
	return fmt.Sprintf("%s.%s.%s", subjectPrefix, uid, eventType)
}

// NoopPublisher is used when NATS is not configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, string, any) {}
func (NoopPublisher) Close()                                       {}

// NATSPublisher publishes through JetStream.
type NATSPublisher struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	logger *logrus.Entry
}

// Connect dials NATS and makes sure the stream exists. An empty url yields a NoopPublisher.
func Connect(url string) (Publisher, error) {
	log := logger.Component("events")
	if url == "" {
		log.Info("NATS_URL not set, domain events disabled")
		return NoopPublisher{}, nil
	}

	opts := []nats.Option{
		nats.Name("invoicing-backend"),
		nats.Timeout(10 * time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.WithField("url", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
	}
	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	p := &NATSPublisher{conn: conn, js: js, logger: log}
	if err := p.ensureStream(); err != nil {
		log.WithError(err).Warn("failed to ensure events stream")
	}
	return p, nil
}

func (p *NATSPublisher) ensureStream() error {
	if _, err := p.js.StreamInfo(streamName); err == nil {
		return nil
	}
	_, err := p.js.AddStream(&nats.StreamConfig{
		Name:      streamName,
		Subjects:  []string{subjectPrefix + ".>"},
		Retention: nats.LimitsPolicy,
		MaxAge:    defaultStreamMaxAgeDays * 24 * time.Hour,
		Storage:   nats.FileStorage,
	})
	return err
}

func (p *NATSPublisher) Publish(ctx context.Context, uid, eventType string, data any) {
	fields := logrus.Fields{"uid": uid, "event_type": eventType}
	if !p.conn.IsConnected() {
		p.logger.WithFields(fields).Warn("NATS not connected, skipping event publish")
		return
	}
	payload, err := json.Marshal(Event{Type: eventType, UID: uid, OccurredAt: time.Now().UTC(), Data: data})
	if err != nil {
		p.logger.WithFields(fields).WithError(err).Error("failed to marshal event")
		return
	}
	ack, err := p.js.Publish(Subject(uid, eventType), payload, nats.Context(ctx))
	if err != nil {
		p.logger.WithFields(fields).WithError(err).Error("failed to publish event")
		return
	}
	p.logger.WithFields(fields).WithField("sequence", ack.Sequence).Debug("published event")
}

func (p *NATSPublisher) Close() {
	if p.conn != nil {
		_ = p.conn.Drain()
	}
}
