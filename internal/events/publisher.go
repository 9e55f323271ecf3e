// Package events publishes domain events to NATS so sibling systems
// (analytics, audit) can react without coupling to this service.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Envelope wraps every published payload
type Envelope struct {
	EventID   string      `json:"event_id"`
	Subject   string      `json:"subject"`
	Source    string      `json:"source"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// Publisher sends events over NATS. Publishing is best effort: a
// dropped event never fails the request that produced it.
type Publisher struct {
	conn   *nats.Conn
	logger *logrus.Logger
}

// NewPublisher connects to NATS
func NewPublisher(natsURL string, logger *logrus.Logger) (*Publisher, error) {
	if logger == nil {
		logger = logrus.New()
	}

	conn, err := nats.Connect(natsURL,
		nats.Name("society-service"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}

	logger.WithField("url", natsURL).Info("Connected to NATS")
	return &Publisher{conn: conn, logger: logger}, nil
}

// Publish sends one event. Errors are logged, not returned.
func (p *Publisher) Publish(subject string, payload interface{}) {
	env := Envelope{
		EventID:   uuid.New().String(),
		Subject:   subject,
		Source:    "society-service",
		Timestamp: time.Now(),
		Payload:   payload,
	}
	data, err := json.Marshal(env)
	if err != nil {
		p.logger.WithError(err).WithField("subject", subject).Error("Failed to marshal event")
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.WithError(err).WithField("subject", subject).Warn("Failed to publish event")
	}
}

// IsConnected returns true if connected to NATS
func (p *Publisher) IsConnected() bool {
	return p.conn != nil && p.conn.IsConnected()
}

// Close drains and closes the connection
func (p *Publisher) Close() {
	if p.conn != nil {
		if err := p.conn.Drain(); err != nil {
			p.conn.Close()
		}
	}
}

// NoOpPublisher is used when NATS is not configured
type NoOpPublisher struct{}

func NewNoOpPublisher() *NoOpPublisher {
	return &NoOpPublisher{}
}

func (p *NoOpPublisher) Publish(subject string, payload interface{}) {}

func (p *NoOpPublisher) IsConnected() bool { return false }

func (p *NoOpPublisher) Close() {}
