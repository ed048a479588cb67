// Package events publishes completed risk assessments to Kafka for
// downstream consumers (fraud review tooling, analytics).
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"stayguard/internal/models"
	"stayguard/pkg/logger"
)

// AssessmentEvent is the wire payload for one completed assessment.
type AssessmentEvent struct {
	VisitorID            string    `json:"visitor_id"`
	RiskScore            int       `json:"risk_score"`
	RiskLevel            string    `json:"risk_level"`
	ShouldBlock          bool      `json:"should_block"`
	RequiresManualReview bool      `json:"requires_manual_review"`
	Flags                []string  `json:"flags"`
	IP                   string    `json:"ip"`
	Country              string    `json:"country"`
	AssessedAt           time.Time `json:"assessed_at"`
}

// Publisher writes assessment events. A nil Publisher is a no-op, so callers
// never branch on whether eventing is configured.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher returns nil when no brokers are configured.
func NewPublisher(brokers []string, topic string) *Publisher {
	if len(brokers) == 0 {
		return nil
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			Async:        true,
		},
	}
}

// Publish emits one event keyed by visitor id. Failures are logged; eventing
// never blocks an assessment.
func (p *Publisher) Publish(ctx context.Context, a *models.RiskAssessment) {
	if p == nil {
		return
	}

	event := AssessmentEvent{
		RiskScore:            a.RiskScore,
		RiskLevel:            a.RiskLevel,
		ShouldBlock:          a.ShouldBlock,
		RequiresManualReview: a.RequiresManualReview,
		Flags:                a.Flags,
		IP:                   a.Persistence.IP,
		Country:              a.Persistence.Country,
		AssessedAt:           a.AssessedAt,
	}
	if a.Identity != nil {
		event.VisitorID = a.Identity.VisitorID
	}

	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error("Failed to marshal assessment event", map[string]any{"error": err.Error()})
		return
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.VisitorID),
		Value: payload,
	})
	if err != nil {
		logger.Error("Failed to publish assessment event", map[string]any{"error": err.Error()})
	}
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
