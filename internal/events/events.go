// Package events publishes annotation lifecycle events to an AMQP queue
// for downstream consumers. Publishing is best-effort: a missing or lost
// broker never fails a run.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"interview-insights-go/internal/config"
	apperrors "interview-insights-go/internal/errors"
	"interview-insights-go/internal/logger"
	"interview-insights-go/internal/types"
)

const (
	EventInterviewValidated = "interview.validated"
	EventRunCompleted       = "run.completed"

	dialTimeout = 5 * time.Second
)

// Event is the wire payload for one lifecycle notification.
type Event struct {
	Type               string    `json:"type"`
	RunID              string    `json:"run_id"`
	InterviewID        string    `json:"interview_id,omitempty"`
	Status             string    `json:"status,omitempty"`
	QualityScore       float64   `json:"quality_score,omitempty"`
	CoveragePercentage float64   `json:"coverage_percentage,omitempty"`
	CostUSD            float64   `json:"cost_usd,omitempty"`
	Interviews         int       `json:"interviews,omitempty"`
	Accepted           int       `json:"accepted,omitempty"`
	Flagged            int       `json:"flagged,omitempty"`
	Issues             []string  `json:"issues,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
}

// Publisher owns the AMQP connection and queue. The zero configuration
// (empty URL) produces a disabled publisher whose methods no-op.
type Publisher struct {
	cfg config.EventsConfig
	log *logger.Logger

	mu        sync.Mutex
	conn      *amqp.Connection
	channel   *amqp.Channel
	connected bool
}

func NewPublisher(cfg config.EventsConfig, log *logger.Logger) *Publisher {
	return &Publisher{cfg: cfg, log: log}
}

// Connect dials the broker and declares the durable queue. Disabled
// configurations and a nil publisher return nil immediately.
func (p *Publisher) Connect() error {
	if p == nil || !p.cfg.Enabled() {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.connected {
		return nil
	}

	conn, err := amqp.DialConfig(p.cfg.AMQPUrl, amqp.Config{
		Dial: amqp.DefaultDial(dialTimeout),
	})
	if err != nil {
		return apperrors.Wrap(err, "cannot connect to AMQP broker")
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return apperrors.Wrap(err, "cannot open AMQP channel")
	}

	if _, err := channel.QueueDeclare(
		p.cfg.Queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		channel.Close()
		conn.Close()
		return apperrors.Wrap(err, "cannot declare AMQP queue",
			map[string]interface{}{"queue": p.cfg.Queue})
	}

	p.conn = conn
	p.channel = channel
	p.connected = true
	p.log.WithField("queue", p.cfg.Queue).Info("Connected to AMQP broker")
	return nil
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return
	}
	p.channel.Close()
	p.conn.Close()
	p.connected = false
}

// PublishInterview announces one validated interview.
func (p *Publisher) PublishInterview(ann *types.InterviewAnnotation) {
	p.publish(interviewEvent(ann))
}

// PublishRunCompleted announces the corpus summary for a finished run.
func (p *Publisher) PublishRunCompleted(summary *types.ValidationSummary) {
	p.publish(runEvent(summary))
}

func interviewEvent(ann *types.InterviewAnnotation) Event {
	return Event{
		Type:               EventInterviewValidated,
		RunID:              ann.RunID,
		InterviewID:        ann.InterviewID,
		Status:             string(ann.Status),
		QualityScore:       ann.QualityScore,
		CoveragePercentage: ann.CoveragePercentage,
		CostUSD:            ann.Stats.CostUSD,
		Issues:             ann.Issues,
		Timestamp:          time.Now().UTC(),
	}
}

func runEvent(summary *types.ValidationSummary) Event {
	return Event{
		Type:       EventRunCompleted,
		RunID:      summary.RunID,
		Interviews: summary.TotalInterviews,
		Accepted:   summary.Accepted,
		Flagged:    summary.Flagged,
		CostUSD:    summary.TotalCostUSD,
		Timestamp:  time.Now().UTC(),
	}
}

func (p *Publisher) publish(event Event) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.log.WithError(err).Error("Cannot marshal event")
		return
	}

	err = p.channel.Publish(
		"",          // default exchange
		p.cfg.Queue, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		p.log.WithError(err).WithField("type", event.Type).Warn("Failed to publish event")
		return
	}
	p.log.WithFields(map[string]interface{}{
		"type":  event.Type,
		"queue": p.cfg.Queue,
	}).Debug("Event published")
}
