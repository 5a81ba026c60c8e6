// Package events publishes ticket lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/team-spoved/spoved/internal/model"
)

const (
	TicketCreated       = "ticket.created"
	TicketAssigned      = "ticket.assigned"
	TicketStatusChanged = "ticket.status_changed"
	TicketUpdated       = "ticket.updated"
)

// TicketPublisher is what the ticket service needs; tests substitute a fake.
type TicketPublisher interface {
	PublishTicket(ctx context.Context, event string, t *model.Ticket)
}

// TicketEvent is the message value written to the topic.
type TicketEvent struct {
	Event      string             `json:"event"`
	TicketID   int                `json:"ticket_id"`
	Status     model.TicketStatus `json:"status"`
	AssignedTo *int               `json:"assigned_to,omitempty"`
	CreatedBy  int                `json:"created_by"`
	Title      string             `json:"title"`
	DueDate    string             `json:"due_date,omitempty"`
	At         time.Time          `json:"at"`
}

func NewTicketEvent(event string, t *model.Ticket, at time.Time) TicketEvent {
	return TicketEvent{
		Event:      event,
		TicketID:   t.TicketID,
		Status:     t.Status,
		AssignedTo: t.AssignedTo,
		CreatedBy:  t.CreatedBy,
		Title:      t.Title,
		DueDate:    t.DueDate.String(),
		At:         at.UTC(),
	}
}

// Producer writes ticket events best-effort: failures are logged and never
// reach the API caller.
type Producer struct {
	writer  *kafka.Writer
	log     zerolog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// publishTimeout bounds one background write.
const publishTimeout = 5 * time.Second

// NewProducer returns a producer. Without brokers or a topic every publish
// is a no-op.
func NewProducer(brokers []string, topic string, log zerolog.Logger) *Producer {
	log = log.With().Str("component", "events").Logger()
	if len(brokers) == 0 || topic == "" {
		return &Producer{log: log, timeout: publishTimeout}
	}
	return &Producer{
		log:     log,
		timeout: publishTimeout,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (p *Producer) Enabled() bool { return p.writer != nil }

// PublishTicket returns immediately; the write runs in the background on a
// context detached from ctx's cancellation. The message is keyed by ticket
// id so one ticket's events stay ordered within a partition.
func (p *Producer) PublishTicket(ctx context.Context, event string, t *model.Ticket) {
	if p.writer == nil {
		return
	}
	ev := NewTicketEvent(event, t, time.Now())
	body, err := json.Marshal(ev)
	if err != nil {
		p.log.Warn().Err(err).Str("event", event).Msg("marshal ticket event")
		return
	}
	msg := kafka.Message{Key: []byte(strconv.Itoa(t.TicketID)), Value: body}
	eventCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer cancel()
		if err := p.writer.WriteMessages(eventCtx, msg); err != nil {
			p.log.Warn().Err(err).Str("event", event).Int("ticket_id", ev.TicketID).Msg("write ticket event")
			return
		}
		p.log.Debug().Str("event", event).Int("ticket_id", ev.TicketID).Msg("ticket event published")
	}()
}

// Close waits for in-flight writes, then closes the writer.
func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	p.wg.Wait()
	return p.writer.Close()
}
