package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Notification struct {
	ID          uuid.UUID
	RecipientID uuid.UUID
	EventType   string
	Title       string
	Body        string
	SubjectID   *uuid.UUID
	SubjectKind string
	CreatedAt   time.Time
	SentAt      *time.Time
}

// Gateway is the fire-and-forget fan-out surface the lifecycle services
// call. Delivery is best-effort; callers never see a result.
type Gateway interface {
	Notify(n Notification)
}

// Sender is the delivery transport behind the gateway.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// LogSender is the default transport: it writes the notification to the
// log. Real delivery (mail, push) lives outside this service.
type LogSender struct {
	log zerolog.Logger
}

func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log.With().Str("component", "notification").Logger()}
}

func (s *LogSender) Send(_ context.Context, n Notification) error {
	s.log.Info().
		Stringer("recipient_id", n.RecipientID).
		Str("event_type", n.EventType).
		Str("title", n.Title).
		Str("body", n.Body).
		Msg("notification dispatched")
	return nil
}

// AsyncGateway queues notifications onto a buffered channel drained by a
// single goroutine, keeping dispatch I/O out of the callers' transaction
// boundaries. A full buffer drops the notification with a log line.
type AsyncGateway struct {
	sender Sender
	queue  chan Notification
	done   chan struct{}
	log    zerolog.Logger
}

func NewAsyncGateway(sender Sender, buffer int, log zerolog.Logger) *AsyncGateway {
	if buffer <= 0 {
		buffer = 256
	}
	g := &AsyncGateway{
		sender: sender,
		queue:  make(chan Notification, buffer),
		done:   make(chan struct{}),
		log:    log.With().Str("component", "notification").Logger(),
	}
	go g.run()
	return g
}

func (g *AsyncGateway) Notify(n Notification) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	select {
	case g.queue <- n:
	default:
		g.log.Warn().
			Str("event_type", n.EventType).
			Stringer("recipient_id", n.RecipientID).
			Msg("notification queue full, dropping")
	}
}

func (g *AsyncGateway) run() {
	defer close(g.done)
	for n := range g.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := g.sender.Send(ctx, n); err != nil {
			g.log.Error().Err(err).
				Str("event_type", n.EventType).
				Stringer("recipient_id", n.RecipientID).
				Msg("notification send failed")
		}
		cancel()
	}
}

// Close drains the queue and stops the dispatch goroutine.
func (g *AsyncGateway) Close() {
	close(g.queue)
	<-g.done
}
