package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// OutboxRepository persists notifications so delivery survives restarts.
type OutboxRepository interface {
	Enqueue(ctx context.Context, n Notification) error
	ListUnsent(ctx context.Context, limit int) ([]Notification, error)
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
}

type PgOutbox struct {
	pool *pgxpool.Pool
}

func NewPgOutbox(pool *pgxpool.Pool) *PgOutbox {
	return &PgOutbox{pool: pool}
}

func (o *PgOutbox) Enqueue(ctx context.Context, n Notification) error {
	_, err := o.pool.Exec(ctx, `
		INSERT INTO notifications (id, recipient_id, event_type, title, body, subject_id, subject_kind, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, n.ID, n.RecipientID, n.EventType, n.Title, n.Body, n.SubjectID, n.SubjectKind, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

func (o *PgOutbox) ListUnsent(ctx context.Context, limit int) ([]Notification, error) {
	rows, err := o.pool.Query(ctx, `
		SELECT id, recipient_id, event_type, title, body, subject_id, subject_kind, created_at, sent_at
		FROM notifications
		WHERE sent_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Notification
	for rows.Next() {
		var n Notification
		err := rows.Scan(&n.ID, &n.RecipientID, &n.EventType, &n.Title, &n.Body,
			&n.SubjectID, &n.SubjectKind, &n.CreatedAt, &n.SentAt)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}

	return result, rows.Err()
}

func (o *PgOutbox) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := o.pool.Exec(ctx, `
		UPDATE notifications
		SET sent_at = $2
		WHERE id = $1
	`, id, at)
	if err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	return nil
}

// OutboxGateway writes notifications to the outbox instead of dispatching
// inline; the worker delivers them later. Enqueue failures are logged and
// swallowed, per the best-effort contract.
type OutboxGateway struct {
	outbox OutboxRepository
	log    zerolog.Logger
}

func NewOutboxGateway(outbox OutboxRepository, log zerolog.Logger) *OutboxGateway {
	return &OutboxGateway{
		outbox: outbox,
		log:    log.With().Str("component", "notification").Logger(),
	}
}

func (g *OutboxGateway) Notify(n Notification) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := g.outbox.Enqueue(ctx, n); err != nil {
		g.log.Error().Err(err).
			Str("event_type", n.EventType).
			Msg("notification enqueue failed")
	}
}

// Worker drains the outbox on an interval.
type Worker struct {
	outbox OutboxRepository
	sender Sender
	batch  int
	log    zerolog.Logger
}

func NewWorker(outbox OutboxRepository, sender Sender, log zerolog.Logger) *Worker {
	return &Worker{
		outbox: outbox,
		sender: sender,
		batch:  100,
		log:    log.With().Str("component", "notify-worker").Logger(),
	}
}

// RunOnce sends one batch of unsent notifications. Send failures leave the
// row unsent for the next run.
func (w *Worker) RunOnce(ctx context.Context) error {
	pending, err := w.outbox.ListUnsent(ctx, w.batch)
	if err != nil {
		return fmt.Errorf("list unsent notifications: %w", err)
	}

	for _, n := range pending {
		if err := w.sender.Send(ctx, n); err != nil {
			w.log.Error().Err(err).
				Stringer("notification_id", n.ID).
				Msg("send failed, will retry next run")
			continue
		}
		if err := w.outbox.MarkSent(ctx, n.ID, time.Now()); err != nil {
			w.log.Error().Err(err).
				Stringer("notification_id", n.ID).
				Msg("mark sent failed")
		}
	}

	return nil
}
