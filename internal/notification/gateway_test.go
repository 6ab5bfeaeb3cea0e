package notification

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSender struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

func (s *captureSender) Send(_ context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, n)
	return nil
}

func (s *captureSender) all() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification(nil), s.sent...)
}

func TestAsyncGateway_DeliversInOrder(t *testing.T) {
	sender := &captureSender{}
	gw := NewAsyncGateway(sender, 16, zerolog.Nop())

	recipient := uuid.New()
	gw.Notify(Notification{RecipientID: recipient, EventType: "APPOINTMENT_BOOKED"})
	gw.Notify(Notification{RecipientID: recipient, EventType: "APPOINTMENT_STATUS_CHANGED"})
	gw.Close()

	sent := sender.all()
	require.Len(t, sent, 2)
	assert.Equal(t, "APPOINTMENT_BOOKED", sent[0].EventType)
	assert.Equal(t, "APPOINTMENT_STATUS_CHANGED", sent[1].EventType)
}

func TestAsyncGateway_FillsIdentity(t *testing.T) {
	sender := &captureSender{}
	gw := NewAsyncGateway(sender, 16, zerolog.Nop())

	gw.Notify(Notification{RecipientID: uuid.New(), EventType: "X"})
	gw.Close()

	sent := sender.all()
	require.Len(t, sent, 1)
	assert.NotEqual(t, uuid.Nil, sent[0].ID)
	assert.False(t, sent[0].CreatedAt.IsZero())
}

func TestAsyncGateway_SendFailureDoesNotPanicCaller(t *testing.T) {
	sender := &captureSender{err: errors.New("smtp down")}
	gw := NewAsyncGateway(sender, 16, zerolog.Nop())

	assert.NotPanics(t, func() {
		gw.Notify(Notification{RecipientID: uuid.New(), EventType: "X"})
		gw.Close()
	})
}
