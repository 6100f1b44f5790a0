package main

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/trek-bookings/internal/adapters/memory"
	"github.com/robertarktes/trek-bookings/internal/domain"
	"github.com/robertarktes/trek-bookings/internal/notify"
	"github.com/robertarktes/trek-bookings/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ack struct {
	acked, rejected, requeued bool
}

func (a *ack) Ack(uint64, bool) error { a.acked = true; return nil }

func (a *ack) Nack(_ uint64, _ bool, requeue bool) error {
	a.requeued = requeue
	return nil
}

func (a *ack) Reject(_ uint64, requeue bool) error {
	a.rejected = !requeue
	return nil
}

func delivery(t *testing.T, event string, payload any) (amqp.Delivery, *ack) {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	a := &ack{}
	return amqp.Delivery{Acknowledger: a, RoutingKey: event, Body: body, MessageId: uuid.NewString()}, a
}

func bookingEvent(user uuid.UUID) domain.BookingEvent {
	return domain.BookingEvent{
		UserID: user,
		Booking: domain.BookingMessage{
			Booking: domain.Booking{
				ID:             uuid.New(),
				UserID:         user,
				TrekID:         uuid.New(),
				NumberOfPeople: 2,
				Status:         domain.BookingPending,
				PaymentStatus:  domain.PaymentPending,
			},
			TrekTitle: "Everest Base Camp",
			TrekStart: "2026-04-01",
		},
	}
}

func newHandler() (*BookingHandler, *memory.Notifications, *memory.Notifier) {
	logger := observability.NewNopLogger()
	store := memory.NewNotifications()
	notifier := &memory.Notifier{}
	svc := notify.NewService(store, memory.NewStore(), notifier, logger)
	return NewBookingHandler(svc, logger), store, notifier
}

func TestHandle_NewBookingNotifiesOwner(t *testing.T) {
	h, store, notifier := newHandler()
	user := uuid.New()
	ev := bookingEvent(user)
	d, a := delivery(t, domain.EventNewBooking, ev)

	h.Handle(context.Background(), d)

	assert.True(t, a.acked)
	items, err := store.ListForUser(context.Background(), user, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Booking received", items[0].Title)
	assert.Equal(t, domain.NotifyBooking, items[0].Type)
	assert.Contains(t, items[0].Message, "Everest Base Camp")
	assert.Equal(t, "/bookings/"+ev.Booking.ID.String(), items[0].Link)
	assert.Equal(t, []string{domain.EventNotification}, notifier.Names())
}

func TestHandle_CancelledMessage(t *testing.T) {
	h, store, _ := newHandler()
	user := uuid.New()
	d, a := delivery(t, domain.EventBookingCancelled, bookingEvent(user))

	h.Handle(context.Background(), d)

	assert.True(t, a.acked)
	items, err := store.ListForUser(context.Background(), user, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Booking cancelled", items[0].Title)
}

func TestHandle_MalformedMessageIsDropped(t *testing.T) {
	h, _, _ := newHandler()

	a := &ack{}
	h.Handle(context.Background(), amqp.Delivery{Acknowledger: a, RoutingKey: domain.EventNewBooking, Body: []byte("{")})
	assert.True(t, a.rejected)
	assert.False(t, a.acked)

	d, a := delivery(t, domain.EventNewBooking, domain.BookingEvent{})
	h.Handle(context.Background(), d)
	assert.True(t, a.rejected)

	d, a = delivery(t, "somethingElse", bookingEvent(uuid.New()))
	h.Handle(context.Background(), d)
	assert.True(t, a.rejected)
}

type failingDeliverer struct{}

func (failingDeliverer) Deliver(context.Context, uuid.UUID, domain.NotificationDraft) (domain.Notification, error) {
	return domain.Notification{}, errors.New("mongo unavailable")
}

func TestHandle_StorageFailureRequeues(t *testing.T) {
	h := NewBookingHandler(failingDeliverer{}, observability.NewNopLogger())
	d, a := delivery(t, domain.EventBookingUpdated, bookingEvent(uuid.New()))

	h.Handle(context.Background(), d)

	assert.True(t, a.requeued)
	assert.False(t, a.acked)
}
