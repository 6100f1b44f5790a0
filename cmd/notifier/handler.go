package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/trek-bookings/internal/domain"
	"github.com/robertarktes/trek-bookings/internal/observability"
)

type Deliverer interface {
	Deliver(ctx context.Context, userID uuid.UUID, d domain.NotificationDraft) (domain.Notification, error)
}

// BookingHandler turns booking events into notifications for the booking owner.
type BookingHandler struct {
	notifications Deliverer
	logger        observability.Logger
}

func NewBookingHandler(notifications Deliverer, logger observability.Logger) *BookingHandler {
	return &BookingHandler{notifications: notifications, logger: logger}
}

func (h *BookingHandler) Run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	h.logger.Info("Notifier started")
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				h.logger.Warn("delivery channel closed")
				return
			}
			h.Handle(ctx, d)
		}
	}
}

// Handle acks on success, drops malformed messages and requeues on storage errors.
func (h *BookingHandler) Handle(ctx context.Context, d amqp.Delivery) {
	log := h.logger.WithFields(map[string]interface{}{
		"message_id": d.MessageId,
		"event":      d.RoutingKey,
	})

	draft, userID, err := draftFor(d.RoutingKey, d.Body)
	if err != nil {
		log.WithError(err).Warn("dropping malformed message")
		if err := d.Reject(false); err != nil {
			log.WithError(err).Error("failed to reject message")
		}
		return
	}

	if _, err := h.notifications.Deliver(ctx, userID, draft); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			log.WithError(err).Warn("dropping undeliverable message")
			_ = d.Reject(false)
			return
		}
		log.WithError(err).Error("failed to store notification")
		if err := d.Nack(false, true); err != nil {
			log.WithError(err).Error("failed to nack message")
		}
		return
	}
	if err := d.Ack(false); err != nil {
		log.WithError(err).Error("failed to ack message")
	}
}

func draftFor(event string, body []byte) (domain.NotificationDraft, uuid.UUID, error) {
	var ev domain.BookingEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return domain.NotificationDraft{}, uuid.Nil, errors.Wrap(err, "decode booking event")
	}
	if ev.UserID == uuid.Nil || ev.Booking.ID == uuid.Nil {
		return domain.NotificationDraft{}, uuid.Nil, errors.New("booking event without user or booking id")
	}

	b := ev.Booking
	trek := b.TrekTitle
	if trek == "" {
		trek = "your trek"
	}
	draft := domain.NotificationDraft{
		Type: domain.NotifyBooking,
		Link: "/bookings/" + b.ID.String(),
	}
	switch event {
	case domain.EventNewBooking:
		draft.Title = "Booking received"
		draft.Message = fmt.Sprintf("Your booking for %s (%d people) is %s.", trek, b.NumberOfPeople, b.Status)
	case domain.EventBookingUpdated:
		draft.Title = "Booking updated"
		draft.Message = fmt.Sprintf("Your booking for %s is now %s, payment %s.", trek, b.Status, b.PaymentStatus)
	case domain.EventBookingCancelled:
		draft.Title = "Booking cancelled"
		draft.Message = fmt.Sprintf("Your booking for %s has been cancelled.", trek)
	default:
		return domain.NotificationDraft{}, uuid.Nil, errors.Newf("unexpected event %q", event)
	}
	if b.TrekStart != "" {
		draft.Message += " Start date: " + b.TrekStart + "."
	}
	return draft, ev.UserID, nil
}
