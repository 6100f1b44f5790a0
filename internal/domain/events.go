package domain

import "github.com/google/uuid"

// Event names carried by the notifier.
const (
	EventNewBooking       = "newBooking"
	EventBookingUpdated   = "bookingUpdated"
	EventBookingCancelled = "bookingCancelled"
	EventNewTrek          = "newTrek"
	EventTrekUpdated      = "trekUpdated"
	EventNotification     = "notification"
)

// BookingEvent is the payload of the booking events. The booking carries the
// trek title and start date for display.
type BookingEvent struct {
	UserID  uuid.UUID      `json:"userId"`
	Booking BookingMessage `json:"booking"`
}

type BookingMessage struct {
	Booking
	TrekTitle string `json:"trekTitle"`
	TrekStart string `json:"trekStartDate"`
}

type NotificationEvent struct {
	UserID       uuid.UUID    `json:"userId"`
	Notification Notification `json:"notification"`
}
