package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

// transitions lists the statuses reachable from each non-terminal status.
var transitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCancelled},
	BookingConfirmed: {BookingCompleted, BookingCancelled},
}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCancelled, BookingCompleted:
		return true
	}
	return false
}

func (s BookingStatus) Terminal() bool {
	return s == BookingCancelled || s == BookingCompleted
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
	PaymentFailed   PaymentStatus = "failed"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentRefunded, PaymentFailed:
		return true
	}
	return false
}

type EmergencyContact struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Relation string `json:"relation"`
}

func (c EmergencyContact) Complete() bool {
	return strings.TrimSpace(c.Name) != "" &&
		strings.TrimSpace(c.Phone) != "" &&
		strings.TrimSpace(c.Relation) != ""
}

// Booking is a reservation against a trek. TotalAmount is fixed at creation.
type Booking struct {
	ID               uuid.UUID        `json:"id"`
	UserID           uuid.UUID        `json:"user"`
	TrekID           uuid.UUID        `json:"trek"`
	NumberOfPeople   int              `json:"numberOfPeople"`
	TotalAmount      decimal.Decimal  `json:"totalAmount"`
	Status           BookingStatus    `json:"status"`
	PaymentStatus    PaymentStatus    `json:"paymentStatus"`
	SpecialRequests  string           `json:"specialRequests,omitempty"`
	EmergencyContact EmergencyContact `json:"emergencyContact"`
	CreatedAt        time.Time        `json:"createdAt"`
}

// Active bookings hold seats.
func (b Booking) Active() bool {
	return b.Status == BookingPending || b.Status == BookingConfirmed
}

type BookingRequest struct {
	UserID           uuid.UUID
	TrekID           uuid.UUID
	NumberOfPeople   int
	SpecialRequests  string
	EmergencyContact EmergencyContact
}

func (r BookingRequest) Validate() error {
	if r.NumberOfPeople < 1 {
		return ErrInvalidQuantity
	}
	if r.TrekID == uuid.Nil {
		return Invalid("trek is required")
	}
	if !r.EmergencyContact.Complete() {
		return Invalid("emergency contact name, phone and relation are required")
	}
	return nil
}

// NewBooking prices the request against the trek as it is right now.
func NewBooking(r BookingRequest, trek Trek, now time.Time) Booking {
	return Booking{
		ID:               uuid.New(),
		UserID:           r.UserID,
		TrekID:           trek.ID,
		NumberOfPeople:   r.NumberOfPeople,
		TotalAmount:      trek.Price.Mul(decimal.NewFromInt(int64(r.NumberOfPeople))),
		Status:           BookingPending,
		PaymentStatus:    PaymentPending,
		SpecialRequests:  strings.TrimSpace(r.SpecialRequests),
		EmergencyContact: r.EmergencyContact,
		CreatedAt:        now,
	}
}

// BookingPatch is a partial status/payment update.
type BookingPatch struct {
	Status        *BookingStatus `json:"status,omitempty"`
	PaymentStatus *PaymentStatus `json:"paymentStatus,omitempty"`
}

func (p BookingPatch) Empty() bool {
	return p.Status == nil && p.PaymentStatus == nil
}

// OnlyCancels reports whether the patch does nothing but cancel.
func (p BookingPatch) OnlyCancels() bool {
	return p.Status != nil && *p.Status == BookingCancelled && p.PaymentStatus == nil
}

func (p BookingPatch) Validate() error {
	if p.Empty() {
		return Invalid("nothing to update")
	}
	if p.Status != nil && !p.Status.Valid() {
		return Invalid("unknown booking status")
	}
	if p.PaymentStatus != nil && !p.PaymentStatus.Valid() {
		return Invalid("unknown payment status")
	}
	return nil
}

// Authorize: admins may apply any patch, owners may only cancel.
func (p BookingPatch) Authorize(c Caller, b Booking) error {
	if c.IsAdmin() {
		return nil
	}
	if c.Owns(b.UserID) && p.OnlyCancels() {
		return nil
	}
	return ErrForbidden
}

// Transition moves the booking to next. Staying on the current status is a no-op.
func (b Booking) Transition(next BookingStatus) (Booking, error) {
	if next == b.Status {
		if next == BookingCancelled {
			return b, ErrAlreadyCancelled
		}
		return b, nil
	}
	if b.Status == BookingCancelled {
		return b, ErrAlreadyCancelled
	}
	if !b.Status.CanTransitionTo(next) {
		return b, ErrInvalidTransition
	}
	b.Status = next
	return b, nil
}

type UserSummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Phone string    `json:"phone,omitempty"`
}

// BookingView is a booking with its catalog (and, for admins, user) summary attached.
type BookingView struct {
	Booking
	Trek TrekSummary  `json:"trekSummary"`
	User *UserSummary `json:"userSummary,omitempty"`
}

type BookingQuery struct {
	// UserID restricts to one owner; nil lists everyone.
	UserID     *uuid.UUID
	WithUser   bool
	WithImages bool
	Limit      int
	Offset     int
}
