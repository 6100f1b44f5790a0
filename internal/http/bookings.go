package http

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/robertarktes/trek-bookings/internal/domain"
)

type emergencyContactRequest struct {
	Name     string `json:"name" validate:"max=100"`
	Phone    string `json:"phone" validate:"max=40"`
	Relation string `json:"relation" validate:"max=60"`
}

type createBookingRequest struct {
	Trek             string                  `json:"trek" validate:"required,uuid"`
	NumberOfPeople   int                     `json:"numberOfPeople"`
	SpecialRequests  string                  `json:"specialRequests" validate:"max=2000"`
	EmergencyContact emergencyContactRequest `json:"emergencyContact"`
}

type updateBookingRequest struct {
	Status        *string `json:"status" validate:"omitempty,oneof=pending confirmed cancelled completed"`
	PaymentStatus *string `json:"paymentStatus" validate:"omitempty,oneof=pending paid refunded failed"`
}

func (h *Handlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	var req createBookingRequest
	if !h.decode(w, r, &req) {
		return
	}
	trekID, err := uuid.Parse(req.Trek)
	if err != nil {
		fail(w, http.StatusBadRequest, "invalid trek id")
		return
	}

	if err := h.users.EnsureUser(r.Context(), id.User(h.now())); err != nil {
		loggerFrom(r.Context(), h.logger).WithError(err).Warn("failed to provision user")
	}

	booking, err := h.ledger.Create(r.Context(), domain.BookingRequest{
		UserID:          id.UserID,
		TrekID:          trekID,
		NumberOfPeople:  req.NumberOfPeople,
		SpecialRequests: req.SpecialRequests,
		EmergencyContact: domain.EmergencyContact{
			Name:     req.EmergencyContact.Name,
			Phone:    req.EmergencyContact.Phone,
			Relation: req.EmergencyContact.Relation,
		},
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, booking)
}

func (h *Handlers) ListBookings(w http.ResponseWriter, r *http.Request) {
	page, valid := pageRequest(w, r)
	if !valid {
		return
	}
	result, err := h.ledger.List(r.Context(), h.caller(r), page)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	okList(w, result.Items, result.Total)
}

func (h *Handlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, valid := pathID(w, r)
	if !valid {
		return
	}
	view, err := h.ledger.Get(r.Context(), id, h.caller(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, view)
}

func (h *Handlers) UpdateBooking(w http.ResponseWriter, r *http.Request) {
	id, valid := pathID(w, r)
	if !valid {
		return
	}
	var req updateBookingRequest
	if !h.decode(w, r, &req) {
		return
	}

	var patch domain.BookingPatch
	if req.Status != nil {
		s := domain.BookingStatus(*req.Status)
		patch.Status = &s
	}
	if req.PaymentStatus != nil {
		p := domain.PaymentStatus(*req.PaymentStatus)
		patch.PaymentStatus = &p
	}

	booking, err := h.ledger.UpdateStatus(r.Context(), id, h.caller(r), patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, booking)
}

func (h *Handlers) CancelBooking(w http.ResponseWriter, r *http.Request) {
	id, valid := pathID(w, r)
	if !valid {
		return
	}
	booking, err := h.ledger.Cancel(r.Context(), id, h.caller(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: booking, Message: "booking cancelled"})
}
