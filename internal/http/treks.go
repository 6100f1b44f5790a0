package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/robertarktes/trek-bookings/internal/domain"
	"github.com/shopspring/decimal"
)

type itineraryDayRequest struct {
	Day         int    `json:"day" validate:"gte=1"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
}

type trekContentRequest struct {
	Highlights []string              `json:"highlights"`
	Itinerary  []itineraryDayRequest `json:"itinerary" validate:"dive"`
	Included   []string              `json:"included"`
	Excluded   []string              `json:"excluded"`
}

func (c trekContentRequest) content() domain.TrekContent {
	out := domain.TrekContent{Highlights: c.Highlights, Included: c.Included, Excluded: c.Excluded}
	for _, d := range c.Itinerary {
		out.Itinerary = append(out.Itinerary, domain.ItineraryDay(d))
	}
	return out
}

type createTrekRequest struct {
	Title           string          `json:"title" validate:"required,max=200"`
	Description     string          `json:"description" validate:"required"`
	Type            string          `json:"type" validate:"omitempty,oneof=trek tour"`
	Difficulty      string          `json:"difficulty" validate:"omitempty,oneof=easy moderate difficult extreme"`
	Duration        string          `json:"duration" validate:"required"`
	Price           decimal.Decimal `json:"price"`
	Location        string          `json:"location" validate:"required"`
	StartDate       time.Time       `json:"startDate" validate:"required"`
	EndDate         time.Time       `json:"endDate" validate:"required,gtefield=StartDate"`
	MaxParticipants int             `json:"maxParticipants" validate:"omitempty,gte=1"`
	Images          []string        `json:"images" validate:"omitempty,dive,url"`
	Status          string          `json:"status" validate:"omitempty,oneof=upcoming ongoing completed cancelled"`
	Featured        bool            `json:"featured"`
	trekContentRequest
}

// updateTrekRequest carries only the fields being changed. The participant
// counter is not part of it.
type updateTrekRequest struct {
	Title           *string          `json:"title" validate:"omitempty,min=1,max=200"`
	Description     *string          `json:"description" validate:"omitempty,min=1"`
	Type            *string          `json:"type" validate:"omitempty,oneof=trek tour"`
	Difficulty      *string          `json:"difficulty" validate:"omitempty,oneof=easy moderate difficult extreme"`
	Duration        *string          `json:"duration" validate:"omitempty,min=1"`
	Price           *decimal.Decimal `json:"price"`
	Location        *string          `json:"location" validate:"omitempty,min=1"`
	StartDate       *time.Time       `json:"startDate"`
	EndDate         *time.Time       `json:"endDate"`
	MaxParticipants *int             `json:"maxParticipants" validate:"omitempty,gte=1"`
	Images          []string         `json:"images" validate:"omitempty,dive,url"`
	Status          *string          `json:"status" validate:"omitempty,oneof=upcoming ongoing completed cancelled"`
	Featured        *bool            `json:"featured"`
	Content         *trekContentRequest `json:"content"`
}

func (u updateTrekRequest) patch() domain.TrekPatch {
	p := domain.TrekPatch{
		Title:           u.Title,
		Description:     u.Description,
		Duration:        u.Duration,
		Price:           u.Price,
		Location:        u.Location,
		StartDate:       u.StartDate,
		EndDate:         u.EndDate,
		MaxParticipants: u.MaxParticipants,
		Images:          u.Images,
		Featured:        u.Featured,
	}
	if u.Type != nil {
		t := domain.TrekType(*u.Type)
		p.Type = &t
	}
	if u.Difficulty != nil {
		d := domain.Difficulty(*u.Difficulty)
		p.Difficulty = &d
	}
	if u.Status != nil {
		s := domain.TrekStatus(*u.Status)
		p.Status = &s
	}
	if u.Content != nil {
		c := u.Content.content()
		p.Content = &c
	}
	return p
}

func (h *Handlers) ListTreks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := domain.TrekFilter{
		Type:       domain.TrekType(q.Get("type")),
		Difficulty: domain.Difficulty(q.Get("difficulty")),
		Status:     domain.TrekStatus(q.Get("status")),
	}
	if raw := q.Get("featured"); raw != "" {
		featured, err := strconv.ParseBool(raw)
		if err != nil {
			fail(w, http.StatusBadRequest, "featured must be true or false")
			return
		}
		f.Featured = &featured
	}

	treks, err := h.catalog.List(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	okList(w, treks, len(treks))
}

func (h *Handlers) UpcomingTreks(w http.ResponseWriter, r *http.Request) {
	treks, err := h.catalog.Upcoming(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	okList(w, treks, len(treks))
}

func (h *Handlers) GetTrek(w http.ResponseWriter, r *http.Request) {
	id, valid := pathID(w, r)
	if !valid {
		return
	}
	trek, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, trek)
}

func (h *Handlers) CreateTrek(w http.ResponseWriter, r *http.Request) {
	var req createTrekRequest
	if !h.decode(w, r, &req) {
		return
	}
	trek, err := h.catalog.Create(r.Context(), h.caller(r), domain.TrekDraft{
		Title:           req.Title,
		Description:     req.Description,
		Type:            domain.TrekType(req.Type),
		Difficulty:      domain.Difficulty(req.Difficulty),
		Duration:        req.Duration,
		Price:           req.Price,
		Location:        req.Location,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		MaxParticipants: req.MaxParticipants,
		Images:          req.Images,
		Status:          domain.TrekStatus(req.Status),
		Featured:        req.Featured,
		Content:         req.content(),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, trek)
}

func (h *Handlers) UpdateTrek(w http.ResponseWriter, r *http.Request) {
	id, valid := pathID(w, r)
	if !valid {
		return
	}
	var req updateTrekRequest
	if !h.decode(w, r, &req) {
		return
	}
	trek, err := h.catalog.Update(r.Context(), h.caller(r), id, req.patch())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, trek)
}

func (h *Handlers) DeleteTrek(w http.ResponseWriter, r *http.Request) {
	id, valid := pathID(w, r)
	if !valid {
		return
	}
	if err := h.catalog.Delete(r.Context(), h.caller(r), id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "trek removed"})
}
