package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TrekStatus string

const (
	TrekUpcoming  TrekStatus = "upcoming"
	TrekOngoing   TrekStatus = "ongoing"
	TrekCompleted TrekStatus = "completed"
	TrekCancelled TrekStatus = "cancelled"
)

func (s TrekStatus) Valid() bool {
	switch s {
	case TrekUpcoming, TrekOngoing, TrekCompleted, TrekCancelled:
		return true
	}
	return false
}

type TrekType string

const (
	TypeTrek TrekType = "trek"
	TypeTour TrekType = "tour"
)

type Difficulty string

const (
	DifficultyEasy      Difficulty = "easy"
	DifficultyModerate  Difficulty = "moderate"
	DifficultyDifficult Difficulty = "difficult"
	DifficultyExtreme   Difficulty = "extreme"
)

const DefaultMaxParticipants = 20

// Trek is a bookable trek or tour. CurrentParticipants is owned by the
// capacity accountant and must not be assigned anywhere else.
type Trek struct {
	ID                  uuid.UUID       `json:"id"`
	Title               string          `json:"title"`
	Description         string          `json:"description"`
	Type                TrekType        `json:"type"`
	Difficulty          Difficulty      `json:"difficulty"`
	Duration            string          `json:"duration"`
	Price               decimal.Decimal `json:"price"`
	Location            string          `json:"location"`
	StartDate           time.Time       `json:"startDate"`
	EndDate             time.Time       `json:"endDate"`
	MaxParticipants     int             `json:"maxParticipants"`
	CurrentParticipants int             `json:"currentParticipants"`
	Images              []string        `json:"images"`
	Status              TrekStatus      `json:"status"`
	Featured            bool            `json:"featured"`
	CreatedAt           time.Time       `json:"createdAt"`
}

func (t Trek) Remaining() int {
	return t.MaxParticipants - t.CurrentParticipants
}

func (t Trek) CanSeat(n int) bool {
	return n > 0 && t.CurrentParticipants+n <= t.MaxParticipants
}

// Bookable reports whether new bookings may still be taken.
func (t Trek) Bookable() bool {
	return t.Status != TrekCancelled && t.Status != TrekCompleted
}

// WithinCapacity is the participant counter invariant.
func (t Trek) WithinCapacity() bool {
	return t.CurrentParticipants >= 0 && t.CurrentParticipants <= t.MaxParticipants
}

func (t Trek) Summary(withImages bool) TrekSummary {
	s := TrekSummary{
		ID:        t.ID,
		Title:     t.Title,
		StartDate: t.StartDate,
		EndDate:   t.EndDate,
		Location:  t.Location,
		Price:     t.Price,
	}
	if withImages {
		s.Images = t.Images
	}
	return s
}

type TrekSummary struct {
	ID        uuid.UUID       `json:"id"`
	Title     string          `json:"title"`
	StartDate time.Time       `json:"startDate"`
	EndDate   time.Time       `json:"endDate"`
	Location  string          `json:"location"`
	Price     decimal.Decimal `json:"price"`
	Images    []string        `json:"images,omitempty"`
}

type ItineraryDay struct {
	Day         int    `json:"day" bson:"day"`
	Title       string `json:"title" bson:"title"`
	Description string `json:"description" bson:"description"`
}

// TrekContent is the long-form part of a listing kept in the document store.
type TrekContent struct {
	Highlights []string       `json:"highlights"`
	Itinerary  []ItineraryDay `json:"itinerary"`
	Included   []string       `json:"included"`
	Excluded   []string       `json:"excluded"`
}

type TrekDetail struct {
	Trek
	TrekContent
}

type TrekFilter struct {
	Type       TrekType
	Difficulty Difficulty
	Status     TrekStatus
	Featured   *bool
	// StartsFrom limits results to treks starting at or after it.
	StartsFrom *time.Time
}

// TrekDraft is what an administrator submits to create a listing.
type TrekDraft struct {
	Title           string
	Description     string
	Type            TrekType
	Difficulty      Difficulty
	Duration        string
	Price           decimal.Decimal
	Location        string
	StartDate       time.Time
	EndDate         time.Time
	MaxParticipants int
	Images          []string
	Status          TrekStatus
	Featured        bool
	Content         TrekContent
}

// NewTrek validates the draft and applies defaults.
func NewTrek(d TrekDraft, now time.Time) (Trek, error) {
	t := Trek{
		ID:              uuid.New(),
		Title:           strings.TrimSpace(d.Title),
		Description:     d.Description,
		Type:            d.Type,
		Difficulty:      d.Difficulty,
		Duration:        d.Duration,
		Price:           d.Price,
		Location:        d.Location,
		StartDate:       d.StartDate,
		EndDate:         d.EndDate,
		MaxParticipants: d.MaxParticipants,
		Images:          d.Images,
		Status:          d.Status,
		Featured:        d.Featured,
		CreatedAt:       now,
	}
	if t.Type == "" {
		t.Type = TypeTrek
	}
	if t.Difficulty == "" {
		t.Difficulty = DifficultyModerate
	}
	if t.Status == "" {
		t.Status = TrekUpcoming
	}
	if t.MaxParticipants == 0 {
		t.MaxParticipants = DefaultMaxParticipants
	}
	if t.Images == nil {
		t.Images = []string{}
	}
	return t, t.Validate()
}

func (t Trek) Validate() error {
	switch {
	case t.Title == "":
		return Invalid("please provide a trek title")
	case strings.TrimSpace(t.Description) == "":
		return Invalid("please provide a description")
	case strings.TrimSpace(t.Duration) == "":
		return Invalid("please provide duration")
	case strings.TrimSpace(t.Location) == "":
		return Invalid("please provide location")
	case !t.Price.IsPositive():
		return Invalid("price must be positive")
	case t.StartDate.IsZero() || t.EndDate.IsZero():
		return Invalid("please provide start and end date")
	case t.EndDate.Before(t.StartDate):
		return Invalid("end date must not be before start date")
	case t.MaxParticipants <= 0:
		return Invalid("maxParticipants must be positive")
	case t.Type != TypeTrek && t.Type != TypeTour:
		return Invalid("type must be trek or tour")
	case !t.Status.Valid():
		return Invalid("unknown trek status")
	}
	switch t.Difficulty {
	case DifficultyEasy, DifficultyModerate, DifficultyDifficult, DifficultyExtreme:
	default:
		return Invalid("unknown difficulty")
	}
	return nil
}

// TrekPatch edits a listing. It has no participant counter field.
type TrekPatch struct {
	Title           *string
	Description     *string
	Type            *TrekType
	Difficulty      *Difficulty
	Duration        *string
	Price           *decimal.Decimal
	Location        *string
	StartDate       *time.Time
	EndDate         *time.Time
	MaxParticipants *int
	Images          []string
	Status          *TrekStatus
	Featured        *bool
	Content         *TrekContent
}

// Apply returns the edited trek; the participant counter is carried over unchanged.
func (p TrekPatch) Apply(t Trek) (Trek, error) {
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Difficulty != nil {
		t.Difficulty = *p.Difficulty
	}
	if p.Duration != nil {
		t.Duration = *p.Duration
	}
	if p.Price != nil {
		t.Price = *p.Price
	}
	if p.Location != nil {
		t.Location = *p.Location
	}
	if p.StartDate != nil {
		t.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		t.EndDate = *p.EndDate
	}
	if p.MaxParticipants != nil {
		t.MaxParticipants = *p.MaxParticipants
	}
	if p.Images != nil {
		t.Images = p.Images
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Featured != nil {
		t.Featured = *p.Featured
	}
	if err := t.Validate(); err != nil {
		return t, err
	}
	if t.MaxParticipants < t.CurrentParticipants {
		return t, Invalid("maxParticipants cannot be lower than current participants")
	}
	return t, nil
}
