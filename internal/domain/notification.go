package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotifyBooking      NotificationType = "booking"
	NotifyEvent        NotificationType = "event"
	NotifyAnnouncement NotificationType = "announcement"
	NotifyReminder     NotificationType = "reminder"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotifyBooking, NotifyEvent, NotifyAnnouncement, NotifyReminder:
		return true
	}
	return false
}

type Notification struct {
	ID        uuid.UUID        `json:"id" bson:"_id"`
	UserID    uuid.UUID        `json:"user" bson:"user_id"`
	Title     string           `json:"title" bson:"title"`
	Message   string           `json:"message" bson:"message"`
	Type      NotificationType `json:"type" bson:"type"`
	Read      bool             `json:"read" bson:"read"`
	Link      string           `json:"link" bson:"link"`
	CreatedAt time.Time        `json:"createdAt" bson:"created_at"`
}

type NotificationDraft struct {
	// UserID nil means every user.
	UserID  *uuid.UUID
	Title   string
	Message string
	Type    NotificationType
	Link    string
}

func (d NotificationDraft) Validate() error {
	if strings.TrimSpace(d.Title) == "" || strings.TrimSpace(d.Message) == "" {
		return Invalid("title and message are required")
	}
	if d.Type != "" && !d.Type.Valid() {
		return Invalid("unknown notification type")
	}
	return nil
}

func NewNotification(userID uuid.UUID, d NotificationDraft, now time.Time) Notification {
	typ := d.Type
	if typ == "" {
		typ = NotifyAnnouncement
	}
	return Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     d.Title,
		Message:   d.Message,
		Type:      typ,
		Link:      d.Link,
		CreatedAt: now,
	}
}
