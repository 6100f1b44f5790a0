package http

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/robertarktes/trek-bookings/internal/domain"
)

type createNotificationRequest struct {
	User    string `json:"user" validate:"omitempty,uuid"`
	Title   string `json:"title" validate:"required,max=200"`
	Message string `json:"message" validate:"required,max=2000"`
	Type    string `json:"type" validate:"omitempty,oneof=booking event announcement reminder"`
	Link    string `json:"link" validate:"omitempty,max=500"`
}

func (h *Handlers) ListNotifications(w http.ResponseWriter, r *http.Request) {
	items, err := h.notifications.List(r.Context(), h.caller(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	okList(w, items, len(items))
}

// CreateNotification sends to one user when "user" is set, otherwise to everyone.
func (h *Handlers) CreateNotification(w http.ResponseWriter, r *http.Request) {
	var req createNotificationRequest
	if !h.decode(w, r, &req) {
		return
	}
	draft := domain.NotificationDraft{
		Title:   req.Title,
		Message: req.Message,
		Type:    domain.NotificationType(req.Type),
		Link:    req.Link,
	}
	if req.User != "" {
		userID, err := uuid.Parse(req.User)
		if err != nil {
			fail(w, http.StatusBadRequest, "invalid user id")
			return
		}
		draft.UserID = &userID
	}

	items, err := h.notifications.Create(r.Context(), h.caller(r), draft)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	count := len(items)
	writeJSON(w, http.StatusCreated, envelope{Success: true, Data: items, Count: &count})
}

func (h *Handlers) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, valid := pathID(w, r)
	if !valid {
		return
	}
	n, err := h.notifications.MarkRead(r.Context(), h.caller(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, n)
}

func (h *Handlers) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.notifications.MarkAllRead(r.Context(), h.caller(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]int64{"updated": n}, Message: "all notifications marked as read"})
}

func (h *Handlers) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	id, valid := pathID(w, r)
	if !valid {
		return
	}
	if err := h.notifications.Delete(r.Context(), h.caller(r), id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "notification removed"})
}
