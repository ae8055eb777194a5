package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Dias221467/ZielManager/internal/models"
	"github.com/gorilla/mux"
)

const defaultNotificationLimit = 50

type NotificationService interface {
	ListForUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*models.Notification, int, error)
	MarkAsRead(ctx context.Context, id, userID string) error
	MarkAllAsRead(ctx context.Context, userID string) (int, error)
}

type NotificationHandler struct {
	Service NotificationService
}

func NewNotificationHandler(service NotificationService) *NotificationHandler {
	return &NotificationHandler{Service: service}
}

func (h *NotificationHandler) Register(r *mux.Router) {
	r.HandleFunc("/notifications", h.ListNotificationsHandler).Methods(http.MethodGet)
	r.HandleFunc("/notifications/read-all", h.MarkAllAsReadHandler).Methods(http.MethodPost)
	r.HandleFunc("/notifications/{id}/read", h.MarkAsReadHandler).Methods(http.MethodPost)
}

// ListNotificationsHandler supports ?unread=true and ?limit=N.
func (h *NotificationHandler) ListNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	unreadOnly, _ := strconv.ParseBool(r.URL.Query().Get("unread"))
	limit := defaultNotificationLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	list, unread, err := h.Service.ListForUser(r.Context(), uid, unreadOnly, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": list,
		"unreadCount":   unread,
	})
}

func (h *NotificationHandler) MarkAsReadHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	if err := h.Service.MarkAsRead(r.Context(), mux.Vars(r)["id"], uid); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) MarkAllAsReadHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	n, err := h.Service.MarkAllAsRead(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": n})
}
