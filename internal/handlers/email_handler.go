package handlers

import (
	"context"
	"net/http"

	"github.com/Dias221467/ZielManager/pkg/apperr"
	"github.com/Dias221467/ZielManager/pkg/logger"
	"github.com/gorilla/mux"
)

type EmailDispatcher interface {
	SendTestEmail(ctx context.Context, actorID, to string) (string, error)
	ProcessNotificationAs(ctx context.Context, actorID, id string) (string, error)
}

// EmailHandler exposes the mail server endpoints. Both need an
// authenticated caller.
type EmailHandler struct {
	Service EmailDispatcher
}

func NewEmailHandler(service EmailDispatcher) *EmailHandler {
	return &EmailHandler{Service: service}
}

func (h *EmailHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/test-email", h.TestEmailHandler).Methods(http.MethodPost)
	r.HandleFunc("/api/process-notification/{notificationId}", h.ProcessNotificationHandler).Methods(http.MethodPost)
}

func (h *EmailHandler) TestEmailHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var body struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Email is required"})
		return
	}

	messageID, err := h.Service.SendTestEmail(r.Context(), uid, body.Email)
	if err != nil {
		status := http.StatusInternalServerError
		switch apperr.CodeOf(err) {
		case apperr.CodeValidation:
			status = http.StatusBadRequest
		case apperr.CodeForbidden:
			status = http.StatusForbidden
		}
		logger.Log.WithError(err).Error("Test email failed")
		writeJSON(w, status, map[string]string{"error": messageOf(err)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "messageId": messageID})
}

// ProcessNotificationHandler answers 404 for an unknown notification, 403
// when the caller is neither recipient nor supervisor and 400 for every
// other failure, including skipped recipients.
func (h *EmailHandler) ProcessNotificationHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["notificationId"]
	messageID, err := h.Service.ProcessNotificationAs(r.Context(), uid, id)
	if err != nil {
		status := http.StatusBadRequest
		switch apperr.CodeOf(err) {
		case apperr.CodeNotFound:
			status = http.StatusNotFound
		case apperr.CodeForbidden:
			status = http.StatusForbidden
		}
		logger.Log.WithError(err).WithField("notification_id", id).Warn("Notification not processed")
		writeJSON(w, status, map[string]string{"error": messageOf(err)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "messageId": messageID})
}

func messageOf(err error) string {
	if e := apperr.As(err); e != nil {
		return e.Message()
	}
	return err.Error()
}
