package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Dias221467/ZielManager/internal/services"
	"github.com/Dias221467/ZielManager/pkg/apperr"
	"github.com/Dias221467/ZielManager/pkg/logger"
	"github.com/gorilla/mux"
)

type EmailPreferenceUpdater interface {
	UpdateEmailPreference(ctx context.Context, actorID string, enable bool) error
}

type ReviewReminderSender interface {
	SendGoalReviewReminder(ctx context.Context, actorID string, req services.ReviewReminderRequest) (string, error)
}

// CallableHandler serves the callable functions used by the frontend. Requests
// carry {"data": ...} and responses {"result": ...}; failures are reported as
// {"error": {"status", "message"}}.
type CallableHandler struct {
	Users     EmailPreferenceUpdater
	Reminders ReviewReminderSender
}

func NewCallableHandler(users EmailPreferenceUpdater, reminders ReviewReminderSender) *CallableHandler {
	return &CallableHandler{Users: users, Reminders: reminders}
}

func (h *CallableHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/callable/updateEmailPreference", h.UpdateEmailPreferenceHandler).Methods(http.MethodPost)
	r.HandleFunc("/api/callable/sendGoalReviewReminder", h.SendGoalReviewReminderHandler).Methods(http.MethodPost)
}

type callableError struct {
	Status  apperr.Code `json:"status"`
	Message string      `json:"message"`
}

func writeCallableError(w http.ResponseWriter, err error) {
	code := apperr.CodeOf(err)
	msg := "internal error"
	if e := apperr.As(err); e != nil && code != apperr.CodeInternal {
		msg = e.Message()
	} else {
		logger.Log.WithError(err).Error("Callable failed")
	}
	writeJSON(w, apperr.HTTPStatus(err), map[string]callableError{"error": {Status: code, Message: msg}})
}

func decodeCallable(r *http.Request, v any) error {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := decodeJSON(r, &envelope); err != nil {
		return err
	}
	if len(envelope.Data) == 0 {
		return apperr.Validation("data is required")
	}
	if err := json.Unmarshal(envelope.Data, v); err != nil {
		return apperr.Wrap(apperr.CodeValidation, err, "invalid data")
	}
	return nil
}

func (h *CallableHandler) UpdateEmailPreferenceHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var data struct {
		EnableEmails *bool `json:"enableEmails"`
	}
	if err := decodeCallable(r, &data); err != nil {
		writeCallableError(w, err)
		return
	}
	if data.EnableEmails == nil {
		writeCallableError(w, apperr.Validation("enableEmails must be a boolean"))
		return
	}
	if err := h.Users.UpdateEmailPreference(r.Context(), uid, *data.EnableEmails); err != nil {
		writeCallableError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": map[string]bool{"success": true}})
}

func (h *CallableHandler) SendGoalReviewReminderHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req services.ReviewReminderRequest
	if err := decodeCallable(r, &req); err != nil {
		writeCallableError(w, err)
		return
	}
	messageID, err := h.Reminders.SendGoalReviewReminder(r.Context(), uid, req)
	if err != nil {
		writeCallableError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": map[string]any{"success": true, "messageId": messageID}})
}
