package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/Dias221467/ZielManager/pkg/apperr"
	"github.com/Dias221467/ZielManager/pkg/logger"
	"github.com/Dias221467/ZielManager/pkg/middleware"
)

type errorResponse struct {
	Error   string            `json:"error"`
	Code    apperr.Code       `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.WithError(err).Warn("Failed to encode response")
	}
}

// writeError maps err to a status code. Internal failures are logged and
// hidden behind a generic message.
func writeError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	resp := errorResponse{Code: apperr.CodeOf(err)}
	if e := apperr.As(err); e != nil && e.Code() != apperr.CodeInternal {
		resp.Error = e.Message()
		resp.Details = e.Details()
	} else {
		logger.Log.WithError(err).Error("Request failed")
		resp.Error = "internal server error"
	}
	writeJSON(w, status, resp)
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Wrap(apperr.CodeValidation, err, "Invalid request payload")
	}
	return nil
}

// userID returns the authenticated caller or writes a 401.
func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return "", false
	}
	return claims.UserID, true
}
