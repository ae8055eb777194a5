package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/Dias221467/ZielManager/internal/models"
	"github.com/gorilla/mux"
)

type LeaderboardService interface {
	Compute(ctx context.Context, actorID string) (*models.Leaderboard, error)
	Reset(ctx context.Context, actorID string) (time.Time, error)
	GetSettings(ctx context.Context) (*models.LeaderboardSettings, error)
	UpdateCountdown(ctx context.Context, actorID string, c models.Countdown) (*models.Countdown, error)
}

type LeaderboardHandler struct {
	Service LeaderboardService
}

func NewLeaderboardHandler(service LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{Service: service}
}

func (h *LeaderboardHandler) Register(r *mux.Router) {
	r.HandleFunc("/leaderboard", h.GetLeaderboardHandler).Methods(http.MethodGet)
	r.HandleFunc("/leaderboard/reset", h.ResetHandler).Methods(http.MethodPost)
	r.HandleFunc("/leaderboard/settings", h.GetSettingsHandler).Methods(http.MethodGet)
	r.HandleFunc("/leaderboard/countdown", h.UpdateCountdownHandler).Methods(http.MethodPut)
}

func (h *LeaderboardHandler) GetLeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	board, err := h.Service.Compute(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (h *LeaderboardHandler) ResetHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	at, err := h.Service.Reset(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]time.Time{"leaderboardResetTimestamp": at})
}

func (h *LeaderboardHandler) GetSettingsHandler(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Service.GetSettings(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *LeaderboardHandler) UpdateCountdownHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var c models.Countdown
	if err := decodeJSON(r, &c); err != nil {
		writeError(w, err)
		return
	}
	saved, err := h.Service.UpdateCountdown(r.Context(), uid, c)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}
