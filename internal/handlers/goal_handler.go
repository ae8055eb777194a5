package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Dias221467/ZielManager/internal/models"
	"github.com/Dias221467/ZielManager/internal/services"
	"github.com/Dias221467/ZielManager/pkg/logger"
	"github.com/gorilla/mux"
)

type GoalService interface {
	CreateGoal(ctx context.Context, actorID string, in models.GoalInput) (*models.Goal, error)
	GetGoal(ctx context.Context, actorID, id string) (*models.Goal, error)
	ListGoals(ctx context.Context, actorID string, q services.ListGoalsQuery) ([]*models.Goal, error)
	UpdateGoal(ctx context.Context, actorID, id string, in models.GoalInput) (*models.Goal, error)
	DeleteGoal(ctx context.Context, actorID, id string) error
	SubmitGoal(ctx context.Context, actorID, id string) (*models.Goal, error)
	ApproveGoal(ctx context.Context, actorID, id string, rating float64, comment string) (*models.Goal, error)
	AddComment(ctx context.Context, actorID, id, text string) (*models.Comment, error)
}

// GoalHandler handles HTTP requests related to goals.
type GoalHandler struct {
	Service GoalService
}

// NewGoalHandler creates a new instance of GoalHandler.
func NewGoalHandler(service GoalService) *GoalHandler {
	return &GoalHandler{Service: service}
}

// Register mounts the goal routes on an authenticated subrouter.
func (h *GoalHandler) Register(r *mux.Router) {
	r.HandleFunc("/goals", h.CreateGoalHandler).Methods(http.MethodPost)
	r.HandleFunc("/goals", h.ListGoalsHandler).Methods(http.MethodGet)
	r.HandleFunc("/goals/{id}", h.GetGoalHandler).Methods(http.MethodGet)
	r.HandleFunc("/goals/{id}", h.UpdateGoalHandler).Methods(http.MethodPut)
	r.HandleFunc("/goals/{id}", h.DeleteGoalHandler).Methods(http.MethodDelete)
	r.HandleFunc("/goals/{id}/submit", h.SubmitGoalHandler).Methods(http.MethodPost)
	r.HandleFunc("/goals/{id}/approve", h.ApproveGoalHandler).Methods(http.MethodPost)
	r.HandleFunc("/goals/{id}/comments", h.AddCommentHandler).Methods(http.MethodPost)
}

func (h *GoalHandler) CreateGoalHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var in models.GoalInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	goal, err := h.Service.CreateGoal(r.Context(), uid, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, goal)
}

// ListGoalsHandler supports ?apprenticeId= and ?pending=true.
func (h *GoalHandler) ListGoalsHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	pending, _ := strconv.ParseBool(r.URL.Query().Get("pending"))

	goals, err := h.Service.ListGoals(r.Context(), uid, services.ListGoalsQuery{
		ApprenticeID: r.URL.Query().Get("apprenticeId"),
		Pending:      pending,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, goals)
}

func (h *GoalHandler) GetGoalHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	goal, err := h.Service.GetGoal(r.Context(), uid, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func (h *GoalHandler) UpdateGoalHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var in models.GoalInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	goal, err := h.Service.UpdateGoal(r.Context(), uid, mux.Vars(r)["id"], in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func (h *GoalHandler) DeleteGoalHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	if err := h.Service.DeleteGoal(r.Context(), uid, mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *GoalHandler) SubmitGoalHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	goal, err := h.Service.SubmitGoal(r.Context(), uid, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func (h *GoalHandler) ApproveGoalHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var body struct {
		Rating  float64 `json:"rating"`
		Comment string  `json:"comment"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}

	goal, err := h.Service.ApproveGoal(r.Context(), uid, mux.Vars(r)["id"], body.Rating, body.Comment)
	if err != nil {
		logger.Log.WithError(err).WithField("goal_id", mux.Vars(r)["id"]).Warn("Goal approval rejected")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func (h *GoalHandler) AddCommentHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var body struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	comment, err := h.Service.AddComment(r.Context(), uid, mux.Vars(r)["id"], body.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}
