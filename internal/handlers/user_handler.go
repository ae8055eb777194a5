package handlers

import (
	"context"
	"net/http"

	"github.com/Dias221467/ZielManager/internal/models"
	"github.com/Dias221467/ZielManager/internal/services"
	"github.com/Dias221467/ZielManager/pkg/logger"
	"github.com/gorilla/mux"
)

type UserService interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.User, error)
	VerifyEmail(ctx context.Context, token string) error
	RequestPasswordReset(ctx context.Context, address string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	Login(ctx context.Context, address, password string) (string, *models.User, error)
	GetUser(ctx context.Context, actorID, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, actorID, id string, in services.ProfileInput) (*models.User, error)
	BecomeFirstSupervisor(ctx context.Context, actorID string) (*models.User, error)
	ListApprentices(ctx context.Context, actorID string) ([]*models.User, error)
}

// SupervisorRequests covers the supervisor access workflow.
type SupervisorRequests interface {
	RequestSupervisorAccess(ctx context.Context, requesterID string) error
	ResolveSupervisorRequest(ctx context.Context, notificationID, requesterID, action, resolverID string) error
}

// UserHandler handles HTTP requests related to users.
type UserHandler struct {
	Service  UserService
	Requests SupervisorRequests
}

func NewUserHandler(service UserService, requests SupervisorRequests) *UserHandler {
	return &UserHandler{Service: service, Requests: requests}
}

// RegisterPublic mounts the routes that need no token.
func (h *UserHandler) RegisterPublic(r *mux.Router) {
	r.HandleFunc("/users/register", h.RegisterUserHandler).Methods(http.MethodPost)
	r.HandleFunc("/users/login", h.LoginUserHandler).Methods(http.MethodPost)
	r.HandleFunc("/users/verify", h.VerifyEmailHandler).Methods(http.MethodGet)
	r.HandleFunc("/users/request-password-reset", h.RequestPasswordResetHandler).Methods(http.MethodPost)
	r.HandleFunc("/users/reset-password", h.ResetPasswordHandler).Methods(http.MethodPost)
}

// Register mounts the authenticated user routes.
func (h *UserHandler) Register(r *mux.Router) {
	r.HandleFunc("/users/apprentices", h.ListApprenticesHandler).Methods(http.MethodGet)
	r.HandleFunc("/users/become-first-supervisor", h.BecomeFirstSupervisorHandler).Methods(http.MethodPost)
	r.HandleFunc("/users/supervisor-request", h.RequestSupervisorAccessHandler).Methods(http.MethodPost)
	r.HandleFunc("/users/supervisor-request/{notificationId}", h.ResolveSupervisorRequestHandler).Methods(http.MethodPost)
	r.HandleFunc("/users/{id}", h.GetUserHandler).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}", h.UpdateUserHandler).Methods(http.MethodPatch)
}

func (h *UserHandler) RegisterUserHandler(w http.ResponseWriter, r *http.Request) {
	var in services.RegisterInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	user, err := h.Service.Register(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *UserHandler) LoginUserHandler(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &creds); err != nil {
		writeError(w, err)
		return
	}

	token, user, err := h.Service.Login(r.Context(), creds.Email, creds.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  user,
	})
}

func (h *UserHandler) VerifyEmailHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.VerifyEmail(r.Context(), r.URL.Query().Get("token")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Email verified successfully"})
}

func (h *UserHandler) RequestPasswordResetHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if err := h.Service.RequestPasswordReset(r.Context(), body.Email); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "If the email exists, a reset link has been sent"})
}

func (h *UserHandler) ResetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if err := h.Service.ResetPassword(r.Context(), body.Token, body.NewPassword); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password has been reset"})
}

func (h *UserHandler) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	user, err := h.Service.GetUser(r.Context(), uid, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) UpdateUserHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var in services.ProfileInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	user, err := h.Service.UpdateProfile(r.Context(), uid, mux.Vars(r)["id"], in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) ListApprenticesHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	users, err := h.Service.ListApprentices(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) BecomeFirstSupervisorHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	user, err := h.Service.BecomeFirstSupervisor(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	logger.Log.WithField("userID", uid).Info("User became first supervisor")
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) RequestSupervisorAccessHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	if err := h.Requests.RequestSupervisorAccess(r.Context(), uid); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": models.RequestStatusPending})
}

// ResolveSupervisorRequestHandler expects {"requesterId": "...", "action": "approve"|"deny"}.
func (h *UserHandler) ResolveSupervisorRequestHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var body struct {
		RequesterID string `json:"requesterId"`
		Action      string `json:"action"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	err := h.Requests.ResolveSupervisorRequest(r.Context(), mux.Vars(r)["notificationId"], body.RequesterID, body.Action, uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}
