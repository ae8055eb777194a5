package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/Dias221467/ZielManager/internal/models"
	"github.com/Dias221467/ZielManager/internal/services"
	"github.com/Dias221467/ZielManager/pkg/logger"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type EvidenceService interface {
	Upload(ctx context.Context, actorID, goalID, filename string, size int64, contentType string, body io.Reader) (*models.EvidenceFile, error)
	List(ctx context.Context, actorID, goalID string) ([]models.EvidenceFile, error)
	Delete(ctx context.Context, actorID, goalID, filename string) error
}

type EvidenceHandler struct {
	Service EvidenceService
}

func NewEvidenceHandler(service EvidenceService) *EvidenceHandler {
	return &EvidenceHandler{Service: service}
}

func (h *EvidenceHandler) Register(r *mux.Router) {
	r.HandleFunc("/goals/{id}/evidence", h.UploadHandler).Methods(http.MethodPost)
	r.HandleFunc("/goals/{id}/evidence", h.ListHandler).Methods(http.MethodGet)
	r.HandleFunc("/goals/{id}/evidence/{name}", h.DeleteHandler).Methods(http.MethodDelete)
}

// UploadHandler accepts a multipart form with a single "file" field.
func (h *EvidenceHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, services.MaxEvidenceSize+1<<20)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	goalID := mux.Vars(r)["id"]
	saved, err := h.Service.Upload(r.Context(), uid, goalID, header.Filename, header.Size, header.Header.Get("Content-Type"), file)
	if err != nil {
		writeError(w, err)
		return
	}
	logger.Log.WithFields(logrus.Fields{
		"goal_id": goalID,
		"file":    saved.Name,
	}).Info("Evidence uploaded")
	writeJSON(w, http.StatusCreated, saved)
}

func (h *EvidenceHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	files, err := h.Service.List(r.Context(), uid, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (h *EvidenceHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	if err := h.Service.Delete(r.Context(), uid, vars["id"], vars["name"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
