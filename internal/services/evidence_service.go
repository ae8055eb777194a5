package services

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/Dias221467/ZielManager/internal/models"
	"github.com/Dias221467/ZielManager/internal/storage"
	"github.com/Dias221467/ZielManager/pkg/apperr"
	"github.com/Dias221467/ZielManager/pkg/logger"
	"github.com/sirupsen/logrus"
)

// MaxEvidenceSize caps a single evidence upload.
const MaxEvidenceSize = 10 << 20

// EvidenceService manages the files apprentices attach to their goals.
type EvidenceService struct {
	store BlobStore
	goals GoalStore
	users UserStore
}

func NewEvidenceService(store BlobStore, goals GoalStore, users UserStore) *EvidenceService {
	return &EvidenceService{store: store, goals: goals, users: users}
}

// Upload stores a file for an unsubmitted goal owned by the caller.
func (s *EvidenceService) Upload(ctx context.Context, actorID, goalID, filename string, size int64, contentType string, body io.Reader) (*models.EvidenceFile, error) {
	if s.store == nil {
		return nil, apperr.New(apperr.CodeDependency, "evidence storage is not configured")
	}
	name, err := cleanFilename(filename)
	if err != nil {
		return nil, err
	}
	if size <= 0 || size > MaxEvidenceSize {
		return nil, apperr.Validation("file size must be between 1 byte and %d MB", MaxEvidenceSize>>20)
	}

	_, goal, err := authorizeGoal(ctx, s.users, s.goals, actorID, goalID, true)
	if err != nil {
		return nil, err
	}
	if goal.Submitted {
		return nil, apperr.Conflict("evidence cannot be changed after submission")
	}

	key := storage.GoalPrefix(goal.ApprenticeID, goal.ID) + name
	if err := s.store.Put(ctx, key, body, size, contentType); err != nil {
		return nil, apperr.Wrap(apperr.CodeDependency, err, "failed to upload evidence")
	}

	logger.Log.WithFields(logrus.Fields{
		"goal_id": goalID,
		"file":    name,
		"size":    size,
	}).Info("Evidence uploaded")
	return &models.EvidenceFile{Name: name, Path: key, Size: size}, nil
}

// List returns a goal's evidence to its owner or any supervisor.
func (s *EvidenceService) List(ctx context.Context, actorID, goalID string) ([]models.EvidenceFile, error) {
	if s.store == nil {
		return nil, apperr.New(apperr.CodeDependency, "evidence storage is not configured")
	}
	_, goal, err := authorizeGoal(ctx, s.users, s.goals, actorID, goalID, false)
	if err != nil {
		return nil, err
	}

	files, err := s.store.List(ctx, storage.GoalPrefix(goal.ApprenticeID, goal.ID))
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeDependency, err, "failed to list evidence")
	}
	return files, nil
}

// Delete removes one file from an unsubmitted goal.
func (s *EvidenceService) Delete(ctx context.Context, actorID, goalID, filename string) error {
	if s.store == nil {
		return apperr.New(apperr.CodeDependency, "evidence storage is not configured")
	}
	name, err := cleanFilename(filename)
	if err != nil {
		return err
	}
	_, goal, err := authorizeGoal(ctx, s.users, s.goals, actorID, goalID, true)
	if err != nil {
		return err
	}
	if goal.Submitted {
		return apperr.Conflict("evidence cannot be changed after submission")
	}

	if err := s.store.Delete(ctx, storage.GoalPrefix(goal.ApprenticeID, goal.ID)+name); err != nil {
		return apperr.Wrap(apperr.CodeDependency, err, "failed to delete evidence")
	}
	return nil
}

// cleanFilename keeps only the base name so callers cannot escape the
// goal's prefix.
func cleanFilename(filename string) (string, error) {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	if name == "" || name == "." || name == ".." || name == "/" {
		return "", apperr.Validation("a file name is required")
	}
	return name, nil
}
