package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/Dias221467/ZielManager/internal/models"
	"github.com/Dias221467/ZielManager/internal/repository"
	"github.com/Dias221467/ZielManager/internal/storage"
	"github.com/Dias221467/ZielManager/pkg/apperr"
	"github.com/Dias221467/ZielManager/pkg/logger"
	"github.com/Dias221467/ZielManager/pkg/validate"
	"github.com/sirupsen/logrus"
)

// ListGoalsQuery filters ListGoals. Apprentices always see only their own
// goals; supervisors may narrow by apprentice or to the review queue.
type ListGoalsQuery struct {
	ApprenticeID string
	Pending      bool
}

// GoalService encapsulates the business logic for goals.
type GoalService struct {
	repo          GoalStore
	users         UserStore
	notifications *NotificationService
	evidence      BlobStore
	now           func() time.Time
}

// NewGoalService creates a new instance of GoalService. evidence may be nil
// when no blob store is configured.
func NewGoalService(repo GoalStore, users UserStore, notifications *NotificationService, evidence BlobStore) *GoalService {
	return &GoalService{
		repo:          repo,
		users:         users,
		notifications: notifications,
		evidence:      evidence,
		now:           time.Now,
	}
}

// CreateGoal stores a new goal for the calling apprentice.
func (s *GoalService) CreateGoal(ctx context.Context, actorID string, in models.GoalInput) (*models.Goal, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	actor, err := s.users.GetUserByID(ctx, actorID)
	if err != nil {
		return nil, storeErr(err, "user")
	}
	if !actor.IsApprentice() {
		return nil, apperr.Forbidden("only apprentices can create goals")
	}

	goal, err := s.repo.CreateGoal(ctx, &models.Goal{
		Title:          strings.TrimSpace(in.Title),
		Description:    in.Description,
		Category:       in.Category,
		Status:         in.Status,
		StartDate:      in.StartDate,
		EndDate:        in.EndDate,
		ApprenticeID:   actor.ID,
		ApprenticeName: actor.FullName(),
		Comments:       []models.Comment{},
	})
	if err != nil {
		return nil, storeErr(err, "goal")
	}

	logger.Log.WithField("goal_id", goal.ID).Info("Goal created in service layer")
	return goal, nil
}

// GetGoal returns a goal to its owner or to any supervisor.
func (s *GoalService) GetGoal(ctx context.Context, actorID, id string) (*models.Goal, error) {
	_, goal, err := authorizeGoal(ctx, s.users, s.repo, actorID, id, false)
	return goal, err
}

func (s *GoalService) ListGoals(ctx context.Context, actorID string, q ListGoalsQuery) ([]*models.Goal, error) {
	actor, err := s.users.GetUserByID(ctx, actorID)
	if err != nil {
		return nil, storeErr(err, "user")
	}

	filter := repository.GoalFilter{ApprenticeID: q.ApprenticeID}
	if actor.IsApprentice() {
		if q.ApprenticeID != "" && q.ApprenticeID != actor.ID {
			return nil, apperr.Forbidden("apprentices can only list their own goals")
		}
		filter.ApprenticeID = actor.ID
	}
	if q.Pending {
		submitted, approved := true, false
		filter.Submitted = &submitted
		filter.Approved = &approved
	}

	goals, err := s.repo.ListGoals(ctx, filter)
	if err != nil {
		return nil, storeErr(err, "goals")
	}
	return goals, nil
}

// UpdateGoal edits a goal that has not been submitted yet.
func (s *GoalService) UpdateGoal(ctx context.Context, actorID, id string, in models.GoalInput) (*models.Goal, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	_, goal, err := authorizeGoal(ctx, s.users, s.repo, actorID, id, true)
	if err != nil {
		return nil, err
	}
	if goal.Submitted {
		return nil, apperr.Conflict("submitted goals cannot be edited")
	}

	in.Title = strings.TrimSpace(in.Title)
	if err := s.repo.UpdateGoalDetails(ctx, id, in); err != nil {
		return nil, storeErr(err, "goal")
	}
	updated, err := s.repo.GetGoalByID(ctx, id)
	return updated, storeErr(err, "goal")
}

// DeleteGoal removes an unsubmitted goal and its evidence.
func (s *GoalService) DeleteGoal(ctx context.Context, actorID, id string) error {
	_, goal, err := authorizeGoal(ctx, s.users, s.repo, actorID, id, true)
	if err != nil {
		return err
	}
	if goal.Submitted {
		return apperr.Conflict("submitted goals cannot be deleted")
	}
	if err := s.repo.DeleteGoal(ctx, id); err != nil {
		return storeErr(err, "goal")
	}

	if s.evidence != nil {
		if err := s.evidence.DeletePrefix(ctx, storage.GoalPrefix(goal.ApprenticeID, goal.ID)); err != nil {
			logger.Log.WithError(err).WithField("goal_id", id).Warn("Failed to remove evidence of deleted goal")
		}
	}
	return nil
}

// SubmitGoal locks the goal for review and notifies every supervisor.
func (s *GoalService) SubmitGoal(ctx context.Context, actorID, id string) (*models.Goal, error) {
	actor, goal, err := authorizeGoal(ctx, s.users, s.repo, actorID, id, true)
	if err != nil {
		return nil, err
	}
	if goal.Submitted {
		return nil, apperr.Conflict("goal is already submitted")
	}

	now := s.now()
	if err := s.repo.MarkSubmitted(ctx, id, now); err != nil {
		return nil, storeErr(err, "goal")
	}
	goal.Submitted = true
	goal.SubmittedAt = &now
	goal.UpdatedAt = now

	if _, err := s.notifications.NotifySubmission(ctx, goal, actor); err != nil {
		logger.Log.WithError(err).WithField("goal_id", id).Warn("Submission notifications incomplete")
	}

	logger.Log.WithField("goal_id", id).Info("Goal submitted for review")
	return goal, nil
}

// ApproveGoal rates a submitted goal and notifies its owner. A non-empty
// comment is stored together with the approval.
func (s *GoalService) ApproveGoal(ctx context.Context, actorID, id string, rating float64, comment string) (*models.Goal, error) {
	if !models.ValidRating(rating) {
		return nil, apperr.Validation("rating must be between 0.5 and 5 in steps of 0.5")
	}
	actor, err := s.users.GetUserByID(ctx, actorID)
	if err != nil {
		return nil, storeErr(err, "user")
	}
	if !actor.IsSupervisor() {
		return nil, apperr.Forbidden("only supervisors can approve goals")
	}
	goal, err := s.repo.GetGoalByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "goal")
	}
	if !goal.Submitted {
		return nil, apperr.Conflict("goal must be submitted before approval")
	}
	if goal.Approved {
		return nil, apperr.Conflict("goal is already approved")
	}

	now := s.now()
	var c *models.Comment
	if text := strings.TrimSpace(comment); text != "" {
		c = &models.Comment{Text: text, AuthorID: actor.ID, AuthorName: actor.FullName(), CreatedAt: now}
	}
	if err := s.repo.MarkApproved(ctx, id, rating, actor.ID, now, c); err != nil {
		if apperr.Is(storeErr(err, "goal"), apperr.CodeConflict) {
			return nil, apperr.Conflict("goal is no longer awaiting approval")
		}
		return nil, storeErr(err, "goal")
	}
	goal.Approved = true
	goal.ApprovedAt = &now
	goal.ApprovedBy = actor.ID
	goal.Rating = rating
	goal.UpdatedAt = now
	if c != nil {
		goal.Comments = append(goal.Comments, *c)
	}

	if _, err := s.notifications.NotifyApproval(ctx, goal, actor, rating); err != nil {
		logger.Log.WithError(err).WithField("goal_id", id).Warn("Approval notification failed")
	}

	logger.Log.WithFields(logrus.Fields{
		"goal_id": id,
		"rating":  rating,
	}).Info("Goal approved")
	return goal, nil
}

// AddComment appends a comment. Apprentice comments only notify once the
// goal has been submitted, since nobody reviews drafts.
func (s *GoalService) AddComment(ctx context.Context, actorID, id, text string) (*models.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.Validation("comment text is required")
	}
	actor, goal, err := authorizeGoal(ctx, s.users, s.repo, actorID, id, false)
	if err != nil {
		return nil, err
	}

	comment := models.Comment{Text: text, AuthorID: actor.ID, AuthorName: actor.FullName(), CreatedAt: s.now()}
	if err := s.repo.AddComment(ctx, id, comment); err != nil {
		return nil, storeErr(err, "goal")
	}

	if actor.IsSupervisor() || goal.Submitted {
		if _, err := s.notifications.NotifyComment(ctx, goal, actor); err != nil {
			logger.Log.WithError(err).WithField("goal_id", id).Warn("Comment notification failed")
		}
	}
	return &comment, nil
}

// CheckUserGoals reminds an apprentice with fewer than the recommended
// number of goals. It reports whether a reminder was created.
func (s *GoalService) CheckUserGoals(ctx context.Context, user *models.User) (bool, error) {
	if !user.IsApprentice() {
		return false, nil
	}
	count, err := s.repo.CountGoals(ctx, repository.GoalFilter{ApprenticeID: user.ID})
	if err != nil {
		return false, storeErr(err, "goals")
	}
	if count >= models.MinRecommendedGoals {
		return false, nil
	}

	if _, err := s.notifications.NotifyGoalReminder(ctx, user, models.MinRecommendedGoals-count); err != nil {
		return false, err
	}
	logger.Log.WithFields(logrus.Fields{
		"user_id":    user.ID,
		"goal_count": count,
	}).Info("Goal reminder created")
	return true, nil
}

// authorizeGoal loads the actor and the goal and checks access. Owners can
// always access their goal; supervisors only when ownerOnly is false.
func authorizeGoal(ctx context.Context, users UserStore, goals GoalStore, actorID, goalID string, ownerOnly bool) (*models.User, *models.Goal, error) {
	actor, err := users.GetUserByID(ctx, actorID)
	if err != nil {
		return nil, nil, storeErr(err, "user")
	}
	goal, err := goals.GetGoalByID(ctx, goalID)
	if err != nil {
		return nil, nil, storeErr(err, "goal")
	}

	if goal.ApprenticeID == actor.ID {
		return actor, goal, nil
	}
	if !ownerOnly && actor.IsSupervisor() {
		return actor, goal, nil
	}
	return nil, nil, apperr.Forbidden("no access to this goal")
}

func formatRating(r float64) string {
	return strconv.FormatFloat(r, 'f', -1, 64)
}
