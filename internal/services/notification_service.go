package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Dias221467/ZielManager/internal/events"
	"github.com/Dias221467/ZielManager/internal/models"
	"github.com/Dias221467/ZielManager/pkg/apperr"
	"github.com/Dias221467/ZielManager/pkg/logger"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	RequestActionApprove = "approve"
	RequestActionDeny    = "deny"

	fanOutLimit = 8
)

// NotifyParams describes a single notification to store.
type NotifyParams struct {
	RecipientID    string
	RecipientRole  string
	Sender         models.Sender
	Type           string
	Goal           *models.GoalRef
	Message        string
	ActionLink     string
	AdditionalData *models.AdditionalData
}

// NotificationService writes notifications and announces each one on the
// event bus so the email dispatcher can pick it up.
type NotificationService struct {
	repo  NotificationStore
	users UserStore
	bus   events.Bus
	now   func() time.Time
}

func NewNotificationService(repo NotificationStore, users UserStore, bus events.Bus) *NotificationService {
	return &NotificationService{
		repo:  repo,
		users: users,
		bus:   bus,
		now:   time.Now,
	}
}

// Notify stores one unread notification and returns its id.
func (s *NotificationService) Notify(ctx context.Context, p NotifyParams) (string, error) {
	n := &models.Notification{
		RecipientID:    p.RecipientID,
		RecipientRole:  p.RecipientRole,
		SenderID:       p.Sender.ID,
		SenderName:     p.Sender.Name,
		SenderRole:     p.Sender.Role,
		Type:           p.Type,
		Message:        p.Message,
		ActionLink:     p.ActionLink,
		Read:           false,
		AdditionalData: p.AdditionalData.Clone(),
		CreatedAt:      s.now(),
	}
	if p.Goal != nil {
		n.GoalID = p.Goal.ID
		n.GoalTitle = p.Goal.Title
	}

	id, err := s.repo.CreateNotification(ctx, n)
	if err != nil {
		return "", fmt.Errorf("failed to create %s notification: %w", p.Type, err)
	}

	if s.bus != nil {
		ev := events.NotificationCreated{NotificationID: id, RecipientID: n.RecipientID, Type: n.Type}
		if err := s.bus.Publish(ctx, ev); err != nil {
			logger.Log.WithError(err).WithField("notification_id", id).Warn("Failed to publish notification event")
		}
	}
	return id, nil
}

// NotifyAllSupervisors sends p to every supervisor. Recipients are handled
// independently: a failure for one never prevents the others, and nothing
// is retried. The returned error joins every per-recipient failure.
func (s *NotificationService) NotifyAllSupervisors(ctx context.Context, p NotifyParams) (int, error) {
	supervisors, err := s.users.ListUsersByRole(ctx, models.RoleSupervisor)
	if err != nil {
		return 0, fmt.Errorf("failed to load supervisors: %w", err)
	}

	var (
		mu   sync.Mutex
		sent int
		errs []error
	)
	var g errgroup.Group
	g.SetLimit(fanOutLimit)
	for _, sup := range supervisors {
		params := p
		params.RecipientID = sup.ID
		params.RecipientRole = models.RoleSupervisor
		g.Go(func() error {
			_, err := s.Notify(ctx, params)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Log.WithError(err).WithField("recipient_id", params.RecipientID).Error("Supervisor notification failed")
				errs = append(errs, err)
				return nil
			}
			sent++
			return nil
		})
	}
	_ = g.Wait()

	return sent, errors.Join(errs...)
}

// NotifySubmission tells every supervisor that goal was submitted.
func (s *NotificationService) NotifySubmission(ctx context.Context, goal *models.Goal, apprentice *models.User) (int, error) {
	return s.NotifyAllSupervisors(ctx, NotifyParams{
		Sender:  models.SenderFromUser(apprentice),
		Type:    models.NotificationSubmission,
		Goal:    models.RefOf(goal),
		Message: fmt.Sprintf("%s submitted a goal for review", apprentice.FullName()),
	})
}

// NotifyApproval tells the goal owner about the approval and rating.
func (s *NotificationService) NotifyApproval(ctx context.Context, goal *models.Goal, supervisor *models.User, rating float64) (string, error) {
	return s.Notify(ctx, NotifyParams{
		RecipientID:   goal.ApprenticeID,
		RecipientRole: models.RoleApprentice,
		Sender:        models.SenderFromUser(supervisor),
		Type:          models.NotificationApproval,
		Goal:          models.RefOf(goal),
		Message:       fmt.Sprintf("Your goal was approved with %s stars", formatRating(rating)),
	})
}

// NotifyComment routes a comment notification. Supervisor comments go to
// the owning apprentice. Apprentice comments go to the approver when one is
// recorded, otherwise to all supervisors.
func (s *NotificationService) NotifyComment(ctx context.Context, goal *models.Goal, commenter *models.User) (int, error) {
	p := NotifyParams{
		Sender:  models.SenderFromUser(commenter),
		Type:    models.NotificationComment,
		Goal:    models.RefOf(goal),
		Message: fmt.Sprintf("%s commented on a goal", commenter.FullName()),
	}

	switch {
	case commenter.IsSupervisor():
		if goal.ApprenticeID == commenter.ID {
			return 0, nil
		}
		p.RecipientID = goal.ApprenticeID
		p.RecipientRole = models.RoleApprentice
	case goal.ApprovedBy != "":
		p.RecipientID = goal.ApprovedBy
		p.RecipientRole = models.RoleSupervisor
	default:
		return s.NotifyAllSupervisors(ctx, p)
	}

	if _, err := s.Notify(ctx, p); err != nil {
		return 0, err
	}
	return 1, nil
}

// NotifyGoalReminder nudges an apprentice who has fewer than the
// recommended number of goals.
func (s *NotificationService) NotifyGoalReminder(ctx context.Context, user *models.User, goalsNeeded int) (string, error) {
	var msg string
	if goalsNeeded == 1 {
		msg = fmt.Sprintf("You're almost there, %s! Just 1 more goal to reach the recommended minimum.", user.FirstName)
	} else {
		msg = fmt.Sprintf("Welcome back, %s! Don't forget to create %d more goals to reach the recommended minimum.", user.FirstName, goalsNeeded)
	}

	return s.Notify(ctx, NotifyParams{
		RecipientID:   user.ID,
		RecipientRole: user.Role,
		Sender:        models.SystemSender,
		Type:          models.NotificationGoalReminder,
		Message:       msg,
		ActionLink:    "/goals/create",
	})
}

// RequestSupervisorAccess moves the caller's request to pending and tells
// every supervisor.
func (s *NotificationService) RequestSupervisorAccess(ctx context.Context, requesterID string) error {
	requester, err := s.users.GetUserByID(ctx, requesterID)
	if err != nil {
		return storeErr(err, "user")
	}
	if !requester.IsApprentice() {
		return apperr.Conflict("only apprentices can request supervisor access")
	}
	if requester.RequestStatus() == models.RequestStatusPending {
		return apperr.Conflict("a supervisor access request is already pending")
	}

	now := s.now()
	if err := s.users.MarkSupervisorRequestPending(ctx, requester.ID, now); err != nil {
		return storeErr(err, "supervisor request")
	}

	sent, err := s.NotifyAllSupervisors(ctx, NotifyParams{
		Sender:  models.SenderFromUser(requester),
		Type:    models.NotificationSupervisorRequest,
		Message: fmt.Sprintf("%s (%s) has requested supervisor access", requester.FullName(), requester.Email),
		AdditionalData: &models.AdditionalData{
			RequesterID:    requester.ID,
			RequesterName:  requester.FullName(),
			RequesterEmail: requester.Email,
			RequestStatus:  models.RequestStatusPending,
		},
	})
	if err != nil {
		logger.Log.WithError(err).WithField("requester_id", requester.ID).Warn("Some supervisors were not notified of access request")
	}

	logger.Log.WithFields(logrus.Fields{
		"requester_id":         requester.ID,
		"supervisors_notified": sent,
	}).Info("Supervisor access requested")
	return nil
}

// ResolveSupervisorRequest approves or denies a pending request. The
// state check happens in the store, so a request can be resolved only once.
func (s *NotificationService) ResolveSupervisorRequest(ctx context.Context, notificationID, requesterID, action, resolverID string) error {
	if action != RequestActionApprove && action != RequestActionDeny {
		return apperr.Validation("action must be %q or %q", RequestActionApprove, RequestActionDeny)
	}

	resolver, err := s.users.GetUserByID(ctx, resolverID)
	if err != nil {
		return storeErr(err, "user")
	}
	if !resolver.IsSupervisor() {
		return apperr.Forbidden("only supervisors can resolve access requests")
	}

	if notificationID != "" {
		n, err := s.repo.GetNotificationByID(ctx, notificationID)
		if err != nil {
			return storeErr(err, "notification")
		}
		if n.Type != models.NotificationSupervisorRequest || n.AdditionalData == nil || n.AdditionalData.RequesterID != requesterID {
			return apperr.Validation("notification does not belong to this request")
		}
	}

	requester, err := s.users.GetUserByID(ctx, requesterID)
	if err != nil {
		return storeErr(err, "user")
	}
	if requester.RequestStatus() != models.RequestStatusPending {
		return apperr.Conflict("request was already %s", requester.RequestStatus())
	}

	now := s.now()
	approve := action == RequestActionApprove
	if err := s.users.ResolveSupervisorRequest(ctx, requester.ID, approve, resolver.ID, now); err != nil {
		if apperr.Is(storeErr(err, "request"), apperr.CodeConflict) {
			return apperr.Conflict("request was already resolved")
		}
		return storeErr(err, "request")
	}

	status := models.RequestStatusDenied
	if approve {
		status = models.RequestStatusApproved
	}
	if _, err := s.repo.ResolveRequestNotifications(ctx, requester.ID, status, resolver.ID, now); err != nil {
		logger.Log.WithError(err).WithField("requester_id", requester.ID).Warn("Failed to update request notifications")
	}

	_, err = s.Notify(ctx, NotifyParams{
		RecipientID:   requester.ID,
		RecipientRole: requester.Role,
		Sender:        models.SenderFromUser(resolver),
		Type:          models.NotificationSupervisorRequestResult,
		Message:       fmt.Sprintf("Your request for supervisor access has been %s by %s", status, resolver.FullName()),
		ActionLink:    "/profile",
		AdditionalData: &models.AdditionalData{
			RequestStatus: status,
			ProcessedBy:   resolver.ID,
			ProcessedAt:   &now,
		},
	})
	if err != nil {
		logger.Log.WithError(err).WithField("requester_id", requester.ID).Warn("Failed to notify requester")
	}

	logger.Log.WithFields(logrus.Fields{
		"requester_id": requester.ID,
		"resolver_id":  resolver.ID,
		"status":       status,
	}).Info("Supervisor access request resolved")
	return nil
}

// ListForUser returns the caller's notifications and their unread count.
func (s *NotificationService) ListForUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*models.Notification, int, error) {
	list, err := s.repo.ListNotifications(ctx, userID, unreadOnly, limit)
	if err != nil {
		return nil, 0, storeErr(err, "notifications")
	}
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, 0, storeErr(err, "notifications")
	}
	return list, unread, nil
}

// MarkAsRead is idempotent; only the recipient may call it.
func (s *NotificationService) MarkAsRead(ctx context.Context, id, userID string) error {
	n, err := s.repo.GetNotificationByID(ctx, id)
	if err != nil {
		return storeErr(err, "notification")
	}
	if n.RecipientID != userID {
		return apperr.Forbidden("notification belongs to another user")
	}
	if n.Read {
		return nil
	}
	return storeErr(s.repo.MarkAsRead(ctx, id), "notification")
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID string) (int, error) {
	n, err := s.repo.MarkAllAsRead(ctx, userID)
	if err != nil {
		return 0, storeErr(err, "notifications")
	}
	return n, nil
}
