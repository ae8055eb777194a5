package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/Dias221467/ZielManager/internal/config"
	"github.com/Dias221467/ZielManager/internal/events"
	"github.com/Dias221467/ZielManager/internal/mailer"
	"github.com/Dias221467/ZielManager/internal/models"
	"github.com/Dias221467/ZielManager/internal/repository"
	"github.com/Dias221467/ZielManager/pkg/apperr"
	"github.com/Dias221467/ZielManager/pkg/email"
	"github.com/Dias221467/ZielManager/pkg/logger"
	"github.com/Dias221467/ZielManager/pkg/metrics"
	"github.com/Dias221467/ZielManager/pkg/validate"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	ErrRecipientMissing = errors.New("user not found")
	ErrEmailsDisabled   = errors.New("email notifications disabled")
)

// ReviewReminderRequest is the input of an on-demand review digest.
type ReviewReminderRequest struct {
	RecipientEmail string               `json:"recipientEmail" validate:"required,email"`
	RecipientName  string               `json:"recipientName" validate:"required,nocontrol"`
	Goals          []models.PendingGoal `json:"goals" validate:"required,min=1,dive"`
	SupervisorID   string               `json:"supervisorId,omitempty"`
}

// WeeklyReport summarises one weekly reminder run.
type WeeklyReport struct {
	PendingGoals  int `json:"pendingGoals"`
	Supervisors   int `json:"supervisors"`
	Sent          int `json:"sent"`
	OptedOut      int `json:"optedOut"`
	Failed        int `json:"failed"`
	DaysRemaining int `json:"daysRemaining"`
}

// DispatchService turns notifications and review reminders into emails.
type DispatchService struct {
	notifications NotificationStore
	users         UserStore
	goals         GoalStore
	reminders     ReminderLogStore
	mail          Mailer
	renderer      *mailer.Renderer
	deadline      config.Deadline
	metrics       *metrics.EmailMetrics
	now           func() time.Time
}

func NewDispatchService(
	notifications NotificationStore,
	users UserStore,
	goals GoalStore,
	reminders ReminderLogStore,
	mail Mailer,
	renderer *mailer.Renderer,
	deadline config.Deadline,
	m *metrics.EmailMetrics,
) *DispatchService {
	return &DispatchService{
		notifications: notifications,
		users:         users,
		goals:         goals,
		reminders:     reminders,
		mail:          mail,
		renderer:      renderer,
		deadline:      deadline,
		metrics:       m,
		now:           time.Now,
	}
}

// HandleNotificationCreated is the event bus subscriber. Opted-out and
// missing recipients are skipped without error.
func (s *DispatchService) HandleNotificationCreated(ctx context.Context, ev events.NotificationCreated) error {
	_, err := s.ProcessNotification(ctx, ev.NotificationID)
	if errors.Is(err, ErrEmailsDisabled) || errors.Is(err, ErrRecipientMissing) {
		return nil
	}
	return err
}

// ProcessNotificationAs resends notification id on behalf of actorID, who
// must be its recipient or a supervisor.
func (s *DispatchService) ProcessNotificationAs(ctx context.Context, actorID, id string) (string, error) {
	n, err := s.notifications.GetNotificationByID(ctx, id)
	if err != nil {
		return "", storeErr(err, "notification")
	}
	if n.RecipientID != actorID {
		actor, err := s.users.GetUserByID(ctx, actorID)
		if err != nil {
			return "", storeErr(err, "user")
		}
		if !actor.IsSupervisor() {
			return "", apperr.Forbidden("only the recipient or a supervisor can process this notification")
		}
	}
	return s.ProcessNotification(ctx, id)
}

// ProcessNotification emails one stored notification to its recipient and
// records the outcome on the notification. Delivery is attempted once.
func (s *DispatchService) ProcessNotification(ctx context.Context, id string) (string, error) {
	n, err := s.notifications.GetNotificationByID(ctx, id)
	if err != nil {
		return "", storeErr(err, "notification")
	}
	log := logger.Log.WithFields(logrus.Fields{
		"notification_id": id,
		"recipient_id":    n.RecipientID,
		"type":            n.Type,
	})

	recipient, err := s.users.GetUserByID(ctx, n.RecipientID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Error("Notification recipient not found")
		return "", apperr.Wrap(apperr.CodeValidation, ErrRecipientMissing, "recipient missing")
	}
	if err != nil {
		return "", storeErr(err, "user")
	}
	if !recipient.WantsEmail() {
		log.Info("Recipient has disabled email notifications")
		s.metrics.Skipped(n.Type)
		return "", apperr.Wrap(apperr.CodeValidation, ErrEmailsDisabled, "email skipped")
	}

	subject, body, err := s.renderer.Notification(n)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeInternal, err, "failed to render email")
	}

	messageID, sendErr := s.mail.Send(ctx, email.Message{To: recipient.Email, Subject: subject, HTML: body})
	status := models.EmailStatus{Sent: sendErr == nil, SentAt: s.now()}
	if sendErr != nil {
		msg := sendErr.Error()
		status.Error = &msg
		s.metrics.Failed(n.Type)
		log.WithError(sendErr).Error("Notification email failed")
	} else {
		s.metrics.Sent(n.Type)
		log.WithField("message_id", messageID).Info("Notification email sent")
	}

	if err := s.notifications.UpdateEmailStatus(ctx, id, status); err != nil {
		log.WithError(err).Error("Failed to record email status")
	}

	if sendErr != nil {
		return "", apperr.Wrap(apperr.CodeDependency, sendErr, "failed to send email")
	}
	return messageID, nil
}

// SendTestEmail checks the mail setup. Apprentices may only send to their
// own address.
func (s *DispatchService) SendTestEmail(ctx context.Context, actorID, to string) (string, error) {
	if to == "" {
		return "", apperr.Validation("Email is required")
	}
	actor, err := s.users.GetUserByID(ctx, actorID)
	if err != nil {
		return "", storeErr(err, "user")
	}
	if !actor.IsSupervisor() && !strings.EqualFold(strings.TrimSpace(to), actor.Email) {
		return "", apperr.Forbidden("test emails can only be sent to your own address")
	}
	subject, body, err := s.renderer.Test()
	if err != nil {
		return "", apperr.Wrap(apperr.CodeInternal, err, "failed to render email")
	}
	messageID, err := s.mail.Send(ctx, email.Message{To: to, Subject: subject, HTML: body})
	if err != nil {
		s.metrics.Failed("test")
		return "", apperr.Wrap(apperr.CodeDependency, err, err.Error())
	}
	s.metrics.Sent("test")
	return messageID, nil
}

// SendGoalReviewReminder sends a review digest on demand. The reminder is
// logged before the email goes out.
func (s *DispatchService) SendGoalReviewReminder(ctx context.Context, actorID string, req ReviewReminderRequest) (string, error) {
	if err := validate.Struct(req); err != nil {
		return "", err
	}
	now := s.now()
	days := s.DaysUntilDeadline(now)

	return s.sendDigest(ctx, &models.ReminderLog{
		Type:           models.ReminderGoalReview,
		RecipientID:    req.SupervisorID,
		RecipientEmail: req.RecipientEmail,
		GoalCount:      len(req.Goals),
		DaysRemaining:  days,
		SentBy:         actorID,
		Timestamp:      now,
	}, mailer.Digest{
		RecipientName: req.RecipientName,
		Goals:         req.Goals,
		DaysRemaining: days,
		Deadline:      s.deadline.Next(now),
	})
}

// RunWeeklyReviewReminder emails every supervisor who accepts email a
// digest of all goals waiting for review. Supervisors are handled
// independently; one failed email does not stop the others.
func (s *DispatchService) RunWeeklyReviewReminder(ctx context.Context, now time.Time) (*WeeklyReport, error) {
	submitted, approved := true, false
	pending, err := s.goals.ListGoals(ctx, repository.GoalFilter{Submitted: &submitted, Approved: &approved})
	if err != nil {
		return nil, storeErr(err, "goals")
	}
	report := &WeeklyReport{PendingGoals: len(pending), DaysRemaining: s.DaysUntilDeadline(now)}
	if len(pending) == 0 {
		logger.Log.Info("No goals awaiting review, weekly reminder skipped")
		return report, nil
	}

	supervisors, err := s.users.ListUsersByRole(ctx, models.RoleSupervisor)
	if err != nil {
		return nil, storeErr(err, "supervisors")
	}
	report.Supervisors = len(supervisors)

	goals := make([]models.PendingGoal, 0, len(pending))
	for _, g := range pending {
		goals = append(goals, models.PendingGoalOf(g))
	}
	deadline := s.deadline.Next(now)

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(fanOutLimit)
	for _, sup := range supervisors {
		sup := sup
		if !sup.WantsEmail() {
			report.OptedOut++
			continue
		}
		g.Go(func() error {
			_, err := s.sendDigest(ctx, &models.ReminderLog{
				Type:           models.ReminderWeeklyGoalReview,
				RecipientID:    sup.ID,
				RecipientEmail: sup.Email,
				GoalCount:      len(goals),
				DaysRemaining:  report.DaysRemaining,
				SentBy:         models.SystemSenderID,
				Timestamp:      now,
			}, mailer.Digest{
				RecipientName: sup.FirstName,
				Goals:         goals,
				DaysRemaining: report.DaysRemaining,
				Deadline:      deadline,
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				logger.Log.WithError(err).WithField("supervisor_id", sup.ID).Error("Weekly reminder failed")
				return nil
			}
			report.Sent++
			return nil
		})
	}
	_ = g.Wait()

	logger.Log.WithFields(logrus.Fields{
		"pending_goals": report.PendingGoals,
		"sent":          report.Sent,
		"opted_out":     report.OptedOut,
		"failed":        report.Failed,
	}).Info("Weekly review reminder finished")
	return report, nil
}

// DaysUntilDeadline counts whole days, rounded up, from now to the next
// review deadline.
func (s *DispatchService) DaysUntilDeadline(now time.Time) int {
	return int(math.Ceil(s.deadline.Next(now).Sub(now).Hours() / 24))
}

func (s *DispatchService) sendDigest(ctx context.Context, entry *models.ReminderLog, d mailer.Digest) (string, error) {
	if err := s.reminders.CreateReminderLog(ctx, entry); err != nil {
		return "", storeErr(err, "reminder log")
	}

	subject, body, err := s.renderer.ReviewDigest(d)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeInternal, err, "failed to render email")
	}
	messageID, err := s.mail.Send(ctx, email.Message{To: entry.RecipientEmail, Subject: subject, HTML: body})
	if err != nil {
		s.metrics.Failed(entry.Type)
		return "", apperr.Wrap(apperr.CodeDependency, err, "failed to send review reminder")
	}
	s.metrics.Sent(entry.Type)
	return messageID, nil
}
