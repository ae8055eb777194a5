package services

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/Dias221467/ZielManager/internal/models"
	"github.com/Dias221467/ZielManager/internal/repository"
	"github.com/Dias221467/ZielManager/pkg/apperr"
	"github.com/Dias221467/ZielManager/pkg/email"
)

// The interfaces below are what the services need from persistence and
// delivery. Mongo, S3 and SMTP implement them in production.

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByVerificationToken(ctx context.Context, token string) (*models.User, error)
	GetUserByResetToken(ctx context.Context, token string) (*models.User, error)
	ListUsersByRole(ctx context.Context, role string) ([]*models.User, error)
	UpdateProfile(ctx context.Context, id, firstName, lastName string) error
	SetEmailNotifications(ctx context.Context, id string, enabled bool) error
	MarkVerified(ctx context.Context, id string) error
	SetResetToken(ctx context.Context, id, token string, expires time.Time) error
	UpdatePassword(ctx context.Context, id, hashedPassword string) error
	MarkSupervisorRequestPending(ctx context.Context, id string, at time.Time) error
	ResolveSupervisorRequest(ctx context.Context, id string, approve bool, by string, at time.Time) error
	PromoteToSupervisor(ctx context.Context, id string, at time.Time) error
}

type GoalStore interface {
	CreateGoal(ctx context.Context, goal *models.Goal) (*models.Goal, error)
	GetGoalByID(ctx context.Context, id string) (*models.Goal, error)
	UpdateGoalDetails(ctx context.Context, id string, in models.GoalInput) error
	DeleteGoal(ctx context.Context, id string) error
	MarkSubmitted(ctx context.Context, id string, at time.Time) error
	MarkApproved(ctx context.Context, id string, rating float64, by string, at time.Time, comment *models.Comment) error
	AddComment(ctx context.Context, id string, comment models.Comment) error
	ListGoals(ctx context.Context, f repository.GoalFilter) ([]*models.Goal, error)
	CountGoals(ctx context.Context, f repository.GoalFilter) (int, error)
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, n *models.Notification) (string, error)
	GetNotificationByID(ctx context.Context, id string) (*models.Notification, error)
	ListNotifications(ctx context.Context, recipientID string, unreadOnly bool, limit int) ([]*models.Notification, error)
	CountUnread(ctx context.Context, recipientID string) (int, error)
	MarkAsRead(ctx context.Context, id string) error
	MarkAllAsRead(ctx context.Context, recipientID string) (int, error)
	UpdateEmailStatus(ctx context.Context, id string, status models.EmailStatus) error
	ResolveRequestNotifications(ctx context.Context, requesterID, status, by string, at time.Time) (int, error)
}

type SettingsStore interface {
	GetLeaderboardSettings(ctx context.Context) (*models.LeaderboardSettings, error)
	SetLeaderboardReset(ctx context.Context, at time.Time, by string) error
	SetCountdown(ctx context.Context, c models.Countdown) error
}

type ReminderLogStore interface {
	CreateReminderLog(ctx context.Context, entry *models.ReminderLog) error
	ListReminderLogs(ctx context.Context, logType string, limit int) ([]models.ReminderLog, error)
}

type BlobStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	List(ctx context.Context, prefix string) ([]models.EvidenceFile, error)
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// Mailer sends one email and returns its Message-ID.
type Mailer interface {
	Send(ctx context.Context, msg email.Message) (string, error)
}

// storeErr turns repository sentinels into coded errors. what names the
// entity in the caller-facing message.
func storeErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("%s not found", what)
	case errors.Is(err, repository.ErrStateChanged):
		return apperr.Conflict("%s was modified concurrently", what)
	case apperr.As(err) != nil:
		return err
	default:
		return apperr.Wrap(apperr.CodeInternal, err, "failed to access "+what)
	}
}
