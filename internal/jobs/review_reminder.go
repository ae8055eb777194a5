package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/Dias221467/ZielManager/internal/models"
	"github.com/Dias221467/ZielManager/internal/services"
	"github.com/Dias221467/ZielManager/pkg/logger"
	"github.com/sirupsen/logrus"
)

// Job is a unit of scheduled work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type WeeklyReminderRunner interface {
	RunWeeklyReviewReminder(ctx context.Context, now time.Time) (*services.WeeklyReport, error)
}

// ReviewReminder emails supervisors a digest of the goals awaiting review.
type ReviewReminder struct {
	Dispatch WeeklyReminderRunner
	now      func() time.Time
}

// NewReviewReminder creates a new instance of ReviewReminder
func NewReviewReminder(dispatch WeeklyReminderRunner) *ReviewReminder {
	return &ReviewReminder{Dispatch: dispatch, now: time.Now}
}

func (j *ReviewReminder) Name() string { return models.ReminderWeeklyGoalReview }

// Run fails when any digest could not be delivered so the run is counted
// as a failure; delivered digests are not resent.
func (j *ReviewReminder) Run(ctx context.Context) error {
	report, err := j.Dispatch.RunWeeklyReviewReminder(ctx, j.now())
	if err != nil {
		return fmt.Errorf("weekly review reminder: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"pending_goals":  report.PendingGoals,
		"supervisors":    report.Supervisors,
		"sent":           report.Sent,
		"days_remaining": report.DaysRemaining,
	}).Info("Review reminder scan completed")

	if report.Failed > 0 {
		return fmt.Errorf("weekly review reminder: %d of %d digests failed", report.Failed, report.Failed+report.Sent)
	}
	return nil
}
