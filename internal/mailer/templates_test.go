package mailer

import (
	"testing"
	"time"

	"github.com/Dias221467/ZielManager/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUrgencyFor(t *testing.T) {
	tests := []struct {
		days  int
		level string
	}{
		{0, "urgent"},
		{7, "urgent"},
		{8, "important"},
		{14, "important"},
		{15, "info"},
		{200, "info"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.level, UrgencyFor(tt.days).Level, "days=%d", tt.days)
	}
}

func TestActionURL(t *testing.T) {
	r := NewRenderer("https://ziel.dev/")

	assert.Equal(t, "https://ziel.dev/goals/g1", r.ActionURL(&models.Notification{GoalID: "g1", Type: models.NotificationApproval}))
	assert.Equal(t, "https://ziel.dev/goals/create", r.ActionURL(&models.Notification{Type: models.NotificationGoalReminder}))
	assert.Equal(t, "https://ziel.dev/profile", r.ActionURL(&models.Notification{Type: models.NotificationSupervisorRequestResult}))
	assert.Equal(t, "https://ziel.dev", r.ActionURL(&models.Notification{Type: models.NotificationSupervisorRequest}))
}

func TestNotificationEmail(t *testing.T) {
	r := NewRenderer("https://ziel.dev")

	subject, body, err := r.Notification(&models.Notification{
		Type:       models.NotificationComment,
		Message:    "Sam Reviewer commented on a goal",
		GoalID:     "g1",
		GoalTitle:  "Learn <Go>",
		SenderID:   "s1",
		SenderName: "Sam Reviewer",
	})
	require.NoError(t, err)
	assert.Equal(t, "ZielManager: Sam Reviewer commented on a goal", subject)
	assert.Contains(t, body, "https://ziel.dev/goals/g1")
	assert.Contains(t, body, "Learn &lt;Go&gt;")
	assert.Contains(t, body, "<strong>From:</strong> Sam Reviewer")
}

func TestNotificationEmailHidesSystemSender(t *testing.T) {
	r := NewRenderer("https://ziel.dev")

	_, body, err := r.Notification(&models.Notification{
		Type:       models.NotificationGoalReminder,
		Message:    "Welcome back",
		SenderID:   models.SystemSenderID,
		SenderName: models.SystemSenderName,
	})
	require.NoError(t, err)
	assert.NotContains(t, body, "From:")
}

func TestReviewDigest(t *testing.T) {
	r := NewRenderer("https://ziel.dev")
	submitted := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	subject, body, err := r.ReviewDigest(Digest{
		RecipientName: "Sam",
		Goals: []models.PendingGoal{
			{ID: "g1", Title: "Goal one", ApprenticeName: "Anna A", SubmittedAt: submitted},
			{ID: "g2", Title: "Goal two", ApprenticeName: "Ben B", SubmittedAt: submitted},
		},
		DaysRemaining: 5,
		Deadline:      time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "[Urgent] ZielManager: 2 goal(s) awaiting your review", subject)
	assert.Contains(t, body, "Goal one")
	assert.Contains(t, body, "Ben B")
	assert.Contains(t, body, "02.03.2026")
	assert.Contains(t, body, "https://ziel.dev/goals/g2")
	assert.Contains(t, body, "5 days left")
}

func TestTestEmail(t *testing.T) {
	subject, body, err := NewRenderer("https://ziel.dev").Test()
	require.NoError(t, err)
	assert.Equal(t, TestSubject, subject)
	assert.Contains(t, body, "your email notification system is working")
}
