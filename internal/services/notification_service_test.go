package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Dias221467/ZielManager/internal/events"
	"github.com/Dias221467/ZielManager/internal/models"
	"github.com/Dias221467/ZielManager/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyStoresUnreadAndPublishes(t *testing.T) {
	f := newFixture(apprentice("a1", "Anna"))
	ctx := context.Background()

	var mu sync.Mutex
	var published []events.NotificationCreated
	require.NoError(t, f.bus.Subscribe(ctx, func(_ context.Context, ev events.NotificationCreated) error {
		mu.Lock()
		defer mu.Unlock()
		published = append(published, ev)
		return nil
	}))

	id, err := f.notificationSvc.Notify(ctx, NotifyParams{
		RecipientID:   "a1",
		RecipientRole: models.RoleApprentice,
		Sender:        models.SystemSender,
		Type:          models.NotificationGoalReminder,
		Message:       "hello",
	})
	require.NoError(t, err)
	f.bus.Wait()

	stored, err := f.notifications.GetNotificationByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, stored.Read)
	assert.Equal(t, models.SystemSenderID, stored.SenderID)
	assert.False(t, stored.CreatedAt.IsZero())

	require.Len(t, published, 1)
	assert.Equal(t, id, published[0].NotificationID)
	assert.Equal(t, "a1", published[0].RecipientID)
}

func TestNotifyAllSupervisorsIsBestEffort(t *testing.T) {
	f := newFixture(supervisor("s1", "Sam"), supervisor("s2", "Sue"), supervisor("s3", "Sid"), apprentice("a1", "Anna"))
	f.notifications.failFor = "s2"

	sent, err := f.notificationSvc.NotifyAllSupervisors(context.Background(), NotifyParams{
		Sender:  models.SenderFromUser(f.users.get("a1")),
		Type:    models.NotificationSubmission,
		Message: "Anna Lehrling submitted a goal for review",
	})

	assert.Error(t, err)
	assert.Equal(t, 2, sent)
	var recipients []string
	for _, n := range f.notifications.all() {
		recipients = append(recipients, n.RecipientID)
		assert.Equal(t, models.RoleSupervisor, n.RecipientRole)
	}
	assert.ElementsMatch(t, []string{"s1", "s3"}, recipients)
}

func TestNotifyAllSupervisorsWithoutSupervisors(t *testing.T) {
	f := newFixture(apprentice("a1", "Anna"))

	sent, err := f.notificationSvc.NotifyAllSupervisors(context.Background(), NotifyParams{Type: models.NotificationSubmission})
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestNotifyCommentRouting(t *testing.T) {
	goal := &models.Goal{ID: "g1", Title: "Learn Go", ApprenticeID: "a1"}

	t.Run("supervisor comment goes to owner", func(t *testing.T) {
		f := newFixture(apprentice("a1", "Anna"), supervisor("s1", "Sam"), supervisor("s2", "Sue"))
		n, err := f.notificationSvc.NotifyComment(context.Background(), goal, f.users.get("s1"))
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		all := f.notifications.all()
		require.Len(t, all, 1)
		assert.Equal(t, "a1", all[0].RecipientID)
		assert.Equal(t, "Sam Ausbilder commented on a goal", all[0].Message)
		assert.Equal(t, "g1", all[0].GoalID)
	})

	t.Run("apprentice comment goes to approver", func(t *testing.T) {
		f := newFixture(apprentice("a1", "Anna"), supervisor("s1", "Sam"), supervisor("s2", "Sue"))
		approved := *goal
		approved.ApprovedBy = "s2"
		n, err := f.notificationSvc.NotifyComment(context.Background(), &approved, f.users.get("a1"))
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		all := f.notifications.all()
		require.Len(t, all, 1)
		assert.Equal(t, "s2", all[0].RecipientID)
	})

	t.Run("apprentice comment without approver goes to all supervisors", func(t *testing.T) {
		f := newFixture(apprentice("a1", "Anna"), supervisor("s1", "Sam"), supervisor("s2", "Sue"))
		n, err := f.notificationSvc.NotifyComment(context.Background(), goal, f.users.get("a1"))
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Len(t, f.notifications.ofType(models.NotificationComment), 2)
	})
}

func TestGoalReminderMessages(t *testing.T) {
	f := newFixture(apprentice("a1", "Anna"))
	ctx := context.Background()

	_, err := f.notificationSvc.NotifyGoalReminder(ctx, f.users.get("a1"), 1)
	require.NoError(t, err)
	_, err = f.notificationSvc.NotifyGoalReminder(ctx, f.users.get("a1"), 3)
	require.NoError(t, err)

	all := f.notifications.all()
	require.Len(t, all, 2)
	assert.Equal(t, "You're almost there, Anna! Just 1 more goal to reach the recommended minimum.", all[0].Message)
	assert.Equal(t, "Welcome back, Anna! Don't forget to create 3 more goals to reach the recommended minimum.", all[1].Message)
	assert.Equal(t, "/goals/create", all[0].ActionLink)
	assert.Equal(t, models.SystemSenderName, all[0].SenderName)
}

func TestSupervisorRequestApproval(t *testing.T) {
	f := newFixture(apprentice("a1", "Anna"), supervisor("s1", "Sam"), supervisor("s2", "Sue"))
	ctx := context.Background()

	require.NoError(t, f.notificationSvc.RequestSupervisorAccess(ctx, "a1"))
	assert.Equal(t, models.RequestStatusPending, f.users.get("a1").SupervisorRequestStatus)

	requests := f.notifications.ofType(models.NotificationSupervisorRequest)
	require.Len(t, requests, 2)
	assert.Equal(t, "Anna Lehrling (a1@ziel.test) has requested supervisor access", requests[0].Message)
	require.NotNil(t, requests[0].AdditionalData)
	assert.Equal(t, "a1", requests[0].AdditionalData.RequesterID)

	err := f.notificationSvc.RequestSupervisorAccess(ctx, "a1")
	assert.True(t, apperr.Is(err, apperr.CodeConflict), "second request while pending")

	require.NoError(t, f.notificationSvc.ResolveSupervisorRequest(ctx, requests[0].ID, "a1", RequestActionApprove, "s1"))

	user := f.users.get("a1")
	assert.Equal(t, models.RoleSupervisor, user.Role)
	assert.Equal(t, models.RequestStatusApproved, user.SupervisorRequestStatus)

	for _, n := range f.notifications.ofType(models.NotificationSupervisorRequest) {
		assert.True(t, n.Read)
		assert.Equal(t, models.RequestStatusApproved, n.AdditionalData.RequestStatus)
		assert.Equal(t, "s1", n.AdditionalData.ProcessedBy)
	}

	results := f.notifications.ofType(models.NotificationSupervisorRequestResult)
	require.Len(t, results, 1)
	assert.Equal(t, "a1", results[0].RecipientID)
	assert.Equal(t, "Your request for supervisor access has been approved by Sam Ausbilder", results[0].Message)

	// A second supervisor resolving the same request must not promote again.
	err = f.notificationSvc.ResolveSupervisorRequest(ctx, requests[1].ID, "a1", RequestActionDeny, "s2")
	assert.True(t, apperr.Is(err, apperr.CodeConflict))
	assert.Equal(t, models.RequestStatusApproved, f.users.get("a1").SupervisorRequestStatus)
	assert.Len(t, f.notifications.ofType(models.NotificationSupervisorRequestResult), 1)
}

func TestSupervisorRequestDenialAllowsNewRequest(t *testing.T) {
	f := newFixture(apprentice("a1", "Anna"), supervisor("s1", "Sam"))
	ctx := context.Background()

	require.NoError(t, f.notificationSvc.RequestSupervisorAccess(ctx, "a1"))
	require.NoError(t, f.notificationSvc.ResolveSupervisorRequest(ctx, "", "a1", RequestActionDeny, "s1"))

	user := f.users.get("a1")
	assert.Equal(t, models.RoleApprentice, user.Role)
	assert.Equal(t, models.RequestStatusDenied, user.SupervisorRequestStatus)
	results := f.notifications.ofType(models.NotificationSupervisorRequestResult)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Message, "denied by Sam Ausbilder")

	require.NoError(t, f.notificationSvc.RequestSupervisorAccess(ctx, "a1"))
	assert.Equal(t, models.RequestStatusPending, f.users.get("a1").SupervisorRequestStatus)
}

func TestResolveSupervisorRequestGuards(t *testing.T) {
	f := newFixture(apprentice("a1", "Anna"), apprentice("a2", "Ben"), supervisor("s1", "Sam"))
	ctx := context.Background()
	require.NoError(t, f.notificationSvc.RequestSupervisorAccess(ctx, "a1"))

	err := f.notificationSvc.ResolveSupervisorRequest(ctx, "", "a1", "maybe", "s1")
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	err = f.notificationSvc.ResolveSupervisorRequest(ctx, "", "a1", RequestActionApprove, "a2")
	assert.True(t, apperr.Is(err, apperr.CodeForbidden))

	err = f.notificationSvc.ResolveSupervisorRequest(ctx, "", "a2", RequestActionApprove, "s1")
	assert.True(t, apperr.Is(err, apperr.CodeConflict), "no pending request")

	err = f.notificationSvc.ResolveSupervisorRequest(ctx, "missing", "a1", RequestActionApprove, "s1")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	assert.Equal(t, models.RoleApprentice, f.users.get("a1").Role)
}

func TestSupervisorsCannotRequestAccess(t *testing.T) {
	f := newFixture(supervisor("s1", "Sam"))
	err := f.notificationSvc.RequestSupervisorAccess(context.Background(), "s1")
	assert.True(t, apperr.Is(err, apperr.CodeConflict))
}

func TestMarkAsReadIsIdempotent(t *testing.T) {
	f := newFixture(apprentice("a1", "Anna"), apprentice("a2", "Ben"))
	ctx := context.Background()

	id, err := f.notificationSvc.Notify(ctx, NotifyParams{RecipientID: "a1", Type: models.NotificationComment, Message: "x"})
	require.NoError(t, err)

	require.NoError(t, f.notificationSvc.MarkAsRead(ctx, id, "a1"))
	require.NoError(t, f.notificationSvc.MarkAsRead(ctx, id, "a1"))
	n, err := f.notifications.GetNotificationByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, n.Read)

	err = f.notificationSvc.MarkAsRead(ctx, id, "a2")
	assert.True(t, apperr.Is(err, apperr.CodeForbidden))

	err = f.notificationSvc.MarkAsRead(ctx, "nope", "a1")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestListAndMarkAllAsRead(t *testing.T) {
	f := newFixture(apprentice("a1", "Anna"))
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := f.notificationSvc.Notify(ctx, NotifyParams{RecipientID: "a1", Type: models.NotificationComment, Message: "x"})
		require.NoError(t, err)
	}

	list, unread, err := f.notificationSvc.ListForUser(ctx, "a1", false, 0)
	require.NoError(t, err)
	assert.Len(t, list, 3)
	assert.Equal(t, 3, unread)

	changed, err := f.notificationSvc.MarkAllAsRead(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 3, changed)

	changed, err = f.notificationSvc.MarkAllAsRead(ctx, "a1")
	require.NoError(t, err)
	assert.Zero(t, changed)

	list, unread, err = f.notificationSvc.ListForUser(ctx, "a1", true, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Zero(t, unread)
}

// capturingNotifications keeps the notifications exactly as the service
// handed them to the store.
type capturingNotifications struct {
	*fakeNotifications
	mu   sync.Mutex
	seen []*models.Notification
}

func (c *capturingNotifications) CreateNotification(ctx context.Context, n *models.Notification) (string, error) {
	c.mu.Lock()
	c.seen = append(c.seen, n)
	c.mu.Unlock()
	return c.fakeNotifications.CreateNotification(ctx, n)
}

func TestNotifyAllSupervisorsGivesEachRecipientItsOwnPayload(t *testing.T) {
	f := newFixture(apprentice("a1", "Anna"), supervisor("s1", "Sam"), supervisor("s2", "Sue"))
	store := &capturingNotifications{fakeNotifications: newFakeNotifications()}
	svc := NewNotificationService(store, f.users, nil)
	ctx := context.Background()

	payload := &models.AdditionalData{RequesterID: "a1", RequestStatus: models.RequestStatusPending}
	sent, err := svc.NotifyAllSupervisors(ctx, NotifyParams{
		Sender:         models.SystemSender,
		Type:           models.NotificationSupervisorRequest,
		Message:        "request",
		AdditionalData: payload,
	})
	require.NoError(t, err)
	require.Equal(t, 2, sent)
	require.Len(t, store.seen, 2)

	first, second := store.seen[0].AdditionalData, store.seen[1].AdditionalData
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.NotSame(t, first, second)
	assert.NotSame(t, payload, first)

	first.RequestStatus = models.RequestStatusApproved
	assert.Equal(t, models.RequestStatusPending, second.RequestStatus)
	assert.Equal(t, models.RequestStatusPending, payload.RequestStatus)

	changed, err := store.ResolveRequestNotifications(ctx, "a1", models.RequestStatusDenied, "s1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, changed)
	for _, n := range store.ofType(models.NotificationSupervisorRequest) {
		assert.True(t, n.Read)
		assert.Equal(t, models.RequestStatusDenied, n.AdditionalData.RequestStatus)
	}
}
