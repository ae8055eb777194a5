package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Dias221467/ZielManager/internal/config"
	"github.com/Dias221467/ZielManager/internal/events"
	"github.com/Dias221467/ZielManager/internal/mailer"
	"github.com/Dias221467/ZielManager/internal/models"
	"github.com/Dias221467/ZielManager/internal/repository"
	"github.com/Dias221467/ZielManager/pkg/email"
)

var deadlineDec31 = config.Deadline{Month: time.December, Day: 31}

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
	order []string
}

func newFakeUsers(users ...*models.User) *fakeUsers {
	f := &fakeUsers{users: map[string]*models.User{}}
	for _, u := range users {
		f.put(u)
	}
	return f
}

func (f *fakeUsers) put(u *models.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[u.ID]; !ok {
		f.order = append(f.order, u.ID)
	}
	cp := *u
	f.users[u.ID] = &cp
}

func (f *fakeUsers) get(id string) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *f.users[id]
	return &cp
}

func (f *fakeUsers) CreateUser(_ context.Context, u *models.User) (*models.User, error) {
	if u.ID == "" {
		u.ID = fmt.Sprintf("user-%d", len(f.order)+1)
	}
	f.put(u)
	return u, nil
}

func (f *fakeUsers) find(match func(*models.User) bool) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.order {
		if u := f.users[id]; match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) GetUserByID(_ context.Context, id string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.ID == id })
}

func (f *fakeUsers) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.Email == email })
}

func (f *fakeUsers) GetUserByVerificationToken(_ context.Context, token string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return token != "" && u.VerifyToken == token })
}

func (f *fakeUsers) GetUserByResetToken(_ context.Context, token string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return token != "" && u.ResetToken == token })
}

func (f *fakeUsers) ListUsersByRole(_ context.Context, role string) ([]*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.User
	for _, id := range f.order {
		if u := f.users[id]; u.Role == role {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeUsers) update(id string, cond func(*models.User) bool, apply func(*models.User)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	if cond != nil && !cond(u) {
		return repository.ErrStateChanged
	}
	apply(u)
	return nil
}

func (f *fakeUsers) UpdateProfile(_ context.Context, id, first, last string) error {
	return f.update(id, nil, func(u *models.User) { u.FirstName, u.LastName = first, last })
}

func (f *fakeUsers) SetEmailNotifications(_ context.Context, id string, enabled bool) error {
	return f.update(id, nil, func(u *models.User) { u.EmailNotifications = &enabled })
}

func (f *fakeUsers) MarkVerified(_ context.Context, id string) error {
	return f.update(id, nil, func(u *models.User) { u.IsVerified, u.VerifyToken = true, "" })
}

func (f *fakeUsers) SetResetToken(_ context.Context, id, token string, exp time.Time) error {
	return f.update(id, nil, func(u *models.User) { u.ResetToken, u.ResetTokenExp = token, exp })
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id, hash string) error {
	return f.update(id, nil, func(u *models.User) { u.HashedPassword, u.ResetToken = hash, "" })
}

func (f *fakeUsers) MarkSupervisorRequestPending(_ context.Context, id string, at time.Time) error {
	return f.update(id,
		func(u *models.User) bool {
			return u.Role == models.RoleApprentice && u.RequestStatus() != models.RequestStatusPending && u.RequestStatus() != models.RequestStatusApproved
		},
		func(u *models.User) {
			u.SupervisorRequestStatus, u.SupervisorRequestDate = models.RequestStatusPending, &at
		})
}

func (f *fakeUsers) ResolveSupervisorRequest(_ context.Context, id string, approve bool, by string, at time.Time) error {
	return f.update(id,
		func(u *models.User) bool { return u.SupervisorRequestStatus == models.RequestStatusPending },
		func(u *models.User) {
			u.RequestProcessedAt, u.RequestProcessedBy = &at, by
			if approve {
				u.SupervisorRequestStatus = models.RequestStatusApproved
				u.Role = models.RoleSupervisor
				u.RoleUpdatedAt, u.RoleUpdatedBy = &at, by
				return
			}
			u.SupervisorRequestStatus = models.RequestStatusDenied
		})
}

func (f *fakeUsers) PromoteToSupervisor(_ context.Context, id string, at time.Time) error {
	return f.update(id,
		func(u *models.User) bool { return u.Role == models.RoleApprentice },
		func(u *models.User) { u.Role, u.RoleUpdatedAt = models.RoleSupervisor, &at })
}

type fakeGoals struct {
	mu    sync.Mutex
	goals map[string]*models.Goal
	order []string
	seq   int
	// failList makes ListGoals fail for this apprentice.
	failList string
}

func newFakeGoals(goals ...*models.Goal) *fakeGoals {
	f := &fakeGoals{goals: map[string]*models.Goal{}}
	for _, g := range goals {
		f.insert(g)
	}
	return f
}

func (f *fakeGoals) insert(g *models.Goal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if g.ID == "" {
		f.seq++
		g.ID = fmt.Sprintf("goal-%d", f.seq)
	}
	cp := *g
	cp.Comments = append([]models.Comment{}, g.Comments...)
	f.goals[g.ID] = &cp
	f.order = append(f.order, g.ID)
}

func (f *fakeGoals) get(id string) *models.Goal {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *f.goals[id]
	return &cp
}

func (f *fakeGoals) CreateGoal(_ context.Context, g *models.Goal) (*models.Goal, error) {
	g.CreatedAt = time.Now()
	f.insert(g)
	return g, nil
}

func (f *fakeGoals) GetGoalByID(_ context.Context, id string) (*models.Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.goals[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *g
	cp.Comments = append([]models.Comment{}, g.Comments...)
	return &cp, nil
}

func (f *fakeGoals) update(id string, cond func(*models.Goal) bool, apply func(*models.Goal)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.goals[id]
	if !ok {
		return repository.ErrNotFound
	}
	if cond != nil && !cond(g) {
		return repository.ErrStateChanged
	}
	apply(g)
	return nil
}

func (f *fakeGoals) UpdateGoalDetails(_ context.Context, id string, in models.GoalInput) error {
	return f.update(id, func(g *models.Goal) bool { return !g.Submitted }, func(g *models.Goal) {
		g.Title, g.Description, g.Category, g.Status = in.Title, in.Description, in.Category, in.Status
		g.StartDate, g.EndDate = in.StartDate, in.EndDate
	})
}

func (f *fakeGoals) DeleteGoal(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.goals[id]
	if !ok {
		return repository.ErrNotFound
	}
	if g.Submitted {
		return repository.ErrStateChanged
	}
	delete(f.goals, id)
	return nil
}

func (f *fakeGoals) MarkSubmitted(_ context.Context, id string, at time.Time) error {
	return f.update(id, func(g *models.Goal) bool { return !g.Submitted }, func(g *models.Goal) {
		g.Submitted, g.SubmittedAt = true, &at
	})
}

func (f *fakeGoals) MarkApproved(_ context.Context, id string, rating float64, by string, at time.Time, c *models.Comment) error {
	return f.update(id, func(g *models.Goal) bool { return g.Submitted && !g.Approved }, func(g *models.Goal) {
		g.Approved, g.ApprovedAt, g.ApprovedBy, g.Rating = true, &at, by, rating
		if c != nil {
			g.Comments = append(g.Comments, *c)
		}
	})
}

func (f *fakeGoals) AddComment(_ context.Context, id string, c models.Comment) error {
	return f.update(id, nil, func(g *models.Goal) { g.Comments = append(g.Comments, c) })
}

func (f *fakeGoals) ListGoals(_ context.Context, flt repository.GoalFilter) ([]*models.Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failList != "" && flt.ApprenticeID == f.failList {
		return nil, errors.New("mongo unavailable")
	}
	out := []*models.Goal{}
	for _, id := range f.order {
		g, ok := f.goals[id]
		if !ok {
			continue
		}
		if flt.ApprenticeID != "" && g.ApprenticeID != flt.ApprenticeID {
			continue
		}
		if flt.Submitted != nil && g.Submitted != *flt.Submitted {
			continue
		}
		if flt.Approved != nil && g.Approved != *flt.Approved {
			continue
		}
		if flt.ApprovedSince != nil && (g.ApprovedAt == nil || g.ApprovedAt.Before(*flt.ApprovedSince)) {
			continue
		}
		cp := *g
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeGoals) CountGoals(ctx context.Context, flt repository.GoalFilter) (int, error) {
	goals, err := f.ListGoals(ctx, flt)
	return len(goals), err
}

type fakeNotifications struct {
	mu    sync.Mutex
	items map[string]*models.Notification
	order []string
	// failFor makes CreateNotification fail for this recipient.
	failFor string
}

func newFakeNotifications() *fakeNotifications {
	return &fakeNotifications{items: map[string]*models.Notification{}}
}

func (f *fakeNotifications) CreateNotification(_ context.Context, n *models.Notification) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor != "" && n.RecipientID == f.failFor {
		return "", errors.New("write failed")
	}
	n.ID = fmt.Sprintf("notif-%d", len(f.order)+1)
	f.items[n.ID] = n.Clone()
	f.order = append(f.order, n.ID)
	return n.ID, nil
}

func (f *fakeNotifications) GetNotificationByID(_ context.Context, id string) (*models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return n.Clone(), nil
}

// all returns every notification in creation order.
func (f *fakeNotifications) all() []*models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Notification, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.items[id].Clone())
	}
	return out
}

func (f *fakeNotifications) ofType(t string) []*models.Notification {
	var out []*models.Notification
	for _, n := range f.all() {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

func (f *fakeNotifications) ListNotifications(_ context.Context, recipientID string, unreadOnly bool, limit int) ([]*models.Notification, error) {
	out := []*models.Notification{}
	for _, n := range f.all() {
		if n.RecipientID == recipientID && (!unreadOnly || !n.Read) {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeNotifications) CountUnread(ctx context.Context, recipientID string) (int, error) {
	list, err := f.ListNotifications(ctx, recipientID, true, 0)
	return len(list), err
}

func (f *fakeNotifications) MarkAsRead(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	n.Read = true
	return nil
}

func (f *fakeNotifications) MarkAllAsRead(_ context.Context, recipientID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	changed := 0
	for _, n := range f.items {
		if n.RecipientID == recipientID && !n.Read {
			n.Read = true
			changed++
		}
	}
	return changed, nil
}

func (f *fakeNotifications) UpdateEmailStatus(_ context.Context, id string, st models.EmailStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	sent := st.Sent
	n.EmailSent = &sent
	if st.Sent {
		at := st.SentAt
		n.EmailSentAt, n.EmailError = &at, nil
	} else {
		n.EmailError = st.Error
	}
	return nil
}

func (f *fakeNotifications) ResolveRequestNotifications(_ context.Context, requesterID, status, by string, at time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	changed := 0
	for _, n := range f.items {
		d := n.AdditionalData
		if n.Type != models.NotificationSupervisorRequest || d == nil || d.RequesterID != requesterID || d.RequestStatus != models.RequestStatusPending {
			continue
		}
		n.Read = true
		d.RequestStatus, d.ProcessedBy, d.ProcessedAt = status, by, &at
		changed++
	}
	return changed, nil
}

type fakeSettings struct {
	mu       sync.Mutex
	settings models.LeaderboardSettings
}

func (f *fakeSettings) GetLeaderboardSettings(context.Context) (*models.LeaderboardSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := f.settings
	return &cp, nil
}

func (f *fakeSettings) SetLeaderboardReset(_ context.Context, at time.Time, by string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings.LeaderboardResetTimestamp, f.settings.UpdatedBy = &at, by
	return nil
}

func (f *fakeSettings) SetCountdown(_ context.Context, c models.Countdown) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings.Countdown = &c
	return nil
}

type fakeReminderLogs struct {
	mu      sync.Mutex
	entries []models.ReminderLog
}

func (f *fakeReminderLogs) CreateReminderLog(_ context.Context, e *models.ReminderLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, *e)
	return nil
}

func (f *fakeReminderLogs) ListReminderLogs(_ context.Context, logType string, limit int) ([]models.ReminderLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ReminderLog
	for _, e := range f.entries {
		if logType == "" || e.Type == logType {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []email.Message
	// failTo makes Send fail for this address.
	failTo string
}

func (f *fakeMailer) Send(_ context.Context, msg email.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTo != "" && msg.To == f.failTo {
		return "", errors.New("550 mailbox unavailable")
	}
	f.sent = append(f.sent, msg)
	return fmt.Sprintf("<msg-%d@test>", len(f.sent)), nil
}

func (f *fakeMailer) messages() []email.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]email.Message{}, f.sent...)
}

type fakeBlobs struct {
	mu    sync.Mutex
	files map[string]int64
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{files: map[string]int64{}}
}

func (f *fakeBlobs) Put(_ context.Context, key string, body io.Reader, size int64, _ string) error {
	if _, err := io.Copy(io.Discard, body); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[key] = size
	return nil
}

func (f *fakeBlobs) List(_ context.Context, prefix string) ([]models.EvidenceFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.EvidenceFile{}
	for key, size := range f.files {
		if strings.HasPrefix(key, prefix) {
			out = append(out, models.EvidenceFile{Name: key[strings.LastIndex(key, "/")+1:], Path: key, Size: size})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (f *fakeBlobs) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, key)
	return nil
}

func (f *fakeBlobs) DeletePrefix(_ context.Context, prefix string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key := range f.files {
		if strings.HasPrefix(key, prefix) {
			delete(f.files, key)
		}
	}
	return nil
}

// fixture wires every service over the fakes with a synchronous event bus.
type fixture struct {
	users         *fakeUsers
	goals         *fakeGoals
	notifications *fakeNotifications
	settings      *fakeSettings
	reminders     *fakeReminderLogs
	mail          *fakeMailer
	blobs         *fakeBlobs
	bus           *events.LocalBus

	notificationSvc *NotificationService
	goalSvc         *GoalService
	userSvc         *UserService
	leaderboardSvc  *LeaderboardService
	evidenceSvc     *EvidenceService
	dispatchSvc     *DispatchService
}

func newFixture(users ...*models.User) *fixture {
	f := &fixture{
		users:         newFakeUsers(users...),
		goals:         newFakeGoals(),
		notifications: newFakeNotifications(),
		settings:      &fakeSettings{},
		reminders:     &fakeReminderLogs{},
		mail:          &fakeMailer{},
		blobs:         newFakeBlobs(),
		bus:           events.NewLocalBus(),
	}
	renderer := mailer.NewRenderer("https://ziel.test")
	f.notificationSvc = NewNotificationService(f.notifications, f.users, f.bus)
	f.goalSvc = NewGoalService(f.goals, f.users, f.notificationSvc, f.blobs)
	f.userSvc = NewUserService(f.users, f.goalSvc, f.mail, renderer, TokenConfig{Secret: "test-secret", Expiry: time.Hour})
	f.leaderboardSvc = NewLeaderboardService(f.users, f.goals, f.settings)
	f.evidenceSvc = NewEvidenceService(f.blobs, f.goals, f.users)
	f.dispatchSvc = NewDispatchService(f.notifications, f.users, f.goals, f.reminders, f.mail, renderer,
		deadlineDec31, nil)
	return f
}

// withDispatch subscribes the dispatcher so notifications turn into emails.
func (f *fixture) withDispatch() *fixture {
	_ = f.bus.Consume(context.Background(), "email-dispatch", f.dispatchSvc.HandleNotificationCreated)
	return f
}

func apprentice(id, first string) *models.User {
	return &models.User{ID: id, FirstName: first, LastName: "Lehrling", Email: id + "@ziel.test", Role: models.RoleApprentice, IsVerified: true}
}

func supervisor(id, first string) *models.User {
	return &models.User{ID: id, FirstName: first, LastName: "Ausbilder", Email: id + "@ziel.test", Role: models.RoleSupervisor, IsVerified: true}
}

func optedOut(u *models.User) *models.User {
	off := false
	u.EmailNotifications = &off
	return u
}

func validGoalInput() models.GoalInput {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return models.GoalInput{
		Title:       "Learn Go",
		Description: "Build a service",
		Category:    models.CategoryTechnical,
		Status:      models.StatusPlanned,
		StartDate:   start,
		EndDate:     start.AddDate(0, 3, 0),
	}
}
