package services

import (
	"context"
	"sort"
	"time"

	"github.com/Dias221467/ZielManager/internal/models"
	"github.com/Dias221467/ZielManager/internal/repository"
	"github.com/Dias221467/ZielManager/pkg/apperr"
	"github.com/Dias221467/ZielManager/pkg/logger"
	"github.com/Dias221467/ZielManager/pkg/validate"
	"golang.org/x/sync/errgroup"
)

// LeaderboardService ranks apprentices by the ratings of their approved
// goals in the current scoring period.
type LeaderboardService struct {
	users    UserStore
	goals    GoalStore
	settings SettingsStore
	now      func() time.Time
}

func NewLeaderboardService(users UserStore, goals GoalStore, settings SettingsStore) *LeaderboardService {
	return &LeaderboardService{users: users, goals: goals, settings: settings, now: time.Now}
}

// Compute aggregates every apprentice's approved goals. Approvals before
// the last reset are ignored. Entries are sorted by total rating, highest
// first; ties keep the order apprentices were loaded in. Ranks follow that
// order starting at 1, and actorID's own entry is returned as UserRank.
func (s *LeaderboardService) Compute(ctx context.Context, actorID string) (*models.Leaderboard, error) {
	settings, err := s.settings.GetLeaderboardSettings(ctx)
	if err != nil {
		return nil, storeErr(err, "leaderboard settings")
	}
	apprentices, err := s.users.ListUsersByRole(ctx, models.RoleApprentice)
	if err != nil {
		return nil, storeErr(err, "apprentices")
	}

	entries := make([]models.LeaderboardEntry, len(apprentices))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOutLimit)
	for i, a := range apprentices {
		i, a := i, a
		g.Go(func() error {
			approved := true
			goals, err := s.goals.ListGoals(gctx, repository.GoalFilter{
				ApprenticeID:  a.ID,
				Approved:      &approved,
				ApprovedSince: settings.LeaderboardResetTimestamp,
			})
			if err != nil {
				return err
			}
			entries[i] = entryFor(a, goals)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, storeErr(err, "goals")
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TotalRating > entries[j].TotalRating
	})

	board := &models.Leaderboard{Entries: entries, ResetTimestamp: settings.LeaderboardResetTimestamp}
	for i := range entries {
		entries[i].Rank = i + 1
		if entries[i].ApprenticeID == actorID {
			mine := entries[i]
			board.UserRank = &mine
		}
	}
	if len(entries) > 0 {
		top := entries[0]
		board.ApprenticeOfTheYear = &top
	}
	return board, nil
}

func entryFor(a *models.User, goals []*models.Goal) models.LeaderboardEntry {
	e := models.LeaderboardEntry{
		ApprenticeID: a.ID,
		FirstName:    a.FirstName,
		LastName:     a.LastName,
	}
	for _, g := range goals {
		if !g.Approved {
			continue
		}
		e.GoalCount++
		if g.Rating > 0 {
			e.TotalRating += g.Rating
			e.ApprovedGoalCount++
		}
	}
	if e.ApprovedGoalCount > 0 {
		e.AverageRating = e.TotalRating / float64(e.ApprovedGoalCount)
	}
	return e
}

// Reset starts a new scoring period. Goal documents are left untouched.
func (s *LeaderboardService) Reset(ctx context.Context, actorID string) (time.Time, error) {
	if err := s.requireSupervisor(ctx, actorID); err != nil {
		return time.Time{}, err
	}
	now := s.now()
	if err := s.settings.SetLeaderboardReset(ctx, now, actorID); err != nil {
		return time.Time{}, storeErr(err, "leaderboard settings")
	}

	logger.Log.WithField("user_id", actorID).Info("Leaderboard reset")
	return now, nil
}

func (s *LeaderboardService) GetSettings(ctx context.Context) (*models.LeaderboardSettings, error) {
	settings, err := s.settings.GetLeaderboardSettings(ctx)
	return settings, storeErr(err, "leaderboard settings")
}

func (s *LeaderboardService) UpdateCountdown(ctx context.Context, actorID string, c models.Countdown) (*models.Countdown, error) {
	if err := validate.Struct(c); err != nil {
		return nil, err
	}
	if err := s.requireSupervisor(ctx, actorID); err != nil {
		return nil, err
	}
	c.UpdatedAt = s.now()
	c.UpdatedBy = actorID
	if err := s.settings.SetCountdown(ctx, c); err != nil {
		return nil, storeErr(err, "leaderboard settings")
	}
	return &c, nil
}

func (s *LeaderboardService) requireSupervisor(ctx context.Context, actorID string) error {
	actor, err := s.users.GetUserByID(ctx, actorID)
	if err != nil {
		return storeErr(err, "user")
	}
	if !actor.IsSupervisor() {
		return apperr.Forbidden("only supervisors can change leaderboard settings")
	}
	return nil
}
