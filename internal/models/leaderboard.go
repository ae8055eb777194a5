package models

import (
	"time"
)

// LeaderboardSettings is stored as a single document.
type LeaderboardSettings struct {
	ID                        string     `bson:"_id" json:"-"`
	Countdown                 *Countdown `bson:"countdown,omitempty" json:"countdown,omitempty"`
	LeaderboardResetTimestamp *time.Time `bson:"leaderboardResetTimestamp,omitempty" json:"leaderboardResetTimestamp,omitempty"`
	UpdatedAt                 time.Time  `bson:"updatedAt" json:"updatedAt"`
	UpdatedBy                 string     `bson:"updatedBy,omitempty" json:"updatedBy,omitempty"`
}

type Countdown struct {
	Title             string    `bson:"title" json:"title" validate:"required,max=120,nocontrol"`
	Description       string    `bson:"description,omitempty" json:"description,omitempty"`
	EndDate           time.Time `bson:"endDate" json:"endDate" validate:"required"`
	BackgroundColor   string    `bson:"backgroundColor,omitempty" json:"backgroundColor,omitempty" validate:"omitempty,hexcolor"`
	TextColor         string    `bson:"textColor,omitempty" json:"textColor,omitempty" validate:"omitempty,hexcolor"`
	CompletionMessage string    `bson:"completionMessage,omitempty" json:"completionMessage,omitempty"`
	UpdatedAt         time.Time `bson:"updatedAt" json:"updatedAt"`
	UpdatedBy         string    `bson:"updatedBy,omitempty" json:"updatedBy,omitempty"`
}

// LeaderboardEntry is one apprentice's standing. GoalCount counts every
// approved goal in the period; ApprovedGoalCount only the rated ones, which
// are the ones that score.
type LeaderboardEntry struct {
	Rank              int     `json:"rank"`
	ApprenticeID      string  `json:"apprenticeId"`
	FirstName         string  `json:"firstName"`
	LastName          string  `json:"lastName"`
	TotalRating       float64 `json:"totalRating"`
	GoalCount         int     `json:"goalCount"`
	ApprovedGoalCount int     `json:"approvedGoalCount"`
	AverageRating     float64 `json:"averageRating"`
}

// Leaderboard is computed per request. UserRank is set when the caller is
// one of the ranked apprentices.
type Leaderboard struct {
	Entries             []LeaderboardEntry `json:"entries"`
	ApprenticeOfTheYear *LeaderboardEntry  `json:"apprenticeOfTheYear,omitempty"`
	UserRank            *LeaderboardEntry  `json:"userRank,omitempty"`
	ResetTimestamp      *time.Time         `json:"resetTimestamp,omitempty"`
}
