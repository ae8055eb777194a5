package models

import (
	"time"
)

const (
	ReminderWeeklyGoalReview = "weekly_goal_review_reminder"
	ReminderGoalReview       = "goal_review_reminder"
)

// ReminderLog is an append-only record of a reminder email. It is written
// before the email is sent.
type ReminderLog struct {
	ID             string    `bson:"_id,omitempty" json:"id"`
	Type           string    `bson:"type" json:"type"`
	RecipientID    string    `bson:"recipientId,omitempty" json:"recipientId,omitempty"`
	RecipientEmail string    `bson:"recipientEmail" json:"recipientEmail"`
	GoalCount      int       `bson:"goalCount" json:"goalCount"`
	DaysRemaining  int       `bson:"daysRemaining" json:"daysRemaining"`
	SentBy         string    `bson:"sentBy,omitempty" json:"sentBy,omitempty"`
	Timestamp      time.Time `bson:"timestamp" json:"timestamp"`
}

// PendingGoal is one line of a review digest.
type PendingGoal struct {
	ID             string    `json:"id" validate:"required"`
	Title          string    `json:"title" validate:"required,nocontrol"`
	ApprenticeName string    `json:"apprenticeName" validate:"required,nocontrol"`
	SubmittedAt    time.Time `json:"submittedAt"`
}

func PendingGoalOf(g *Goal) PendingGoal {
	p := PendingGoal{ID: g.ID, Title: g.Title, ApprenticeName: g.ApprenticeName}
	if g.SubmittedAt != nil {
		p.SubmittedAt = *g.SubmittedAt
	}
	return p
}
