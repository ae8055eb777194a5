package models

import (
	"time"
)

const (
	CategoryTechnical = "technical"
	CategorySoft      = "soft"
	CategoryEducation = "education"
	CategoryProject   = "project"
)

const (
	StatusPlanned    = "planned"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// MinRecommendedGoals is the number of goals every apprentice should keep.
const MinRecommendedGoals = 3

type Goal struct {
	ID             string     `bson:"_id,omitempty" json:"id"`
	Title          string     `bson:"title" json:"title"`
	Description    string     `bson:"description" json:"description"`
	Category       string     `bson:"category" json:"category"`
	Status         string     `bson:"status" json:"status"`
	StartDate      time.Time  `bson:"startDate" json:"startDate"`
	EndDate        time.Time  `bson:"endDate" json:"endDate"`
	ApprenticeID   string     `bson:"apprenticeId" json:"apprenticeId"`
	ApprenticeName string     `bson:"apprenticeName" json:"apprenticeName"`
	Submitted      bool       `bson:"submitted" json:"submitted"`
	SubmittedAt    *time.Time `bson:"submittedAt,omitempty" json:"submittedAt,omitempty"`
	Approved       bool       `bson:"approved" json:"approved"`
	ApprovedAt     *time.Time `bson:"approvedAt,omitempty" json:"approvedAt,omitempty"`
	ApprovedBy     string     `bson:"approvedBy,omitempty" json:"approvedBy,omitempty"`
	Rating         float64    `bson:"rating" json:"rating"`
	Comments       []Comment  `bson:"comments" json:"comments"`
	CreatedAt      time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time  `bson:"updatedAt" json:"updatedAt"`
}

type Comment struct {
	Text       string    `bson:"text" json:"text"`
	AuthorID   string    `bson:"authorId" json:"authorId"`
	AuthorName string    `bson:"authorName" json:"authorName"`
	CreatedAt  time.Time `bson:"createdAt" json:"createdAt"`
}

// GoalInput is the editable part of a goal.
type GoalInput struct {
	Title       string    `json:"title" validate:"required,max=200,nocontrol"`
	Description string    `json:"description" validate:"required"`
	Category    string    `json:"category" validate:"required,oneof=technical soft education project"`
	Status      string    `json:"status" validate:"required,oneof=planned in_progress completed"`
	StartDate   time.Time `json:"startDate" validate:"required"`
	EndDate     time.Time `json:"endDate" validate:"required,gtefield=StartDate"`
}

// ValidRating reports whether r is a non-zero star rating in half steps up
// to five.
func ValidRating(r float64) bool {
	if r <= 0 || r > 5 {
		return false
	}
	return r*2 == float64(int(r*2))
}
