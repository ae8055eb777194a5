package models

import (
	"time"
)

const (
	NotificationComment                 = "comment"
	NotificationApproval                = "approval"
	NotificationSubmission              = "submission"
	NotificationRating                  = "rating"
	NotificationGoalReminder            = "goal_reminder"
	NotificationSupervisorRequest       = "supervisor_request"
	NotificationSupervisorRequestResult = "supervisor_request_result"
)

const (
	SystemSenderID   = "system"
	SystemSenderName = "ZielManager System"
)

type Notification struct {
	ID             string          `bson:"_id,omitempty" json:"id"`
	RecipientID    string          `bson:"recipientId" json:"recipientId"`
	RecipientRole  string          `bson:"recipientRole" json:"recipientRole"`
	SenderID       string          `bson:"senderId" json:"senderId"`
	SenderName     string          `bson:"senderName" json:"senderName"`
	SenderRole     string          `bson:"senderRole" json:"senderRole"`
	Type           string          `bson:"type" json:"type"`
	GoalID         string          `bson:"goalId,omitempty" json:"goalId,omitempty"`
	GoalTitle      string          `bson:"goalTitle,omitempty" json:"goalTitle,omitempty"`
	Message        string          `bson:"message" json:"message"`
	ActionLink     string          `bson:"actionLink,omitempty" json:"actionLink,omitempty"`
	Read           bool            `bson:"read" json:"read"`
	AdditionalData *AdditionalData `bson:"additionalData,omitempty" json:"additionalData,omitempty"`
	CreatedAt      time.Time       `bson:"createdAt" json:"createdAt"`

	EmailSent   *bool      `bson:"emailSent,omitempty" json:"emailSent,omitempty"`
	EmailSentAt *time.Time `bson:"emailSentAt,omitempty" json:"emailSentAt,omitempty"`
	EmailError  *string    `bson:"emailError,omitempty" json:"emailError,omitempty"`
}

// AdditionalData is the payload of supervisor request notifications.
type AdditionalData struct {
	RequesterID    string     `bson:"requesterId,omitempty" json:"requesterId,omitempty"`
	RequesterName  string     `bson:"requesterName,omitempty" json:"requesterName,omitempty"`
	RequesterEmail string     `bson:"requesterEmail,omitempty" json:"requesterEmail,omitempty"`
	RequestStatus  string     `bson:"requestStatus,omitempty" json:"requestStatus,omitempty"`
	ProcessedBy    string     `bson:"processedBy,omitempty" json:"processedBy,omitempty"`
	ProcessedAt    *time.Time `bson:"processedAt,omitempty" json:"processedAt,omitempty"`
}

// Clone returns a copy of d that shares no pointers with it.
func (d *AdditionalData) Clone() *AdditionalData {
	if d == nil {
		return nil
	}
	cp := *d
	if d.ProcessedAt != nil {
		at := *d.ProcessedAt
		cp.ProcessedAt = &at
	}
	return &cp
}

// Clone returns a deep copy of n.
func (n *Notification) Clone() *Notification {
	if n == nil {
		return nil
	}
	cp := *n
	cp.AdditionalData = n.AdditionalData.Clone()
	if n.EmailSent != nil {
		sent := *n.EmailSent
		cp.EmailSent = &sent
	}
	if n.EmailSentAt != nil {
		at := *n.EmailSentAt
		cp.EmailSentAt = &at
	}
	if n.EmailError != nil {
		msg := *n.EmailError
		cp.EmailError = &msg
	}
	return &cp
}

// Sender identifies who caused a notification.
type Sender struct {
	ID   string
	Name string
	Role string
}

// SystemSender is used for notifications nobody in particular triggered.
var SystemSender = Sender{ID: SystemSenderID, Name: SystemSenderName, Role: RoleSystem}

func SenderFromUser(u *User) Sender {
	return Sender{ID: u.ID, Name: u.FullName(), Role: u.Role}
}

// GoalRef points a notification at a goal.
type GoalRef struct {
	ID    string
	Title string
}

func RefOf(g *Goal) *GoalRef {
	return &GoalRef{ID: g.ID, Title: g.Title}
}

// EmailStatus is the outcome written back after an email attempt.
type EmailStatus struct {
	Sent   bool
	SentAt time.Time
	Error  *string
}
