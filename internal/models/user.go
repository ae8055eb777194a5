package models

import (
	"time"
)

const (
	RoleApprentice = "apprentice"
	RoleSupervisor = "supervisor"
	// RoleSystem is only ever used as a notification sender role.
	RoleSystem = "system"
)

const (
	RequestStatusNone     = "none"
	RequestStatusPending  = "pending"
	RequestStatusApproved = "approved"
	RequestStatusDenied   = "denied"
)

// User represents an apprentice or supervisor account.
type User struct {
	ID        string `bson:"_id,omitempty" json:"id"`
	FirstName string `bson:"firstName" json:"firstName"`
	LastName  string `bson:"lastName" json:"lastName"`
	Email     string `bson:"email" json:"email"`
	Role      string `bson:"role" json:"role"`

	// EmailNotifications is nil for accounts that never touched the setting,
	// which counts as enabled.
	EmailNotifications      *bool      `bson:"emailNotifications,omitempty" json:"emailNotifications,omitempty"`
	SupervisorRequestStatus string     `bson:"supervisorRequestStatus,omitempty" json:"supervisorRequestStatus,omitempty"`
	SupervisorRequestDate   *time.Time `bson:"supervisorRequestDate,omitempty" json:"supervisorRequestDate,omitempty"`
	RequestProcessedAt      *time.Time `bson:"supervisorRequestProcessedAt,omitempty" json:"supervisorRequestProcessedAt,omitempty"`
	RequestProcessedBy      string     `bson:"supervisorRequestProcessedBy,omitempty" json:"supervisorRequestProcessedBy,omitempty"`
	EmailPreferenceUpdated  *time.Time `bson:"emailPreferenceUpdatedAt,omitempty" json:"emailPreferenceUpdatedAt,omitempty"`

	HashedPassword string    `bson:"hashedPassword" json:"-"`
	IsVerified     bool      `bson:"isVerified" json:"isVerified"`
	VerifyToken    string    `bson:"verifyToken,omitempty" json:"-"`
	ResetToken     string    `bson:"resetToken,omitempty" json:"-"`
	ResetTokenExp  time.Time `bson:"resetTokenExp,omitempty" json:"-"`

	RoleUpdatedAt *time.Time `bson:"roleUpdatedAt,omitempty" json:"roleUpdatedAt,omitempty"`
	RoleUpdatedBy string     `bson:"roleUpdatedBy,omitempty" json:"roleUpdatedBy,omitempty"`
	CreatedAt     time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time  `bson:"updatedAt" json:"updatedAt"`
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// WantsEmail reports whether emails may be sent to the user. Only an explicit
// opt-out disables them.
func (u *User) WantsEmail() bool {
	return u.EmailNotifications == nil || *u.EmailNotifications
}

// RequestStatus normalises an unset supervisor request status to "none".
func (u *User) RequestStatus() string {
	if u.SupervisorRequestStatus == "" {
		return RequestStatusNone
	}
	return u.SupervisorRequestStatus
}

func (u *User) IsSupervisor() bool {
	return u.Role == RoleSupervisor
}

func (u *User) IsApprentice() bool {
	return u.Role == RoleApprentice
}
