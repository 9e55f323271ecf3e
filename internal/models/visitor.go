package models

import (
	"time"

	"gorm.io/datatypes"
)

// Visitor pass statuses
const (
	PassStatusPending   = "pending"
	PassStatusApproved  = "approved"
	PassStatusRejected  = "rejected"
	PassStatusExpired   = "expired"
	PassStatusUsed      = "used"
	PassStatusCancelled = "cancelled"
)

// Validity bounds for resident-issued passes, in hours
const (
	MinPassValidityHours = 1
	MaxPassValidityHours = 24
)

// ApprovalWindow is how long a guard-requested pass waits for the resident
// before the sweep auto-rejects it.
const ApprovalWindow = 5 * time.Minute

// ApprovalExtension is the validity granted when a resident approves a
// guard-requested pass.
const ApprovalExtension = 24 * time.Hour

// AutoRejectReason is stamped on approval-request passes the resident never
// answered.
const AutoRejectReason = "Auto-rejected: no response from resident"

// VisitorPass is a time-boxed, single-use-by-default authorization for a named
// visitor to enter on behalf of a resident. The OTP is unique among passes in
// pending state; passes outside [ValidFrom, ValidUntil] are treated as expired
// regardless of stored status.
type VisitorPass struct {
	ID               uint                         `gorm:"primaryKey" json:"id"`
	UserID           uint                         `gorm:"not null;index" json:"user_id"`
	VisitorName      string                       `gorm:"type:varchar(255);not null" json:"visitor_name"`
	VisitorPhone     string                       `gorm:"type:varchar(20);not null" json:"visitor_phone"`
	VehicleNumber    string                       `gorm:"type:varchar(20)" json:"vehicle_number,omitempty"`
	OTP              string                       `gorm:"type:varchar(10);not null;index" json:"-"`
	Status           string                       `gorm:"type:varchar(20);not null;default:pending;index" json:"status"`
	ValidFrom        time.Time                    `gorm:"not null" json:"valid_from"`
	ValidUntil       time.Time                    `gorm:"not null;index" json:"valid_until"`
	Purpose          string                       `gorm:"type:varchar(255)" json:"purpose,omitempty"`
	IsRecurring      bool                         `gorm:"default:false" json:"is_recurring"`
	RecurringDays    datatypes.JSONSlice[int]     `json:"recurring_days,omitempty"`
	ApprovalRequired bool                         `gorm:"default:false;index" json:"approval_required"`
	EntryTime        *time.Time                   `json:"entry_time,omitempty"`
	ExitTime         *time.Time                   `json:"exit_time,omitempty"`
	GuardIDEntry     *uint                        `json:"guard_id_entry,omitempty"`
	GuardIDExit      *uint                        `json:"guard_id_exit,omitempty"`
	EntryPhoto       string                       `gorm:"type:text" json:"entry_photo,omitempty"`
	Notes            string                       `gorm:"type:text" json:"notes,omitempty"`
	RejectionReason  string                       `gorm:"type:text" json:"rejection_reason,omitempty"`
	CreatedAt        time.Time                    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time                    `gorm:"autoUpdateTime" json:"updated_at"`

	User       *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	EntryGuard *User `gorm:"foreignKey:GuardIDEntry" json:"entry_guard,omitempty"`
	ExitGuard  *User `gorm:"foreignKey:GuardIDExit" json:"exit_guard,omitempty"`
}

func (VisitorPass) TableName() string {
	return "visitor_passes"
}

// WithinValidity reports whether now falls inside the pass validity window
func (p *VisitorPass) WithinValidity(now time.Time) bool {
	return !now.Before(p.ValidFrom) && !now.After(p.ValidUntil)
}

// ExpectedOn reports whether the pass should appear on the expected-visitors
// list for the given date. Non-recurring passes always qualify; recurring
// passes qualify only when their weekday set contains the date's weekday.
func (p *VisitorPass) ExpectedOn(date time.Time) bool {
	if !p.IsRecurring {
		return true
	}
	weekday := int(date.Weekday())
	for _, d := range p.RecurringDays {
		if d == weekday {
			return true
		}
	}
	return false
}
