package models

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Emergency statuses
const (
	EmergencyStatusActive     = "active"
	EmergencyStatusResolved   = "resolved"
	EmergencyStatusFalseAlarm = "false_alarm"
)

// EmergencySpamWindow is the window within which a user may not raise a second
// active emergency.
const EmergencySpamWindow = 5 * time.Minute

// EmergencyAutoResolveAfter is how long an alert stays active before the sweep
// force-resolves it.
const EmergencyAutoResolveAfter = time.Hour

// AutoResolveNote is the system-generated resolution note for swept alerts
const AutoResolveNote = "Auto-resolved after 1 hour"

// Location is an optional geolocation attached to an emergency
type Location struct {
	Lat     float64 `json:"lat,omitempty"`
	Lng     float64 `json:"lng,omitempty"`
	Address string  `json:"address,omitempty"`
}

// Emergency is an alert raised by a resident. A user may not hold two active
// emergencies within EmergencySpamWindow; alerts are resolved exactly once.
type Emergency struct {
	ID              uint                         `gorm:"primaryKey" json:"id"`
	UserID          uint                         `gorm:"not null;index" json:"user_id"`
	SocietyID       uint                         `gorm:"not null;index" json:"society_id"`
	Status          string                       `gorm:"type:varchar(20);not null;default:active;index" json:"status"`
	Description     string                       `gorm:"type:text" json:"description,omitempty"`
	Location        datatypes.JSONType[Location] `json:"location,omitempty"`
	NotifiedUsers   datatypes.JSONSlice[uint]    `json:"notified_users,omitempty"`
	CallInitiated   bool                         `gorm:"default:false" json:"call_initiated"`
	CallSID         string                       `gorm:"type:varchar(64)" json:"call_sid,omitempty"`
	ResolvedBy      *uint                        `json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time                   `json:"resolved_at,omitempty"`
	ResolutionNotes string                       `gorm:"type:text" json:"resolution_notes,omitempty"`
	CreatedAt       time.Time                    `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time                    `gorm:"autoUpdateTime" json:"updated_at"`

	User     *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Resolver *User `gorm:"foreignKey:ResolvedBy" json:"resolver,omitempty"`
}

func (Emergency) TableName() string {
	return "emergencies"
}

// IsActive reports whether the alert has not reached a terminal state
func (e *Emergency) IsActive() bool {
	return e.Status == EmergencyStatusActive
}

// EmergencyFilter narrows alert history queries. Zero values mean no
// constraint.
type EmergencyFilter struct {
	SocietyID uint
	UserID    uint
	Status    string
	From      *time.Time
	To        *time.Time
}

// EmergencyAdminTopic names the FCM topic channel society admins
// subscribe to for alert escalations
func EmergencyAdminTopic(societyID uint) string {
	return fmt.Sprintf("society_%d_admins", societyID)
}
