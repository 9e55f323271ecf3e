package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notice types
const (
	NoticeTypeGeneral     = "general"
	NoticeTypeMaintenance = "maintenance"
	NoticeTypeEmergency   = "emergency"
	NoticeTypeEvent       = "event"
)

// Notice priorities
const (
	NoticePriorityLow      = "low"
	NoticePriorityMedium   = "medium"
	NoticePriorityHigh     = "high"
	NoticePriorityCritical = "critical"
)

// Attachment is a stored-file reference attached to a notice
type Attachment struct {
	URL  string `json:"url"`
	Type string `json:"type"`
	Name string `json:"name"`
}

// Notice is a broadcast message scoped to a society, optionally targeted to a
// subset of flats.
type Notice struct {
	ID          uint                              `gorm:"primaryKey" json:"id"`
	SocietyID   uint                              `gorm:"not null;index" json:"society_id"`
	CreatedBy   uint                              `gorm:"not null" json:"created_by"`
	Title       string                            `gorm:"type:varchar(255);not null" json:"title"`
	Content     string                            `gorm:"type:text;not null" json:"content"`
	Type        string                            `gorm:"type:varchar(20);not null;default:general" json:"type"`
	Priority    string                            `gorm:"type:varchar(20);not null;default:medium" json:"priority"`
	IsCritical  bool                              `gorm:"default:false" json:"is_critical"`
	IsActive    bool                              `gorm:"default:true;index" json:"is_active"`
	ExpiryDate  *time.Time                        `gorm:"index" json:"expiry_date,omitempty"`
	TargetFlats datatypes.JSONSlice[uint]         `json:"target_flats,omitempty"`
	Attachments datatypes.JSONSlice[Attachment]   `json:"attachments,omitempty"`
	CreatedAt   time.Time                         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time                         `gorm:"autoUpdateTime" json:"updated_at"`

	Creator *User `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`
}

func (Notice) TableName() string {
	return "notices"
}

// Expired reports whether the notice has passed its optional expiry date
func (n *Notice) Expired(now time.Time) bool {
	return n.ExpiryDate != nil && now.After(*n.ExpiryDate)
}

// TargetsFlat reports whether the notice applies to the given flat. A notice
// with no target list applies to every flat in the society.
func (n *Notice) TargetsFlat(flatID uint) bool {
	if len(n.TargetFlats) == 0 {
		return true
	}
	for _, id := range n.TargetFlats {
		if id == flatID {
			return true
		}
	}
	return false
}

// NoticeReadStatus is the per-(notice, user) read/mute flag
type NoticeReadStatus struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	NoticeID  uint       `gorm:"not null;uniqueIndex:idx_notice_read_user" json:"notice_id"`
	UserID    uint       `gorm:"not null;uniqueIndex:idx_notice_read_user" json:"user_id"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	IsMuted   bool       `gorm:"default:false" json:"is_muted"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (NoticeReadStatus) TableName() string {
	return "notice_read_statuses"
}
