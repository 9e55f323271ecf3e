package models

import (
	"time"

	"gorm.io/datatypes"
)

// User roles
const (
	RoleUnassigned = ""
	RoleResident   = "resident"
	RoleGuard      = "guard"
	RoleAdmin      = "admin"
)

// User statuses
const (
	UserStatusPendingProfile = "pending_profile"
	UserStatusActive         = "active"
	UserStatusBlocked        = "blocked"
)

// DeviceInfo describes the device a session was created from
type DeviceInfo struct {
	DeviceID   string `json:"device_id,omitempty"`
	DeviceName string `json:"device_name,omitempty"`
	DeviceType string `json:"device_type,omitempty"`
	Platform   string `json:"platform,omitempty"`
}

// Preferences holds per-user notification and display settings
type Preferences struct {
	Notifications bool   `json:"notifications"`
	DarkMode      bool   `json:"dark_mode"`
	Language      string `json:"language"`
}

// DefaultPreferences returns the preferences assigned to a new user
func DefaultPreferences() Preferences {
	return Preferences{
		Notifications: true,
		DarkMode:      false,
		Language:      "en",
	}
}

// Society represents a residential society (the tenant boundary)
type Society struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Address   string    `gorm:"type:text" json:"address"`
	City      string    `gorm:"type:varchar(100)" json:"city"`
	State     string    `gorm:"type:varchar(100)" json:"state"`
	Pincode   string    `gorm:"type:varchar(10)" json:"pincode"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Society) TableName() string {
	return "societies"
}

// Flat represents a unit within a society
type Flat struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SocietyID  uint      `gorm:"not null;index;uniqueIndex:idx_flats_society_number" json:"society_id"`
	FlatNumber string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_flats_society_number" json:"flat_number"`
	Block      string    `gorm:"type:varchar(20)" json:"block,omitempty"`
	Floor      int       `json:"floor,omitempty"`
	IsOccupied bool      `gorm:"default:false" json:"is_occupied"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Society *Society `gorm:"foreignKey:SocietyID" json:"society,omitempty"`
}

func (Flat) TableName() string {
	return "flats"
}

// User represents an identity keyed by phone number. A user is created on the
// first successful OTP verification for an unseen phone number with an
// unassigned role and pending_profile status; profile completion assigns the
// role and society/flat association.
type User struct {
	ID          uint                                `gorm:"primaryKey" json:"id"`
	PhoneNumber string                              `gorm:"type:varchar(20);not null;uniqueIndex" json:"phone_number"`
	Name        string                              `gorm:"type:varchar(255)" json:"name"`
	Role        string                              `gorm:"type:varchar(20);index" json:"role"`
	Status      string                              `gorm:"type:varchar(20);not null;default:pending_profile" json:"status"`
	SocietyID   *uint                               `gorm:"index" json:"society_id,omitempty"`
	FlatID      *uint                               `gorm:"index" json:"flat_id,omitempty"`
	FCMToken    string                              `gorm:"type:text" json:"-"`
	DeviceInfo  datatypes.JSONType[DeviceInfo]      `json:"device_info,omitempty"`
	Preferences datatypes.JSONType[Preferences]     `json:"preferences"`
	ProfilePicture string                           `gorm:"type:text" json:"profile_picture,omitempty"`
	LastLoginAt *time.Time                          `json:"last_login_at,omitempty"`
	CreatedAt   time.Time                           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time                           `gorm:"autoUpdateTime" json:"updated_at"`

	Society *Society `gorm:"foreignKey:SocietyID" json:"society,omitempty"`
	Flat    *Flat    `gorm:"foreignKey:FlatID" json:"flat,omitempty"`
}

func (User) TableName() string {
	return "users"
}

// Registered reports whether the user has completed onboarding with a role
func (u *User) Registered() bool {
	return u.Role != RoleUnassigned
}

// IsBlocked reports whether the account has been blocked
func (u *User) IsBlocked() bool {
	return u.Status == UserStatusBlocked
}

// RefreshToken is a long-lived credential bound to one user and one device.
// At most MaxSessionsPerUser rows are retained per user; the oldest is evicted
// when a new session is created.
type RefreshToken struct {
	ID         uint                           `gorm:"primaryKey" json:"id"`
	UserID     uint                           `gorm:"not null;index" json:"user_id"`
	Token      string                         `gorm:"type:text;not null;uniqueIndex" json:"-"`
	ExpiresAt  time.Time                      `gorm:"not null;index" json:"expires_at"`
	IsActive   bool                           `gorm:"default:true" json:"is_active"`
	DeviceInfo datatypes.JSONType[DeviceInfo] `json:"device_info,omitempty"`
	IPAddress  string                         `gorm:"type:varchar(45)" json:"-"`
	UserAgent  string                         `gorm:"type:text" json:"-"`
	CreatedAt  time.Time                      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time                      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

// IsExpired checks if the refresh token has passed its expiry
func (t *RefreshToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// MaxSessionsPerUser bounds concurrent refresh tokens retained per user
const MaxSessionsPerUser = 5
