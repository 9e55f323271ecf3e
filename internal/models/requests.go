package models

import "time"

// SendOTPRequest starts a phone login
type SendOTPRequest struct {
	PhoneNumber string `json:"phoneNumber" binding:"required"`
}

// VerifyOTPRequest completes a phone login
type VerifyOTPRequest struct {
	PhoneNumber string      `json:"phoneNumber" binding:"required"`
	OTP         string      `json:"otp" binding:"required"`
	Role        string      `json:"role,omitempty"`
	FCMToken    string      `json:"fcmToken,omitempty"`
	DeviceInfo  *DeviceInfo `json:"deviceInfo,omitempty"`
}

// RefreshTokenRequest rotates a session
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// LogoutRequest ends one session (or all when AllDevices is set)
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken,omitempty"`
	AllDevices   bool   `json:"allDevices,omitempty"`
}

// UpdateProfileRequest completes or edits a user profile
type UpdateProfileRequest struct {
	Name      string `json:"name,omitempty"`
	Role      string `json:"role,omitempty"`
	SocietyID *uint  `json:"societyId,omitempty"`
	FlatID    *uint  `json:"flatId,omitempty"`
}

// UpdateFCMTokenRequest refreshes the push token for a device
type UpdateFCMTokenRequest struct {
	FCMToken string `json:"fcmToken" binding:"required"`
}

// CreatePassRequest issues a visitor pass (resident self-service)
type CreatePassRequest struct {
	VisitorName   string `json:"visitorName" binding:"required"`
	VisitorPhone  string `json:"visitorPhone" binding:"required"`
	VehicleNumber string `json:"vehicleNumber,omitempty"`
	ValidityHours int    `json:"validityHours" binding:"required"`
	Purpose       string `json:"purpose,omitempty"`
	IsRecurring   bool   `json:"isRecurring,omitempty"`
	RecurringDays []int  `json:"recurringDays,omitempty"`
}

// VerifyPassOTPRequest verifies a visitor OTP at the gate
type VerifyPassOTPRequest struct {
	OTP string `json:"otp" binding:"required"`
}

// EntryExitRequest records a gate movement for a pass
type EntryExitRequest struct {
	Action string `json:"action" binding:"required"`
	Photo  string `json:"photo,omitempty"`
	Notes  string `json:"notes,omitempty"`
}

// RequestApprovalRequest is a guard-submitted pass for a walk-in visitor
type RequestApprovalRequest struct {
	ResidentID    uint   `json:"residentId" binding:"required"`
	VisitorName   string `json:"visitorName" binding:"required"`
	VisitorPhone  string `json:"visitorPhone" binding:"required"`
	VehicleNumber string `json:"vehicleNumber,omitempty"`
	Purpose       string `json:"purpose,omitempty"`
	Photo         string `json:"photo,omitempty"`
}

// ApprovePassRequest is the resident's answer to an approval request
type ApprovePassRequest struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason,omitempty"`
}

// CreateEmergencyRequest raises an alert
type CreateEmergencyRequest struct {
	Description string    `json:"description,omitempty"`
	Location    *Location `json:"location,omitempty"`
}

// ResolveEmergencyRequest closes an alert
type ResolveEmergencyRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes,omitempty"`
}

// CreateNoticeRequest publishes a notice to a society
type CreateNoticeRequest struct {
	Title       string       `json:"title" binding:"required"`
	Content     string       `json:"content" binding:"required"`
	Type        string       `json:"type,omitempty"`
	Priority    string       `json:"priority,omitempty"`
	ExpiryDate  *time.Time   `json:"expiryDate,omitempty"`
	TargetFlats []uint       `json:"targetFlats,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// UpdateReadStatusRequest mutes or unmutes a notice for a user
type UpdateReadStatusRequest struct {
	IsMuted bool `json:"isMuted"`
}

// CreateBillRequest creates a maintenance bill for one flat and period
type CreateBillRequest struct {
	FlatID     uint          `json:"flatId" binding:"required"`
	Amount     float64       `json:"amount" binding:"required"`
	BillDate   time.Time     `json:"billDate" binding:"required"`
	DueDate    time.Time     `json:"dueDate" binding:"required"`
	BillPeriod string        `json:"billPeriod" binding:"required"`
	Breakdown  BillBreakdown `json:"breakdown"`
	Notes      string        `json:"notes,omitempty"`
}

// RecordPaymentRequest records a payment against a bill
type RecordPaymentRequest struct {
	Amount          float64                `json:"amount" binding:"required"`
	PaymentMethod   string                 `json:"paymentMethod" binding:"required"`
	ReferenceNumber string                 `json:"referenceNumber,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	Notes           string                 `json:"notes,omitempty"`
}

// UploadURLRequest asks for a presigned upload URL
type UploadURLRequest struct {
	FileName    string `json:"fileName" binding:"required"`
	ContentType string `json:"contentType,omitempty"`
	Prefix      string `json:"prefix,omitempty"`
}
