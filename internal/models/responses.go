package models

// APIResponse is the standard response envelope
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// PaginatedResponse wraps list endpoints
type PaginatedResponse struct {
	Items      interface{} `json:"items"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"totalPages"`
}

// NewPaginatedResponse computes page math for a list result.
func NewPaginatedResponse(items interface{}, total int64, page, limit int) PaginatedResponse {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return PaginatedResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}
}

// AuthResponse is returned by OTP verification and token refresh
type AuthResponse struct {
	User         *User    `json:"user"`
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	IsNewUser    bool     `json:"isNewUser,omitempty"`
	NextSteps    []string `json:"nextSteps,omitempty"`
}

// SessionInfo describes one active refresh-token session
type SessionInfo struct {
	ID         uint        `json:"id"`
	DeviceInfo *DeviceInfo `json:"deviceInfo,omitempty"`
	CreatedAt  string      `json:"createdAt"`
	ExpiresAt  string      `json:"expiresAt"`
	Current    bool        `json:"current"`
}

// PassOTPVerification is returned to the guard on a successful OTP check
type PassOTPVerification struct {
	Pass             *VisitorPass `json:"pass"`
	ResidentName     string       `json:"residentName"`
	FlatNumber       string       `json:"flatNumber"`
	ApprovalRequired bool         `json:"approvalRequired"`
}

// UploadURLResponse carries a presigned upload URL and the object key
type UploadURLResponse struct {
	UploadURL string `json:"uploadUrl"`
	ObjectKey string `json:"objectKey"`
	ExpiresIn int    `json:"expiresIn"`
}

// BillSummary is the amount snapshot sent with bill list responses
type BillSummary struct {
	TotalBilled  float64 `json:"totalBilled"`
	TotalPaid    float64 `json:"totalPaid"`
	TotalLateFee float64 `json:"totalLateFee"`
	TotalDue     float64 `json:"totalDue"`
	PendingBills int     `json:"pendingBills"`
}
