package models

import (
	"math"
	"time"

	"gorm.io/datatypes"
)

// Bill statuses
const (
	BillStatusPending = "pending"
	BillStatusPartial = "partial"
	BillStatusPaid    = "paid"
	BillStatusOverdue = "overdue"
)

// LateFeeMonthlyPercent is the late-fee rate applied per 30 days overdue
const LateFeeMonthlyPercent = 2.0

// BillBreakdown itemizes a maintenance bill. Others is an open map because
// societies add arbitrary one-off heads (painting, festival fund, ...).
type BillBreakdown struct {
	Maintenance float64            `json:"maintenance"`
	Water       float64            `json:"water"`
	Electricity float64            `json:"electricity,omitempty"`
	Others      map[string]float64 `json:"others,omitempty"`
}

// MaintenanceBill is scoped to one flat and one billing period. Its status and
// late fee are derived fields recomputed from amount, due date and payments;
// the payment rows are authoritative.
type MaintenanceBill struct {
	ID             uint                              `gorm:"primaryKey" json:"id"`
	FlatID         uint                              `gorm:"not null;index;uniqueIndex:idx_bills_flat_period" json:"flat_id"`
	SocietyID      uint                              `gorm:"not null;index" json:"society_id"`
	BillNumber     string                            `gorm:"type:varchar(64);not null;uniqueIndex" json:"bill_number"`
	BillPeriod     string                            `gorm:"type:varchar(32);not null;uniqueIndex:idx_bills_flat_period" json:"bill_period"`
	Amount         float64                           `gorm:"not null" json:"amount"`
	LateFee        float64                           `gorm:"default:0" json:"late_fee"`
	PaidAmount     float64                           `gorm:"default:0" json:"paid_amount"`
	Status         string                            `gorm:"type:varchar(20);not null;default:pending;index" json:"status"`
	BillDate       time.Time                         `gorm:"not null" json:"bill_date"`
	DueDate        time.Time                         `gorm:"not null;index" json:"due_date"`
	PaidDate       *time.Time                        `json:"paid_date,omitempty"`
	Breakdown      datatypes.JSONType[BillBreakdown] `json:"breakdown"`
	QRCode         string                            `gorm:"type:text" json:"qr_code,omitempty"`
	Notes          string                            `gorm:"type:text" json:"notes,omitempty"`
	ReminderCount  int                               `gorm:"default:0" json:"reminder_count"`
	LastReminderAt *time.Time                        `json:"last_reminder_at,omitempty"`
	CreatedAt      time.Time                         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time                         `gorm:"autoUpdateTime" json:"updated_at"`

	Flat     *Flat     `gorm:"foreignKey:FlatID" json:"flat,omitempty"`
	Payments []Payment `gorm:"foreignKey:BillID" json:"payments,omitempty"`
}

func (MaintenanceBill) TableName() string {
	return "maintenance_bills"
}

// CalculateLateFee computes the penalty for an unpaid bill: 2% per month,
// accrued daily, rounded to the nearest unit. It is a pure function of
// (amount, dueDate, now) and self-corrects no matter how long a bill goes
// unexamined.
func CalculateLateFee(amount float64, dueDate, now time.Time) float64 {
	daysLate := int(now.Sub(dueDate).Hours() / 24)
	if daysLate <= 0 {
		return 0
	}
	dailyRate := LateFeeMonthlyPercent / 30 / 100
	return math.Round(amount * dailyRate * float64(daysLate))
}

// TotalDue returns the outstanding balance including the current late fee
func (b *MaintenanceBill) TotalDue(now time.Time) float64 {
	due := b.Amount + CalculateLateFee(b.Amount, b.DueDate, now) - b.PaidAmount
	if due < 0 {
		return 0
	}
	return due
}

// DeriveStatus recomputes the bill status from its amounts and due date
func (b *MaintenanceBill) DeriveStatus(now time.Time) string {
	if b.PaidAmount >= b.Amount+b.LateFee {
		return BillStatusPaid
	}
	if b.PaidAmount > 0 {
		return BillStatusPartial
	}
	if now.After(b.DueDate) {
		return BillStatusOverdue
	}
	return BillStatusPending
}

// Payment is an immutable record of money received against a bill
type Payment struct {
	ID              uint                                  `gorm:"primaryKey" json:"id"`
	BillID          uint                                  `gorm:"not null;index" json:"bill_id"`
	UserID          uint                                  `gorm:"not null;index" json:"user_id"`
	TransactionID   string                                `gorm:"type:varchar(64);not null;uniqueIndex" json:"transaction_id"`
	Amount          float64                               `gorm:"not null" json:"amount"`
	PaymentMethod   string                                `gorm:"type:varchar(32);not null" json:"payment_method"`
	PaymentDate     time.Time                             `gorm:"not null;index" json:"payment_date"`
	ReferenceNumber string                                `gorm:"type:varchar(64)" json:"reference_number,omitempty"`
	Metadata        datatypes.JSONMap                     `json:"metadata,omitempty"`
	Notes           string                                `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt       time.Time                             `gorm:"autoCreateTime" json:"created_at"`

	Bill *MaintenanceBill `gorm:"foreignKey:BillID" json:"bill,omitempty"`
	User *User            `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (Payment) TableName() string {
	return "payments"
}
