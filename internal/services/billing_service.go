package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"society-service/internal/apperrors"
	"society-service/internal/models"
	"society-service/internal/providers"
)

// BillStore is the persistence surface for bills and payments
type BillStore interface {
	Create(ctx context.Context, bill *models.MaintenanceBill) error
	GetByID(ctx context.Context, id uint) (*models.MaintenanceBill, error)
	GetByFlatAndPeriod(ctx context.Context, flatID uint, period string) (*models.MaintenanceBill, error)
	ListByFlat(ctx context.Context, flatID uint, status string, offset, limit int) ([]models.MaintenanceBill, int64, error)
	ListBySociety(ctx context.Context, societyID uint, status string, offset, limit int) ([]models.MaintenanceBill, int64, error)
	Update(ctx context.Context, bill *models.MaintenanceBill) error
	RecordPayment(ctx context.Context, payment *models.Payment, bill *models.MaintenanceBill) error
	ListPayments(ctx context.Context, billID uint) ([]models.Payment, error)
	ListDueForReminder(ctx context.Context, now, remindedBefore time.Time) ([]models.MaintenanceBill, error)
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
	TouchReminder(ctx context.Context, id uint, at time.Time) error
	Summary(ctx context.Context, flatID uint) (*models.BillSummary, error)
}

// BillingUserStore is the user surface billing needs for scoping and
// reminders
type BillingUserStore interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetFlat(ctx context.Context, id uint) (*models.Flat, error)
	ListByFlat(ctx context.Context, flatID uint) ([]models.User, error)
}

// BillingConfig carries the payment collection settings. An empty VPA
// disables UPI payload generation.
type BillingConfig struct {
	UPIVPA    string
	PayeeName string
}

// BillingService manages maintenance bills and payments
type BillingService struct {
	bills  BillStore
	users  BillingUserStore
	push   providers.PushProvider
	events EventPublisher
	cfg    BillingConfig
	logger *logrus.Logger
}

// NewBillingService creates a new billing service
func NewBillingService(bills BillStore, users BillingUserStore, push providers.PushProvider, events EventPublisher, cfg BillingConfig, logger *logrus.Logger) *BillingService {
	if logger == nil {
		logger = logrus.New()
	}
	return &BillingService{
		bills:  bills,
		users:  users,
		push:   push,
		events: events,
		cfg:    cfg,
		logger: logger,
	}
}

// CreateBill raises a maintenance bill for one flat and period. One
// bill per flat per period.
func (s *BillingService) CreateBill(ctx context.Context, adminID uint, req *models.CreateBillRequest) (*models.MaintenanceBill, error) {
	if req.Amount <= 0 {
		return nil, apperrors.Validation("amount must be positive")
	}
	if !req.DueDate.After(req.BillDate) {
		return nil, apperrors.Validation("dueDate must fall after billDate")
	}

	admin, err := s.users.GetByID(ctx, adminID)
	if err != nil {
		return nil, apperrors.Internal("failed to load admin", err)
	}
	flat, err := s.users.GetFlat(ctx, req.FlatID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NotFound("flat not found")
		}
		return nil, apperrors.Internal("failed to load flat", err)
	}
	if admin.SocietyID == nil || flat.SocietyID != *admin.SocietyID {
		return nil, apperrors.Forbidden("flat belongs to another society")
	}

	if _, err := s.bills.GetByFlatAndPeriod(ctx, req.FlatID, req.BillPeriod); err == nil {
		return nil, apperrors.Conflict("a bill already exists for this flat and period")
	} else if err != gorm.ErrRecordNotFound {
		return nil, apperrors.Internal("failed to check existing bills", err)
	}

	bill := &models.MaintenanceBill{
		FlatID:     req.FlatID,
		SocietyID:  flat.SocietyID,
		BillNumber: newBillNumber(req.BillPeriod, req.FlatID),
		BillPeriod: req.BillPeriod,
		Amount:     req.Amount,
		Status:     models.BillStatusPending,
		BillDate:   req.BillDate,
		DueDate:    req.DueDate,
		Breakdown:  datatypes.NewJSONType(req.Breakdown),
		Notes:      req.Notes,
	}
	bill.QRCode = s.upiPayload(bill)
	if err := s.bills.Create(ctx, bill); err != nil {
		return nil, apperrors.Internal("failed to create bill", err)
	}

	s.notifyFlat(ctx, bill, "New maintenance bill",
		fmt.Sprintf("Bill %s for %.2f is due %s", bill.BillNumber, bill.Amount, bill.DueDate.Format("Jan 2")))
	s.events.Publish("billing.bill.created", bill)
	return bill, nil
}

// Get returns one bill with its payments. The late fee of an unpaid
// bill is recomputed on every read and persisted when it moved, so the
// stored row never lags the real liability.
func (s *BillingService) Get(ctx context.Context, billID uint) (*models.MaintenanceBill, error) {
	bill, err := s.bills.GetByID(ctx, billID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NotFound("bill not found")
		}
		return nil, apperrors.Internal("failed to load bill", err)
	}

	if bill.Status != models.BillStatusPaid {
		now := time.Now()
		if fee := models.CalculateLateFee(bill.Amount, bill.DueDate, now); fee > bill.LateFee {
			bill.LateFee = fee
			bill.Status = bill.DeriveStatus(now)
			if err := s.bills.Update(ctx, bill); err != nil {
				s.logger.WithError(err).WithField("bill_id", bill.ID).Warn("Failed to persist recomputed late fee")
			}
		}
	}
	return bill, nil
}

// ListByFlat returns a flat's bills, paginated
func (s *BillingService) ListByFlat(ctx context.Context, flatID uint, status string, page, limit int) (*models.PaginatedResponse, error) {
	page, limit, offset := paginate(page, limit)
	bills, total, err := s.bills.ListByFlat(ctx, flatID, status, offset, limit)
	if err != nil {
		return nil, apperrors.Internal("failed to list bills", err)
	}
	resp := models.NewPaginatedResponse(bills, total, page, limit)
	return &resp, nil
}

// ListBySociety returns a society's bills, paginated
func (s *BillingService) ListBySociety(ctx context.Context, societyID uint, status string, page, limit int) (*models.PaginatedResponse, error) {
	page, limit, offset := paginate(page, limit)
	bills, total, err := s.bills.ListBySociety(ctx, societyID, status, offset, limit)
	if err != nil {
		return nil, apperrors.Internal("failed to list bills", err)
	}
	resp := models.NewPaginatedResponse(bills, total, page, limit)
	return &resp, nil
}

// Summary aggregates amounts across a flat's bills
func (s *BillingService) Summary(ctx context.Context, flatID uint) (*models.BillSummary, error) {
	summary, err := s.bills.Summary(ctx, flatID)
	if err != nil {
		return nil, apperrors.Internal("failed to build summary", err)
	}
	return summary, nil
}

// RecordPayment applies a payment to a bill. The late fee is frozen at
// payment time so the receipt never drifts.
func (s *BillingService) RecordPayment(ctx context.Context, userID, billID uint, req *models.RecordPaymentRequest) (*models.MaintenanceBill, error) {
	if req.Amount <= 0 {
		return nil, apperrors.Validation("amount must be positive")
	}

	bill, err := s.Get(ctx, billID)
	if err != nil {
		return nil, err
	}
	if bill.Status == models.BillStatusPaid {
		return nil, apperrors.Conflict("bill is already paid")
	}

	now := time.Now()
	if fee := models.CalculateLateFee(bill.Amount, bill.DueDate, now); fee > bill.LateFee {
		bill.LateFee = fee
	}

	outstanding := bill.Amount + bill.LateFee - bill.PaidAmount
	if req.Amount > outstanding {
		return nil, apperrors.Validation("amount exceeds outstanding balance of %.2f", outstanding)
	}

	payment := &models.Payment{
		BillID:          billID,
		UserID:          userID,
		TransactionID:   uuid.New().String(),
		Amount:          req.Amount,
		PaymentMethod:   req.PaymentMethod,
		PaymentDate:     now,
		ReferenceNumber: req.ReferenceNumber,
		Notes:           req.Notes,
	}
	if req.Metadata != nil {
		payment.Metadata = datatypes.JSONMap(req.Metadata)
	}

	bill.PaidAmount += req.Amount
	bill.Status = bill.DeriveStatus(now)
	if bill.Status == models.BillStatusPaid {
		bill.PaidDate = &now
	}

	if err := s.bills.RecordPayment(ctx, payment, bill); err != nil {
		return nil, apperrors.Internal("failed to record payment", err)
	}

	s.events.Publish("billing.payment.recorded", payment)
	return s.Get(ctx, billID)
}

// ListPayments returns the payments recorded against a bill
func (s *BillingService) ListPayments(ctx context.Context, billID uint) ([]models.Payment, error) {
	if _, err := s.Get(ctx, billID); err != nil {
		return nil, err
	}
	payments, err := s.bills.ListPayments(ctx, billID)
	if err != nil {
		return nil, apperrors.Internal("failed to list payments", err)
	}
	return payments, nil
}

// SweepReminders flips past-due bills to overdue and nudges residents
// who have not been reminded within the interval. Safe to run
// repeatedly.
func (s *BillingService) SweepReminders(ctx context.Context, now time.Time, reminderInterval time.Duration) (int, error) {
	if _, err := s.bills.MarkOverdue(ctx, now); err != nil {
		return 0, fmt.Errorf("failed to mark overdue bills: %w", err)
	}

	due, err := s.bills.ListDueForReminder(ctx, now, now.Add(-reminderInterval))
	if err != nil {
		return 0, fmt.Errorf("failed to list bills for reminders: %w", err)
	}

	reminded := 0
	for i := range due {
		bill := &due[i]
		total := bill.TotalDue(now)
		s.notifyFlat(ctx, bill, "Maintenance bill overdue",
			fmt.Sprintf("Bill %s has %.2f outstanding including late fees", bill.BillNumber, total))
		if err := s.bills.TouchReminder(ctx, bill.ID, now); err != nil {
			s.logger.WithError(err).WithField("bill_id", bill.ID).Error("Failed to record reminder")
			continue
		}
		reminded++
	}

	if reminded > 0 {
		s.logger.WithField("reminded", reminded).Info("Billing reminder sweep completed")
	}
	return reminded, nil
}

func (s *BillingService) notifyFlat(ctx context.Context, bill *models.MaintenanceBill, title, body string) {
	residents, err := s.users.ListByFlat(ctx, bill.FlatID)
	if err != nil {
		s.logger.WithError(err).WithField("flat_id", bill.FlatID).Error("Failed to list flat residents")
		return
	}
	data := map[string]string{
		"type":    "billing",
		"bill_id": strconv.FormatUint(uint64(bill.ID), 10),
	}
	for i := range residents {
		r := &residents[i]
		if r.FCMToken == "" {
			continue
		}
		if _, err := s.push.Send(ctx, r.FCMToken, title, body, data); err != nil {
			s.logger.WithError(err).WithField("user_id", r.ID).Warn("Failed to push billing notification")
		}
	}
}

func newBillNumber(period string, flatID uint) string {
	return fmt.Sprintf("BILL-%s-%d-%s", period, flatID, uuid.New().String()[:8])
}

// upiPayload builds the upi://pay deep link rendered as a QR code by the
// client. Empty when no collection VPA is configured.
func (s *BillingService) upiPayload(bill *models.MaintenanceBill) string {
	if s.cfg.UPIVPA == "" {
		return ""
	}
	q := url.Values{}
	q.Set("pa", s.cfg.UPIVPA)
	if s.cfg.PayeeName != "" {
		q.Set("pn", s.cfg.PayeeName)
	}
	q.Set("am", strconv.FormatFloat(bill.Amount, 'f', 2, 64))
	q.Set("tn", bill.BillNumber)
	q.Set("cu", "INR")
	return "upi://pay?" + q.Encode()
}
