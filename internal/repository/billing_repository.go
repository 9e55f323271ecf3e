package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"society-service/internal/models"
)

// BillingRepository handles database operations for bills and payments
type BillingRepository struct {
	db *gorm.DB
}

// NewBillingRepository creates a new billing repository
func NewBillingRepository(db *gorm.DB) *BillingRepository {
	return &BillingRepository{db: db}
}

// Create creates a new bill
func (r *BillingRepository) Create(ctx context.Context, bill *models.MaintenanceBill) error {
	return r.db.WithContext(ctx).Create(bill).Error
}

// GetByID retrieves a bill with its flat and payments preloaded
func (r *BillingRepository) GetByID(ctx context.Context, id uint) (*models.MaintenanceBill, error) {
	var bill models.MaintenanceBill
	err := r.db.WithContext(ctx).
		Preload("Flat").
		Preload("Payments").
		First(&bill, id).Error
	if err != nil {
		return nil, err
	}
	return &bill, nil
}

// GetByFlatAndPeriod retrieves the bill for one flat and period
func (r *BillingRepository) GetByFlatAndPeriod(ctx context.Context, flatID uint, period string) (*models.MaintenanceBill, error) {
	var bill models.MaintenanceBill
	err := r.db.WithContext(ctx).
		Where("flat_id = ? AND bill_period = ?", flatID, period).
		First(&bill).Error
	if err != nil {
		return nil, err
	}
	return &bill, nil
}

// ListByFlat retrieves a flat's bills, paginated, optionally filtered
// by status
func (r *BillingRepository) ListByFlat(ctx context.Context, flatID uint, status string, offset, limit int) ([]models.MaintenanceBill, int64, error) {
	var bills []models.MaintenanceBill
	var total int64

	query := r.db.WithContext(ctx).Model(&models.MaintenanceBill{}).Where("flat_id = ?", flatID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.
		Order("bill_date DESC").
		Offset(offset).
		Limit(limit).
		Find(&bills).Error
	return bills, total, err
}

// ListBySociety retrieves a society's bills, paginated, optionally
// filtered by status
func (r *BillingRepository) ListBySociety(ctx context.Context, societyID uint, status string, offset, limit int) ([]models.MaintenanceBill, int64, error) {
	var bills []models.MaintenanceBill
	var total int64

	query := r.db.WithContext(ctx).Model(&models.MaintenanceBill{}).Where("society_id = ?", societyID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.
		Preload("Flat").
		Order("bill_date DESC").
		Offset(offset).
		Limit(limit).
		Find(&bills).Error
	return bills, total, err
}

// Update saves bill changes
func (r *BillingRepository) Update(ctx context.Context, bill *models.MaintenanceBill) error {
	return r.db.WithContext(ctx).Save(bill).Error
}

// RecordPayment inserts the payment and applies the bill changes in one
// transaction so a failed insert never moves the bill state.
func (r *BillingRepository) RecordPayment(ctx context.Context, payment *models.Payment, bill *models.MaintenanceBill) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(payment).Error; err != nil {
			return err
		}
		return tx.Save(bill).Error
	})
}

// ListPayments retrieves the payments recorded against a bill
func (r *BillingRepository) ListPayments(ctx context.Context, billID uint) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("bill_id = ?", billID).
		Order("payment_date DESC").
		Find(&payments).Error
	return payments, err
}

// ListDueForReminder retrieves unpaid bills past due that have not been
// reminded since the cutoff
func (r *BillingRepository) ListDueForReminder(ctx context.Context, now, remindedBefore time.Time) ([]models.MaintenanceBill, error) {
	var bills []models.MaintenanceBill
	err := r.db.WithContext(ctx).
		Preload("Flat").
		Where("status IN ? AND due_date < ?", []string{models.BillStatusPending, models.BillStatusPartial, models.BillStatusOverdue}, now).
		Where("last_reminder_at IS NULL OR last_reminder_at < ?", remindedBefore).
		Find(&bills).Error
	return bills, err
}

// MarkOverdue flips pending bills past due to overdue. Partially paid
// bills keep their partial status, matching DeriveStatus. Returns how
// many rows changed.
func (r *BillingRepository) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.MaintenanceBill{}).
		Where("status = ? AND due_date < ?", models.BillStatusPending, now).
		Update("status", models.BillStatusOverdue)
	return result.RowsAffected, result.Error
}

// TouchReminder bumps the reminder bookkeeping on a bill
func (r *BillingRepository) TouchReminder(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.MaintenanceBill{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"reminder_count":   gorm.Expr("reminder_count + ?", 1),
			"last_reminder_at": at,
		}).Error
}

// Summary aggregates amounts across a flat's bills
func (r *BillingRepository) Summary(ctx context.Context, flatID uint) (*models.BillSummary, error) {
	var bills []models.MaintenanceBill
	err := r.db.WithContext(ctx).
		Where("flat_id = ?", flatID).
		Find(&bills).Error
	if err != nil {
		return nil, err
	}

	now := time.Now()
	summary := &models.BillSummary{}
	for i := range bills {
		b := &bills[i]
		summary.TotalBilled += b.Amount
		summary.TotalPaid += b.PaidAmount
		lateFee := b.LateFee
		if b.Status != models.BillStatusPaid {
			if computed := models.CalculateLateFee(b.Amount, b.DueDate, now); computed > lateFee {
				lateFee = computed
			}
			summary.PendingBills++
		}
		summary.TotalLateFee += lateFee
		due := b.Amount + lateFee - b.PaidAmount
		if due > 0 {
			summary.TotalDue += due
		}
	}
	return summary, nil
}
