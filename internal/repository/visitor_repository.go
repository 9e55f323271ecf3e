package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"society-service/internal/models"
)

// VisitorRepository handles database operations for visitor passes
type VisitorRepository struct {
	db *gorm.DB
}

// NewVisitorRepository creates a new visitor repository
func NewVisitorRepository(db *gorm.DB) *VisitorRepository {
	return &VisitorRepository{db: db}
}

// Create creates a new visitor pass
func (r *VisitorRepository) Create(ctx context.Context, pass *models.VisitorPass) error {
	return r.db.WithContext(ctx).Create(pass).Error
}

// GetByID retrieves a pass by id with the issuing resident preloaded
func (r *VisitorRepository) GetByID(ctx context.Context, id uint) (*models.VisitorPass, error) {
	var pass models.VisitorPass
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("User.Flat").
		First(&pass, id).Error
	if err != nil {
		return nil, err
	}
	return &pass, nil
}

// GetByOTP retrieves the newest pass carrying the given OTP
func (r *VisitorRepository) GetByOTP(ctx context.Context, otp string) (*models.VisitorPass, error) {
	var pass models.VisitorPass
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("User.Flat").
		Where("otp = ?", otp).
		Order("created_at DESC").
		First(&pass).Error
	if err != nil {
		return nil, err
	}
	return &pass, nil
}

// OTPInUse reports whether an undelivered pass already carries the OTP.
// Terminal passes release their code for reuse.
func (r *VisitorRepository) OTPInUse(ctx context.Context, otp string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.VisitorPass{}).
		Where("otp = ? AND status IN ?", otp,
			[]string{models.PassStatusPending, models.PassStatusApproved}).
		Count(&count).Error
	return count > 0, err
}

// ListByUser retrieves a resident's passes, paginated, optionally
// filtered by status
func (r *VisitorRepository) ListByUser(ctx context.Context, userID uint, status string, offset, limit int) ([]models.VisitorPass, int64, error) {
	var passes []models.VisitorPass
	var total int64

	query := r.db.WithContext(ctx).Model(&models.VisitorPass{}).Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&passes).Error
	return passes, total, err
}

// ListActiveBySociety retrieves approved passes currently inside the
// society (entered, not exited) for the guard dashboard
func (r *VisitorRepository) ListActiveBySociety(ctx context.Context, societyID uint) ([]models.VisitorPass, error) {
	var passes []models.VisitorPass
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("User.Flat").
		Joins("JOIN users ON users.id = visitor_passes.user_id").
		Where("users.society_id = ? AND visitor_passes.status = ? AND visitor_passes.entry_time IS NOT NULL AND visitor_passes.exit_time IS NULL",
			societyID, models.PassStatusApproved).
		Order("visitor_passes.entry_time DESC").
		Find(&passes).Error
	return passes, err
}

// ListValidBySociety retrieves passes whose validity window covers the
// given instant, for the expected-visitors view. Recurring weekday
// filtering happens in the service.
func (r *VisitorRepository) ListValidBySociety(ctx context.Context, societyID uint, at time.Time) ([]models.VisitorPass, error) {
	var passes []models.VisitorPass
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("User.Flat").
		Joins("JOIN users ON users.id = visitor_passes.user_id").
		Where("users.society_id = ? AND visitor_passes.status IN ? AND visitor_passes.valid_from <= ? AND visitor_passes.valid_until >= ?",
			societyID, []string{models.PassStatusApproved, models.PassStatusPending}, at, at).
		Order("visitor_passes.valid_until ASC").
		Find(&passes).Error
	return passes, err
}

// Update saves pass changes
func (r *VisitorRepository) Update(ctx context.Context, pass *models.VisitorPass) error {
	return r.db.WithContext(ctx).Save(pass).Error
}

// TransitionStatus flips a pass from one status to another, applying
// extra column changes in the same statement. The rows-affected count
// tells the caller whether it won the transition.
func (r *VisitorRepository) TransitionStatus(ctx context.Context, id uint, from, to string, fields map[string]interface{}) (bool, error) {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["status"] = to
	result := r.db.WithContext(ctx).Model(&models.VisitorPass{}).
		Where("id = ? AND status = ?", id, from).
		Updates(fields)
	return result.RowsAffected > 0, result.Error
}

// RecordEntry stamps the gate entry on an approved pass. The WHERE
// clause loses against a concurrent entry, so double scans are rejected.
func (r *VisitorRepository) RecordEntry(ctx context.Context, id, guardID uint, photo string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.VisitorPass{}).
		Where("id = ? AND status = ? AND entry_time IS NULL", id, models.PassStatusApproved).
		Updates(map[string]interface{}{
			"entry_time":     at,
			"guard_id_entry": guardID,
			"entry_photo":    photo,
		})
	return result.RowsAffected > 0, result.Error
}

// RecordExit stamps the gate exit and closes the pass. Recurring passes
// stay approved so the code keeps working on later visits.
func (r *VisitorRepository) RecordExit(ctx context.Context, id, guardID uint, recurring bool, at time.Time) (bool, error) {
	fields := map[string]interface{}{
		"exit_time":     at,
		"guard_id_exit": guardID,
	}
	if !recurring {
		fields["status"] = models.PassStatusUsed
	}
	result := r.db.WithContext(ctx).Model(&models.VisitorPass{}).
		Where("id = ? AND status = ? AND entry_time IS NOT NULL AND exit_time IS NULL",
			id, models.PassStatusApproved).
		Updates(fields)
	return result.RowsAffected > 0, result.Error
}

// ClearVisit resets the entry/exit stamps on a recurring pass so the
// next visit starts clean
func (r *VisitorRepository) ClearVisit(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&models.VisitorPass{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"entry_time":     nil,
			"exit_time":      nil,
			"guard_id_entry": nil,
			"guard_id_exit":  nil,
		}).Error
}

// ExpireLapsed flips pending and approved passes whose validity window
// has closed to expired, excluding pending approval requests (those are
// auto-rejected instead). Returns the ids it flipped.
func (r *VisitorRepository) ExpireLapsed(ctx context.Context, now time.Time) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.VisitorPass{}).
		Where("valid_until < ? AND (status = ? OR (status = ? AND approval_required = ?))",
			now, models.PassStatusApproved, models.PassStatusPending, false).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	err = r.db.WithContext(ctx).Model(&models.VisitorPass{}).
		Where("id IN ?", ids).
		Update("status", models.PassStatusExpired).Error
	return ids, err
}

// ListLapsedApprovalRequests retrieves guard-requested passes still
// pending past their approval window
func (r *VisitorRepository) ListLapsedApprovalRequests(ctx context.Context, now time.Time) ([]models.VisitorPass, error) {
	var passes []models.VisitorPass
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("status = ? AND approval_required = ? AND valid_until < ?",
			models.PassStatusPending, true, now).
		Find(&passes).Error
	return passes, err
}
