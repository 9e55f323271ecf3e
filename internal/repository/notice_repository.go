package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"society-service/internal/models"
)

// NoticeRepository handles database operations for notices
type NoticeRepository struct {
	db *gorm.DB
}

// NewNoticeRepository creates a new notice repository
func NewNoticeRepository(db *gorm.DB) *NoticeRepository {
	return &NoticeRepository{db: db}
}

// Create creates a new notice
func (r *NoticeRepository) Create(ctx context.Context, notice *models.Notice) error {
	return r.db.WithContext(ctx).Create(notice).Error
}

// GetByID retrieves a notice with its author preloaded
func (r *NoticeRepository) GetByID(ctx context.Context, id uint) (*models.Notice, error) {
	var notice models.Notice
	err := r.db.WithContext(ctx).
		Preload("Creator").
		First(&notice, id).Error
	if err != nil {
		return nil, err
	}
	return &notice, nil
}

// ListBySociety retrieves a society's active, unexpired notices,
// paginated, optionally filtered by type
func (r *NoticeRepository) ListBySociety(ctx context.Context, societyID uint, noticeType string, now time.Time, offset, limit int) ([]models.Notice, int64, error) {
	var notices []models.Notice
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Notice{}).
		Where("society_id = ? AND is_active = ?", societyID, true).
		Where("expiry_date IS NULL OR expiry_date > ?", now)
	if noticeType != "" {
		query = query.Where("type = ?", noticeType)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.
		Preload("Creator").
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&notices).Error
	return notices, total, err
}

// Update saves notice changes
func (r *NoticeRepository) Update(ctx context.Context, notice *models.Notice) error {
	return r.db.WithContext(ctx).Save(notice).Error
}

// Deactivate soft-deletes a notice
func (r *NoticeRepository) Deactivate(ctx context.Context, id uint) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Notice{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("is_active", false)
	return result.RowsAffected > 0, result.Error
}

// MarkRead records that a user saw a notice. Re-reads refresh the
// timestamp rather than erroring on the unique index.
func (r *NoticeRepository) MarkRead(ctx context.Context, noticeID, userID uint, at time.Time) error {
	rs := models.NoticeReadStatus{
		NoticeID: noticeID,
		UserID:   userID,
		ReadAt:   &at,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "notice_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"read_at", "updated_at"}),
		}).
		Create(&rs).Error
}

// SetMuted flips the per-user mute flag for a notice
func (r *NoticeRepository) SetMuted(ctx context.Context, noticeID, userID uint, muted bool) error {
	rs := models.NoticeReadStatus{
		NoticeID: noticeID,
		UserID:   userID,
		IsMuted:  muted,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "notice_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"is_muted", "updated_at"}),
		}).
		Create(&rs).Error
}

// GetReadStatuses retrieves a user's read rows for the given notices
func (r *NoticeRepository) GetReadStatuses(ctx context.Context, userID uint, noticeIDs []uint) ([]models.NoticeReadStatus, error) {
	if len(noticeIDs) == 0 {
		return nil, nil
	}
	var statuses []models.NoticeReadStatus
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND notice_id IN ?", userID, noticeIDs).
		Find(&statuses).Error
	return statuses, err
}

// CountUnread counts active notices in a society the user has not read
func (r *NoticeRepository) CountUnread(ctx context.Context, societyID, userID uint, now time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notice{}).
		Where("society_id = ? AND is_active = ?", societyID, true).
		Where("expiry_date IS NULL OR expiry_date > ?", now).
		Where("id NOT IN (?)",
			r.db.Model(&models.NoticeReadStatus{}).
				Select("notice_id").
				Where("user_id = ? AND read_at IS NOT NULL", userID)).
		Count(&count).Error
	return count, err
}
