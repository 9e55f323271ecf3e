package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"society-service/internal/models"
)

// EmergencyRepository handles database operations for emergency alerts
type EmergencyRepository struct {
	db *gorm.DB
}

// NewEmergencyRepository creates a new emergency repository
func NewEmergencyRepository(db *gorm.DB) *EmergencyRepository {
	return &EmergencyRepository{db: db}
}

// Create creates a new emergency alert
func (r *EmergencyRepository) Create(ctx context.Context, emergency *models.Emergency) error {
	return r.db.WithContext(ctx).Create(emergency).Error
}

// GetByID retrieves an alert with the raiser and resolver preloaded
func (r *EmergencyRepository) GetByID(ctx context.Context, id uint) (*models.Emergency, error) {
	var emergency models.Emergency
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("User.Flat").
		Preload("Resolver").
		First(&emergency, id).Error
	if err != nil {
		return nil, err
	}
	return &emergency, nil
}

// GetActiveByUser retrieves the newest active alert raised by a user
func (r *EmergencyRepository) GetActiveByUser(ctx context.Context, userID uint) (*models.Emergency, error) {
	var emergency models.Emergency
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.EmergencyStatusActive).
		Order("created_at DESC").
		First(&emergency).Error
	if err != nil {
		return nil, err
	}
	return &emergency, nil
}

// List retrieves alert history matching the filter, paginated
func (r *EmergencyRepository) List(ctx context.Context, filter models.EmergencyFilter, offset, limit int) ([]models.Emergency, int64, error) {
	var emergencies []models.Emergency
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Emergency{}).Where("society_id = ?", filter.SocietyID)
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", *filter.To)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.
		Preload("User").
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&emergencies).Error
	return emergencies, total, err
}

// Update saves alert changes
func (r *EmergencyRepository) Update(ctx context.Context, emergency *models.Emergency) error {
	return r.db.WithContext(ctx).Save(emergency).Error
}

// Resolve flips an active alert to the given terminal status. The
// rows-affected count tells the caller whether it won the transition.
func (r *EmergencyRepository) Resolve(ctx context.Context, id uint, status string, resolvedBy *uint, notes string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Emergency{}).
		Where("id = ? AND status = ?", id, models.EmergencyStatusActive).
		Updates(map[string]interface{}{
			"status":           status,
			"resolved_by":      resolvedBy,
			"resolved_at":      at,
			"resolution_notes": notes,
		})
	return result.RowsAffected > 0, result.Error
}

// ListStaleActive retrieves active alerts older than the cutoff
func (r *EmergencyRepository) ListStaleActive(ctx context.Context, cutoff time.Time) ([]models.Emergency, error) {
	var emergencies []models.Emergency
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.EmergencyStatusActive, cutoff).
		Find(&emergencies).Error
	return emergencies, err
}
