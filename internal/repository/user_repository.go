package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"society-service/internal/models"
)

// UserRepository handles database operations for users and societies
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// GetByID retrieves a user by id with society and flat preloaded
func (r *UserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Preload("Society").
		Preload("Flat").
		First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByPhone retrieves a user by phone number
func (r *UserRepository) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("phone_number = ?", phone).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Update saves user changes
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

// UpdateFields updates selected columns on a user
func (r *UserRepository) UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// ListByFlat retrieves active residents of a flat
func (r *UserRepository) ListByFlat(ctx context.Context, flatID uint) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("flat_id = ? AND role = ? AND status = ?", flatID, models.RoleResident, models.UserStatusActive).
		Find(&users).Error
	return users, err
}

// ListBySocietyAndRoles retrieves active users of the given roles in a society
func (r *UserRepository) ListBySocietyAndRoles(ctx context.Context, societyID uint, roles []string) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("society_id = ? AND role IN ? AND status = ?", societyID, roles, models.UserStatusActive).
		Find(&users).Error
	return users, err
}

// ListBySociety retrieves all users in a society, paginated
func (r *UserRepository) ListBySociety(ctx context.Context, societyID uint, offset, limit int) ([]models.User, int64, error) {
	var users []models.User
	var total int64

	query := r.db.WithContext(ctx).Model(&models.User{}).Where("society_id = ?", societyID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&users).Error
	return users, total, err
}

// GetSociety retrieves a society by id
func (r *UserRepository) GetSociety(ctx context.Context, id uint) (*models.Society, error) {
	var society models.Society
	err := r.db.WithContext(ctx).First(&society, id).Error
	if err != nil {
		return nil, err
	}
	return &society, nil
}

// ListSocieties retrieves all societies
func (r *UserRepository) ListSocieties(ctx context.Context) ([]models.Society, error) {
	var societies []models.Society
	err := r.db.WithContext(ctx).Order("name").Find(&societies).Error
	return societies, err
}

// GetFlat retrieves a flat by id
func (r *UserRepository) GetFlat(ctx context.Context, id uint) (*models.Flat, error) {
	var flat models.Flat
	err := r.db.WithContext(ctx).First(&flat, id).Error
	if err != nil {
		return nil, err
	}
	return &flat, nil
}

// ListFlats retrieves the flats of a society
func (r *UserRepository) ListFlats(ctx context.Context, societyID uint) ([]models.Flat, error) {
	var flats []models.Flat
	err := r.db.WithContext(ctx).
		Where("society_id = ?", societyID).
		Order("flat_number").
		Find(&flats).Error
	return flats, err
}

// TokenRepository handles refresh-token sessions
type TokenRepository struct {
	db *gorm.DB
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(db *gorm.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Create stores a new refresh token
func (r *TokenRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

// GetByToken retrieves a refresh token by its value
func (r *TokenRepository) GetByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	var rt models.RefreshToken
	err := r.db.WithContext(ctx).
		Where("token = ?", token).
		First(&rt).Error
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

// ListByUser retrieves a user's sessions, newest first
func (r *TokenRepository) ListByUser(ctx context.Context, userID uint) ([]models.RefreshToken, error) {
	var tokens []models.RefreshToken
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&tokens).Error
	return tokens, err
}

// Delete removes one refresh token by value
func (r *TokenRepository) Delete(ctx context.Context, token string) error {
	return r.db.WithContext(ctx).
		Where("token = ?", token).
		Delete(&models.RefreshToken{}).Error
}

// DeleteByID removes one session by id, scoped to the user
func (r *TokenRepository) DeleteByID(ctx context.Context, userID, tokenID uint) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", tokenID, userID).
		Delete(&models.RefreshToken{})
	return result.RowsAffected, result.Error
}

// DeleteAllForUser removes every session of a user
func (r *TokenRepository) DeleteAllForUser(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.RefreshToken{}).Error
}

// TrimSessions keeps only the newest max sessions for a user
func (r *TokenRepository) TrimSessions(ctx context.Context, userID uint, max int) error {
	var keep []uint
	err := r.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(max).
		Pluck("id", &keep).Error
	if err != nil {
		return err
	}
	if len(keep) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("user_id = ? AND id NOT IN ?", userID, keep).
		Delete(&models.RefreshToken{}).Error
}

// DeleteExpired drops expired sessions (cleanup)
func (r *TokenRepository) DeleteExpired(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Where("expires_at < ?", time.Now()).
		Delete(&models.RefreshToken{}).Error
}
