package services

import (
	"context"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"society-service/internal/apperrors"
	"society-service/internal/models"
)

// UserDirectory is the persistence surface for profiles and societies
type UserDirectory interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error
	ListBySociety(ctx context.Context, societyID uint, offset, limit int) ([]models.User, int64, error)
	GetSociety(ctx context.Context, id uint) (*models.Society, error)
	ListSocieties(ctx context.Context) ([]models.Society, error)
	GetFlat(ctx context.Context, id uint) (*models.Flat, error)
	ListFlats(ctx context.Context, societyID uint) ([]models.Flat, error)
}

// UserService manages profiles and the society directory
type UserService struct {
	users  UserDirectory
	logger *logrus.Logger
}

// NewUserService creates a new user service
func NewUserService(users UserDirectory, logger *logrus.Logger) *UserService {
	if logger == nil {
		logger = logrus.New()
	}
	return &UserService{users: users, logger: logger}
}

// GetProfile returns the user's profile with society and flat
func (s *UserService) GetProfile(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, apperrors.Internal("failed to load profile", err)
	}
	return user, nil
}

// UpdateProfile completes onboarding or edits an existing profile.
// The role is assigned exactly once; residents must name a flat in the
// society they join.
func (s *UserService) UpdateProfile(ctx context.Context, userID uint, req *models.UpdateProfileRequest) (*models.User, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Role != "" {
		if user.Registered() && user.Role != req.Role {
			return nil, apperrors.Conflict("role is already assigned")
		}
		switch req.Role {
		case models.RoleResident, models.RoleGuard, models.RoleAdmin:
		default:
			return nil, apperrors.Validation("unknown role %q", req.Role)
		}
		user.Role = req.Role
	}

	if req.Name != "" {
		user.Name = req.Name
	}

	if req.SocietyID != nil {
		society, err := s.users.GetSociety(ctx, *req.SocietyID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, apperrors.NotFound("society not found")
			}
			return nil, apperrors.Internal("failed to load society", err)
		}
		if !society.IsActive {
			return nil, apperrors.Validation("society is not active")
		}
		user.SocietyID = req.SocietyID
	}

	if req.FlatID != nil {
		flat, err := s.users.GetFlat(ctx, *req.FlatID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, apperrors.NotFound("flat not found")
			}
			return nil, apperrors.Internal("failed to load flat", err)
		}
		if user.SocietyID == nil || flat.SocietyID != *user.SocietyID {
			return nil, apperrors.Validation("flat does not belong to the selected society")
		}
		user.FlatID = req.FlatID
	}

	// Onboarding finishes once the role and required associations exist
	if user.Registered() && user.Status == models.UserStatusPendingProfile {
		switch user.Role {
		case models.RoleResident:
			if user.Name != "" && user.SocietyID != nil && user.FlatID != nil {
				user.Status = models.UserStatusActive
			}
		case models.RoleGuard, models.RoleAdmin:
			if user.Name != "" && user.SocietyID != nil {
				user.Status = models.UserStatusActive
			}
		}
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.Internal("failed to update profile", err)
	}
	return user, nil
}

// UpdateFCMToken refreshes the device push token
func (s *UserService) UpdateFCMToken(ctx context.Context, userID uint, token string) error {
	if token == "" {
		return apperrors.Validation("fcmToken is required")
	}
	if err := s.users.UpdateFields(ctx, userID, map[string]interface{}{"fcm_token": token}); err != nil {
		return apperrors.Internal("failed to update FCM token", err)
	}
	return nil
}

// UpdatePreferences replaces the user's notification and display settings
func (s *UserService) UpdatePreferences(ctx context.Context, userID uint, prefs models.Preferences) (*models.User, error) {
	if prefs.Language == "" {
		prefs.Language = models.DefaultPreferences().Language
	}
	if err := s.users.UpdateFields(ctx, userID, map[string]interface{}{"preferences": datatypes.NewJSONType(prefs)}); err != nil {
		return nil, apperrors.Internal("failed to update preferences", err)
	}
	return s.GetProfile(ctx, userID)
}

// SetBlocked blocks or unblocks a user. Admin only, enforced by the
// caller's route.
func (s *UserService) SetBlocked(ctx context.Context, adminID, targetID uint, blocked bool) error {
	if adminID == targetID {
		return apperrors.Validation("cannot block yourself")
	}
	admin, err := s.GetProfile(ctx, adminID)
	if err != nil {
		return err
	}
	target, err := s.GetProfile(ctx, targetID)
	if err != nil {
		return err
	}
	if target.SocietyID == nil || admin.SocietyID == nil || *target.SocietyID != *admin.SocietyID {
		return apperrors.Forbidden("user belongs to another society")
	}

	status := models.UserStatusActive
	if blocked {
		status = models.UserStatusBlocked
	}
	if err := s.users.UpdateFields(ctx, targetID, map[string]interface{}{"status": status}); err != nil {
		return apperrors.Internal("failed to update user status", err)
	}
	s.logger.WithFields(logrus.Fields{
		"admin_id": adminID,
		"user_id":  targetID,
		"blocked":  blocked,
	}).Info("User block status changed")
	return nil
}

// ListMembers returns the users of a society, paginated
func (s *UserService) ListMembers(ctx context.Context, societyID uint, page, limit int) (*models.PaginatedResponse, error) {
	page, limit, offset := paginate(page, limit)
	users, total, err := s.users.ListBySociety(ctx, societyID, offset, limit)
	if err != nil {
		return nil, apperrors.Internal("failed to list members", err)
	}
	resp := models.NewPaginatedResponse(users, total, page, limit)
	return &resp, nil
}

// ListSocieties returns every registered society
func (s *UserService) ListSocieties(ctx context.Context) ([]models.Society, error) {
	societies, err := s.users.ListSocieties(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to list societies", err)
	}
	return societies, nil
}

// ListFlats returns the flats of a society
func (s *UserService) ListFlats(ctx context.Context, societyID uint) ([]models.Flat, error) {
	if _, err := s.users.GetSociety(ctx, societyID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NotFound("society not found")
		}
		return nil, apperrors.Internal("failed to load society", err)
	}
	flats, err := s.users.ListFlats(ctx, societyID)
	if err != nil {
		return nil, apperrors.Internal("failed to list flats", err)
	}
	return flats, nil
}

func paginate(page, limit int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit, (page - 1) * limit
}
