package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"society-service/internal/apperrors"
	"society-service/internal/cache"
	"society-service/internal/models"
	"society-service/internal/providers"
)

// EmergencyStore is the persistence surface for alerts
type EmergencyStore interface {
	Create(ctx context.Context, emergency *models.Emergency) error
	GetByID(ctx context.Context, id uint) (*models.Emergency, error)
	GetActiveByUser(ctx context.Context, userID uint) (*models.Emergency, error)
	List(ctx context.Context, filter models.EmergencyFilter, offset, limit int) ([]models.Emergency, int64, error)
	Update(ctx context.Context, emergency *models.Emergency) error
	Resolve(ctx context.Context, id uint, status string, resolvedBy *uint, notes string, at time.Time) (bool, error)
	ListStaleActive(ctx context.Context, cutoff time.Time) ([]models.Emergency, error)
}

// EmergencyUserStore is the user surface the alert fan-out needs
type EmergencyUserStore interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	ListBySocietyAndRoles(ctx context.Context, societyID uint, roles []string) ([]models.User, error)
}

// EmergencyConfig carries the escalation settings. ContactNumber is the
// society control-room line rung on every alert; when empty the call
// falls back to the first guard on duty.
type EmergencyConfig struct {
	ContactNumber string
}

// EmergencyService manages the alert lifecycle and fan-out
type EmergencyService struct {
	alerts EmergencyStore
	users  EmergencyUserStore
	cache  cache.Cache
	push   providers.PushProvider
	sms    providers.SMSProvider
	events EventPublisher
	cfg    EmergencyConfig
	logger *logrus.Logger
}

// NewEmergencyService creates a new emergency service
func NewEmergencyService(alerts EmergencyStore, users EmergencyUserStore, c cache.Cache, push providers.PushProvider, sms providers.SMSProvider, events EventPublisher, cfg EmergencyConfig, logger *logrus.Logger) *EmergencyService {
	if logger == nil {
		logger = logrus.New()
	}
	return &EmergencyService{
		alerts: alerts,
		users:  users,
		cache:  c,
		push:   push,
		sms:    sms,
		events: events,
		cfg:    cfg,
		logger: logger,
	}
}

// Raise creates an alert and fans it out to the society. Repeated
// alerts from the same user inside the spam window are rejected.
func (s *EmergencyService) Raise(ctx context.Context, userID uint, req *models.CreateEmergencyRequest) (*models.Emergency, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to load user", err)
	}
	if user.SocietyID == nil {
		return nil, apperrors.Validation("user has no society")
	}

	active, err := s.alerts.GetActiveByUser(ctx, userID)
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, apperrors.Internal("failed to check active alerts", err)
	}
	if active != nil && time.Since(active.CreatedAt) < models.EmergencySpamWindow {
		return nil, apperrors.Conflict("an active alert already exists for this user")
	}

	emergency := &models.Emergency{
		UserID:      userID,
		SocietyID:   *user.SocietyID,
		Status:      models.EmergencyStatusActive,
		Description: req.Description,
	}
	if req.Location != nil {
		emergency.Location = datatypes.NewJSONType(*req.Location)
	}
	if err := s.alerts.Create(ctx, emergency); err != nil {
		return nil, apperrors.Internal("failed to create alert", err)
	}

	statusKey := cache.EmergencyStatusKey(emergency.ID)
	if err := s.cache.Set(ctx, statusKey, models.EmergencyStatusActive, models.EmergencyAutoResolveAfter); err != nil {
		s.logger.WithError(err).Warn("Failed to cache emergency status")
	}

	s.fanOut(ctx, emergency, user)

	if err := s.alerts.Update(ctx, emergency); err != nil {
		s.logger.WithError(err).WithField("emergency_id", emergency.ID).Warn("Failed to save fan-out bookkeeping")
	}
	s.events.Publish("emergency.raised", emergency)
	return emergency, nil
}

// fanOut pushes the alert to everyone in the society and rings the
// guards. Notification failures never fail the alert itself.
func (s *EmergencyService) fanOut(ctx context.Context, emergency *models.Emergency, raiser *models.User) {
	members, err := s.users.ListBySocietyAndRoles(ctx, emergency.SocietyID,
		[]string{models.RoleResident, models.RoleGuard, models.RoleAdmin})
	if err != nil {
		s.logger.WithError(err).Error("Failed to list society members for alert fan-out")
		return
	}

	title := "Emergency alert"
	body := fmt.Sprintf("%s raised an emergency", raiser.Name)
	if emergency.Description != "" {
		body = fmt.Sprintf("%s: %s", body, emergency.Description)
	}
	data := map[string]string{
		"type":         "emergency",
		"emergency_id": strconv.FormatUint(uint64(emergency.ID), 10),
	}

	var tokens []string
	var notified []uint
	var guardPhone string
	for i := range members {
		m := &members[i]
		if m.ID == raiser.ID {
			continue
		}
		if m.FCMToken != "" {
			tokens = append(tokens, m.FCMToken)
			notified = append(notified, m.ID)
		}
		if m.Role == models.RoleGuard && guardPhone == "" {
			guardPhone = m.PhoneNumber
		}
	}

	if len(tokens) > 0 {
		if _, err := s.push.SendMulticast(ctx, tokens, title, body, data); err != nil {
			s.logger.WithError(err).Error("Failed to push emergency alert")
		}
	}
	if _, err := s.push.SendTopic(ctx, models.EmergencyAdminTopic(emergency.SocietyID), title, body, data); err != nil {
		s.logger.WithError(err).Warn("Failed to push emergency alert to admin topic")
	}
	emergency.NotifiedUsers = datatypes.NewJSONSlice(notified)

	contact := s.cfg.ContactNumber
	if contact == "" {
		contact = guardPhone
	}
	if contact != "" {
		message := fmt.Sprintf("Emergency alert in your society raised by %s. Please respond immediately.", raiser.Name)
		sid, err := s.sms.PlaceCall(ctx, contact, message)
		if err != nil {
			s.logger.WithError(err).Warn("Failed to place emergency call")
		} else {
			emergency.CallInitiated = true
			emergency.CallSID = sid
		}
	}
}

// Resolve closes an active alert. Only the raiser, a guard, or an admin
// of the same society may resolve it.
func (s *EmergencyService) Resolve(ctx context.Context, userID, emergencyID uint, req *models.ResolveEmergencyRequest) (*models.Emergency, error) {
	if req.Status != models.EmergencyStatusResolved && req.Status != models.EmergencyStatusFalseAlarm {
		return nil, apperrors.Validation("status must be resolved or false_alarm")
	}

	emergency, err := s.get(ctx, emergencyID)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to load user", err)
	}
	if !s.canResolve(user, emergency) {
		return nil, apperrors.Forbidden("not allowed to resolve this alert")
	}

	resolvedBy := userID
	ok, err := s.alerts.Resolve(ctx, emergencyID, req.Status, &resolvedBy, req.Notes, time.Now())
	if err != nil {
		return nil, apperrors.Internal("failed to resolve alert", err)
	}
	if !ok {
		return nil, apperrors.Conflict("alert is no longer active")
	}

	if err := s.cache.Set(ctx, cache.EmergencyStatusKey(emergencyID), req.Status, time.Hour); err != nil {
		s.logger.WithError(err).Warn("Failed to update cached emergency status")
	}

	emergency, err = s.get(ctx, emergencyID)
	if err != nil {
		return nil, err
	}
	s.notifyOutcome(ctx, emergency, user)
	s.events.Publish("emergency.resolved", emergency)
	return emergency, nil
}

// notifyOutcome tells the raiser and everyone who saw the alert how it
// ended. Push failures never fail the resolution.
func (s *EmergencyService) notifyOutcome(ctx context.Context, emergency *models.Emergency, resolver *models.User) {
	title := "Emergency resolved"
	if emergency.Status == models.EmergencyStatusFalseAlarm {
		title = "Emergency marked false alarm"
	}
	body := fmt.Sprintf("The alert was closed by %s", resolver.Name)
	data := map[string]string{
		"type":         "emergency_resolved",
		"emergency_id": strconv.FormatUint(uint64(emergency.ID), 10),
		"status":       emergency.Status,
	}

	if raiser, err := s.users.GetByID(ctx, emergency.UserID); err == nil && raiser.FCMToken != "" {
		if _, err := s.push.Send(ctx, raiser.FCMToken, title, body, data); err != nil {
			s.logger.WithError(err).Warn("Failed to push resolution to raiser")
		}
	}

	var tokens []string
	for _, id := range emergency.NotifiedUsers {
		if id == emergency.UserID {
			continue
		}
		member, err := s.users.GetByID(ctx, id)
		if err != nil || member.FCMToken == "" {
			continue
		}
		tokens = append(tokens, member.FCMToken)
	}
	if len(tokens) > 0 {
		if _, err := s.push.SendMulticast(ctx, tokens, title, body, data); err != nil {
			s.logger.WithError(err).Warn("Failed to push resolution to notified users")
		}
	}
}

func (s *EmergencyService) canResolve(user *models.User, emergency *models.Emergency) bool {
	if user.ID == emergency.UserID {
		return true
	}
	if user.SocietyID == nil || *user.SocietyID != emergency.SocietyID {
		return false
	}
	return user.Role == models.RoleGuard || user.Role == models.RoleAdmin
}

// Get returns one alert
func (s *EmergencyService) Get(ctx context.Context, emergencyID uint) (*models.Emergency, error) {
	return s.get(ctx, emergencyID)
}

// List returns alert history matching the filter, paginated
func (s *EmergencyService) List(ctx context.Context, filter models.EmergencyFilter, page, limit int) (*models.PaginatedResponse, error) {
	page, limit, offset := paginate(page, limit)
	alerts, total, err := s.alerts.List(ctx, filter, offset, limit)
	if err != nil {
		return nil, apperrors.Internal("failed to list alerts", err)
	}
	resp := models.NewPaginatedResponse(alerts, total, page, limit)
	return &resp, nil
}

// SweepStale auto-resolves alerts that stayed active past the cutoff.
// Safe to run repeatedly.
func (s *EmergencyService) SweepStale(ctx context.Context, now time.Time) (int, error) {
	stale, err := s.alerts.ListStaleActive(ctx, now.Add(-models.EmergencyAutoResolveAfter))
	if err != nil {
		return 0, fmt.Errorf("failed to list stale alerts: %w", err)
	}

	resolved := 0
	for i := range stale {
		e := &stale[i]
		ok, err := s.alerts.Resolve(ctx, e.ID, models.EmergencyStatusResolved, nil, models.AutoResolveNote, now)
		if err != nil {
			s.logger.WithError(err).WithField("emergency_id", e.ID).Error("Failed to auto-resolve alert")
			continue
		}
		if !ok {
			continue
		}
		resolved++
		if err := s.cache.Set(ctx, cache.EmergencyStatusKey(e.ID), models.EmergencyStatusResolved, time.Hour); err != nil {
			s.logger.WithError(err).Warn("Failed to update cached emergency status")
		}
		s.events.Publish("emergency.resolved", e)
	}

	if resolved > 0 {
		s.logger.WithField("resolved", resolved).Info("Emergency sweep completed")
	}
	return resolved, nil
}

func (s *EmergencyService) get(ctx context.Context, id uint) (*models.Emergency, error) {
	emergency, err := s.alerts.GetByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NotFound("alert not found")
		}
		return nil, apperrors.Internal("failed to load alert", err)
	}
	return emergency, nil
}
