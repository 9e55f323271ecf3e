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
	"society-service/pkg/otp"
)

// otpGenerationAttempts bounds retries when a generated code collides
// with another live pass
const otpGenerationAttempts = 5

// VisitorPassStore is the persistence surface for passes
type VisitorPassStore interface {
	Create(ctx context.Context, pass *models.VisitorPass) error
	GetByID(ctx context.Context, id uint) (*models.VisitorPass, error)
	GetByOTP(ctx context.Context, otp string) (*models.VisitorPass, error)
	OTPInUse(ctx context.Context, otp string) (bool, error)
	ListByUser(ctx context.Context, userID uint, status string, offset, limit int) ([]models.VisitorPass, int64, error)
	ListActiveBySociety(ctx context.Context, societyID uint) ([]models.VisitorPass, error)
	ListValidBySociety(ctx context.Context, societyID uint, at time.Time) ([]models.VisitorPass, error)
	TransitionStatus(ctx context.Context, id uint, from, to string, fields map[string]interface{}) (bool, error)
	RecordEntry(ctx context.Context, id, guardID uint, photo string, at time.Time) (bool, error)
	RecordExit(ctx context.Context, id, guardID uint, recurring bool, at time.Time) (bool, error)
	ClearVisit(ctx context.Context, id uint) error
	ExpireLapsed(ctx context.Context, now time.Time) ([]uint, error)
	ListLapsedApprovalRequests(ctx context.Context, now time.Time) ([]models.VisitorPass, error)
}

// VisitorService manages the visitor-pass lifecycle
type VisitorService struct {
	passes VisitorPassStore
	users  AuthUserStore
	cache  cache.Cache
	push   providers.PushProvider
	sms    providers.SMSProvider
	events EventPublisher
	otpGen *otp.Generator
	logger *logrus.Logger
}

// NewVisitorService creates a new visitor service
func NewVisitorService(passes VisitorPassStore, users AuthUserStore, c cache.Cache, push providers.PushProvider, sms providers.SMSProvider, events EventPublisher, otpGen *otp.Generator, logger *logrus.Logger) *VisitorService {
	if logger == nil {
		logger = logrus.New()
	}
	return &VisitorService{
		passes: passes,
		users:  users,
		cache:  c,
		push:   push,
		sms:    sms,
		events: events,
		otpGen: otpGen,
		logger: logger,
	}
}

// CreatePass issues a pass for an expected visitor and texts the gate
// code to the visitor. The pass stays pending until the first gate
// verification admits the visitor.
func (s *VisitorService) CreatePass(ctx context.Context, residentID uint, req *models.CreatePassRequest) (*models.VisitorPass, error) {
	if req.ValidityHours < models.MinPassValidityHours || req.ValidityHours > models.MaxPassValidityHours {
		return nil, apperrors.Validation("validityHours must be between %d and %d",
			models.MinPassValidityHours, models.MaxPassValidityHours)
	}
	if req.IsRecurring {
		if len(req.RecurringDays) == 0 {
			return nil, apperrors.Validation("recurringDays is required for a recurring pass")
		}
		for _, d := range req.RecurringDays {
			if d < 0 || d > 6 {
				return nil, apperrors.Validation("recurringDays entries must be 0 (Sunday) through 6 (Saturday)")
			}
		}
	}

	resident, err := s.users.GetByID(ctx, residentID)
	if err != nil {
		return nil, apperrors.Internal("failed to load resident", err)
	}
	if resident.Role != models.RoleResident || resident.FlatID == nil {
		return nil, apperrors.Forbidden("only residents with a flat can issue passes")
	}

	code, err := s.uniqueOTP(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	pass := &models.VisitorPass{
		UserID:        residentID,
		VisitorName:   req.VisitorName,
		VisitorPhone:  req.VisitorPhone,
		VehicleNumber: req.VehicleNumber,
		OTP:           code,
		Status:        models.PassStatusPending,
		ValidFrom:     now,
		ValidUntil:    now.Add(time.Duration(req.ValidityHours) * time.Hour),
		Purpose:       req.Purpose,
		IsRecurring:   req.IsRecurring,
		RecurringDays: datatypes.NewJSONSlice(req.RecurringDays),
	}
	if err := s.passes.Create(ctx, pass); err != nil {
		return nil, apperrors.Internal("failed to create pass", err)
	}

	s.cacheOTP(ctx, pass)

	body := fmt.Sprintf("Your visitor code is %s. Valid until %s.",
		code, pass.ValidUntil.Format("Jan 2 15:04"))
	if _, err := s.sms.SendSMS(ctx, req.VisitorPhone, body); err != nil {
		s.logger.WithError(err).WithField("pass_id", pass.ID).Warn("Failed to text visitor code")
	}

	s.events.Publish("visitor.pass.created", pass)
	return pass, nil
}

// RequestApproval registers a walk-in visitor on behalf of a resident.
// The pass stays pending until the resident answers or the approval
// window lapses.
func (s *VisitorService) RequestApproval(ctx context.Context, guardID uint, req *models.RequestApprovalRequest) (*models.VisitorPass, error) {
	guard, err := s.users.GetByID(ctx, guardID)
	if err != nil {
		return nil, apperrors.Internal("failed to load guard", err)
	}
	resident, err := s.users.GetByID(ctx, req.ResidentID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NotFound("resident not found")
		}
		return nil, apperrors.Internal("failed to load resident", err)
	}
	if resident.Role != models.RoleResident {
		return nil, apperrors.Validation("target user is not a resident")
	}
	if guard.SocietyID == nil || resident.SocietyID == nil || *guard.SocietyID != *resident.SocietyID {
		return nil, apperrors.Forbidden("resident belongs to another society")
	}

	code, err := s.uniqueOTP(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	pass := &models.VisitorPass{
		UserID:           req.ResidentID,
		VisitorName:      req.VisitorName,
		VisitorPhone:     req.VisitorPhone,
		VehicleNumber:    req.VehicleNumber,
		OTP:              code,
		Status:           models.PassStatusPending,
		ValidFrom:        now,
		ValidUntil:       now.Add(models.ApprovalWindow),
		Purpose:          req.Purpose,
		ApprovalRequired: true,
		EntryPhoto:       req.Photo,
	}
	if err := s.passes.Create(ctx, pass); err != nil {
		return nil, apperrors.Internal("failed to create approval request", err)
	}

	if resident.FCMToken != "" {
		data := map[string]string{
			"type":    "visitor_approval",
			"pass_id": strconv.FormatUint(uint64(pass.ID), 10),
		}
		body := fmt.Sprintf("%s is waiting at the gate. Approve within %d minutes.",
			req.VisitorName, int(models.ApprovalWindow.Minutes()))
		if _, err := s.push.Send(ctx, resident.FCMToken, "Visitor at the gate", body, data); err != nil {
			s.logger.WithError(err).WithField("pass_id", pass.ID).Warn("Failed to push approval request")
		}
	}

	s.events.Publish("visitor.approval.requested", pass)
	return pass, nil
}

// Answer resolves a pending approval request. Approving extends the
// validity window; a request whose window already lapsed is finalized
// as auto-rejected even if the sweep has not reached it yet.
func (s *VisitorService) Answer(ctx context.Context, residentID, passID uint, req *models.ApprovePassRequest) (*models.VisitorPass, error) {
	pass, err := s.getPass(ctx, passID)
	if err != nil {
		return nil, err
	}
	if pass.UserID != residentID {
		return nil, apperrors.Forbidden("pass belongs to another resident")
	}
	if !pass.ApprovalRequired || pass.Status != models.PassStatusPending {
		return nil, apperrors.Conflict("pass is not awaiting approval")
	}

	now := time.Now()
	if now.After(pass.ValidUntil) {
		ok, err := s.passes.TransitionStatus(ctx, passID, models.PassStatusPending, models.PassStatusRejected,
			map[string]interface{}{"rejection_reason": models.AutoRejectReason})
		if err != nil {
			return nil, apperrors.Internal("failed to finalize lapsed request", err)
		}
		if ok {
			s.events.Publish("visitor.pass.rejected", pass)
		}
		return nil, apperrors.Conflict("approval window has lapsed")
	}

	if req.Approved {
		ok, err := s.passes.TransitionStatus(ctx, passID, models.PassStatusPending, models.PassStatusApproved,
			map[string]interface{}{"valid_until": now.Add(models.ApprovalExtension)})
		if err != nil {
			return nil, apperrors.Internal("failed to approve pass", err)
		}
		if !ok {
			return nil, apperrors.Conflict("pass was already decided")
		}
	} else {
		reason := req.Reason
		if reason == "" {
			reason = "Rejected by resident"
		}
		ok, err := s.passes.TransitionStatus(ctx, passID, models.PassStatusPending, models.PassStatusRejected,
			map[string]interface{}{"rejection_reason": reason})
		if err != nil {
			return nil, apperrors.Internal("failed to reject pass", err)
		}
		if !ok {
			return nil, apperrors.Conflict("pass was already decided")
		}
	}

	pass, err = s.getPass(ctx, passID)
	if err != nil {
		return nil, err
	}
	if pass.Status == models.PassStatusApproved {
		s.cacheOTP(ctx, pass)
		s.events.Publish("visitor.pass.approved", pass)
	} else {
		s.events.Publish("visitor.pass.rejected", pass)
	}
	return pass, nil
}

// VerifyOTP resolves a gate code for the guard and admits the visitor:
// a pending pass is approved on its first verification, the entry is
// stamped against the guard and the resident is notified. One-off codes
// are consumed by a successful verification; a pass found outside its
// validity window is flipped to expired on the spot.
func (s *VisitorService) VerifyOTP(ctx context.Context, guardID uint, code string) (*models.PassOTPVerification, error) {
	code = otp.NormalizeCode(code)
	if !s.otpGen.Validate(code) {
		return nil, apperrors.Validation("invalid OTP format")
	}

	pass, err := s.lookupByOTP(ctx, code)
	if err != nil {
		return nil, err
	}
	if !pass.IsRecurring && pass.EntryTime != nil {
		// A consumed one-off code resolves like an unknown one
		return nil, apperrors.NotFound("no pass matches this code")
	}

	now := time.Now()
	if !pass.WithinValidity(now) {
		if pass.Status == models.PassStatusPending || pass.Status == models.PassStatusApproved {
			if _, err := s.passes.TransitionStatus(ctx, pass.ID, pass.Status, models.PassStatusExpired, nil); err != nil {
				s.logger.WithError(err).WithField("pass_id", pass.ID).Warn("Failed to expire lapsed pass")
			}
			s.dropCachedOTP(ctx, pass.OTP)
		}
		return nil, apperrors.Conflict("pass has expired")
	}
	if !pass.ExpectedOn(now) {
		return nil, apperrors.Conflict("recurring pass is not expected today")
	}

	switch pass.Status {
	case models.PassStatusApproved:
	case models.PassStatusPending:
		if pass.ApprovalRequired {
			return nil, apperrors.Conflict("pass is awaiting resident approval")
		}
		ok, err := s.passes.TransitionStatus(ctx, pass.ID, models.PassStatusPending, models.PassStatusApproved, nil)
		if err != nil {
			return nil, apperrors.Internal("failed to approve pass", err)
		}
		if !ok {
			return nil, apperrors.Conflict("pass was already decided")
		}
	default:
		return nil, apperrors.Conflict("pass is %s", pass.Status)
	}

	ok, err := s.passes.RecordEntry(ctx, pass.ID, guardID, "", now)
	if err != nil {
		return nil, apperrors.Internal("failed to record entry", err)
	}
	if !ok {
		return nil, apperrors.Conflict("entry was already recorded")
	}
	if !pass.IsRecurring {
		s.dropCachedOTP(ctx, pass.OTP)
	}

	s.notifyResident(ctx, pass, "Visitor arrived",
		fmt.Sprintf("%s entered the society", pass.VisitorName), "visitor_entry")
	s.events.Publish("visitor.entry", pass)

	pass, err = s.getPass(ctx, pass.ID)
	if err != nil {
		return nil, err
	}
	result := &models.PassOTPVerification{
		Pass:             pass,
		ApprovalRequired: pass.ApprovalRequired,
	}
	if pass.User != nil {
		result.ResidentName = pass.User.Name
		if pass.User.Flat != nil {
			result.FlatNumber = pass.User.Flat.FlatNumber
		}
	}
	return result, nil
}

// RecordMovement stamps a gate entry or exit on a pass
func (s *VisitorService) RecordMovement(ctx context.Context, guardID, passID uint, req *models.EntryExitRequest) (*models.VisitorPass, error) {
	pass, err := s.getPass(ctx, passID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	switch req.Action {
	case "entry":
		if pass.Status != models.PassStatusApproved {
			return nil, apperrors.Conflict("pass is %s", pass.Status)
		}
		if !pass.WithinValidity(now) {
			return nil, apperrors.Conflict("pass validity window has lapsed")
		}
		if !pass.ExpectedOn(now) {
			return nil, apperrors.Conflict("recurring pass is not expected today")
		}
		ok, err := s.passes.RecordEntry(ctx, passID, guardID, req.Photo, now)
		if err != nil {
			return nil, apperrors.Internal("failed to record entry", err)
		}
		if !ok {
			return nil, apperrors.Conflict("entry was already recorded")
		}
		s.notifyResident(ctx, pass, "Visitor arrived",
			fmt.Sprintf("%s entered the society", pass.VisitorName), "visitor_entry")
		s.events.Publish("visitor.entry", pass)

	case "exit":
		if pass.EntryTime == nil {
			return nil, apperrors.Conflict("entry has not been recorded")
		}
		ok, err := s.passes.RecordExit(ctx, passID, guardID, pass.IsRecurring, now)
		if err != nil {
			return nil, apperrors.Internal("failed to record exit", err)
		}
		if !ok {
			return nil, apperrors.Conflict("exit was already recorded")
		}
		if pass.IsRecurring {
			if err := s.passes.ClearVisit(ctx, passID); err != nil {
				s.logger.WithError(err).WithField("pass_id", passID).Warn("Failed to reset recurring pass")
			}
		}
		s.notifyResident(ctx, pass, "Visitor left",
			fmt.Sprintf("%s exited the society", pass.VisitorName), "visitor_exit")
		s.events.Publish("visitor.exit", pass)

	default:
		return nil, apperrors.Validation("action must be entry or exit")
	}

	return s.getPass(ctx, passID)
}

// Cancel withdraws a pass the resident no longer wants honored
func (s *VisitorService) Cancel(ctx context.Context, residentID, passID uint) (*models.VisitorPass, error) {
	pass, err := s.getPass(ctx, passID)
	if err != nil {
		return nil, err
	}
	if pass.UserID != residentID {
		return nil, apperrors.Forbidden("pass belongs to another resident")
	}
	if pass.Status != models.PassStatusPending && pass.Status != models.PassStatusApproved {
		return nil, apperrors.Conflict("pass is %s", pass.Status)
	}

	ok, err := s.passes.TransitionStatus(ctx, passID, pass.Status, models.PassStatusCancelled, nil)
	if err != nil {
		return nil, apperrors.Internal("failed to cancel pass", err)
	}
	if !ok {
		return nil, apperrors.Conflict("pass was already decided")
	}

	s.dropCachedOTP(ctx, pass.OTP)
	s.events.Publish("visitor.pass.cancelled", pass)
	return s.getPass(ctx, passID)
}

// ListPasses returns a resident's passes, paginated
func (s *VisitorService) ListPasses(ctx context.Context, residentID uint, status string, page, limit int) (*models.PaginatedResponse, error) {
	page, limit, offset := paginate(page, limit)
	passes, total, err := s.passes.ListByUser(ctx, residentID, status, offset, limit)
	if err != nil {
		return nil, apperrors.Internal("failed to list passes", err)
	}
	resp := models.NewPaginatedResponse(passes, total, page, limit)
	return &resp, nil
}

// GetPass returns one pass. Visible to the resident who owns it and to
// guards and admins of the owner's society.
func (s *VisitorService) GetPass(ctx context.Context, userID, passID uint) (*models.VisitorPass, error) {
	pass, err := s.getPass(ctx, passID)
	if err != nil {
		return nil, err
	}
	if pass.UserID == userID {
		return pass, nil
	}

	viewer, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to load user", err)
	}
	if viewer.Role != models.RoleGuard && viewer.Role != models.RoleAdmin {
		return nil, apperrors.Forbidden("pass belongs to another resident")
	}
	owner, err := s.users.GetByID(ctx, pass.UserID)
	if err != nil {
		return nil, apperrors.Internal("failed to load pass owner", err)
	}
	if viewer.SocietyID == nil || owner.SocietyID == nil || *viewer.SocietyID != *owner.SocietyID {
		return nil, apperrors.Forbidden("pass belongs to another society")
	}
	return pass, nil
}

// ListActive returns visitors currently inside the society
func (s *VisitorService) ListActive(ctx context.Context, societyID uint) ([]models.VisitorPass, error) {
	passes, err := s.passes.ListActiveBySociety(ctx, societyID)
	if err != nil {
		return nil, apperrors.Internal("failed to list active visitors", err)
	}
	return passes, nil
}

// ListExpected returns the passes the gate should expect at the given
// time: validity window covers it and, for recurring passes, the
// weekday is permitted.
func (s *VisitorService) ListExpected(ctx context.Context, societyID uint, at time.Time) ([]models.VisitorPass, error) {
	passes, err := s.passes.ListValidBySociety(ctx, societyID, at)
	if err != nil {
		return nil, apperrors.Internal("failed to list expected visitors", err)
	}
	expected := make([]models.VisitorPass, 0, len(passes))
	for _, pass := range passes {
		if pass.ExpectedOn(at) {
			expected = append(expected, pass)
		}
	}
	return expected, nil
}

// SweepLapsed expires passes past their validity window and auto-rejects
// approval requests the resident never answered. Safe to run repeatedly.
func (s *VisitorService) SweepLapsed(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.passes.ExpireLapsed(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire lapsed passes: %w", err)
	}

	lapsed, err := s.passes.ListLapsedApprovalRequests(ctx, now)
	if err != nil {
		return len(expired), fmt.Errorf("failed to list lapsed approval requests: %w", err)
	}

	rejected := 0
	for i := range lapsed {
		pass := &lapsed[i]
		ok, err := s.passes.TransitionStatus(ctx, pass.ID, models.PassStatusPending, models.PassStatusRejected,
			map[string]interface{}{"rejection_reason": models.AutoRejectReason})
		if err != nil {
			s.logger.WithError(err).WithField("pass_id", pass.ID).Error("Failed to auto-reject pass")
			continue
		}
		if !ok {
			continue
		}
		rejected++
		s.notifyResident(ctx, pass, "Visitor request expired",
			fmt.Sprintf("The request for %s was auto-rejected", pass.VisitorName), "visitor_auto_rejected")
		s.events.Publish("visitor.pass.rejected", pass)
	}

	if len(expired) > 0 || rejected > 0 {
		s.logger.WithFields(logrus.Fields{
			"expired":       len(expired),
			"auto_rejected": rejected,
		}).Info("Visitor pass sweep completed")
	}
	return len(expired) + rejected, nil
}

func (s *VisitorService) getPass(ctx context.Context, id uint) (*models.VisitorPass, error) {
	pass, err := s.passes.GetByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NotFound("pass not found")
		}
		return nil, apperrors.Internal("failed to load pass", err)
	}
	return pass, nil
}

func (s *VisitorService) lookupByOTP(ctx context.Context, code string) (*models.VisitorPass, error) {
	// Cache carries otp -> pass id for live passes; fall back to the
	// database when the entry is missing.
	cached, err := s.cache.Get(ctx, cache.VisitorOTPKey(code))
	if err == nil && cached != "" {
		if id, perr := strconv.ParseUint(cached, 10, 64); perr == nil {
			if pass, gerr := s.passes.GetByID(ctx, uint(id)); gerr == nil {
				return pass, nil
			}
		}
	}

	pass, err := s.passes.GetByOTP(ctx, code)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NotFound("no pass matches this code")
		}
		return nil, apperrors.Internal("failed to look up pass", err)
	}
	return pass, nil
}

func (s *VisitorService) uniqueOTP(ctx context.Context) (string, error) {
	for attempt := 0; attempt < otpGenerationAttempts; attempt++ {
		code, err := s.otpGen.Generate()
		if err != nil {
			return "", apperrors.Internal("failed to generate OTP", err)
		}
		inUse, err := s.passes.OTPInUse(ctx, code)
		if err != nil {
			return "", apperrors.Internal("failed to check OTP uniqueness", err)
		}
		if !inUse {
			return code, nil
		}
	}
	return "", apperrors.Internal("could not allocate a unique OTP", nil)
}

func (s *VisitorService) cacheOTP(ctx context.Context, pass *models.VisitorPass) {
	ttl := time.Until(pass.ValidUntil)
	if ttl <= 0 {
		return
	}
	key := cache.VisitorOTPKey(pass.OTP)
	if err := s.cache.Set(ctx, key, strconv.FormatUint(uint64(pass.ID), 10), ttl); err != nil {
		s.logger.WithError(err).WithField("pass_id", pass.ID).Warn("Failed to cache visitor OTP")
	}
}

func (s *VisitorService) dropCachedOTP(ctx context.Context, code string) {
	if err := s.cache.Delete(ctx, cache.VisitorOTPKey(code)); err != nil {
		s.logger.WithError(err).Warn("Failed to drop cached visitor OTP")
	}
}

func (s *VisitorService) notifyResident(ctx context.Context, pass *models.VisitorPass, title, body, eventType string) {
	resident := pass.User
	if resident == nil {
		var err error
		resident, err = s.users.GetByID(ctx, pass.UserID)
		if err != nil {
			return
		}
	}
	if resident.FCMToken == "" {
		return
	}
	data := map[string]string{
		"type":    eventType,
		"pass_id": strconv.FormatUint(uint64(pass.ID), 10),
	}
	if _, err := s.push.Send(ctx, resident.FCMToken, title, body, data); err != nil {
		s.logger.WithError(err).WithField("pass_id", pass.ID).Warn("Failed to push visitor notification")
	}
}
