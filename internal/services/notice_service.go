package services

import (
	"context"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"society-service/internal/apperrors"
	"society-service/internal/models"
	"society-service/internal/providers"
)

// NoticeStore is the persistence surface for notices
type NoticeStore interface {
	Create(ctx context.Context, notice *models.Notice) error
	GetByID(ctx context.Context, id uint) (*models.Notice, error)
	ListBySociety(ctx context.Context, societyID uint, noticeType string, now time.Time, offset, limit int) ([]models.Notice, int64, error)
	Update(ctx context.Context, notice *models.Notice) error
	Deactivate(ctx context.Context, id uint) (bool, error)
	MarkRead(ctx context.Context, noticeID, userID uint, at time.Time) error
	SetMuted(ctx context.Context, noticeID, userID uint, muted bool) error
	GetReadStatuses(ctx context.Context, userID uint, noticeIDs []uint) ([]models.NoticeReadStatus, error)
	CountUnread(ctx context.Context, societyID, userID uint, now time.Time) (int64, error)
}

// NoticeView is a notice annotated with the caller's read state
type NoticeView struct {
	models.Notice
	IsRead  bool `json:"is_read"`
	IsMuted bool `json:"is_muted"`
}

// NoticeService manages society notices and read tracking
type NoticeService struct {
	notices NoticeStore
	users   EmergencyUserStore
	push    providers.PushProvider
	events  EventPublisher
	logger  *logrus.Logger
}

// NewNoticeService creates a new notice service
func NewNoticeService(notices NoticeStore, users EmergencyUserStore, push providers.PushProvider, events EventPublisher, logger *logrus.Logger) *NoticeService {
	if logger == nil {
		logger = logrus.New()
	}
	return &NoticeService{
		notices: notices,
		users:   users,
		push:    push,
		events:  events,
		logger:  logger,
	}
}

// Create publishes a notice and pushes it to the society. Critical
// notices are flagged so clients can surface them prominently.
func (s *NoticeService) Create(ctx context.Context, authorID, societyID uint, req *models.CreateNoticeRequest) (*models.Notice, error) {
	noticeType := req.Type
	if noticeType == "" {
		noticeType = models.NoticeTypeGeneral
	}
	switch noticeType {
	case models.NoticeTypeGeneral, models.NoticeTypeMaintenance, models.NoticeTypeEmergency, models.NoticeTypeEvent:
	default:
		return nil, apperrors.Validation("unknown notice type %q", noticeType)
	}

	priority := req.Priority
	if priority == "" {
		priority = models.NoticePriorityMedium
	}
	switch priority {
	case models.NoticePriorityLow, models.NoticePriorityMedium, models.NoticePriorityHigh, models.NoticePriorityCritical:
	default:
		return nil, apperrors.Validation("unknown priority %q", priority)
	}

	if req.ExpiryDate != nil && req.ExpiryDate.Before(time.Now()) {
		return nil, apperrors.Validation("expiryDate is in the past")
	}

	notice := &models.Notice{
		SocietyID:   societyID,
		CreatedBy:   authorID,
		Title:       req.Title,
		Content:     req.Content,
		Type:        noticeType,
		Priority:    priority,
		IsCritical:  priority == models.NoticePriorityCritical || noticeType == models.NoticeTypeEmergency,
		IsActive:    true,
		ExpiryDate:  req.ExpiryDate,
		TargetFlats: datatypes.NewJSONSlice(req.TargetFlats),
		Attachments: datatypes.NewJSONSlice(req.Attachments),
	}
	if err := s.notices.Create(ctx, notice); err != nil {
		return nil, apperrors.Internal("failed to create notice", err)
	}

	s.notifySociety(ctx, notice)
	s.events.Publish("notice.created", notice)
	return notice, nil
}

func (s *NoticeService) notifySociety(ctx context.Context, notice *models.Notice) {
	members, err := s.users.ListBySocietyAndRoles(ctx, notice.SocietyID,
		[]string{models.RoleResident, models.RoleGuard, models.RoleAdmin})
	if err != nil {
		s.logger.WithError(err).Error("Failed to list society members for notice push")
		return
	}

	var tokens []string
	for i := range members {
		m := &members[i]
		if m.FCMToken == "" {
			continue
		}
		if len(notice.TargetFlats) > 0 {
			if m.FlatID == nil || !notice.TargetsFlat(*m.FlatID) {
				continue
			}
		}
		tokens = append(tokens, m.FCMToken)
	}
	if len(tokens) == 0 {
		return
	}

	data := map[string]string{
		"type":      "notice",
		"notice_id": strconv.FormatUint(uint64(notice.ID), 10),
		"priority":  notice.Priority,
	}
	if _, err := s.push.SendMulticast(ctx, tokens, notice.Title, notice.Content, data); err != nil {
		s.logger.WithError(err).WithField("notice_id", notice.ID).Error("Failed to push notice")
	}
}

// List returns the notices visible to a user, annotated with their
// read state. Flat-targeted notices are filtered to the user's flat,
// and unreadOnly drops notices the user has already read.
func (s *NoticeService) List(ctx context.Context, user *models.User, noticeType string, unreadOnly bool, page, limit int) (*models.PaginatedResponse, error) {
	if user.SocietyID == nil {
		return nil, apperrors.Validation("user has no society")
	}
	page, limit, offset := paginate(page, limit)

	now := time.Now()
	notices, total, err := s.notices.ListBySociety(ctx, *user.SocietyID, noticeType, now, offset, limit)
	if err != nil {
		return nil, apperrors.Internal("failed to list notices", err)
	}

	visible := make([]models.Notice, 0, len(notices))
	for i := range notices {
		n := notices[i]
		if len(n.TargetFlats) > 0 {
			if user.FlatID == nil || !n.TargetsFlat(*user.FlatID) {
				continue
			}
		}
		visible = append(visible, n)
	}

	ids := make([]uint, len(visible))
	for i := range visible {
		ids[i] = visible[i].ID
	}
	statuses, err := s.notices.GetReadStatuses(ctx, user.ID, ids)
	if err != nil {
		return nil, apperrors.Internal("failed to load read statuses", err)
	}
	byNotice := make(map[uint]*models.NoticeReadStatus, len(statuses))
	for i := range statuses {
		byNotice[statuses[i].NoticeID] = &statuses[i]
	}

	views := make([]NoticeView, 0, len(visible))
	for i := range visible {
		v := NoticeView{Notice: visible[i]}
		if rs, ok := byNotice[visible[i].ID]; ok {
			v.IsRead = rs.ReadAt != nil
			v.IsMuted = rs.IsMuted
		}
		if unreadOnly && v.IsRead {
			continue
		}
		views = append(views, v)
	}

	resp := models.NewPaginatedResponse(views, total, page, limit)
	return &resp, nil
}

// Get returns one notice
func (s *NoticeService) Get(ctx context.Context, noticeID uint) (*models.Notice, error) {
	notice, err := s.notices.GetByID(ctx, noticeID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NotFound("notice not found")
		}
		return nil, apperrors.Internal("failed to load notice", err)
	}
	return notice, nil
}

// Delete retires a notice. Only its author or an admin of the society
// may delete it.
func (s *NoticeService) Delete(ctx context.Context, actor *models.User, noticeID uint) error {
	notice, err := s.Get(ctx, noticeID)
	if err != nil {
		return err
	}
	if notice.CreatedBy != actor.ID {
		if actor.Role != models.RoleAdmin || actor.SocietyID == nil || *actor.SocietyID != notice.SocietyID {
			return apperrors.Forbidden("not allowed to delete this notice")
		}
	}

	ok, err := s.notices.Deactivate(ctx, noticeID)
	if err != nil {
		return apperrors.Internal("failed to delete notice", err)
	}
	if !ok {
		return apperrors.Conflict("notice is already deleted")
	}
	s.events.Publish("notice.deleted", notice)
	return nil
}

// MarkRead records that the user read the notice
func (s *NoticeService) MarkRead(ctx context.Context, userID, noticeID uint) error {
	if _, err := s.Get(ctx, noticeID); err != nil {
		return err
	}
	if err := s.notices.MarkRead(ctx, noticeID, userID, time.Now()); err != nil {
		return apperrors.Internal("failed to mark notice read", err)
	}
	return nil
}

// SetMuted mutes or unmutes a notice for the user
func (s *NoticeService) SetMuted(ctx context.Context, userID, noticeID uint, muted bool) error {
	if _, err := s.Get(ctx, noticeID); err != nil {
		return err
	}
	if err := s.notices.SetMuted(ctx, noticeID, userID, muted); err != nil {
		return apperrors.Internal("failed to update mute state", err)
	}
	return nil
}

// UnreadCount counts the user's unread notices
func (s *NoticeService) UnreadCount(ctx context.Context, user *models.User) (int64, error) {
	if user.SocietyID == nil {
		return 0, apperrors.Validation("user has no society")
	}
	count, err := s.notices.CountUnread(ctx, *user.SocietyID, user.ID, time.Now())
	if err != nil {
		return 0, apperrors.Internal("failed to count unread notices", err)
	}
	return count, nil
}
