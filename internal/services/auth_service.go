package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
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

var phonePattern = regexp.MustCompile(`^\+?[0-9]{10,15}$`)

// DevFallbackOTP is accepted in place of a real code when SMS delivery
// is not configured. Never enabled in production.
const DevFallbackOTP = "123456"

// AuthUserStore is the user persistence surface the auth flow needs
type AuthUserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByPhone(ctx context.Context, phone string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
}

// SessionStore is the refresh-token persistence surface
type SessionStore interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	GetByToken(ctx context.Context, token string) (*models.RefreshToken, error)
	ListByUser(ctx context.Context, userID uint) ([]models.RefreshToken, error)
	Delete(ctx context.Context, token string) error
	DeleteByID(ctx context.Context, userID, tokenID uint) (int64, error)
	DeleteAllForUser(ctx context.Context, userID uint) error
	TrimSessions(ctx context.Context, userID uint, max int) error
}

// AuthConfig tunes OTP delivery and rate limiting
type AuthConfig struct {
	OTPExpiry         time.Duration
	MaxSendsPerWindow int
	RateWindow        time.Duration
	AllowDevFallback  bool
}

// AuthService implements phone/OTP login and session management
type AuthService struct {
	users    AuthUserStore
	sessions SessionStore
	cache    cache.Cache
	sms      providers.SMSProvider
	otpGen   *otp.Generator
	jwt      *JWTService
	cfg      AuthConfig
	logger   *logrus.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(users AuthUserStore, sessions SessionStore, c cache.Cache, sms providers.SMSProvider, otpGen *otp.Generator, jwtService *JWTService, cfg AuthConfig, logger *logrus.Logger) *AuthService {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.OTPExpiry == 0 {
		cfg.OTPExpiry = 5 * time.Minute
	}
	if cfg.MaxSendsPerWindow == 0 {
		cfg.MaxSendsPerWindow = 3
	}
	if cfg.RateWindow == 0 {
		cfg.RateWindow = 15 * time.Minute
	}
	return &AuthService{
		users:    users,
		sessions: sessions,
		cache:    c,
		sms:      sms,
		otpGen:   otpGen,
		jwt:      jwtService,
		cfg:      cfg,
		logger:   logger,
	}
}

// SendOTP generates a login code and delivers it over SMS. Sends are
// rate limited per phone number.
func (s *AuthService) SendOTP(ctx context.Context, phone string) error {
	if !phonePattern.MatchString(phone) {
		return apperrors.Validation("invalid phone number")
	}

	count, err := s.cache.Increment(ctx, cache.OTPRateKey(phone), s.cfg.RateWindow)
	if err != nil {
		return apperrors.Internal("failed to check rate limit", err)
	}
	if count > int64(s.cfg.MaxSendsPerWindow) {
		return apperrors.RateLimited("too many OTP requests, try again later")
	}

	code, err := s.otpGen.Generate()
	if err != nil {
		return apperrors.Internal("failed to generate OTP", err)
	}

	if err := s.cache.Set(ctx, cache.LoginOTPKey(phone), hashOTP(code), s.cfg.OTPExpiry); err != nil {
		return apperrors.Internal("failed to store OTP", err)
	}

	body := fmt.Sprintf("Your login code is %s. It expires in %d minutes.", code, int(s.cfg.OTPExpiry.Minutes()))
	if _, err := s.sms.SendSMS(ctx, phone, body); err != nil {
		s.logger.WithError(err).WithField("phone", phone).Error("Failed to send OTP SMS")
		return apperrors.Internal("failed to send OTP", err)
	}

	s.logger.WithField("phone", phone).Info("Login OTP sent")
	return nil
}

// VerifyOTP checks the code, creating the user on first login, and
// opens a new session.
func (s *AuthService) VerifyOTP(ctx context.Context, req *models.VerifyOTPRequest, ipAddress, userAgent string) (*models.AuthResponse, error) {
	if !phonePattern.MatchString(req.PhoneNumber) {
		return nil, apperrors.Validation("invalid phone number")
	}
	code := otp.NormalizeCode(req.OTP)
	if !s.otpGen.Validate(code) {
		return nil, apperrors.Validation("invalid OTP format")
	}

	if err := s.checkOTP(ctx, req.PhoneNumber, code); err != nil {
		return nil, err
	}

	user, isNew, err := s.findOrCreateUser(ctx, req)
	if err != nil {
		return nil, err
	}
	if user.IsBlocked() {
		return nil, apperrors.Forbidden("account is blocked")
	}
	if req.Role != "" && user.Role != "" && req.Role != user.Role {
		return nil, apperrors.Forbidden("account is registered as %s", user.Role)
	}

	now := time.Now()
	user.LastLoginAt = &now
	if req.FCMToken != "" {
		user.FCMToken = req.FCMToken
	}
	if req.DeviceInfo != nil {
		user.DeviceInfo = datatypes.NewJSONType(*req.DeviceInfo)
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.Internal("failed to update user", err)
	}

	accessToken, refreshToken, err := s.jwt.GenerateTokens(user)
	if err != nil {
		return nil, apperrors.Internal("failed to generate tokens", err)
	}

	session := &models.RefreshToken{
		UserID:    user.ID,
		Token:     refreshToken,
		ExpiresAt: now.Add(s.jwt.GetRefreshTokenExpiry()),
		IsActive:  true,
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
	if req.DeviceInfo != nil {
		session.DeviceInfo = datatypes.NewJSONType(*req.DeviceInfo)
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, apperrors.Internal("failed to create session", err)
	}
	if err := s.sessions.TrimSessions(ctx, user.ID, models.MaxSessionsPerUser); err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID).Warn("Failed to trim sessions")
	}

	resp := &models.AuthResponse{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		IsNewUser:    isNew,
	}
	if !user.Registered() {
		resp.NextSteps = []string{"complete_profile"}
	}
	return resp, nil
}

func (s *AuthService) checkOTP(ctx context.Context, phone, code string) error {
	stored, err := s.cache.Get(ctx, cache.LoginOTPKey(phone))
	if err != nil {
		return apperrors.Internal("failed to read OTP", err)
	}
	if stored != "" && stored == hashOTP(code) {
		if err := s.cache.Delete(ctx, cache.LoginOTPKey(phone)); err != nil {
			s.logger.WithError(err).Warn("Failed to clear used OTP")
		}
		return nil
	}
	if s.cfg.AllowDevFallback && code == DevFallbackOTP {
		s.logger.WithField("phone", phone).Warn("Dev fallback OTP accepted")
		return nil
	}
	return apperrors.Unauthorized("invalid or expired OTP")
}

func (s *AuthService) findOrCreateUser(ctx context.Context, req *models.VerifyOTPRequest) (*models.User, bool, error) {
	user, err := s.users.GetByPhone(ctx, req.PhoneNumber)
	if err == nil {
		return user, false, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, false, apperrors.Internal("failed to look up user", err)
	}

	user = &models.User{
		PhoneNumber: req.PhoneNumber,
		Status:      models.UserStatusPendingProfile,
		Preferences: datatypes.NewJSONType(models.DefaultPreferences()),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, false, apperrors.Internal("failed to create user", err)
	}
	return user, true, nil
}

// RefreshTokens rotates a session: the presented refresh token is
// consumed and replaced.
func (s *AuthService) RefreshTokens(ctx context.Context, refreshToken string) (*models.AuthResponse, error) {
	if _, err := s.jwt.ValidateRefreshToken(refreshToken); err != nil {
		return nil, apperrors.Unauthorized("invalid refresh token")
	}

	session, err := s.sessions.GetByToken(ctx, refreshToken)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.Unauthorized("session not found")
		}
		return nil, apperrors.Internal("failed to look up session", err)
	}
	if session.IsExpired() || !session.IsActive {
		return nil, apperrors.Unauthorized("session expired")
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, apperrors.Internal("failed to look up user", err)
	}
	if user.IsBlocked() {
		return nil, apperrors.Forbidden("account is blocked")
	}

	accessToken, newRefreshToken, err := s.jwt.GenerateTokens(user)
	if err != nil {
		return nil, apperrors.Internal("failed to generate tokens", err)
	}

	if err := s.sessions.Delete(ctx, refreshToken); err != nil {
		return nil, apperrors.Internal("failed to rotate session", err)
	}
	newSession := &models.RefreshToken{
		UserID:     user.ID,
		Token:      newRefreshToken,
		ExpiresAt:  time.Now().Add(s.jwt.GetRefreshTokenExpiry()),
		IsActive:   true,
		DeviceInfo: session.DeviceInfo,
		IPAddress:  session.IPAddress,
		UserAgent:  session.UserAgent,
	}
	if err := s.sessions.Create(ctx, newSession); err != nil {
		return nil, apperrors.Internal("failed to create session", err)
	}

	return &models.AuthResponse{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
	}, nil
}

// Logout ends the presented session, or every session for the user
// when allDevices is set.
func (s *AuthService) Logout(ctx context.Context, userID uint, refreshToken string, allDevices bool) error {
	if allDevices {
		if err := s.sessions.DeleteAllForUser(ctx, userID); err != nil {
			return apperrors.Internal("failed to end sessions", err)
		}
		return nil
	}
	if refreshToken == "" {
		return apperrors.Validation("refreshToken is required")
	}
	session, err := s.sessions.GetByToken(ctx, refreshToken)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return apperrors.Internal("failed to look up session", err)
	}
	if session.UserID != userID {
		return apperrors.Forbidden("session belongs to another user")
	}
	if err := s.sessions.Delete(ctx, refreshToken); err != nil {
		return apperrors.Internal("failed to end session", err)
	}
	return nil
}

// ListSessions returns the user's active sessions, flagging the one
// matching the presented refresh token.
func (s *AuthService) ListSessions(ctx context.Context, userID uint, currentToken string) ([]models.SessionInfo, error) {
	tokens, err := s.sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to list sessions", err)
	}

	infos := make([]models.SessionInfo, 0, len(tokens))
	for i := range tokens {
		t := &tokens[i]
		if t.IsExpired() {
			continue
		}
		info := models.SessionInfo{
			ID:        t.ID,
			CreatedAt: t.CreatedAt.Format(time.RFC3339),
			ExpiresAt: t.ExpiresAt.Format(time.RFC3339),
			Current:   currentToken != "" && t.Token == currentToken,
		}
		device := t.DeviceInfo.Data()
		if device != (models.DeviceInfo{}) {
			info.DeviceInfo = &device
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// RevokeSession ends one session by id
func (s *AuthService) RevokeSession(ctx context.Context, userID, sessionID uint) error {
	affected, err := s.sessions.DeleteByID(ctx, userID, sessionID)
	if err != nil {
		return apperrors.Internal("failed to revoke session", err)
	}
	if affected == 0 {
		return apperrors.NotFound("session not found")
	}
	return nil
}

func hashOTP(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
