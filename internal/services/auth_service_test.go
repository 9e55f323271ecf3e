package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"society-service/internal/apperrors"
	"society-service/internal/cache"
	"society-service/internal/models"
	"society-service/pkg/otp"
)

type authFixture struct {
	svc      *AuthService
	users    *fakeUserStore
	sessions *fakeSessionStore
	cache    *fakeCache
	sms      *fakeSMSProvider
}

func newAuthFixture(cfg AuthConfig) *authFixture {
	f := &authFixture{
		users:    newFakeUserStore(),
		sessions: newFakeSessionStore(),
		cache:    newFakeCache(),
		sms:      &fakeSMSProvider{},
	}
	jwtService := NewJWTService("test-access-secret", "test-refresh-secret", 1, 30)
	f.svc = NewAuthService(f.users, f.sessions, f.cache, f.sms, otp.NewGenerator(6), jwtService, cfg, nil)
	return f
}

// sentCode pulls the code out of the last OTP SMS
func (f *authFixture) sentCode(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, f.sms.messages)
	body := f.sms.messages[len(f.sms.messages)-1].Body
	// "Your login code is 123456. ..."
	const prefix = "Your login code is "
	require.Greater(t, len(body), len(prefix)+6)
	return body[len(prefix) : len(prefix)+6]
}

func TestSendOTP(t *testing.T) {
	f := newAuthFixture(AuthConfig{})
	ctx := context.Background()

	err := f.svc.SendOTP(ctx, "+919876543210")
	require.NoError(t, err)
	require.Len(t, f.sms.messages, 1)
	assert.Equal(t, "+919876543210", f.sms.messages[0].To)

	// The stored value is a hash, never the raw code
	stored, _ := f.cache.Get(ctx, cache.LoginOTPKey("+919876543210"))
	assert.NotEmpty(t, stored)
	assert.NotContains(t, f.sms.messages[0].Body, stored)
}

func TestSendOTP_InvalidPhone(t *testing.T) {
	f := newAuthFixture(AuthConfig{})
	ctx := context.Background()

	for _, phone := range []string{"", "12345", "not-a-phone", "+91 98765"} {
		err := f.svc.SendOTP(ctx, phone)
		require.Error(t, err, "phone=%q", phone)
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	}
}

func TestSendOTP_RateLimited(t *testing.T) {
	f := newAuthFixture(AuthConfig{MaxSendsPerWindow: 3})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, f.svc.SendOTP(ctx, "+919876543210"))
	}
	err := f.svc.SendOTP(ctx, "+919876543210")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindRateLimited, apperrors.KindOf(err))

	// A different number is unaffected
	require.NoError(t, f.svc.SendOTP(ctx, "+919876543211"))
}

func TestVerifyOTP_CreatesUserOnFirstLogin(t *testing.T) {
	f := newAuthFixture(AuthConfig{})
	ctx := context.Background()

	require.NoError(t, f.svc.SendOTP(ctx, "+919876543210"))
	code := f.sentCode(t)

	resp, err := f.svc.VerifyOTP(ctx, &models.VerifyOTPRequest{
		PhoneNumber: "+919876543210",
		OTP:         code,
	}, "10.0.0.1", "test-agent")
	require.NoError(t, err)

	assert.True(t, resp.IsNewUser)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, models.UserStatusPendingProfile, resp.User.Status)
	assert.Contains(t, resp.NextSteps, "complete_profile")

	// The code is single use
	_, err = f.svc.VerifyOTP(ctx, &models.VerifyOTPRequest{
		PhoneNumber: "+919876543210",
		OTP:         code,
	}, "10.0.0.1", "test-agent")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindUnauthorized, apperrors.KindOf(err))
}

func TestVerifyOTP_WrongCode(t *testing.T) {
	f := newAuthFixture(AuthConfig{})
	ctx := context.Background()

	require.NoError(t, f.svc.SendOTP(ctx, "+919876543210"))

	_, err := f.svc.VerifyOTP(ctx, &models.VerifyOTPRequest{
		PhoneNumber: "+919876543210",
		OTP:         "999999",
	}, "", "")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindUnauthorized, apperrors.KindOf(err))
}

func TestVerifyOTP_DevFallback(t *testing.T) {
	f := newAuthFixture(AuthConfig{AllowDevFallback: true})
	ctx := context.Background()

	resp, err := f.svc.VerifyOTP(ctx, &models.VerifyOTPRequest{
		PhoneNumber: "+919876543210",
		OTP:         DevFallbackOTP,
	}, "", "")
	require.NoError(t, err)
	assert.True(t, resp.IsNewUser)

	// Disabled fallback rejects the same code
	f = newAuthFixture(AuthConfig{AllowDevFallback: false})
	_, err = f.svc.VerifyOTP(ctx, &models.VerifyOTPRequest{
		PhoneNumber: "+919876543210",
		OTP:         DevFallbackOTP,
	}, "", "")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindUnauthorized, apperrors.KindOf(err))
}

func TestVerifyOTP_BlockedUser(t *testing.T) {
	f := newAuthFixture(AuthConfig{AllowDevFallback: true})
	ctx := context.Background()

	f.users.add(&models.User{
		PhoneNumber: "+919876543210",
		Status:      models.UserStatusBlocked,
	})

	_, err := f.svc.VerifyOTP(ctx, &models.VerifyOTPRequest{
		PhoneNumber: "+919876543210",
		OTP:         DevFallbackOTP,
	}, "", "")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
}

func TestVerifyOTP_RoleMismatch(t *testing.T) {
	f := newAuthFixture(AuthConfig{AllowDevFallback: true})
	ctx := context.Background()

	f.users.add(&models.User{
		PhoneNumber: "+919876543210",
		Role:        models.RoleResident,
		Status:      models.UserStatusActive,
	})

	_, err := f.svc.VerifyOTP(ctx, &models.VerifyOTPRequest{
		PhoneNumber: "+919876543210",
		OTP:         DevFallbackOTP,
		Role:        models.RoleGuard,
	}, "", "")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))

	// The registered role still signs in
	resp, err := f.svc.VerifyOTP(ctx, &models.VerifyOTPRequest{
		PhoneNumber: "+919876543210",
		OTP:         DevFallbackOTP,
		Role:        models.RoleResident,
	}, "", "")
	require.NoError(t, err)
	assert.Equal(t, models.RoleResident, resp.User.Role)
}

func TestVerifyOTP_SessionCap(t *testing.T) {
	f := newAuthFixture(AuthConfig{AllowDevFallback: true})
	ctx := context.Background()

	for i := 0; i < models.MaxSessionsPerUser+2; i++ {
		_, err := f.svc.VerifyOTP(ctx, &models.VerifyOTPRequest{
			PhoneNumber: "+919876543210",
			OTP:         DevFallbackOTP,
		}, "", "")
		require.NoError(t, err)
	}

	user, err := f.users.GetByPhone(ctx, "+919876543210")
	require.NoError(t, err)
	tokens, err := f.sessions.ListByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, tokens, models.MaxSessionsPerUser)
}

func TestRefreshTokens_Rotation(t *testing.T) {
	f := newAuthFixture(AuthConfig{AllowDevFallback: true})
	ctx := context.Background()

	resp, err := f.svc.VerifyOTP(ctx, &models.VerifyOTPRequest{
		PhoneNumber: "+919876543210",
		OTP:         DevFallbackOTP,
	}, "", "")
	require.NoError(t, err)

	rotated, err := f.svc.RefreshTokens(ctx, resp.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, resp.RefreshToken, rotated.RefreshToken)

	// The consumed token no longer works
	_, err = f.svc.RefreshTokens(ctx, resp.RefreshToken)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindUnauthorized, apperrors.KindOf(err))
}

func TestRefreshTokens_Garbage(t *testing.T) {
	f := newAuthFixture(AuthConfig{})
	ctx := context.Background()

	_, err := f.svc.RefreshTokens(ctx, "not-a-jwt")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindUnauthorized, apperrors.KindOf(err))
}

func TestLogout(t *testing.T) {
	f := newAuthFixture(AuthConfig{AllowDevFallback: true})
	ctx := context.Background()

	resp, err := f.svc.VerifyOTP(ctx, &models.VerifyOTPRequest{
		PhoneNumber: "+919876543210",
		OTP:         DevFallbackOTP,
	}, "", "")
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, resp.User.ID, resp.RefreshToken, false))

	tokens, err := f.sessions.ListByUser(ctx, resp.User.ID)
	require.NoError(t, err)
	assert.Empty(t, tokens)
}

func TestLogout_AllDevices(t *testing.T) {
	f := newAuthFixture(AuthConfig{AllowDevFallback: true})
	ctx := context.Background()

	var userID uint
	for i := 0; i < 3; i++ {
		resp, err := f.svc.VerifyOTP(ctx, &models.VerifyOTPRequest{
			PhoneNumber: "+919876543210",
			OTP:         DevFallbackOTP,
		}, "", "")
		require.NoError(t, err)
		userID = resp.User.ID
	}

	require.NoError(t, f.svc.Logout(ctx, userID, "", true))

	tokens, err := f.sessions.ListByUser(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, tokens)
}

func TestLogout_OtherUsersSession(t *testing.T) {
	f := newAuthFixture(AuthConfig{AllowDevFallback: true})
	ctx := context.Background()

	resp, err := f.svc.VerifyOTP(ctx, &models.VerifyOTPRequest{
		PhoneNumber: "+919876543210",
		OTP:         DevFallbackOTP,
	}, "", "")
	require.NoError(t, err)

	err = f.svc.Logout(ctx, resp.User.ID+1, resp.RefreshToken, false)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
}

func TestListSessions_FlagsCurrent(t *testing.T) {
	f := newAuthFixture(AuthConfig{AllowDevFallback: true})
	ctx := context.Background()

	first, err := f.svc.VerifyOTP(ctx, &models.VerifyOTPRequest{
		PhoneNumber: "+919876543210",
		OTP:         DevFallbackOTP,
	}, "", "")
	require.NoError(t, err)
	second, err := f.svc.VerifyOTP(ctx, &models.VerifyOTPRequest{
		PhoneNumber: "+919876543210",
		OTP:         DevFallbackOTP,
	}, "", "")
	require.NoError(t, err)

	sessions, err := f.svc.ListSessions(ctx, second.User.ID, second.RefreshToken)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	current := 0
	for _, s := range sessions {
		if s.Current {
			current++
		}
	}
	assert.Equal(t, 1, current)
	_ = first
}

func TestListSessions_SkipsExpired(t *testing.T) {
	f := newAuthFixture(AuthConfig{})
	ctx := context.Background()

	require.NoError(t, f.sessions.Create(ctx, &models.RefreshToken{
		UserID:    7,
		Token:     "stale",
		ExpiresAt: time.Now().Add(-time.Hour),
	}))
	require.NoError(t, f.sessions.Create(ctx, &models.RefreshToken{
		UserID:    7,
		Token:     "live",
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	sessions, err := f.svc.ListSessions(ctx, 7, "")
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestRevokeSession(t *testing.T) {
	f := newAuthFixture(AuthConfig{AllowDevFallback: true})
	ctx := context.Background()

	resp, err := f.svc.VerifyOTP(ctx, &models.VerifyOTPRequest{
		PhoneNumber: "+919876543210",
		OTP:         DevFallbackOTP,
	}, "", "")
	require.NoError(t, err)

	tokens, err := f.sessions.ListByUser(ctx, resp.User.ID)
	require.NoError(t, err)
	require.Len(t, tokens, 1)

	require.NoError(t, f.svc.RevokeSession(ctx, resp.User.ID, tokens[0].ID))

	err = f.svc.RevokeSession(ctx, resp.User.ID, tokens[0].ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}
