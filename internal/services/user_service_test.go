package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"society-service/internal/apperrors"
	"society-service/internal/models"
)

// fakeDirectory adds the directory methods the profile flow needs on
// top of the shared user store.
type fakeDirectory struct {
	*fakeUserStore
	societies map[uint]*models.Society
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		fakeUserStore: newFakeUserStore(),
		societies:     map[uint]*models.Society{},
	}
}

func (f *fakeDirectory) addSociety(s *models.Society) {
	f.societies[s.ID] = s
}

func (f *fakeDirectory) UpdateFields(_ context.Context, id uint, fields map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil
	}
	for key, value := range fields {
		switch key {
		case "fcm_token":
			user.FCMToken = value.(string)
		case "status":
			user.Status = value.(string)
		case "preferences":
			user.Preferences = value.(datatypes.JSONType[models.Preferences])
		}
	}
	return nil
}

func (f *fakeDirectory) ListBySociety(_ context.Context, societyID uint, offset, limit int) ([]models.User, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.User
	for _, u := range f.users {
		if u.SocietyID != nil && *u.SocietyID == societyID {
			out = append(out, *u)
		}
	}
	total := int64(len(out))
	if offset >= len(out) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], total, nil
}

func (f *fakeDirectory) GetSociety(_ context.Context, id uint) (*models.Society, error) {
	s, ok := f.societies[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return s, nil
}

func (f *fakeDirectory) ListSocieties(_ context.Context) ([]models.Society, error) {
	var out []models.Society
	for _, s := range f.societies {
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeDirectory) ListFlats(_ context.Context, societyID uint) ([]models.Flat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Flat
	for _, flat := range f.flats {
		if flat.SocietyID == societyID {
			out = append(out, *flat)
		}
	}
	return out, nil
}

func newUserFixture() (*UserService, *fakeDirectory) {
	dir := newFakeDirectory()
	dir.addSociety(&models.Society{ID: 10, Name: "Green Acres", IsActive: true})
	dir.addSociety(&models.Society{ID: 11, Name: "Defunct Towers", IsActive: false})
	dir.addFlat(&models.Flat{ID: 100, SocietyID: 10, FlatNumber: "A-101"})
	dir.addFlat(&models.Flat{ID: 300, SocietyID: 77, FlatNumber: "Z-1"})
	return NewUserService(dir, nil), dir
}

func uintPtr(v uint) *uint { return &v }

func TestUpdateProfile_ResidentOnboarding(t *testing.T) {
	svc, dir := newUserFixture()
	dir.add(&models.User{ID: 1, PhoneNumber: "+911111111111", Status: models.UserStatusPendingProfile})
	ctx := context.Background()

	// Name and role alone leave a resident pending
	user, err := svc.UpdateProfile(ctx, 1, &models.UpdateProfileRequest{
		Name: "Asha", Role: models.RoleResident,
	})
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusPendingProfile, user.Status)

	user, err = svc.UpdateProfile(ctx, 1, &models.UpdateProfileRequest{
		SocietyID: uintPtr(10), FlatID: uintPtr(100),
	})
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusActive, user.Status)
}

func TestUpdateProfile_GuardOnboarding(t *testing.T) {
	svc, dir := newUserFixture()
	dir.add(&models.User{ID: 1, PhoneNumber: "+911111111111", Status: models.UserStatusPendingProfile})

	// Guards need no flat
	user, err := svc.UpdateProfile(context.Background(), 1, &models.UpdateProfileRequest{
		Name: "Ram", Role: models.RoleGuard, SocietyID: uintPtr(10),
	})
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusActive, user.Status)
}

func TestUpdateProfile_RoleAssignedOnce(t *testing.T) {
	svc, dir := newUserFixture()
	dir.add(&models.User{
		ID: 1, PhoneNumber: "+911111111111", Name: "Asha",
		Role: models.RoleResident, Status: models.UserStatusActive,
	})

	_, err := svc.UpdateProfile(context.Background(), 1, &models.UpdateProfileRequest{
		Role: models.RoleAdmin,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
}

func TestUpdateProfile_UnknownRole(t *testing.T) {
	svc, dir := newUserFixture()
	dir.add(&models.User{ID: 1, PhoneNumber: "+911111111111"})

	_, err := svc.UpdateProfile(context.Background(), 1, &models.UpdateProfileRequest{Role: "owner"})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestUpdateProfile_InactiveSociety(t *testing.T) {
	svc, dir := newUserFixture()
	dir.add(&models.User{ID: 1, PhoneNumber: "+911111111111"})

	_, err := svc.UpdateProfile(context.Background(), 1, &models.UpdateProfileRequest{
		SocietyID: uintPtr(11),
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestUpdateProfile_FlatMustMatchSociety(t *testing.T) {
	svc, dir := newUserFixture()
	dir.add(&models.User{ID: 1, PhoneNumber: "+911111111111"})

	_, err := svc.UpdateProfile(context.Background(), 1, &models.UpdateProfileRequest{
		Name: "Asha", Role: models.RoleResident,
		SocietyID: uintPtr(10), FlatID: uintPtr(300),
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestUpdatePreferences(t *testing.T) {
	svc, dir := newUserFixture()
	dir.add(&models.User{ID: 1, Name: "Resident", Role: models.RoleResident, Status: models.UserStatusActive})

	user, err := svc.UpdatePreferences(context.Background(), 1, models.Preferences{
		Notifications: false,
		DarkMode:      true,
	})
	require.NoError(t, err)

	prefs := user.Preferences.Data()
	assert.False(t, prefs.Notifications)
	assert.True(t, prefs.DarkMode)
	assert.Equal(t, "en", prefs.Language, "empty language falls back to default")
}

func TestSetBlocked(t *testing.T) {
	svc, dir := newUserFixture()
	dir.add(&models.User{
		ID: 1, PhoneNumber: "+911111111111", Role: models.RoleAdmin,
		Status: models.UserStatusActive, SocietyID: uintPtr(10),
	})
	dir.add(&models.User{
		ID: 2, PhoneNumber: "+912222222222", Role: models.RoleResident,
		Status: models.UserStatusActive, SocietyID: uintPtr(10),
	})
	ctx := context.Background()

	require.NoError(t, svc.SetBlocked(ctx, 1, 2, true))
	target, err := dir.GetByID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusBlocked, target.Status)

	require.NoError(t, svc.SetBlocked(ctx, 1, 2, false))
	target, err = dir.GetByID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusActive, target.Status)
}

func TestSetBlocked_SelfAndCrossSociety(t *testing.T) {
	svc, dir := newUserFixture()
	dir.add(&models.User{
		ID: 1, PhoneNumber: "+911111111111", Role: models.RoleAdmin,
		Status: models.UserStatusActive, SocietyID: uintPtr(10),
	})
	dir.add(&models.User{
		ID: 2, PhoneNumber: "+912222222222", Role: models.RoleResident,
		Status: models.UserStatusActive, SocietyID: uintPtr(77),
	})
	ctx := context.Background()

	err := svc.SetBlocked(ctx, 1, 1, true)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	err = svc.SetBlocked(ctx, 1, 2, true)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
}

func TestListFlats_UnknownSociety(t *testing.T) {
	svc, _ := newUserFixture()

	_, err := svc.ListFlats(context.Background(), 404)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestPaginate(t *testing.T) {
	tests := []struct {
		page, limit                  int
		wantPage, wantLimit, wantOff int
	}{
		{0, 0, 1, 20, 0},
		{1, 20, 1, 20, 0},
		{3, 10, 3, 10, 20},
		{-5, 500, 1, 20, 0},
	}
	for _, tc := range tests {
		page, limit, offset := paginate(tc.page, tc.limit)
		assert.Equal(t, tc.wantPage, page)
		assert.Equal(t, tc.wantLimit, limit)
		assert.Equal(t, tc.wantOff, offset)
	}
}
