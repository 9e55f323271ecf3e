package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"society-service/internal/models"
)

// In-memory stores backing the service tests. They mirror the
// conditional-update semantics of the real repositories so state
// transitions behave the same way under test.

type fakeUserStore struct {
	mu     sync.Mutex
	nextID uint
	users  map[uint]*models.User
	flats  map[uint]*models.Flat
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		nextID: 1,
		users:  make(map[uint]*models.User),
		flats:  make(map[uint]*models.Flat),
	}
}

func (f *fakeUserStore) add(user *models.User) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user.ID == 0 {
		user.ID = f.nextID
		f.nextID++
	}
	f.users[user.ID] = user
	return user
}

func (f *fakeUserStore) addFlat(flat *models.Flat) *models.Flat {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flats[flat.ID] = flat
	return flat
}

func (f *fakeUserStore) Create(_ context.Context, user *models.User) error {
	f.add(user)
	return nil
}

func (f *fakeUserStore) GetByID(_ context.Context, id uint) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUserStore) GetByPhone(_ context.Context, phone string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.PhoneNumber == phone {
			copied := *user
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserStore) Update(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeUserStore) ListBySocietyAndRoles(_ context.Context, societyID uint, roles []string) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	roleSet := make(map[string]bool, len(roles))
	for _, r := range roles {
		roleSet[r] = true
	}
	var out []models.User
	for _, user := range f.users {
		if user.SocietyID != nil && *user.SocietyID == societyID && roleSet[user.Role] {
			out = append(out, *user)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeUserStore) GetFlat(_ context.Context, id uint) (*models.Flat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	flat, ok := f.flats[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *flat
	return &copied, nil
}

func (f *fakeUserStore) ListByFlat(_ context.Context, flatID uint) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.User
	for _, user := range f.users {
		if user.FlatID != nil && *user.FlatID == flatID && user.Role == models.RoleResident {
			out = append(out, *user)
		}
	}
	return out, nil
}

type fakeSessionStore struct {
	mu     sync.Mutex
	nextID uint
	tokens []*models.RefreshToken
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{nextID: 1}
}

func (f *fakeSessionStore) Create(_ context.Context, token *models.RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	token.ID = f.nextID
	f.nextID++
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}
	copied := *token
	f.tokens = append(f.tokens, &copied)
	return nil
}

func (f *fakeSessionStore) GetByToken(_ context.Context, token string) (*models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tokens {
		if t.Token == token {
			copied := *t
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeSessionStore) ListByUser(_ context.Context, userID uint) ([]models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.RefreshToken
	for _, t := range f.tokens {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeSessionStore) Delete(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.tokens {
		if t.Token == token {
			f.tokens = append(f.tokens[:i], f.tokens[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeSessionStore) DeleteByID(_ context.Context, userID, tokenID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.tokens {
		if t.ID == tokenID && t.UserID == userID {
			f.tokens = append(f.tokens[:i], f.tokens[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeSessionStore) DeleteAllForUser(_ context.Context, userID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.tokens[:0]
	for _, t := range f.tokens {
		if t.UserID != userID {
			kept = append(kept, t)
		}
	}
	f.tokens = kept
	return nil
}

func (f *fakeSessionStore) TrimSessions(_ context.Context, userID uint, max int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var mine []*models.RefreshToken
	for _, t := range f.tokens {
		if t.UserID == userID {
			mine = append(mine, t)
		}
	}
	if len(mine) <= max {
		return nil
	}
	sort.Slice(mine, func(i, j int) bool { return mine[i].ID > mine[j].ID })
	evict := make(map[uint]bool)
	for _, t := range mine[max:] {
		evict[t.ID] = true
	}
	kept := f.tokens[:0]
	for _, t := range f.tokens {
		if !evict[t.ID] {
			kept = append(kept, t)
		}
	}
	f.tokens = kept
	return nil
}

type fakePassStore struct {
	mu     sync.Mutex
	nextID uint
	passes map[uint]*models.VisitorPass
}

func newFakePassStore() *fakePassStore {
	return &fakePassStore{nextID: 1, passes: make(map[uint]*models.VisitorPass)}
}

func (f *fakePassStore) Create(_ context.Context, pass *models.VisitorPass) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	pass.ID = f.nextID
	f.nextID++
	copied := *pass
	f.passes[pass.ID] = &copied
	return nil
}

func (f *fakePassStore) GetByID(_ context.Context, id uint) (*models.VisitorPass, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pass, ok := f.passes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *pass
	return &copied, nil
}

func (f *fakePassStore) GetByOTP(_ context.Context, code string) (*models.VisitorPass, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, pass := range f.passes {
		if pass.OTP == code {
			copied := *pass
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePassStore) OTPInUse(_ context.Context, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, pass := range f.passes {
		if pass.OTP == code &&
			(pass.Status == models.PassStatusPending || pass.Status == models.PassStatusApproved) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePassStore) ListByUser(_ context.Context, userID uint, status string, offset, limit int) ([]models.VisitorPass, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.VisitorPass
	for _, pass := range f.passes {
		if pass.UserID != userID {
			continue
		}
		if status != "" && pass.Status != status {
			continue
		}
		out = append(out, *pass)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
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

func (f *fakePassStore) ListActiveBySociety(_ context.Context, _ uint) ([]models.VisitorPass, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.VisitorPass
	for _, pass := range f.passes {
		if pass.EntryTime != nil && pass.ExitTime == nil {
			out = append(out, *pass)
		}
	}
	return out, nil
}

func (f *fakePassStore) ListValidBySociety(_ context.Context, _ uint, at time.Time) ([]models.VisitorPass, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.VisitorPass
	for _, pass := range f.passes {
		if pass.Status != models.PassStatusApproved && pass.Status != models.PassStatusPending {
			continue
		}
		if pass.WithinValidity(at) {
			out = append(out, *pass)
		}
	}
	return out, nil
}

func (f *fakePassStore) TransitionStatus(_ context.Context, id uint, from, to string, fields map[string]interface{}) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pass, ok := f.passes[id]
	if !ok || pass.Status != from {
		return false, nil
	}
	pass.Status = to
	for key, value := range fields {
		switch key {
		case "rejection_reason":
			pass.RejectionReason = value.(string)
		case "valid_until":
			pass.ValidUntil = value.(time.Time)
		}
	}
	return true, nil
}

func (f *fakePassStore) RecordEntry(_ context.Context, id, guardID uint, photo string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pass, ok := f.passes[id]
	if !ok || pass.Status != models.PassStatusApproved || pass.EntryTime != nil {
		return false, nil
	}
	entry := at
	pass.EntryTime = &entry
	pass.GuardIDEntry = &guardID
	if photo != "" {
		pass.EntryPhoto = photo
	}
	return true, nil
}

func (f *fakePassStore) RecordExit(_ context.Context, id, guardID uint, recurring bool, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pass, ok := f.passes[id]
	if !ok || pass.EntryTime == nil || pass.ExitTime != nil {
		return false, nil
	}
	exit := at
	pass.ExitTime = &exit
	pass.GuardIDExit = &guardID
	if !recurring {
		pass.Status = models.PassStatusUsed
	}
	return true, nil
}

func (f *fakePassStore) ClearVisit(_ context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	pass, ok := f.passes[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	pass.EntryTime = nil
	pass.ExitTime = nil
	pass.GuardIDEntry = nil
	pass.GuardIDExit = nil
	return nil
}

func (f *fakePassStore) ExpireLapsed(_ context.Context, now time.Time) ([]uint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var expired []uint
	for _, pass := range f.passes {
		if !now.After(pass.ValidUntil) {
			continue
		}
		if pass.Status == models.PassStatusApproved ||
			(pass.Status == models.PassStatusPending && !pass.ApprovalRequired) {
			pass.Status = models.PassStatusExpired
			expired = append(expired, pass.ID)
		}
	}
	return expired, nil
}

func (f *fakePassStore) ListLapsedApprovalRequests(_ context.Context, now time.Time) ([]models.VisitorPass, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.VisitorPass
	for _, pass := range f.passes {
		if pass.Status == models.PassStatusPending && pass.ApprovalRequired && now.After(pass.ValidUntil) {
			out = append(out, *pass)
		}
	}
	return out, nil
}

type fakeEmergencyStore struct {
	mu     sync.Mutex
	nextID uint
	alerts map[uint]*models.Emergency
}

func newFakeEmergencyStore() *fakeEmergencyStore {
	return &fakeEmergencyStore{nextID: 1, alerts: make(map[uint]*models.Emergency)}
}

func (f *fakeEmergencyStore) Create(_ context.Context, emergency *models.Emergency) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	emergency.ID = f.nextID
	f.nextID++
	if emergency.CreatedAt.IsZero() {
		emergency.CreatedAt = time.Now()
	}
	copied := *emergency
	f.alerts[emergency.ID] = &copied
	return nil
}

func (f *fakeEmergencyStore) GetByID(_ context.Context, id uint) (*models.Emergency, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.alerts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *e
	return &copied, nil
}

func (f *fakeEmergencyStore) GetActiveByUser(_ context.Context, userID uint) (*models.Emergency, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.alerts {
		if e.UserID == userID && e.Status == models.EmergencyStatusActive {
			copied := *e
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeEmergencyStore) List(_ context.Context, filter models.EmergencyFilter, offset, limit int) ([]models.Emergency, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Emergency
	for _, e := range f.alerts {
		if e.SocietyID != filter.SocietyID {
			continue
		}
		if filter.UserID != 0 && e.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if filter.From != nil && e.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && e.CreatedAt.After(*filter.To) {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
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

func (f *fakeEmergencyStore) Update(_ context.Context, emergency *models.Emergency) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.alerts[emergency.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	copied := *emergency
	f.alerts[emergency.ID] = &copied
	return nil
}

func (f *fakeEmergencyStore) Resolve(_ context.Context, id uint, status string, resolvedBy *uint, notes string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.alerts[id]
	if !ok || e.Status != models.EmergencyStatusActive {
		return false, nil
	}
	e.Status = status
	e.ResolvedBy = resolvedBy
	resolvedAt := at
	e.ResolvedAt = &resolvedAt
	e.ResolutionNotes = notes
	return true, nil
}

func (f *fakeEmergencyStore) ListStaleActive(_ context.Context, cutoff time.Time) ([]models.Emergency, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Emergency
	for _, e := range f.alerts {
		if e.Status == models.EmergencyStatusActive && e.CreatedAt.Before(cutoff) {
			out = append(out, *e)
		}
	}
	return out, nil
}

type fakeBillStore struct {
	mu       sync.Mutex
	nextID   uint
	bills    map[uint]*models.MaintenanceBill
	payments map[uint][]models.Payment
}

func newFakeBillStore() *fakeBillStore {
	return &fakeBillStore{
		nextID:   1,
		bills:    make(map[uint]*models.MaintenanceBill),
		payments: make(map[uint][]models.Payment),
	}
}

func (f *fakeBillStore) Create(_ context.Context, bill *models.MaintenanceBill) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	bill.ID = f.nextID
	f.nextID++
	copied := *bill
	f.bills[bill.ID] = &copied
	return nil
}

func (f *fakeBillStore) GetByID(_ context.Context, id uint) (*models.MaintenanceBill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bill, ok := f.bills[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *bill
	copied.Payments = append([]models.Payment(nil), f.payments[id]...)
	return &copied, nil
}

func (f *fakeBillStore) GetByFlatAndPeriod(_ context.Context, flatID uint, period string) (*models.MaintenanceBill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, bill := range f.bills {
		if bill.FlatID == flatID && bill.BillPeriod == period {
			copied := *bill
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeBillStore) ListByFlat(_ context.Context, flatID uint, status string, offset, limit int) ([]models.MaintenanceBill, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.MaintenanceBill
	for _, bill := range f.bills {
		if bill.FlatID != flatID {
			continue
		}
		if status != "" && bill.Status != status {
			continue
		}
		out = append(out, *bill)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
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

func (f *fakeBillStore) ListBySociety(_ context.Context, societyID uint, status string, offset, limit int) ([]models.MaintenanceBill, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.MaintenanceBill
	for _, bill := range f.bills {
		if bill.SocietyID != societyID {
			continue
		}
		if status != "" && bill.Status != status {
			continue
		}
		out = append(out, *bill)
	}
	total := int64(len(out))
	return out, total, nil
}

func (f *fakeBillStore) Update(_ context.Context, bill *models.MaintenanceBill) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.bills[bill.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	copied := *bill
	copied.Payments = nil
	f.bills[bill.ID] = &copied
	return nil
}

func (f *fakeBillStore) RecordPayment(_ context.Context, payment *models.Payment, bill *models.MaintenanceBill) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.bills[bill.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	payment.ID = uint(len(f.payments[bill.ID]) + 1)
	f.payments[bill.ID] = append(f.payments[bill.ID], *payment)
	copied := *bill
	copied.Payments = nil
	f.bills[bill.ID] = &copied
	return nil
}

func (f *fakeBillStore) ListPayments(_ context.Context, billID uint) ([]models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Payment(nil), f.payments[billID]...), nil
}

func (f *fakeBillStore) ListDueForReminder(_ context.Context, now, remindedBefore time.Time) ([]models.MaintenanceBill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.MaintenanceBill
	for _, bill := range f.bills {
		if bill.Status == models.BillStatusPaid {
			continue
		}
		if !now.After(bill.DueDate) {
			continue
		}
		if bill.LastReminderAt != nil && bill.LastReminderAt.After(remindedBefore) {
			continue
		}
		out = append(out, *bill)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeBillStore) MarkOverdue(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, bill := range f.bills {
		if bill.Status == models.BillStatusPending && now.After(bill.DueDate) {
			bill.Status = models.BillStatusOverdue
			n++
		}
	}
	return n, nil
}

func (f *fakeBillStore) TouchReminder(_ context.Context, id uint, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	bill, ok := f.bills[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	reminded := at
	bill.LastReminderAt = &reminded
	bill.ReminderCount++
	return nil
}

func (f *fakeBillStore) Summary(_ context.Context, flatID uint) (*models.BillSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	summary := &models.BillSummary{}
	for _, bill := range f.bills {
		if bill.FlatID != flatID {
			continue
		}
		summary.TotalBilled += bill.Amount
		summary.TotalPaid += bill.PaidAmount
		fee := bill.LateFee
		if bill.Status != models.BillStatusPaid {
			if live := models.CalculateLateFee(bill.Amount, bill.DueDate, now); live > fee {
				fee = live
			}
			summary.PendingBills++
		}
		summary.TotalLateFee += fee
		summary.TotalDue += bill.Amount + fee - bill.PaidAmount
	}
	return summary, nil
}

type fakeNoticeStore struct {
	mu       sync.Mutex
	nextID   uint
	notices  map[uint]*models.Notice
	statuses map[[2]uint]*models.NoticeReadStatus
}

func newFakeNoticeStore() *fakeNoticeStore {
	return &fakeNoticeStore{
		nextID:   1,
		notices:  make(map[uint]*models.Notice),
		statuses: make(map[[2]uint]*models.NoticeReadStatus),
	}
}

func (f *fakeNoticeStore) Create(_ context.Context, notice *models.Notice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	notice.ID = f.nextID
	f.nextID++
	copied := *notice
	f.notices[notice.ID] = &copied
	return nil
}

func (f *fakeNoticeStore) GetByID(_ context.Context, id uint) (*models.Notice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notices[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *n
	return &copied, nil
}

func (f *fakeNoticeStore) ListBySociety(_ context.Context, societyID uint, noticeType string, now time.Time, offset, limit int) ([]models.Notice, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Notice
	for _, n := range f.notices {
		if n.SocietyID != societyID || !n.IsActive || n.Expired(now) {
			continue
		}
		if noticeType != "" && n.Type != noticeType {
			continue
		}
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
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

func (f *fakeNoticeStore) Update(_ context.Context, notice *models.Notice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.notices[notice.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	copied := *notice
	f.notices[notice.ID] = &copied
	return nil
}

func (f *fakeNoticeStore) Deactivate(_ context.Context, id uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notices[id]
	if !ok || !n.IsActive {
		return false, nil
	}
	n.IsActive = false
	return true, nil
}

func (f *fakeNoticeStore) MarkRead(_ context.Context, noticeID, userID uint, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]uint{noticeID, userID}
	status, ok := f.statuses[key]
	if !ok {
		status = &models.NoticeReadStatus{NoticeID: noticeID, UserID: userID}
		f.statuses[key] = status
	}
	readAt := at
	status.ReadAt = &readAt
	return nil
}

func (f *fakeNoticeStore) SetMuted(_ context.Context, noticeID, userID uint, muted bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]uint{noticeID, userID}
	status, ok := f.statuses[key]
	if !ok {
		status = &models.NoticeReadStatus{NoticeID: noticeID, UserID: userID}
		f.statuses[key] = status
	}
	status.IsMuted = muted
	return nil
}

func (f *fakeNoticeStore) GetReadStatuses(_ context.Context, userID uint, noticeIDs []uint) ([]models.NoticeReadStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.NoticeReadStatus
	for _, id := range noticeIDs {
		if status, ok := f.statuses[[2]uint{id, userID}]; ok {
			out = append(out, *status)
		}
	}
	return out, nil
}

func (f *fakeNoticeStore) CountUnread(_ context.Context, societyID, userID uint, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, n := range f.notices {
		if n.SocietyID != societyID || !n.IsActive || n.Expired(now) {
			continue
		}
		status, ok := f.statuses[[2]uint{n.ID, userID}]
		if !ok || status.ReadAt == nil {
			count++
		}
	}
	return count, nil
}

type fakeCache struct {
	mu      sync.Mutex
	values  map[string]string
	counts  map[string]int64
	deleted []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		values: make(map[string]string),
		counts: make(map[string]int64),
	}
}

func (f *fakeCache) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[key], nil
}

func (f *fakeCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return nil
}

func (f *fakeCache) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeCache) Increment(_ context.Context, key string, _ time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeCache) Close() error { return nil }

type smsMessage struct {
	To   string
	Body string
}

type fakeSMSProvider struct {
	mu       sync.Mutex
	messages []smsMessage
	calls    []smsMessage
}

func (f *fakeSMSProvider) SendSMS(_ context.Context, to, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, smsMessage{To: to, Body: body})
	return "test-sms", nil
}

func (f *fakeSMSProvider) PlaceCall(_ context.Context, to, message string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, smsMessage{To: to, Body: message})
	return "test-call", nil
}

type pushMessage struct {
	Token  string
	Tokens []string
	Title  string
	Body   string
	Data   map[string]string
}

type fakePushProvider struct {
	mu         sync.Mutex
	sent       []pushMessage
	multicasts []pushMessage
	topics     []pushMessage
}

func (f *fakePushProvider) Send(_ context.Context, token, title, body string, data map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, pushMessage{Token: token, Title: title, Body: body, Data: data})
	return "test-push", nil
}

func (f *fakePushProvider) SendTopic(_ context.Context, topic, title, body string, data map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, pushMessage{Token: topic, Title: title, Body: body, Data: data})
	return "test-topic-push", nil
}

func (f *fakePushProvider) SendMulticast(_ context.Context, tokens []string, title, body string, data map[string]string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.multicasts = append(f.multicasts, pushMessage{Tokens: tokens, Title: title, Body: body, Data: data})
	return len(tokens), nil
}

type fakeEventPublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (f *fakeEventPublisher) Publish(subject string, _ interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subject)
}

func (f *fakeEventPublisher) published(subject string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subjects {
		if s == subject {
			return true
		}
	}
	return false
}
