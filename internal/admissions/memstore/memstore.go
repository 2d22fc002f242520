// Package memstore keeps every admissions record in process memory. It satisfies
// the same contracts as the Postgres repositories and is used by tests and the
// serve --memory mode.
package memstore

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"admissions/internal/utils"
	"admissions/pkg/types"

	"github.com/shopspring/decimal"
)

type Store struct {
	mu sync.RWMutex

	users         map[string]*types.User
	payments      map[string]*types.Payment
	paymentOrder  []string
	applications  []*types.Application
	sequences     map[int]int64
	responses     map[string][]*types.ApplicationResponse
	progress      map[string]*types.ApplicationProgress
	questions     map[int64]*types.Question
	notifications []*types.Notification
	audit         []*types.AuditEntry
	resets        map[string]*types.PasswordReset

	now func() time.Time
}

func New() *Store {
	return &Store{
		users:     map[string]*types.User{},
		payments:  map[string]*types.Payment{},
		sequences: map[int]int64{},
		responses: map[string][]*types.ApplicationResponse{},
		progress:  map[string]*types.ApplicationProgress{},
		questions: map[int64]*types.Question{},
		resets:    map[string]*types.PasswordReset{},
		now:       time.Now,
	}
}

// WithClock sets the clock used for timestamps the store writes itself.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func copyPayment(p *types.Payment) *types.Payment {
	cp := *p
	return &cp
}

func copyApplication(a *types.Application) *types.Application {
	cp := *a
	cp.FormData = maps.Clone(a.FormData)
	return &cp
}

// Users

func (s *Store) CreateUser(_ context.Context, user *types.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return types.ErrDuplicateEmail
		}
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *Store) User(_ context.Context, userID string) (*types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, types.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (*types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, types.ErrUserNotFound
}

func (s *Store) CreatePasswordReset(_ context.Context, reset *types.PasswordReset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *reset
	s.resets[reset.TokenHash] = &cp
	return nil
}

func (s *Store) ResetPassword(_ context.Context, tokenHash, passwordHash string, at time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reset, ok := s.resets[tokenHash]
	if !ok || reset.UsedAt != nil || !reset.ExpiresAt.After(at) {
		return "", types.ErrResetTokenInvalid
	}
	u, ok := s.users[reset.UserID]
	if !ok {
		return "", types.ErrUserNotFound
	}

	u.PasswordHash = passwordHash
	u.UpdatedAt = at
	for _, r := range s.resets {
		if r.UserID == reset.UserID && r.UsedAt == nil {
			r.UsedAt = utils.TimePtr(at)
		}
	}
	return reset.UserID, nil
}

// Payments

func (s *Store) CreatePayment(_ context.Context, payment *types.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.payments {
		if p.TransactionReference == payment.TransactionReference {
			return types.ErrDuplicateTransactionReference
		}
		if payment.PaymentStatus == types.PaymentStatusConfirmed &&
			p.PaymentStatus == types.PaymentStatusConfirmed &&
			p.ApplicationFeePin == payment.ApplicationFeePin {
			return types.ErrDuplicatePin
		}
	}
	s.payments[payment.ID] = copyPayment(payment)
	s.paymentOrder = append(s.paymentOrder, payment.ID)
	return nil
}

func (s *Store) PinIssued(_ context.Context, pin string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.confirmedByPin(pin) != nil, nil
}

func (s *Store) confirmedByPin(pin string) *types.Payment {
	for _, p := range s.payments {
		if p.PaymentStatus == types.PaymentStatusConfirmed && p.ApplicationFeePin == pin {
			return p
		}
	}
	return nil
}

func (s *Store) ConfirmedPaymentByPin(_ context.Context, pin string) (*types.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p := s.confirmedByPin(pin)
	if p == nil {
		return nil, types.ErrPaymentNotFound
	}
	return copyPayment(p), nil
}

func (s *Store) Payment(_ context.Context, paymentID string) (*types.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.payments[paymentID]
	if !ok {
		return nil, types.ErrPaymentNotFound
	}
	return copyPayment(p), nil
}

func (s *Store) ClaimPin(_ context.Context, paymentID, userID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[paymentID]
	if !ok {
		return false, types.ErrPaymentNotFound
	}
	if p.PinUsedByUserID != nil || p.PaymentStatus != types.PaymentStatusConfirmed {
		return false, nil
	}
	p.PinUsedByUserID = utils.StringPtr(userID)
	p.PinUsed = true
	p.PinUsedAt = utils.TimePtr(at)
	p.UpdatedAt = at
	return true, nil
}

func (s *Store) MarkPinUsed(_ context.Context, paymentID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[paymentID]
	if !ok {
		return types.ErrPaymentNotFound
	}
	p.PinUsed = true
	if p.PinUsedAt == nil {
		p.PinUsedAt = utils.TimePtr(at)
	}
	p.UpdatedAt = at
	return nil
}

func (s *Store) listPayments(keep func(*types.Payment) bool) []*types.Payment {
	out := make([]*types.Payment, 0)
	for i := len(s.paymentOrder) - 1; i >= 0; i-- {
		p := s.payments[s.paymentOrder[i]]
		if keep(p) {
			out = append(out, copyPayment(p))
		}
	}
	return out
}

func (s *Store) PaymentsByStatus(_ context.Context, status types.PaymentStatus) ([]*types.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.listPayments(func(p *types.Payment) bool { return p.PaymentStatus == status }), nil
}

func (s *Store) PaymentsByBankUser(_ context.Context, bankUserID string) ([]*types.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.listPayments(func(p *types.Payment) bool { return p.BankUserID == bankUserID }), nil
}

func (s *Store) AllPayments(_ context.Context) ([]*types.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.listPayments(func(*types.Payment) bool { return true }), nil
}

func (s *Store) UpdatePaymentStatus(_ context.Context, paymentID string, status types.PaymentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[paymentID]
	if !ok {
		return types.ErrPaymentNotFound
	}
	if status == types.PaymentStatusConfirmed && p.PaymentStatus != types.PaymentStatusConfirmed {
		if other := s.confirmedByPin(p.ApplicationFeePin); other != nil {
			return types.ErrDuplicatePin
		}
	}
	p.PaymentStatus = status
	p.UpdatedAt = s.now().UTC()
	return nil
}

func (s *Store) ExpirePin(_ context.Context, pin string) (*types.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.paymentOrder {
		p := s.payments[id]
		if p.ApplicationFeePin == pin && p.PaymentStatus != types.PaymentStatusExpired {
			p.PaymentStatus = types.PaymentStatusExpired
			p.UpdatedAt = s.now().UTC()
			return copyPayment(p), nil
		}
	}
	return nil, types.ErrPaymentNotFound
}

func (s *Store) PinStatistics(_ context.Context, validSince time.Time) (*types.PinStatistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &types.PinStatistics{}
	for _, p := range s.payments {
		stats.Issued++
		unclaimed := p.PinUsedByUserID == nil
		if !unclaimed {
			stats.Used++
		}
		switch {
		case p.PaymentStatus == types.PaymentStatusExpired:
			stats.Expired++
		case p.PaymentStatus == types.PaymentStatusConfirmed && unclaimed && p.PaymentDate.Before(validSince):
			stats.Expired++
		case p.PaymentStatus == types.PaymentStatusConfirmed && unclaimed:
			stats.Unused++
		}
	}
	return stats, nil
}

func (s *Store) ExpireStalePins(_ context.Context, paidBefore time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, p := range s.payments {
		if p.PaymentStatus == types.PaymentStatusConfirmed && p.PaymentDate.Before(paidBefore) {
			p.PaymentStatus = types.PaymentStatusExpired
			p.UpdatedAt = s.now().UTC()
			n++
		}
	}
	return n, nil
}

func (s *Store) PaymentStatistics(_ context.Context, dayStart, weekStart time.Time) (*types.PaymentStatistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	add := func(w *types.PaymentWindow, amount decimal.Decimal) {
		w.Count++
		w.Total = w.Total.Add(amount)
	}

	stats := &types.PaymentStatistics{}
	for _, p := range s.payments {
		switch p.PaymentStatus {
		case types.PaymentStatusConfirmed:
			add(&stats.Confirmed, p.Amount)
		case types.PaymentStatusPending:
			add(&stats.Pending, p.Amount)
		}
		if !p.PaymentDate.Before(dayStart) {
			add(&stats.Today, p.Amount)
		}
		if !p.PaymentDate.Before(weekStart) {
			add(&stats.Week, p.Amount)
		}
	}
	return stats, nil
}

func (s *Store) ConfirmedPaymentTotal(_ context.Context) (types.PaymentWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var w types.PaymentWindow
	for _, p := range s.payments {
		if p.PaymentStatus == types.PaymentStatusConfirmed {
			w.Count++
			w.Total = w.Total.Add(p.Amount)
		}
	}
	return w, nil
}

// Applications

func (s *Store) draftFor(userID string) *types.Application {
	for _, a := range s.applications {
		if a.UserID == userID && a.ApplicationStatus == types.ApplicationStatusDraft {
			return a
		}
	}
	return nil
}

func (s *Store) StartDraft(_ context.Context, app *types.Application) (*types.Application, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.draftFor(app.UserID); existing != nil {
		existing.UpdatedAt = app.UpdatedAt
		return copyApplication(existing), true, nil
	}
	s.applications = append(s.applications, copyApplication(app))
	return copyApplication(app), false, nil
}

func (s *Store) UpsertDraft(_ context.Context, app *types.Application) (*types.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.draftFor(app.UserID); existing != nil {
		existing.ProgramType = app.ProgramType
		existing.FormData = maps.Clone(app.FormData)
		existing.UpdatedAt = app.UpdatedAt
		return copyApplication(existing), nil
	}
	s.applications = append(s.applications, copyApplication(app))
	return copyApplication(app), nil
}

func (s *Store) latestSubmitted(userID string) *types.Application {
	var latest *types.Application
	for _, a := range s.applications {
		if a.UserID != userID || a.ApplicationStatus != types.ApplicationStatusSubmitted {
			continue
		}
		if latest == nil || !utils.PtrTime(a.SubmissionDate).Before(utils.PtrTime(latest.SubmissionDate)) {
			latest = a
		}
	}
	return latest
}

func (s *Store) SaveSubmission(_ context.Context, userID string, formData types.FormData, responses []*types.ApplicationResponse, at time.Time) (*types.Application, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	app := s.latestSubmitted(userID)
	resubmission := app != nil
	if resubmission {
		app.FormData = maps.Clone(formData)
		app.SubmissionDate = utils.TimePtr(at)
		app.UpdatedAt = at
	} else {
		app = &types.Application{
			ID:                utils.NanoID(),
			UserID:            userID,
			ApplicationStatus: types.ApplicationStatusSubmitted,
			FormData:          maps.Clone(formData),
			SubmissionDate:    utils.TimePtr(at),
			CreatedAt:         at,
			UpdatedAt:         at,
		}
		s.applications = append(s.applications, app)
	}

	stored := make([]*types.ApplicationResponse, 0, len(responses))
	for _, r := range responses {
		cp := *r
		cp.ApplicationID = app.ID
		cp.CreatedAt = at
		stored = append(stored, &cp)
	}
	s.responses[app.ID] = stored

	return copyApplication(app), resubmission, nil
}

func (s *Store) application(id string) *types.Application {
	for _, a := range s.applications {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (s *Store) AssignApplicationNumber(_ context.Context, applicationID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	app := s.application(applicationID)
	if app == nil {
		return "", types.ErrApplicationNotFound
	}
	if app.ApplicationNumber != nil {
		return *app.ApplicationNumber, nil
	}
	year := app.CreatedAt.UTC().Year()
	s.sequences[year]++
	number := types.FormatApplicationNumber(year, s.sequences[year])
	app.ApplicationNumber = utils.StringPtr(number)
	return number, nil
}

func (s *Store) LatestSubmittedByUser(_ context.Context, userID string) (*types.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	app := s.latestSubmitted(userID)
	if app == nil {
		return nil, types.ErrApplicationNotFound
	}
	return copyApplication(app), nil
}

func (s *Store) ApplicationsByUser(_ context.Context, userID string) ([]*types.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.Application, 0)
	for i := len(s.applications) - 1; i >= 0; i-- {
		if a := s.applications[i]; a.UserID == userID {
			out = append(out, copyApplication(a))
		}
	}
	return out, nil
}

func (s *Store) AllApplications(_ context.Context) ([]*types.ApplicationListing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.ApplicationListing, 0, len(s.applications))
	for i := len(s.applications) - 1; i >= 0; i-- {
		a := s.applications[i]
		listing := &types.ApplicationListing{Application: *copyApplication(a)}
		if u, ok := s.users[a.UserID]; ok {
			listing.Email = u.Email
		}
		out = append(out, listing)
	}
	return out, nil
}

func (s *Store) Application(_ context.Context, applicationID string) (*types.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	app := s.application(applicationID)
	if app == nil {
		return nil, types.ErrApplicationNotFound
	}
	return copyApplication(app), nil
}

func (s *Store) UpdateApplicationStatus(_ context.Context, applicationID string, status types.ApplicationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	app := s.application(applicationID)
	if app == nil {
		return types.ErrApplicationNotFound
	}
	app.ApplicationStatus = status
	app.UpdatedAt = s.now().UTC()
	return nil
}

func (s *Store) ApplicationCounts(_ context.Context) (*types.ApplicationCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := &types.ApplicationCounts{Total: int64(len(s.applications))}
	for _, a := range s.applications {
		switch a.ApplicationStatus {
		case types.ApplicationStatusDraft:
			counts.Drafts++
		case types.ApplicationStatusSubmitted:
			counts.Submitted++
		case types.ApplicationStatusInterviewScheduled:
			counts.InterviewScheduled++
		}
	}
	return counts, nil
}

// Responses

func (s *Store) ResponsesByApplication(_ context.Context, applicationID string) ([]*types.ApplicationResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.ApplicationResponse, 0, len(s.responses[applicationID]))
	for _, r := range s.responses[applicationID] {
		cp := *r
		if q, ok := s.questions[r.QuestionID]; ok {
			cp.QuestionText = utils.StringPtr(q.QuestionText)
			cp.QuestionType = utils.StringPtr(q.QuestionType)
			cp.Category = utils.StringPtr(q.Category)
			cp.CategoryOrder = utils.IntPtr(q.CategoryOrder)
			cp.SortOrder = utils.IntPtr(q.SortOrder)
		}
		out = append(out, &cp)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if (a.CategoryOrder == nil) != (b.CategoryOrder == nil) {
			return a.CategoryOrder != nil
		}
		if a.CategoryOrder != nil && *a.CategoryOrder != *b.CategoryOrder {
			return *a.CategoryOrder < *b.CategoryOrder
		}
		if sa, sb := utils.PtrInt(a.SortOrder), utils.PtrInt(b.SortOrder); sa != sb {
			return sa < sb
		}
		return a.QuestionID < b.QuestionID
	})
	return out, nil
}

// Progress

func copyProgress(p *types.ApplicationProgress) *types.ApplicationProgress {
	cp := *p
	cp.FormData = maps.Clone(p.FormData)
	cp.FilesMetadata = maps.Clone(p.FilesMetadata)
	cp.CompletedSteps = slices.Clone(p.CompletedSteps)
	return &cp
}

func (s *Store) SaveProgress(_ context.Context, progress *types.ApplicationProgress) (*types.ApplicationProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := copyProgress(progress)
	if next.FilesMetadata == nil {
		next.FilesMetadata = types.FilesMetadata{}
	}
	if existing, ok := s.progress[progress.UserID]; ok {
		merged := maps.Clone(existing.FilesMetadata)
		if merged == nil {
			merged = types.FilesMetadata{}
		}
		maps.Copy(merged, next.FilesMetadata)
		next.FilesMetadata = merged
		next.CreatedAt = existing.CreatedAt
	} else {
		next.CreatedAt = progress.LastSavedAt
	}
	s.progress[progress.UserID] = next
	return copyProgress(next), nil
}

func (s *Store) AttachFile(_ context.Context, userID, questionKey string, file types.FileMetadata) (*types.ApplicationProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	p, ok := s.progress[userID]
	if !ok {
		p = &types.ApplicationProgress{
			UserID:         userID,
			FormData:       types.FormData{},
			FilesMetadata:  types.FilesMetadata{},
			CompletedSteps: []int{},
			CreatedAt:      now,
		}
		s.progress[userID] = p
	}
	if p.FilesMetadata == nil {
		p.FilesMetadata = types.FilesMetadata{}
	}
	p.FilesMetadata[questionKey] = file
	p.LastSavedAt = now
	return copyProgress(p), nil
}

func (s *Store) Progress(_ context.Context, userID string) (*types.ApplicationProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.progress[userID]
	if !ok {
		return nil, types.ErrProgressNotFound
	}
	return copyProgress(p), nil
}

func (s *Store) ClearProgress(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.progress, userID)
	return nil
}

// Questions

func (s *Store) PutQuestions(questions ...*types.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, q := range questions {
		cp := *q
		s.questions[q.ID] = &cp
	}
}

func (s *Store) UpsertQuestion(_ context.Context, question *types.Question) error {
	s.PutQuestions(question)
	return nil
}

func (s *Store) ActiveQuestions(_ context.Context) ([]*types.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.Question, 0, len(s.questions))
	for _, q := range s.questions {
		if q.IsActive {
			cp := *q
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CategoryOrder != out[j].CategoryOrder {
			return out[i].CategoryOrder < out[j].CategoryOrder
		}
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Notifications and audit

func (s *Store) Notify(_ context.Context, userID, kind, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notifications = append(s.notifications, &types.Notification{
		ID:      utils.NanoID(),
		UserID:  userID,
		Type:    kind,
		Message: message,
		SentAt:  s.now().UTC(),
	})
	return nil
}

func (s *Store) NotificationsByUser(_ context.Context, userID string) ([]*types.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.Notification, 0)
	for i := len(s.notifications) - 1; i >= 0; i-- {
		if n := s.notifications[i]; n.UserID == userID {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) Record(_ context.Context, userID, action string, details map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.audit = append(s.audit, &types.AuditEntry{
		ID:        utils.NanoID(),
		UserID:    userID,
		Action:    action,
		Details:   maps.Clone(details),
		CreatedAt: s.now().UTC(),
	})
	return nil
}

func (s *Store) PinAudit(_ context.Context, actions []string, limit, offset int) ([]*types.PinAuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.PinAuditEntry, 0)
	skipped := 0
	for i := len(s.audit) - 1; i >= 0 && len(out) < limit; i-- {
		e := s.audit[i]
		if !slices.Contains(actions, e.Action) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}

		entry := &types.PinAuditEntry{AuditEntry: *e}
		entry.Details = maps.Clone(e.Details)
		if id, ok := e.Details["payment_id"].(string); ok {
			if p, ok := s.payments[id]; ok {
				entry.PaymentID = utils.StringPtr(p.ID)
				entry.TransactionReference = utils.StringPtr(p.TransactionReference)
				entry.DepositorName = utils.StringPtr(p.DepositorName)
			}
		}
		if u, ok := s.users[e.UserID]; ok {
			entry.Email = utils.StringPtr(u.Email)
		}
		out = append(out, entry)
	}
	return out, nil
}

// AuditEntries returns every recorded entry in write order.
func (s *Store) AuditEntries() []*types.AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.AuditEntry, 0, len(s.audit))
	for _, e := range s.audit {
		cp := *e
		out = append(out, &cp)
	}
	return out
}
