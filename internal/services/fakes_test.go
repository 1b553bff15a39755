package services

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/carenest/therapy-booking/internal/database"
	"github.com/carenest/therapy-booking/internal/models"
)

// memStore is an in-memory database. WithTx serialises transactions and restores the
// snapshot taken at the start when fn fails.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	slots     map[uuid.UUID]models.TimeSlot
	payments  map[uuid.UUID]models.Payment
	bookings  map[uuid.UUID]models.SessionBooking
	journals  map[uuid.UUID]models.SessionJournal
	reviews   map[uuid.UUID]models.SessionReview
	refunds   map[uuid.UUID]models.RefundRequest
	providers map[uuid.UUID]models.Provider
	children  map[uuid.UUID]models.Child
	addresses map[uuid.UUID]string

	failCreateBatch error
}

func newMemStore() *memStore {
	return &memStore{
		slots:     map[uuid.UUID]models.TimeSlot{},
		payments:  map[uuid.UUID]models.Payment{},
		bookings:  map[uuid.UUID]models.SessionBooking{},
		journals:  map[uuid.UUID]models.SessionJournal{},
		reviews:   map[uuid.UUID]models.SessionReview{},
		refunds:   map[uuid.UUID]models.RefundRequest{},
		providers: map[uuid.UUID]models.Provider{},
		children:  map[uuid.UUID]models.Child{},
		addresses: map[uuid.UUID]string{},
	}
}

type snapshot struct {
	slots    map[uuid.UUID]models.TimeSlot
	payments map[uuid.UUID]models.Payment
	bookings map[uuid.UUID]models.SessionBooking
	journals map[uuid.UUID]models.SessionJournal
	reviews  map[uuid.UUID]models.SessionReview
	refunds  map[uuid.UUID]models.RefundRequest
}

func cloneMap[V any](m map[uuid.UUID]V) map[uuid.UUID]V {
	out := make(map[uuid.UUID]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memStore) WithTx(ctx context.Context, fn func(q database.Queryer) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snap := snapshot{
		slots:    cloneMap(s.slots),
		payments: cloneMap(s.payments),
		bookings: cloneMap(s.bookings),
		journals: cloneMap(s.journals),
		reviews:  cloneMap(s.reviews),
		refunds:  cloneMap(s.refunds),
	}
	s.mu.Unlock()

	if err := fn(nil); err != nil {
		s.mu.Lock()
		s.slots, s.payments, s.bookings = snap.slots, snap.payments, snap.bookings
		s.journals, s.reviews, s.refunds = snap.journals, snap.reviews, snap.refunds
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *memStore) slot(id uuid.UUID) models.TimeSlot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slots[id]
}

func (s *memStore) booking(id uuid.UUID) models.SessionBooking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookings[id]
}

func (s *memStore) payment(id uuid.UUID) models.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payments[id]
}

func (s *memStore) paymentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payments)
}

func (s *memStore) setBookingStatus(id uuid.UUID, status models.BookingStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.bookings[id]
	b.Status = status
	s.bookings[id] = b
}

// ---- slots ----

type fakeSlots struct{ s *memStore }

func (f fakeSlots) GetByIDs(_ context.Context, _ database.Queryer, ids []uuid.UUID) ([]models.TimeSlot, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []models.TimeSlot
	for _, id := range ids {
		if slot, ok := f.s.slots[id]; ok {
			out = append(out, slot)
		}
	}
	return out, nil
}

func (f fakeSlots) LockByIDs(ctx context.Context, q database.Queryer, ids []uuid.UUID) ([]models.TimeSlot, error) {
	return f.GetByIDs(ctx, q, ids)
}

func (f fakeSlots) IncrementReservation(_ context.Context, _ database.Queryer, id uuid.UUID) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	slot, ok := f.s.slots[id]
	if !ok || !slot.IsReservable() {
		return false, nil
	}
	slot.CurrentReservationCount++
	f.s.slots[id] = slot
	return true, nil
}

func (f fakeSlots) ListAvailable(_ context.Context, providerID uuid.UUID, from, to time.Time) ([]models.TimeSlot, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []models.TimeSlot{}
	for _, slot := range f.s.slots {
		if slot.ProviderID != providerID || !slot.IsReservable() {
			continue
		}
		if !from.IsZero() && slot.SlotDate.Before(from) || !to.IsZero() && slot.SlotDate.After(to) {
			continue
		}
		out = append(out, slot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotDate.Before(out[j].SlotDate) })
	return out, nil
}

// ---- payments ----

type fakePayments struct{ s *memStore }

func (f fakePayments) Create(_ context.Context, _ database.Queryer, p *models.Payment) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.payments[p.ID] = *p
	return nil
}

func (f fakePayments) GetByID(_ context.Context, _ database.Queryer, id uuid.UUID) (*models.Payment, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	p, ok := f.s.payments[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &p, nil
}

func (f fakePayments) LockByID(ctx context.Context, q database.Queryer, id uuid.UUID) (*models.Payment, error) {
	return f.GetByID(ctx, q, id)
}

func (f fakePayments) MarkPaid(_ context.Context, _ database.Queryer, id uuid.UUID, at time.Time) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	p, ok := f.s.payments[id]
	if !ok || p.PaidAt != nil {
		return false, nil
	}
	p.PaidAt = &at
	f.s.payments[id] = p
	return true, nil
}

func (f fakePayments) RecordRefund(_ context.Context, _ database.Queryer, id uuid.UUID, amount int64, at time.Time) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	p, ok := f.s.payments[id]
	if !ok || p.RefundedAt != nil {
		return false, nil
	}
	p.RefundAmount = &amount
	p.RefundedAt = &at
	f.s.payments[id] = p
	return true, nil
}

func (f fakePayments) List(_ context.Context, filter models.PaymentFilter) ([]models.Payment, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []models.Payment{}
	for _, p := range f.s.payments {
		switch {
		case filter.GuardianID != nil && p.GuardianID != *filter.GuardianID,
			filter.ProviderID != nil && p.ProviderID != *filter.ProviderID,
			filter.ChildID != nil && p.ChildID != *filter.ChildID,
			filter.SessionType != nil && p.SessionType != *filter.SessionType:
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Offset >= uint64(len(out)) {
		return []models.Payment{}, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < uint64(len(out)) {
		out = out[:filter.Limit]
	}
	return out, nil
}

// ---- bookings ----

type fakeBookings struct{ s *memStore }

func (f fakeBookings) CreateBatch(_ context.Context, _ database.Queryer, bookings []*models.SessionBooking) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.failCreateBatch != nil {
		return f.s.failCreateBatch
	}
	for _, b := range bookings {
		for _, existing := range f.s.bookings {
			if existing.PaymentID == b.PaymentID && existing.SessionNumber == b.SessionNumber {
				return database.ErrUniqueViolation
			}
		}
		f.s.bookings[b.ID] = *b
	}
	return nil
}

func (f fakeBookings) GetByID(_ context.Context, _ database.Queryer, id uuid.UUID) (*models.SessionBooking, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	b, ok := f.s.bookings[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &b, nil
}

func (f fakeBookings) LockByID(ctx context.Context, q database.Queryer, id uuid.UUID) (*models.SessionBooking, error) {
	return f.GetByID(ctx, q, id)
}

func (f fakeBookings) ListByPaymentID(_ context.Context, _ database.Queryer, paymentID uuid.UUID) ([]models.SessionBooking, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return f.byPayment(paymentID), nil
}

func (f fakeBookings) byPayment(paymentID uuid.UUID) []models.SessionBooking {
	out := []models.SessionBooking{}
	for _, b := range f.s.bookings {
		if b.PaymentID == paymentID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionNumber < out[j].SessionNumber })
	return out
}

func (f fakeBookings) ListByPaymentIDs(_ context.Context, paymentIDs []uuid.UUID) (map[uuid.UUID][]models.SessionBooking, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := make(map[uuid.UUID][]models.SessionBooking, len(paymentIDs))
	for _, id := range paymentIDs {
		out[id] = f.byPayment(id)
	}
	return out, nil
}

func (f fakeBookings) UpdateStatus(_ context.Context, _ database.Queryer, id uuid.UUID, from, to models.BookingStatus, at time.Time) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	b, ok := f.s.bookings[id]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = to
	b.UpdatedAt = at
	f.s.bookings[id] = b
	return true, nil
}

func (f fakeBookings) UpdateStatusForPayment(_ context.Context, _ database.Queryer, paymentID uuid.UUID, from []models.BookingStatus, to models.BookingStatus, at time.Time) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var n int64
	for id, b := range f.s.bookings {
		if b.PaymentID != paymentID {
			continue
		}
		for _, status := range from {
			if b.Status == status {
				b.Status = to
				b.UpdatedAt = at
				f.s.bookings[id] = b
				n++
				break
			}
		}
	}
	return n, nil
}

func (f fakeBookings) InsertJournal(_ context.Context, _ database.Queryer, j *models.SessionJournal) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.journals[j.BookingID]; ok {
		return database.ErrUniqueViolation
	}
	f.s.journals[j.BookingID] = *j
	return nil
}

func (f fakeBookings) GetJournal(_ context.Context, bookingID uuid.UUID) (*models.SessionJournal, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	j, ok := f.s.journals[bookingID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &j, nil
}

func (f fakeBookings) InsertReview(_ context.Context, _ database.Queryer, r *models.SessionReview) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.reviews[r.BookingID]; ok {
		return database.ErrUniqueViolation
	}
	f.s.reviews[r.BookingID] = *r
	return nil
}

// ---- refund requests ----

type fakeRefunds struct{ s *memStore }

func (f fakeRefunds) Create(_ context.Context, _ database.Queryer, r *models.RefundRequest) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, existing := range f.s.refunds {
		if existing.PaymentID == r.PaymentID && existing.Status == models.RefundPending {
			return database.ErrUniqueViolation
		}
	}
	f.s.refunds[r.ID] = *r
	return nil
}

func (f fakeRefunds) GetByID(_ context.Context, _ database.Queryer, id uuid.UUID) (*models.RefundRequest, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	r, ok := f.s.refunds[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &r, nil
}

func (f fakeRefunds) LockByID(ctx context.Context, q database.Queryer, id uuid.UUID) (*models.RefundRequest, error) {
	return f.GetByID(ctx, q, id)
}

func (f fakeRefunds) HasPending(_ context.Context, _ database.Queryer, paymentID uuid.UUID) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, r := range f.s.refunds {
		if r.PaymentID == paymentID && r.Status == models.RefundPending {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeRefunds) MarkApproved(_ context.Context, _ database.Queryer, id uuid.UUID, amount int64, note *string, operatorID uuid.UUID, at time.Time) (bool, error) {
	return f.process(id, func(r *models.RefundRequest) {
		r.Status = models.RefundApproved
		r.ApprovedAmount = &amount
		r.AdminNote = note
		r.ProcessedBy = &operatorID
		r.ProcessedAt = &at
	})
}

func (f fakeRefunds) MarkRejected(_ context.Context, _ database.Queryer, id uuid.UUID, reason string, note *string, operatorID uuid.UUID, at time.Time) (bool, error) {
	return f.process(id, func(r *models.RefundRequest) {
		r.Status = models.RefundRejected
		r.RejectionReason = &reason
		r.AdminNote = note
		r.ProcessedBy = &operatorID
		r.ProcessedAt = &at
	})
}

func (f fakeRefunds) process(id uuid.UUID, apply func(r *models.RefundRequest)) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	r, ok := f.s.refunds[id]
	if !ok || r.Status != models.RefundPending {
		return false, nil
	}
	apply(&r)
	f.s.refunds[id] = r
	return true, nil
}

func (f fakeRefunds) List(_ context.Context, filter models.RefundFilter) ([]models.RefundRequest, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []models.RefundRequest{}
	for _, r := range f.s.refunds {
		if filter.Status != nil && r.Status != *filter.Status {
			continue
		}
		if filter.PaymentID != nil && r.PaymentID != *filter.PaymentID {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ---- directories ----

type fakeProviders struct{ s *memStore }

func (f fakeProviders) GetByID(_ context.Context, id uuid.UUID) (*models.Provider, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	p, ok := f.s.providers[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &p, nil
}

func (f fakeProviders) GetByUserID(_ context.Context, userID uuid.UUID) (*models.Provider, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, p := range f.s.providers {
		if p.UserID == userID {
			return &p, nil
		}
	}
	return nil, database.ErrNotFound
}

type fakeChildren struct{ s *memStore }

func (f fakeChildren) GetByID(_ context.Context, id uuid.UUID) (*models.Child, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	c, ok := f.s.children[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &c, nil
}

func (f fakeChildren) GetServiceAddress(_ context.Context, guardianID uuid.UUID) (string, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	address, ok := f.s.addresses[guardianID]
	if !ok {
		return "", database.ErrNotFound
	}
	return address, nil
}

type fixedSettlement models.SettlementConfig

func (f fixedSettlement) Current(context.Context) (models.SettlementConfig, error) {
	return models.SettlementConfig(f), nil
}

// ---- fixture ----

var kst = time.FixedZone("KST", 9*60*60)

type fixture struct {
	store      *memStore
	slots      *SlotStore
	group      *BookingGroupService
	lifecycle  *BookingLifecycleService
	refunds    *RefundService
	guardianID uuid.UUID
	childID    uuid.UUID
	provider   models.Provider
	operatorID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := newMemStore()
	logger := quietLogger()

	f := &fixture{
		store:      store,
		guardianID: uuid.New(),
		childID:    uuid.New(),
		operatorID: uuid.New(),
	}
	f.provider = f.addProvider(models.ProviderApproved, int64Ptr(100000))
	store.children[f.childID] = models.Child{ID: f.childID, GuardianID: f.guardianID, Name: "민준"}
	store.addresses[f.guardianID] = "서울특별시 강남구 역삼동 123-4"

	settlement := fixedSettlement(models.SettlementConfig{
		PlatformRatePercent: 5,
		Remittance:          models.RemittanceAccount{BankName: "국민은행", AccountNumber: "123-456-789", AccountHolder: "케어네스트"},
		Version:             3,
	})

	f.slots = NewSlotStore(fakeSlots{store}, nil)
	f.group = NewBookingGroupService(store, f.slots, fakePayments{store}, fakeBookings{store},
		fakeChildren{store}, fakeProviders{store}, NewRegionAddressMatcher(), settlement, nil, logger, kst)
	f.lifecycle = NewBookingLifecycleService(store, fakePayments{store}, fakeBookings{store}, fakeProviders{store}, nil, logger)
	f.refunds = NewRefundService(store, fakePayments{store}, fakeBookings{store}, fakeRefunds{store}, nil, logger)

	return f
}

func (f *fixture) addProvider(status models.ProviderStatus, rate *int64) models.Provider {
	p := models.Provider{
		ID:             uuid.New(),
		UserID:         uuid.New(),
		DisplayName:    "김하늘",
		Status:         status,
		PerSessionRate: rate,
		ServiceAreas:   []string{"서울 강남구", "서울 서초구"},
	}
	f.store.providers[p.ID] = p
	return p
}

// addSlots publishes n reservable slots for providerID on consecutive days
func (f *fixture) addSlots(providerID uuid.UUID, n int) []uuid.UUID {
	ids := make([]uuid.UUID, n)
	for i := range ids {
		slot := models.TimeSlot{
			ID:          uuid.New(),
			ProviderID:  providerID,
			SlotDate:    time.Date(2026, 11, 2+i, 0, 0, 0, 0, time.UTC),
			StartTime:   "10:00",
			EndTime:     "10:50",
			IsAvailable: true,
		}
		f.store.slots[slot.ID] = slot
		ids[i] = slot.ID
	}
	return ids
}

func (f *fixture) therapyCommand(slotIDs []uuid.UUID) CreateBookingGroupCommand {
	return CreateBookingGroupCommand{
		GuardianID:   f.guardianID,
		ChildID:      f.childID,
		ProviderID:   f.provider.ID,
		SessionType:  models.SessionTypeTherapy,
		SessionCount: len(slotIDs),
		SlotIDs:      slotIDs,
	}
}

// book creates a paid-for-later therapy group of n sessions
func (f *fixture) book(t *testing.T, n int) *models.BookingGroupResult {
	t.Helper()
	result, err := f.group.CreateBookingGroup(context.Background(), f.therapyCommand(f.addSlots(f.provider.ID, n)))
	if err != nil {
		t.Fatalf("booking group: %v", err)
	}
	return result
}

func (f *fixture) guardian() models.Actor {
	return models.Actor{UserID: f.guardianID, Roles: []string{models.RoleGuardian}}
}

func (f *fixture) therapist() models.Actor {
	return models.Actor{UserID: f.provider.UserID, Roles: []string{models.RoleTherapist}}
}

func (f *fixture) admin() models.Actor {
	return models.Actor{UserID: f.operatorID, Roles: []string{models.RoleAdmin}}
}
