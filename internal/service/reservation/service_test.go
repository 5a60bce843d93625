package reservation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spasuite/booking-api/pkg/errors"
	"github.com/spasuite/booking-api/pkg/logger"

	"github.com/spasuite/booking-api/internal/model"
	"github.com/spasuite/booking-api/internal/service/availability"
	"github.com/spasuite/booking-api/internal/service/ledger"
	"github.com/spasuite/booking-api/internal/service/payment"
)

type fakeTxManager struct{}

func (fakeTxManager) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	return fn(nil)
}

type fakeReservationRepo struct {
	store        map[uuid.UUID]*model.Reservation
	addOns       []model.ReservationAddOn
	seq          map[int]int
	forceOverlap bool
	// When set, Get reports this status instead of the stored one, so the
	// row can move underneath a caller between read and transition
	staleStatus *model.ReservationStatus
}

func newFakeReservationRepo() *fakeReservationRepo {
	return &fakeReservationRepo{
		store: make(map[uuid.UUID]*model.Reservation),
		seq:   make(map[int]int),
	}
}

func (f *fakeReservationRepo) Get(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	res, ok := f.store[id]
	if !ok {
		return nil, apperrors.NotFound("reservation", nil)
	}
	copied := *res
	if f.staleStatus != nil {
		copied.Status = *f.staleStatus
	}
	return &copied, nil
}

func (f *fakeReservationRepo) List(ctx context.Context, filters *model.ReservationFilters) ([]*model.Reservation, error) {
	out := make([]*model.Reservation, 0, len(f.store))
	for _, res := range f.store {
		out = append(out, res)
	}
	return out, nil
}

func (f *fakeReservationRepo) ListBlockingForDate(ctx context.Context, date time.Time) ([]*model.Reservation, error) {
	var out []*model.Reservation
	for _, res := range f.store {
		if res.Date.Equal(date) && res.Status.Blocks() {
			out = append(out, res)
		}
	}
	return out, nil
}

func (f *fakeReservationRepo) ListByStatusForDate(ctx context.Context, status model.ReservationStatus, date time.Time) ([]*model.Reservation, error) {
	return nil, nil
}

func (f *fakeReservationRepo) GetAddOns(ctx context.Context, reservationID uuid.UUID) ([]*model.ReservationAddOn, error) {
	var out []*model.ReservationAddOn
	for i := range f.addOns {
		if f.addOns[i].ReservationID == reservationID {
			out = append(out, &f.addOns[i])
		}
	}
	return out, nil
}

func (f *fakeReservationRepo) HardDelete(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.store[id]; !ok {
		return apperrors.NotFound("reservation", nil)
	}
	delete(f.store, id)
	return nil
}

func (f *fakeReservationRepo) NextSequenceTx(ctx context.Context, tx *sqlx.Tx, year int) (string, error) {
	f.seq[year]++
	return fmt.Sprintf("RES-%d-%05d", year, f.seq[year]), nil
}

func (f *fakeReservationRepo) HasOverlapTx(ctx context.Context, tx *sqlx.Tx, therapistID, roomID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	return f.forceOverlap, nil
}

func (f *fakeReservationRepo) LockResourcesTx(ctx context.Context, tx *sqlx.Tx, therapistID, roomID uuid.UUID) error {
	return nil
}

func (f *fakeReservationRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, res *model.Reservation) error {
	f.store[res.ID] = res
	return nil
}

func (f *fakeReservationRepo) AddAddOnsTx(ctx context.Context, tx *sqlx.Tx, addOns []model.ReservationAddOn) error {
	f.addOns = append(f.addOns, addOns...)
	return nil
}

func (f *fakeReservationRepo) UpdateTx(ctx context.Context, tx *sqlx.Tx, res *model.Reservation) error {
	stored, ok := f.store[res.ID]
	if !ok {
		return apperrors.NotFound("reservation", nil)
	}
	*stored = *res
	return nil
}

func (f *fakeReservationRepo) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, from, to model.ReservationStatus) error {
	stored, ok := f.store[id]
	if !ok || stored.Status != from {
		return apperrors.Conflictf("reservation is no longer %s", from)
	}
	stored.Status = to
	return nil
}

func (f *fakeReservationRepo) UpdatePaymentStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status model.PaymentStatus) error {
	stored, ok := f.store[id]
	if !ok {
		return apperrors.NotFound("reservation", nil)
	}
	stored.PaymentStatus = status
	return nil
}

type fakeCatalogRepo struct {
	clients    map[uuid.UUID]*model.Client
	therapists map[uuid.UUID]*model.Therapist
	rooms      map[uuid.UUID]*model.Room
	services   map[uuid.UUID]*model.Service
	variants   map[uuid.UUID]*model.ServiceVariant
	addOns     map[uuid.UUID]*model.AddOn
}

func (f *fakeCatalogRepo) GetClient(ctx context.Context, id uuid.UUID) (*model.Client, error) {
	if c, ok := f.clients[id]; ok {
		return c, nil
	}
	return nil, apperrors.NotFound("client", nil)
}

func (f *fakeCatalogRepo) GetTherapist(ctx context.Context, id uuid.UUID) (*model.Therapist, error) {
	if t, ok := f.therapists[id]; ok {
		return t, nil
	}
	return nil, apperrors.NotFound("therapist", nil)
}

func (f *fakeCatalogRepo) ListActiveTherapists(ctx context.Context) ([]*model.Therapist, error) {
	return nil, nil
}

func (f *fakeCatalogRepo) CreateTherapist(ctx context.Context, t *model.Therapist) error { return nil }

func (f *fakeCatalogRepo) GetRoom(ctx context.Context, id uuid.UUID) (*model.Room, error) {
	if r, ok := f.rooms[id]; ok {
		return r, nil
	}
	return nil, apperrors.NotFound("room", nil)
}

func (f *fakeCatalogRepo) ListActiveRooms(ctx context.Context) ([]*model.Room, error) {
	return nil, nil
}

func (f *fakeCatalogRepo) CreateRoom(ctx context.Context, r *model.Room) error { return nil }

func (f *fakeCatalogRepo) GetService(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	if s, ok := f.services[id]; ok {
		return s, nil
	}
	return nil, apperrors.NotFound("service", nil)
}

func (f *fakeCatalogRepo) ListServices(ctx context.Context) ([]*model.Service, error) {
	return nil, nil
}

func (f *fakeCatalogRepo) GetVariant(ctx context.Context, id uuid.UUID) (*model.ServiceVariant, error) {
	if v, ok := f.variants[id]; ok {
		return v, nil
	}
	return nil, apperrors.NotFound("service variant", nil)
}

func (f *fakeCatalogRepo) ListVariants(ctx context.Context, serviceID uuid.UUID) ([]*model.ServiceVariant, error) {
	return nil, nil
}

func (f *fakeCatalogRepo) GetAddOns(ctx context.Context, ids []uuid.UUID) ([]*model.AddOn, error) {
	var out []*model.AddOn
	for _, id := range ids {
		if a, ok := f.addOns[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeCatalogRepo) GetPackageDefinition(ctx context.Context, id uuid.UUID) (*model.PackageDefinition, error) {
	return nil, apperrors.NotFound("package definition", nil)
}

type fakeCalendarRepo struct{}

func (fakeCalendarRepo) Upsert(ctx context.Context, entry *model.CalendarEntry) error { return nil }

func (fakeCalendarRepo) GetForDate(ctx context.Context, therapistID uuid.UUID, date time.Time) (*model.CalendarEntry, error) {
	return nil, apperrors.NotFound("calendar entry", nil)
}

func (fakeCalendarRepo) ListForDate(ctx context.Context, date time.Time) ([]*model.CalendarEntry, error) {
	return nil, nil
}

func (fakeCalendarRepo) ListRange(ctx context.Context, therapistID uuid.UUID, from, to time.Time) ([]*model.CalendarEntry, error) {
	return nil, nil
}

type fakePackageRepo struct {
	instance *model.PackageInstance
	entries  []*model.LedgerEntry
}

func (f *fakePackageRepo) GetInstance(ctx context.Context, id uuid.UUID) (*model.PackageInstance, error) {
	if f.instance != nil && f.instance.ID == id {
		return f.instance, nil
	}
	return nil, apperrors.NotFound("package instance", nil)
}

func (f *fakePackageRepo) GetActiveForClient(ctx context.Context, clientID uuid.UUID) (*model.PackageInstance, error) {
	if f.instance != nil && f.instance.ClientID == clientID && f.instance.Status == model.PackageStatusActive {
		return f.instance, nil
	}
	return nil, apperrors.NotFound("package instance", nil)
}

func (f *fakePackageRepo) ListEntries(ctx context.Context, instanceID uuid.UUID) ([]*model.LedgerEntry, error) {
	return f.entries, nil
}

func (f *fakePackageRepo) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

func (f *fakePackageRepo) ListNearDepletion(ctx context.Context, hoursThreshold float64) ([]*model.PackageInstance, error) {
	return nil, nil
}

func (f *fakePackageRepo) ListNearExpiry(ctx context.Context, now time.Time, within time.Duration) ([]*model.PackageInstance, error) {
	return nil, nil
}

func (f *fakePackageRepo) GetInstanceForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*model.PackageInstance, error) {
	return f.GetInstance(ctx, id)
}

func (f *fakePackageRepo) GetActiveForClientForUpdateTx(ctx context.Context, tx *sqlx.Tx, clientID uuid.UUID) (*model.PackageInstance, error) {
	return f.GetActiveForClient(ctx, clientID)
}

func (f *fakePackageRepo) CreateInstanceTx(ctx context.Context, tx *sqlx.Tx, inst *model.PackageInstance) error {
	f.instance = inst
	return nil
}

func (f *fakePackageRepo) InsertEntryTx(ctx context.Context, tx *sqlx.Tx, entry *model.LedgerEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakePackageRepo) UpdateBalanceTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, usedHours, remainingHours float64, status model.PackageStatus) error {
	if f.instance == nil || f.instance.ID != id {
		return apperrors.NotFound("package instance", nil)
	}
	f.instance.UsedHours = usedHours
	f.instance.RemainingHours = remainingHours
	f.instance.Status = status
	return nil
}

func (f *fakePackageRepo) NetDebitTx(ctx context.Context, tx *sqlx.Tx, instanceID, reservationID uuid.UUID) (float64, error) {
	var net float64
	for _, e := range f.entries {
		if e.InstanceID != instanceID || e.ReservationID != reservationID {
			continue
		}
		switch e.Kind {
		case model.LedgerEntryDebit:
			net += e.Hours
		case model.LedgerEntryCredit:
			net -= e.Hours
		}
	}
	return net, nil
}

func (f *fakePackageRepo) InstanceForReservationTx(ctx context.Context, tx *sqlx.Tx, reservationID uuid.UUID) (uuid.UUID, error) {
	for _, e := range f.entries {
		if e.ReservationID == reservationID {
			return e.InstanceID, nil
		}
	}
	return uuid.Nil, apperrors.NotFound("ledger entry", nil)
}

func (f *fakePackageRepo) CreatePaymentTx(ctx context.Context, tx *sqlx.Tx, p *model.PaymentTransaction) error {
	return nil
}

type fakeVoucherRepo struct {
	voucher     *model.Voucher
	redemptions []*model.RedemptionRecord
}

func (f *fakeVoucherRepo) Create(ctx context.Context, v *model.Voucher) error {
	f.voucher = v
	return nil
}

func (f *fakeVoucherRepo) Get(ctx context.Context, id uuid.UUID) (*model.Voucher, error) {
	if f.voucher != nil && f.voucher.ID == id {
		return f.voucher, nil
	}
	return nil, apperrors.NotFound("voucher", nil)
}

func (f *fakeVoucherRepo) GetByCode(ctx context.Context, code string) (*model.Voucher, error) {
	return nil, apperrors.NotFound("voucher", nil)
}

func (f *fakeVoucherRepo) ListRedemptions(ctx context.Context, voucherID uuid.UUID) ([]*model.RedemptionRecord, error) {
	return f.redemptions, nil
}

func (f *fakeVoucherRepo) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeVoucherRepo) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*model.Voucher, error) {
	return f.Get(ctx, id)
}

func (f *fakeVoucherRepo) InsertRedemptionTx(ctx context.Context, tx *sqlx.Tx, rec *model.RedemptionRecord) error {
	f.redemptions = append(f.redemptions, rec)
	return nil
}

func (f *fakeVoucherRepo) UpdateBalanceTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, remaining float64, status model.VoucherStatus) error {
	if f.voucher == nil || f.voucher.ID != id {
		return apperrors.NotFound("voucher", nil)
	}
	f.voucher.RemainingValue = remaining
	f.voucher.Status = status
	return nil
}

func (f *fakeVoucherRepo) ExtendTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, expiry time.Time, remaining float64) error {
	return nil
}

type fakeNotifier struct {
	booked    int
	cancelled int
}

func (f *fakeNotifier) ReservationBooked(ctx context.Context, res *model.Reservation) error {
	f.booked++
	return nil
}

func (f *fakeNotifier) ReservationCancelled(ctx context.Context, res *model.Reservation) error {
	f.cancelled++
	return nil
}

type testEnv struct {
	svc      *Service
	resRepo  *fakeReservationRepo
	pkgRepo  *fakePackageRepo
	vouRepo  *fakeVoucherRepo
	notifier *fakeNotifier

	clientID    uuid.UUID
	therapistID uuid.UUID
	roomID      uuid.UUID
	serviceID   uuid.UUID
	variantID   uuid.UUID
	addOnID     uuid.UUID
}

func newTestEnv() *testEnv {
	env := &testEnv{
		resRepo:  newFakeReservationRepo(),
		pkgRepo:  &fakePackageRepo{},
		vouRepo:  &fakeVoucherRepo{},
		notifier: &fakeNotifier{},

		clientID:    uuid.New(),
		therapistID: uuid.New(),
		roomID:      uuid.New(),
		serviceID:   uuid.New(),
		variantID:   uuid.New(),
		addOnID:     uuid.New(),
	}

	catalogRepo := &fakeCatalogRepo{
		clients: map[uuid.UUID]*model.Client{
			env.clientID: {Base: model.Base{ID: env.clientID}, FirstName: "Mia", Active: true},
		},
		therapists: map[uuid.UUID]*model.Therapist{
			env.therapistID: {Base: model.Base{ID: env.therapistID}, FirstName: "Anna", Active: true},
		},
		rooms: map[uuid.UUID]*model.Room{
			env.roomID: {Base: model.Base{ID: env.roomID}, Name: "Room 1", Active: true},
		},
		services: map[uuid.UUID]*model.Service{
			env.serviceID: {Base: model.Base{ID: env.serviceID}, Name: "Massage", Active: true},
		},
		variants: map[uuid.UUID]*model.ServiceVariant{
			env.variantID: {
				Base:            model.Base{ID: env.variantID},
				ServiceID:       env.serviceID,
				Name:            "Classic 120",
				DurationMinutes: 120,
				Price:           200,
				Active:          true,
			},
		},
		addOns: map[uuid.UUID]*model.AddOn{
			env.addOnID: {Base: model.Base{ID: env.addOnID}, Name: "Hot stones", Price: 25, Active: true},
		},
	}

	log := logger.NewLogger(nil)
	txm := fakeTxManager{}

	ledgerSvc := ledger.NewService(env.pkgRepo, env.vouRepo, catalogRepo, txm, log)
	availSvc := availability.NewService(catalogRepo, fakeCalendarRepo{}, env.resRepo)
	resolver := payment.NewResolver(ledgerSvc)

	env.svc = NewService(env.resRepo, catalogRepo, availSvc, ledgerSvc, resolver,
		env.notifier, nil, txm, log)
	return env
}

func (e *testEnv) addPackage(remaining float64) *model.PackageInstance {
	inst := &model.PackageInstance{
		Base:           model.Base{ID: uuid.New()},
		ClientID:       e.clientID,
		PurchasedHours: remaining,
		RemainingHours: remaining,
		ExpiryDate:     time.Now().AddDate(0, 1, 0),
		Status:         model.PackageStatusActive,
	}
	e.pkgRepo.instance = inst
	return inst
}

func (e *testEnv) addVoucher(remaining float64) *model.Voucher {
	v := &model.Voucher{
		Base:           model.Base{ID: uuid.New()},
		Code:           "GV-TEST",
		Kind:           model.VoucherKindMonetary,
		InitialValue:   remaining,
		RemainingValue: remaining,
		ExpiryDate:     time.Now().AddDate(0, 1, 0),
		Status:         model.VoucherStatusActive,
	}
	e.vouRepo.voucher = v
	return v
}

func (e *testEnv) createReq(method model.PaymentMethod, startHour int) *model.CreateReservationRequest {
	return &model.CreateReservationRequest{
		ClientID:      e.clientID,
		TherapistID:   e.therapistID,
		RoomID:        e.roomID,
		ServiceID:     e.serviceID,
		VariantID:     e.variantID,
		StartTime:     time.Date(2026, 3, 10, startHour, 0, 0, 0, time.UTC),
		PaymentMethod: method,
		CreatedBy:     "front-desk",
	}
}

func TestCreateAssignsSequenceAndDefaults(t *testing.T) {
	env := newTestEnv()

	res, err := env.svc.Create(context.Background(), env.createReq(model.PaymentMethodCash, 10))
	require.NoError(t, err)

	assert.Equal(t, "RES-2026-00001", res.SequenceNumber)
	assert.Equal(t, model.ReservationStatusNew, res.Status)
	assert.Equal(t, model.PaymentStatusUnpaid, res.PaymentStatus)
	assert.Equal(t, model.SourceStaff, res.Source)
	assert.Equal(t, 200.0, res.TotalPrice)
	assert.Equal(t, res.StartTime.Add(2*time.Hour), res.EndTime)
	assert.Equal(t, 1, env.notifier.booked)

	second, err := env.svc.Create(context.Background(), env.createReq(model.PaymentMethodCash, 13))
	require.NoError(t, err)
	assert.Equal(t, "RES-2026-00002", second.SequenceNumber)
}

func TestCreateSnapshotsAddOnPrices(t *testing.T) {
	env := newTestEnv()

	req := env.createReq(model.PaymentMethodCash, 10)
	req.AddOnIDs = []uuid.UUID{env.addOnID}

	res, err := env.svc.Create(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 225.0, res.TotalPrice)
	require.Len(t, env.resRepo.addOns, 1)
	assert.Equal(t, res.ID, env.resRepo.addOns[0].ReservationID)
	assert.Equal(t, 25.0, env.resRepo.addOns[0].Price)
}

func TestCreatePackageInsufficientBalance(t *testing.T) {
	env := newTestEnv()
	inst := env.addPackage(1.5)

	_, err := env.svc.Create(context.Background(), env.createReq(model.PaymentMethodPackage, 10))
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
	assert.ErrorContains(t, err, "insufficient balance")

	// Nothing booked, nothing drawn
	assert.Empty(t, env.resRepo.store)
	assert.Equal(t, 1.5, inst.RemainingHours)
	assert.Empty(t, env.pkgRepo.entries)
}

func TestCreatePackageWithoutActivePackage(t *testing.T) {
	env := newTestEnv()

	_, err := env.svc.Create(context.Background(), env.createReq(model.PaymentMethodPackage, 10))
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
	assert.ErrorContains(t, err, "no active package")
}

func TestCreatePackageDebitsHours(t *testing.T) {
	env := newTestEnv()
	inst := env.addPackage(10)

	res, err := env.svc.Create(context.Background(), env.createReq(model.PaymentMethodPackage, 10))
	require.NoError(t, err)

	assert.Equal(t, 8.0, inst.RemainingHours)
	assert.Equal(t, 2.0, inst.UsedHours)
	require.Len(t, env.pkgRepo.entries, 1)

	entry := env.pkgRepo.entries[0]
	assert.Equal(t, model.LedgerEntryDebit, entry.Kind)
	assert.Equal(t, 2.0, entry.Hours)
	assert.Equal(t, 8.0, entry.BalanceAfter)
	assert.Equal(t, res.ID, entry.ReservationID)
}

func TestCreateVoucherSettlement(t *testing.T) {
	env := newTestEnv()
	voucher := env.addVoucher(500)

	req := env.createReq(model.PaymentMethodVoucher, 10)
	req.VoucherID = &voucher.ID

	res, err := env.svc.Create(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 300.0, voucher.RemainingValue)
	require.Len(t, env.vouRepo.redemptions, 1)
	assert.Equal(t, res.TotalPrice, env.vouRepo.redemptions[0].Amount)
	assert.Equal(t, res.ID, env.vouRepo.redemptions[0].ReservationID)
}

func TestCreateVoucherWithoutID(t *testing.T) {
	env := newTestEnv()

	_, err := env.svc.Create(context.Background(), env.createReq(model.PaymentMethodVoucher, 10))
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestCreateSlotAlreadyBooked(t *testing.T) {
	env := newTestEnv()

	first, err := env.svc.Create(context.Background(), env.createReq(model.PaymentMethodCash, 10))
	require.NoError(t, err)

	// Overlapping window on the same therapist and room
	_, err = env.svc.Create(context.Background(), env.createReq(model.PaymentMethodCash, 11))
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))

	assert.Len(t, env.resRepo.store, 1)
	assert.Contains(t, env.resRepo.store, first.ID)
}

func TestCreateLosesOverlapRace(t *testing.T) {
	env := newTestEnv()
	// The slot looks free at the precheck but a concurrent booking lands
	// before the locked re-check
	env.resRepo.forceOverlap = true

	_, err := env.svc.Create(context.Background(), env.createReq(model.PaymentMethodCash, 10))
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
	assert.ErrorContains(t, err, "no longer available")
	assert.Empty(t, env.resRepo.store)
}

func TestCancelRefundsPackageHours(t *testing.T) {
	env := newTestEnv()
	inst := env.addPackage(10)

	res, err := env.svc.Create(context.Background(), env.createReq(model.PaymentMethodPackage, 10))
	require.NoError(t, err)
	require.Equal(t, 8.0, inst.RemainingHours)

	cancelled, err := env.svc.Cancel(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationStatusCancelled, cancelled.Status)

	// The debit stays; a compensating credit restores the balance
	assert.Equal(t, 10.0, inst.RemainingHours)
	require.Len(t, env.pkgRepo.entries, 2)
	credit := env.pkgRepo.entries[1]
	assert.Equal(t, model.LedgerEntryCredit, credit.Kind)
	assert.Equal(t, 2.0, credit.Hours)
	assert.Equal(t, 1, env.notifier.cancelled)
}

func TestCancelTwiceIsConflict(t *testing.T) {
	env := newTestEnv()

	res, err := env.svc.Create(context.Background(), env.createReq(model.PaymentMethodCash, 10))
	require.NoError(t, err)

	_, err = env.svc.Cancel(context.Background(), res.ID)
	require.NoError(t, err)

	_, err = env.svc.Cancel(context.Background(), res.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
	assert.Equal(t, 1, env.notifier.cancelled)
}

func TestUpdateStatusStaleRead(t *testing.T) {
	env := newTestEnv()

	res, err := env.svc.Create(context.Background(), env.createReq(model.PaymentMethodCash, 10))
	require.NoError(t, err)

	// The row moves to CANCELLED underneath a caller that read it as NEW
	env.resRepo.store[res.ID].Status = model.ReservationStatusCancelled
	stale := model.ReservationStatusNew
	env.resRepo.staleStatus = &stale

	_, err = env.svc.UpdateStatus(context.Background(), res.ID, model.ReservationStatusConfirmed)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
	assert.ErrorContains(t, err, "no longer")

	env.resRepo.staleStatus = nil
	assert.Equal(t, model.ReservationStatusCancelled, env.resRepo.store[res.ID].Status)
}

func TestHardDeleteRequiresReleasedSlot(t *testing.T) {
	env := newTestEnv()

	res, err := env.svc.Create(context.Background(), env.createReq(model.PaymentMethodCash, 10))
	require.NoError(t, err)

	err = env.svc.HardDelete(context.Background(), res.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))

	_, err = env.svc.Cancel(context.Background(), res.ID)
	require.NoError(t, err)

	require.NoError(t, env.svc.HardDelete(context.Background(), res.ID))

	_, err = env.svc.Get(context.Background(), res.ID)
	assert.True(t, apperrors.IsNotFound(err))
}
