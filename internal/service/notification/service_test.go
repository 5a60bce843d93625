package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spasuite/booking-api/pkg/errors"
	"github.com/spasuite/booking-api/pkg/logger"

	"github.com/spasuite/booking-api/internal/model"
)

type fakeNotificationRepo struct {
	jobs       []*model.NotificationJob
	logs       []*model.MessageLog
	recentLogs map[string]bool
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{recentLogs: make(map[string]bool)}
}

func dedupKey(clientID uuid.UUID, kind string) string {
	return clientID.String() + "/" + kind
}

func (f *fakeNotificationRepo) Enqueue(ctx context.Context, job *model.NotificationJob) error {
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakeNotificationRepo) EnqueueTx(ctx context.Context, tx *sqlx.Tx, job *model.NotificationJob) error {
	return f.Enqueue(ctx, job)
}

func (f *fakeNotificationRepo) ClaimPending(ctx context.Context, queue model.QueueName, limit int) ([]*model.NotificationJob, error) {
	return nil, nil
}

func (f *fakeNotificationRepo) MarkSent(ctx context.Context, id uuid.UUID) error { return nil }

func (f *fakeNotificationRepo) MarkRetry(ctx context.Context, id uuid.UUID, attempts int, lastError string, runAt time.Time) error {
	return nil
}

func (f *fakeNotificationRepo) MarkFailed(ctx context.Context, id uuid.UUID, attempts int, lastError string) error {
	return nil
}

func (f *fakeNotificationRepo) Requeue(ctx context.Context, id uuid.UUID) error { return nil }

func (f *fakeNotificationRepo) ListFailed(ctx context.Context, queue model.QueueName, limit int) ([]*model.NotificationJob, error) {
	return nil, nil
}

func (f *fakeNotificationRepo) PendingCount(ctx context.Context, queue model.QueueName) (int64, error) {
	return 0, nil
}

func (f *fakeNotificationRepo) InsertLog(ctx context.Context, log *model.MessageLog) error {
	f.logs = append(f.logs, log)
	if log.ClientID != nil {
		f.recentLogs[dedupKey(*log.ClientID, log.Kind)] = true
	}
	return nil
}

func (f *fakeNotificationRepo) HasRecentLog(ctx context.Context, clientID uuid.UUID, kind string, since time.Time) (bool, error) {
	return f.recentLogs[dedupKey(clientID, kind)], nil
}

func (f *fakeNotificationRepo) DeleteLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type fakeReservationRepo struct {
	confirmedByDate map[string][]*model.Reservation
	listResult      []*model.Reservation
}

func (f *fakeReservationRepo) Get(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	return nil, apperrors.NotFound("reservation", nil)
}

func (f *fakeReservationRepo) List(ctx context.Context, filters *model.ReservationFilters) ([]*model.Reservation, error) {
	return f.listResult, nil
}

func (f *fakeReservationRepo) ListBlockingForDate(ctx context.Context, date time.Time) ([]*model.Reservation, error) {
	return nil, nil
}

func (f *fakeReservationRepo) ListByStatusForDate(ctx context.Context, status model.ReservationStatus, date time.Time) ([]*model.Reservation, error) {
	if status != model.ReservationStatusConfirmed {
		return nil, nil
	}
	return f.confirmedByDate[date.Format("2006-01-02")], nil
}

func (f *fakeReservationRepo) GetAddOns(ctx context.Context, reservationID uuid.UUID) ([]*model.ReservationAddOn, error) {
	return nil, nil
}

func (f *fakeReservationRepo) HardDelete(ctx context.Context, id uuid.UUID) error { return nil }

func (f *fakeReservationRepo) NextSequenceTx(ctx context.Context, tx *sqlx.Tx, year int) (string, error) {
	return "", nil
}

func (f *fakeReservationRepo) HasOverlapTx(ctx context.Context, tx *sqlx.Tx, therapistID, roomID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	return false, nil
}

func (f *fakeReservationRepo) LockResourcesTx(ctx context.Context, tx *sqlx.Tx, therapistID, roomID uuid.UUID) error {
	return nil
}

func (f *fakeReservationRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, r *model.Reservation) error {
	return nil
}

func (f *fakeReservationRepo) AddAddOnsTx(ctx context.Context, tx *sqlx.Tx, addOns []model.ReservationAddOn) error {
	return nil
}

func (f *fakeReservationRepo) UpdateTx(ctx context.Context, tx *sqlx.Tx, r *model.Reservation) error {
	return nil
}

func (f *fakeReservationRepo) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, from, to model.ReservationStatus) error {
	return nil
}

func (f *fakeReservationRepo) UpdatePaymentStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status model.PaymentStatus) error {
	return nil
}

type fakeCatalogRepo struct {
	clients    map[uuid.UUID]*model.Client
	therapists map[uuid.UUID]*model.Therapist
	services   map[uuid.UUID]*model.Service
}

func newFakeCatalogRepo() *fakeCatalogRepo {
	return &fakeCatalogRepo{
		clients:    make(map[uuid.UUID]*model.Client),
		therapists: make(map[uuid.UUID]*model.Therapist),
		services:   make(map[uuid.UUID]*model.Service),
	}
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
	return nil, apperrors.NotFound("room", nil)
}

func (f *fakeCatalogRepo) ListActiveRooms(ctx context.Context) ([]*model.Room, error) { return nil, nil }

func (f *fakeCatalogRepo) CreateRoom(ctx context.Context, r *model.Room) error { return nil }

func (f *fakeCatalogRepo) GetService(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	if s, ok := f.services[id]; ok {
		return s, nil
	}
	return nil, apperrors.NotFound("service", nil)
}

func (f *fakeCatalogRepo) ListServices(ctx context.Context) ([]*model.Service, error) { return nil, nil }

func (f *fakeCatalogRepo) GetVariant(ctx context.Context, id uuid.UUID) (*model.ServiceVariant, error) {
	return nil, apperrors.NotFound("service variant", nil)
}

func (f *fakeCatalogRepo) ListVariants(ctx context.Context, serviceID uuid.UUID) ([]*model.ServiceVariant, error) {
	return nil, nil
}

func (f *fakeCatalogRepo) GetAddOns(ctx context.Context, ids []uuid.UUID) ([]*model.AddOn, error) {
	return nil, nil
}

func (f *fakeCatalogRepo) GetPackageDefinition(ctx context.Context, id uuid.UUID) (*model.PackageDefinition, error) {
	return nil, apperrors.NotFound("package definition", nil)
}

type fakePackageRepo struct {
	nearDepletion []*model.PackageInstance
	nearExpiry    []*model.PackageInstance
}

func (f *fakePackageRepo) GetInstance(ctx context.Context, id uuid.UUID) (*model.PackageInstance, error) {
	return nil, apperrors.NotFound("package instance", nil)
}

func (f *fakePackageRepo) GetActiveForClient(ctx context.Context, clientID uuid.UUID) (*model.PackageInstance, error) {
	return nil, apperrors.NotFound("active package", nil)
}

func (f *fakePackageRepo) ListEntries(ctx context.Context, instanceID uuid.UUID) ([]*model.LedgerEntry, error) {
	return nil, nil
}

func (f *fakePackageRepo) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

func (f *fakePackageRepo) ListNearDepletion(ctx context.Context, hoursThreshold float64) ([]*model.PackageInstance, error) {
	return f.nearDepletion, nil
}

func (f *fakePackageRepo) ListNearExpiry(ctx context.Context, now time.Time, within time.Duration) ([]*model.PackageInstance, error) {
	return f.nearExpiry, nil
}

func (f *fakePackageRepo) GetInstanceForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*model.PackageInstance, error) {
	return nil, apperrors.NotFound("package instance", nil)
}

func (f *fakePackageRepo) GetActiveForClientForUpdateTx(ctx context.Context, tx *sqlx.Tx, clientID uuid.UUID) (*model.PackageInstance, error) {
	return nil, apperrors.NotFound("active package", nil)
}

func (f *fakePackageRepo) CreateInstanceTx(ctx context.Context, tx *sqlx.Tx, inst *model.PackageInstance) error {
	return nil
}

func (f *fakePackageRepo) InsertEntryTx(ctx context.Context, tx *sqlx.Tx, entry *model.LedgerEntry) error {
	return nil
}

func (f *fakePackageRepo) UpdateBalanceTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, usedHours, remainingHours float64, status model.PackageStatus) error {
	return nil
}

func (f *fakePackageRepo) NetDebitTx(ctx context.Context, tx *sqlx.Tx, instanceID, reservationID uuid.UUID) (float64, error) {
	return 0, nil
}

func (f *fakePackageRepo) InstanceForReservationTx(ctx context.Context, tx *sqlx.Tx, reservationID uuid.UUID) (uuid.UUID, error) {
	return uuid.Nil, apperrors.NotFound("ledger entry", nil)
}

func (f *fakePackageRepo) CreatePaymentTx(ctx context.Context, tx *sqlx.Tx, p *model.PaymentTransaction) error {
	return nil
}

type fakeSMS struct {
	sent []string
	err  error
}

func (f *fakeSMS) Send(ctx context.Context, phone, message string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, phone)
	return nil
}

type fakeEmail struct {
	sentTo []string
	err    error
}

func (f *fakeEmail) Send(ctx context.Context, to, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sentTo = append(f.sentTo, to)
	return nil
}

type testEnv struct {
	svc             *Service
	repo            *fakeNotificationRepo
	reservationRepo *fakeReservationRepo
	catalogRepo     *fakeCatalogRepo
	packageRepo     *fakePackageRepo
	smsSender       *fakeSMS
	emailSvc        *fakeEmail
}

func newTestEnv() *testEnv {
	env := &testEnv{
		repo:            newFakeNotificationRepo(),
		reservationRepo: &fakeReservationRepo{confirmedByDate: make(map[string][]*model.Reservation)},
		catalogRepo:     newFakeCatalogRepo(),
		packageRepo:     &fakePackageRepo{},
		smsSender:       &fakeSMS{},
		emailSvc:        &fakeEmail{},
	}
	env.svc = NewService(
		env.repo,
		env.reservationRepo,
		env.catalogRepo,
		env.packageRepo,
		env.emailSvc,
		env.smsSender,
		nil,
		logger.NewLogger(nil),
		Config{
			AlertLookback:  7 * 24 * time.Hour,
			DepletionHours: 2,
			ExpiryWindow:   14 * 24 * time.Hour,
			ReportEmail:    "manager@example.com",
		},
	)
	return env
}

func (e *testEnv) addClient(phone, email string) *model.Client {
	c := &model.Client{
		Base:      model.Base{ID: uuid.New()},
		FirstName: "Anna",
		Email:     email,
		Phone:     phone,
		Active:    true,
	}
	e.catalogRepo.clients[c.ID] = c
	return c
}

func TestDispatchBalanceAlertsDedupsPerClient(t *testing.T) {
	env := newTestEnv()
	client := env.addClient("+3612345678", "")
	env.packageRepo.nearDepletion = []*model.PackageInstance{{
		Base:           model.Base{ID: uuid.New()},
		ClientID:       client.ID,
		RemainingHours: 1.5,
		Status:         model.PackageStatusActive,
	}}

	n, err := env.svc.DispatchBalanceAlerts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, env.repo.jobs, 1)
	assert.Equal(t, model.QueueSMS, env.repo.jobs[0].Queue)

	var payload model.MessagePayload
	require.NoError(t, json.Unmarshal(env.repo.jobs[0].Payload, &payload))
	assert.Equal(t, model.MessageKindBalanceAlert, payload.Kind)
	assert.Equal(t, client.Phone, payload.Recipient)

	// A delivered alert within the lookback window suppresses the next run
	env.repo.recentLogs[dedupKey(client.ID, model.MessageKindBalanceAlert)] = true
	n, err = env.svc.DispatchBalanceAlerts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, env.repo.jobs, 1)
}

func TestDispatchBalanceAlertsExpiryKind(t *testing.T) {
	env := newTestEnv()
	client := env.addClient("+3612345678", "")
	env.packageRepo.nearExpiry = []*model.PackageInstance{{
		Base:           model.Base{ID: uuid.New()},
		ClientID:       client.ID,
		RemainingHours: 4,
		ExpiryDate:     time.Now().AddDate(0, 0, 10),
		Status:         model.PackageStatusActive,
	}}

	n, err := env.svc.DispatchBalanceAlerts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var payload model.MessagePayload
	require.NoError(t, json.Unmarshal(env.repo.jobs[0].Payload, &payload))
	assert.Equal(t, model.MessageKindExpiryAlert, payload.Kind)
}

func TestDispatchRemindersEnqueuesSMS(t *testing.T) {
	env := newTestEnv()
	client := env.addClient("+3612345678", "")
	therapist := &model.Therapist{Base: model.Base{ID: uuid.New()}, FirstName: "Kata", LastName: "Nagy"}
	env.catalogRepo.therapists[therapist.ID] = therapist
	svc := &model.Service{Base: model.Base{ID: uuid.New()}, Name: "Deep tissue massage"}
	env.catalogRepo.services[svc.ID] = svc

	// Monday; the lookahead targets Tuesday
	monday := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	tuesday := monday.AddDate(0, 0, 1)
	env.reservationRepo.confirmedByDate["2026-03-03"] = []*model.Reservation{{
		Base:        model.Base{ID: uuid.New()},
		ClientID:    client.ID,
		TherapistID: therapist.ID,
		ServiceID:   svc.ID,
		Date:        tuesday,
		StartTime:   time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC),
		Status:      model.ReservationStatusConfirmed,
	}}

	n, err := env.svc.DispatchReminders(context.Background(), monday)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, env.repo.jobs, 1)

	var payload model.MessagePayload
	require.NoError(t, json.Unmarshal(env.repo.jobs[0].Payload, &payload))
	assert.Equal(t, model.MessageKindReminder, payload.Kind)
	assert.Contains(t, payload.Body, "Anna")
	assert.Contains(t, payload.Body, "Deep tissue massage")
	assert.Contains(t, payload.Body, "Kata Nagy")
	assert.Contains(t, payload.Body, "2026-03-03")
	assert.Contains(t, payload.Body, "10:00")
}

func TestDispatchRemindersSkipsClientsWithoutPhone(t *testing.T) {
	env := newTestEnv()
	client := env.addClient("", "anna@example.com")

	monday := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	env.reservationRepo.confirmedByDate["2026-03-03"] = []*model.Reservation{{
		Base:     model.Base{ID: uuid.New()},
		ClientID: client.ID,
		Status:   model.ReservationStatusConfirmed,
	}}

	n, err := env.svc.DispatchReminders(context.Background(), monday)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "the reservation is handled, just produces no message")
	assert.Empty(t, env.repo.jobs)
}

func TestDispatchDailyReport(t *testing.T) {
	env := newTestEnv()
	env.reservationRepo.listResult = []*model.Reservation{
		{Status: model.ReservationStatusCompleted},
		{Status: model.ReservationStatusCompleted},
		{Status: model.ReservationStatusCancelled},
	}

	day := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	require.NoError(t, env.svc.DispatchDailyReport(context.Background(), day))

	require.Len(t, env.repo.jobs, 1)
	assert.Equal(t, model.QueueReport, env.repo.jobs[0].Queue)

	var payload model.MessagePayload
	require.NoError(t, json.Unmarshal(env.repo.jobs[0].Payload, &payload))
	assert.Contains(t, payload.Body, "Total reservations: 3")
	assert.Contains(t, payload.Body, "COMPLETED: 2")
	assert.Contains(t, payload.Body, "CANCELLED: 1")
}

func TestReservationBookedSkipsClientsWithoutEmail(t *testing.T) {
	env := newTestEnv()
	client := env.addClient("+3612345678", "")

	res := &model.Reservation{
		Base:           model.Base{ID: uuid.New()},
		ClientID:       client.ID,
		SequenceNumber: "RES-2026-00001",
		Date:           time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, env.svc.ReservationBooked(context.Background(), res))
	assert.Empty(t, env.repo.jobs)

	client.Email = "anna@example.com"
	require.NoError(t, env.svc.ReservationBooked(context.Background(), res))
	require.Len(t, env.repo.jobs, 1)
	assert.Equal(t, model.QueueEmail, env.repo.jobs[0].Queue)
}

func TestProcessJobAuditsEveryAttempt(t *testing.T) {
	env := newTestEnv()
	clientID := uuid.New()
	payload, err := json.Marshal(model.MessagePayload{
		ClientID:  clientID,
		Recipient: "+3612345678",
		Body:      "hello",
		Kind:      model.MessageKindReminder,
	})
	require.NoError(t, err)
	job := &model.NotificationJob{ID: uuid.New(), Queue: model.QueueSMS, Payload: payload}

	require.NoError(t, env.svc.ProcessJob(context.Background(), job))
	require.Len(t, env.repo.logs, 1)
	assert.Equal(t, model.MessageOutcomeSent, env.repo.logs[0].Outcome)
	require.NotNil(t, env.repo.logs[0].ClientID)
	assert.Equal(t, clientID, *env.repo.logs[0].ClientID)

	// Failure is audited before the error reaches the retry machinery
	env.smsSender.err = errors.New("gateway timeout")
	err = env.svc.ProcessJob(context.Background(), job)
	require.Error(t, err)
	require.Len(t, env.repo.logs, 2)
	assert.Equal(t, model.MessageOutcomeFailed, env.repo.logs[1].Outcome)
	require.NotNil(t, env.repo.logs[1].Error)
	assert.Contains(t, *env.repo.logs[1].Error, "gateway timeout")
}

func TestProcessJobUndecodablePayload(t *testing.T) {
	env := newTestEnv()
	job := &model.NotificationJob{ID: uuid.New(), Queue: model.QueueSMS, Payload: []byte("{not json")}

	err := env.svc.ProcessJob(context.Background(), job)
	require.Error(t, err)
	require.Len(t, env.repo.logs, 1)
	assert.Equal(t, model.MessageOutcomeFailed, env.repo.logs[0].Outcome)
}

func TestProcessJobRoutesReportQueueToReportEmail(t *testing.T) {
	env := newTestEnv()
	payload, err := json.Marshal(model.MessagePayload{
		Subject: "Daily report",
		Body:    "summary",
		Kind:    model.MessageKindReport,
	})
	require.NoError(t, err)
	job := &model.NotificationJob{ID: uuid.New(), Queue: model.QueueReport, Payload: payload}

	require.NoError(t, env.svc.ProcessJob(context.Background(), job))
	require.Len(t, env.emailSvc.sentTo, 1)
	assert.Equal(t, "manager@example.com", env.emailSvc.sentTo[0])
}
