package reservation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	apperrors "github.com/spasuite/booking-api/pkg/errors"
	"github.com/spasuite/booking-api/pkg/logger"
	"github.com/spasuite/booking-api/pkg/messaging"

	"github.com/spasuite/booking-api/internal/model"
	"github.com/spasuite/booking-api/internal/repository"
	"github.com/spasuite/booking-api/internal/service/availability"
	"github.com/spasuite/booking-api/internal/service/ledger"
	"github.com/spasuite/booking-api/internal/service/payment"
)

const eventsChannel = "reservation_events"

// Notifier enqueues outbound messages; the call must never block booking
type Notifier interface {
	ReservationBooked(ctx context.Context, res *model.Reservation) error
	ReservationCancelled(ctx context.Context, res *model.Reservation) error
}

type Service struct {
	repo        repository.ReservationRepository
	catalogRepo repository.CatalogRepository
	availSvc    *availability.Service
	ledgerSvc   *ledger.Service
	payments    *payment.Resolver
	notifier    Notifier
	broker      messaging.Broker
	txm         repository.TxManager
	logger      *logger.Logger
}

func NewService(
	repo repository.ReservationRepository,
	catalogRepo repository.CatalogRepository,
	availSvc *availability.Service,
	ledgerSvc *ledger.Service,
	payments *payment.Resolver,
	notifier Notifier,
	broker messaging.Broker,
	txm repository.TxManager,
	logger *logger.Logger,
) *Service {
	return &Service{
		repo:        repo,
		catalogRepo: catalogRepo,
		availSvc:    availSvc,
		ledgerSvc:   ledgerSvc,
		payments:    payments,
		notifier:    notifier,
		broker:      broker,
		txm:         txm,
		logger:      logger,
	}
}

// Create books a reservation. Sequence allocation, the overlap re-check, the
// row insert, add-on snapshots and the payment settlement form one atomic
// unit; the loser of a concurrent race on the same slot gets a Conflict.
func (s *Service) Create(ctx context.Context, req *model.CreateReservationRequest) (*model.Reservation, error) {
	variant, totalPrice, err := s.validateCreate(ctx, req)
	if err != nil {
		return nil, err
	}

	addOns, addOnTotal, err := s.resolveAddOns(ctx, req.AddOnIDs)
	if err != nil {
		return nil, err
	}
	totalPrice += addOnTotal

	duration := time.Duration(variant.DurationMinutes) * time.Minute
	start := req.StartTime
	end := start.Add(duration)
	date := truncateToDay(start)

	source := req.Source
	if source == "" {
		source = model.SourceStaff
	}

	now := time.Now()
	res := &model.Reservation{
		Base: model.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		ClientID:      req.ClientID,
		TherapistID:   req.TherapistID,
		RoomID:        req.RoomID,
		ServiceID:     req.ServiceID,
		VariantID:     req.VariantID,
		Date:          date,
		StartTime:     start,
		EndTime:       end,
		TotalPrice:    totalPrice,
		Status:        model.ReservationStatusNew,
		PaymentStatus: model.PaymentStatusUnpaid,
		PaymentMethod: req.PaymentMethod,
		Source:        source,
		Notes:         req.Notes,
		CreatedBy:     req.CreatedBy,
	}

	paySource, err := s.payments.SourceFor(req.PaymentMethod, req.VoucherID)
	if err != nil {
		return nil, err
	}

	// Non-locking feasibility check; the transaction re-checks under lock
	free, err := s.availSvc.CheckSlot(ctx, req.TherapistID, req.RoomID, date, start, end, nil)
	if err != nil {
		return nil, err
	}
	if !free {
		return nil, apperrors.Conflictf("slot is not available")
	}

	err = s.txm.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.repo.LockResourcesTx(ctx, tx, req.TherapistID, req.RoomID); err != nil {
			return err
		}

		overlap, err := s.repo.HasOverlapTx(ctx, tx, req.TherapistID, req.RoomID, start, end, nil)
		if err != nil {
			return err
		}
		if overlap {
			return apperrors.Conflictf("slot is no longer available")
		}

		seq, err := s.repo.NextSequenceTx(ctx, tx, start.Year())
		if err != nil {
			return err
		}
		res.SequenceNumber = seq

		if err := s.repo.CreateTx(ctx, tx, res); err != nil {
			return err
		}

		for i := range addOns {
			addOns[i].ReservationID = res.ID
		}
		if err := s.repo.AddAddOnsTx(ctx, tx, addOns); err != nil {
			return err
		}

		hours := duration.Hours()
		return paySource.Settle(ctx, tx, res, hours)
	})
	if err != nil {
		return nil, err
	}

	s.afterMutation(ctx, res, "reservation_created")
	if err := s.notifier.ReservationBooked(ctx, res); err != nil {
		s.logger.Error(err, "failed to enqueue booking notification", "reservation_id", res.ID.String())
	}

	return res, nil
}

// Update reschedules or annotates a reservation. Terminal rows are frozen;
// a changed window or resource is re-checked against the calendar excluding
// the row itself.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req *model.UpdateReservationRequest) (*model.Reservation, error) {
	res, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.Status.Terminal() {
		return nil, apperrors.Conflictf("cannot update a %s reservation", res.Status)
	}

	slotChanged := false
	if req.TherapistID != nil && *req.TherapistID != res.TherapistID {
		therapist, err := s.catalogRepo.GetTherapist(ctx, *req.TherapistID)
		if err != nil {
			return nil, err
		}
		if !therapist.Active {
			return nil, apperrors.Validation("therapist is not active", nil)
		}
		res.TherapistID = *req.TherapistID
		slotChanged = true
	}
	if req.RoomID != nil && *req.RoomID != res.RoomID {
		room, err := s.catalogRepo.GetRoom(ctx, *req.RoomID)
		if err != nil {
			return nil, err
		}
		if !room.Active {
			return nil, apperrors.Validation("room is not active", nil)
		}
		res.RoomID = *req.RoomID
		slotChanged = true
	}
	if req.StartTime != nil && !req.StartTime.Equal(res.StartTime) {
		duration := res.EndTime.Sub(res.StartTime)
		res.StartTime = *req.StartTime
		res.EndTime = req.StartTime.Add(duration)
		res.Date = truncateToDay(res.StartTime)
		slotChanged = true
	}
	if req.Notes != nil {
		res.Notes = *req.Notes
	}

	err = s.txm.WithTx(ctx, func(tx *sqlx.Tx) error {
		if slotChanged {
			if err := s.repo.LockResourcesTx(ctx, tx, res.TherapistID, res.RoomID); err != nil {
				return err
			}
			overlap, err := s.repo.HasOverlapTx(ctx, tx, res.TherapistID, res.RoomID, res.StartTime, res.EndTime, &res.ID)
			if err != nil {
				return err
			}
			if overlap {
				return apperrors.Conflictf("requested slot is not available")
			}
		}
		return s.repo.UpdateTx(ctx, tx, res)
	})
	if err != nil {
		return nil, err
	}

	s.afterMutation(ctx, res, "reservation_updated")
	return res, nil
}

// UpdateStatus drives the lifecycle state machine. Cancelling a package-paid
// reservation refunds its debit in the same transaction.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, next model.ReservationStatus) (*model.Reservation, error) {
	res, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !res.Status.CanTransitionTo(next) {
		return nil, apperrors.Conflictf("cannot transition from %s to %s", res.Status, next)
	}

	releasesSlot := next == model.ReservationStatusCancelled || next == model.ReservationStatusNoShow

	err = s.txm.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.repo.UpdateStatusTx(ctx, tx, id, res.Status, next); err != nil {
			return err
		}
		if releasesSlot && res.PaymentMethod == model.PaymentMethodPackage {
			return s.refundPackageTx(ctx, tx, res)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res.Status = next
	event := "reservation_status_changed"
	if next == model.ReservationStatusCancelled {
		event = "reservation_cancelled"
		if err := s.notifier.ReservationCancelled(ctx, res); err != nil {
			s.logger.Error(err, "failed to enqueue cancellation notification", "reservation_id", res.ID.String())
		}
	}
	s.afterMutation(ctx, res, event)
	return res, nil
}

// Cancel soft-cancels; a second cancel of the same reservation is a Conflict
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	return s.UpdateStatus(ctx, id, model.ReservationStatusCancelled)
}

func (s *Service) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status model.PaymentStatus) (*model.Reservation, error) {
	res, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	err = s.txm.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.repo.UpdatePaymentStatusTx(ctx, tx, id, status)
	})
	if err != nil {
		return nil, err
	}

	res.PaymentStatus = status
	return res, nil
}

// HardDelete permanently removes a reservation. Restricted to rows that have
// already released their slot, so a package-paid booking cannot bypass the
// refund path.
func (s *Service) HardDelete(ctx context.Context, id uuid.UUID) error {
	res, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if res.Status.Blocks() {
		return apperrors.Conflictf("only cancelled or no-show reservations can be deleted")
	}
	return s.repo.HardDelete(ctx, id)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) GetAddOns(ctx context.Context, id uuid.UUID) ([]*model.ReservationAddOn, error) {
	return s.repo.GetAddOns(ctx, id)
}

func (s *Service) List(ctx context.Context, filters *model.ReservationFilters) ([]*model.Reservation, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) validateCreate(ctx context.Context, req *model.CreateReservationRequest) (*model.ServiceVariant, float64, error) {
	client, err := s.catalogRepo.GetClient(ctx, req.ClientID)
	if err != nil {
		return nil, 0, err
	}
	if !client.Active {
		return nil, 0, apperrors.Validation("client is not active", nil)
	}

	therapist, err := s.catalogRepo.GetTherapist(ctx, req.TherapistID)
	if err != nil {
		return nil, 0, err
	}
	if !therapist.Active {
		return nil, 0, apperrors.Validation("therapist is not active", nil)
	}

	room, err := s.catalogRepo.GetRoom(ctx, req.RoomID)
	if err != nil {
		return nil, 0, err
	}
	if !room.Active {
		return nil, 0, apperrors.Validation("room is not active", nil)
	}

	svc, err := s.catalogRepo.GetService(ctx, req.ServiceID)
	if err != nil {
		return nil, 0, err
	}
	if !svc.Active {
		return nil, 0, apperrors.Validation("service is not active", nil)
	}

	variant, err := s.catalogRepo.GetVariant(ctx, req.VariantID)
	if err != nil {
		return nil, 0, err
	}
	if !variant.Active {
		return nil, 0, apperrors.Validation("service variant is not active", nil)
	}
	if variant.ServiceID != req.ServiceID {
		return nil, 0, apperrors.Validation("variant does not belong to the service", nil)
	}

	// Package payment precheck: the balance must already cover the variant's
	// hours; the authoritative check happens again at debit time under lock
	if req.PaymentMethod == model.PaymentMethodPackage {
		inst, err := s.ledgerSvc.GetActiveInstance(ctx, req.ClientID)
		if err != nil {
			if apperrors.IsNotFound(err) {
				return nil, 0, apperrors.Conflictf("client has no active package")
			}
			return nil, 0, err
		}
		required := float64(variant.DurationMinutes) / 60
		if inst.RemainingHours < required {
			return nil, 0, apperrors.Conflictf("insufficient balance: %.2f hours remaining, %.2f required", inst.RemainingHours, required)
		}
	}

	return variant, variant.Price, nil
}

func (s *Service) resolveAddOns(ctx context.Context, ids []uuid.UUID) ([]model.ReservationAddOn, float64, error) {
	if len(ids) == 0 {
		return nil, 0, nil
	}

	addOns, err := s.catalogRepo.GetAddOns(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	if len(addOns) != len(ids) {
		return nil, 0, apperrors.NotFound("add-on", nil)
	}

	attachments := make([]model.ReservationAddOn, 0, len(addOns))
	var total float64
	for _, a := range addOns {
		if !a.Active {
			return nil, 0, apperrors.Validation(fmt.Sprintf("add-on %s is not active", a.Name), nil)
		}
		// Price snapshot at booking time; never re-derived later
		attachments = append(attachments, model.ReservationAddOn{
			AddOnID: a.ID,
			Price:   a.Price,
		})
		total += a.Price
	}
	return attachments, total, nil
}

func (s *Service) refundPackageTx(ctx context.Context, tx *sqlx.Tx, res *model.Reservation) error {
	inst, err := s.ledgerSvc.ActiveInstanceForUpdateTx(ctx, tx, res.ClientID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			// Instance may have been consumed to USED by this very booking;
			// refund through the instance the debit was recorded on
			return s.refundByEntryTx(ctx, tx, res)
		}
		return err
	}
	if _, err := s.ledgerSvc.RefundTx(ctx, tx, inst.ID, res.ID); err != nil {
		if apperrors.IsConflict(err) {
			// No outstanding debit for this reservation; nothing to reverse
			return nil
		}
		return err
	}
	return nil
}

func (s *Service) refundByEntryTx(ctx context.Context, tx *sqlx.Tx, res *model.Reservation) error {
	instanceID, err := s.ledgerSvc.InstanceForReservationTx(ctx, tx, res.ID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil
		}
		return err
	}
	if _, err := s.ledgerSvc.RefundTx(ctx, tx, instanceID, res.ID); err != nil && !apperrors.IsConflict(err) {
		return err
	}
	return nil
}

// afterMutation publishes the domain event fire-and-forget; booking never
// blocks on the broker
func (s *Service) afterMutation(ctx context.Context, res *model.Reservation, event string) {
	if s.broker == nil {
		return
	}
	msg := messaging.Event{Type: event, Payload: res}
	if err := s.broker.Publish(ctx, eventsChannel, msg); err != nil {
		s.logger.Error(err, "failed to publish event", "event", event, "reservation_id", res.ID.String())
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
