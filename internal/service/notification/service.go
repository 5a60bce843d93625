package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spasuite/booking-api/pkg/logger"
	"github.com/spasuite/booking-api/pkg/metrics"

	"github.com/spasuite/booking-api/internal/email"
	"github.com/spasuite/booking-api/internal/model"
	"github.com/spasuite/booking-api/internal/repository"
	"github.com/spasuite/booking-api/internal/sms"
)

const reminderTemplate = "Hi {client_name}, a reminder of your {service_name} with {therapist_name} on {date} at {time}. See you there!"

// Config tunes the scheduled drivers
type Config struct {
	AlertLookback  time.Duration
	DepletionHours float64
	ExpiryWindow   time.Duration
	ReportEmail    string
}

type Service struct {
	repo            repository.NotificationRepository
	reservationRepo repository.ReservationRepository
	catalogRepo     repository.CatalogRepository
	packageRepo     repository.PackageRepository
	emailSvc        email.Service
	smsSender       sms.Sender
	metrics         *metrics.Metrics
	logger          *logger.Logger
	cfg             Config
}

func NewService(
	repo repository.NotificationRepository,
	reservationRepo repository.ReservationRepository,
	catalogRepo repository.CatalogRepository,
	packageRepo repository.PackageRepository,
	emailSvc email.Service,
	smsSender sms.Sender,
	m *metrics.Metrics,
	logger *logger.Logger,
	cfg Config,
) *Service {
	return &Service{
		repo:            repo,
		reservationRepo: reservationRepo,
		catalogRepo:     catalogRepo,
		packageRepo:     packageRepo,
		emailSvc:        emailSvc,
		smsSender:       smsSender,
		metrics:         m,
		logger:          logger,
		cfg:             cfg,
	}
}

// Enqueue queues an outbound message, optionally delayed. Fire-and-forget
// relative to any caller-visible operation.
func (s *Service) Enqueue(ctx context.Context, queue model.QueueName, payload model.MessagePayload, delay time.Duration) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	job := &model.NotificationJob{
		Queue:   queue,
		Payload: raw,
	}
	if delay > 0 {
		job.RunAt = time.Now().Add(delay)
	}
	if err := s.repo.Enqueue(ctx, job); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.JobsEnqueued.WithLabelValues(string(queue)).Inc()
	}
	return nil
}

// ReservationBooked enqueues a booking confirmation email
func (s *Service) ReservationBooked(ctx context.Context, res *model.Reservation) error {
	client, err := s.catalogRepo.GetClient(ctx, res.ClientID)
	if err != nil {
		return err
	}
	if client.Email == "" {
		return nil
	}
	return s.Enqueue(ctx, model.QueueEmail, model.MessagePayload{
		ClientID:  client.ID,
		Recipient: client.Email,
		Subject:   "Booking confirmation " + res.SequenceNumber,
		Body: fmt.Sprintf("Your reservation %s on %s at %s is confirmed.",
			res.SequenceNumber, res.Date.Format("2006-01-02"), res.StartTime.Format("15:04")),
		Kind: "booking_confirmation",
	}, 0)
}

// ReservationCancelled enqueues a cancellation notice
func (s *Service) ReservationCancelled(ctx context.Context, res *model.Reservation) error {
	client, err := s.catalogRepo.GetClient(ctx, res.ClientID)
	if err != nil {
		return err
	}
	if client.Email == "" {
		return nil
	}
	return s.Enqueue(ctx, model.QueueEmail, model.MessagePayload{
		ClientID:  client.ID,
		Recipient: client.Email,
		Subject:   "Booking cancelled " + res.SequenceNumber,
		Body: fmt.Sprintf("Your reservation %s on %s has been cancelled.",
			res.SequenceNumber, res.Date.Format("2006-01-02")),
		Kind: "booking_cancellation",
	}, 0)
}

// DispatchReminders enqueues SMS reminders for confirmed reservations on the
// lookahead dates. Per-reservation failures are logged and do not abort the
// batch; clients without a phone number are skipped.
func (s *Service) DispatchReminders(ctx context.Context, today time.Time) (int, error) {
	targets := NextReminderTargets(today)
	enqueued := 0

	for _, date := range targets {
		reservations, err := s.reservationRepo.ListByStatusForDate(ctx, model.ReservationStatusConfirmed, date)
		if err != nil {
			s.logger.Error(err, "failed to list reservations for reminders", "date", date.Format("2006-01-02"))
			continue
		}

		for _, res := range reservations {
			if err := s.enqueueReminder(ctx, res); err != nil {
				s.logger.Error(err, "failed to enqueue reminder", "reservation_id", res.ID.String())
				continue
			}
			enqueued++
		}
	}

	s.logger.Info("reminder dispatch complete", "targets", len(targets), "enqueued", enqueued)
	return enqueued, nil
}

func (s *Service) enqueueReminder(ctx context.Context, res *model.Reservation) error {
	client, err := s.catalogRepo.GetClient(ctx, res.ClientID)
	if err != nil {
		return err
	}
	if client.Phone == "" {
		return nil
	}

	therapist, err := s.catalogRepo.GetTherapist(ctx, res.TherapistID)
	if err != nil {
		return err
	}
	svc, err := s.catalogRepo.GetService(ctx, res.ServiceID)
	if err != nil {
		return err
	}

	body := RenderTemplate(reminderTemplate, map[string]string{
		"client_name":    client.FirstName,
		"service_name":   svc.Name,
		"therapist_name": therapist.FirstName + " " + therapist.LastName,
		"date":           res.Date.Format("2006-01-02"),
		"time":           res.StartTime.Format("15:04"),
	})

	return s.Enqueue(ctx, model.QueueSMS, model.MessagePayload{
		ClientID:  client.ID,
		Recipient: client.Phone,
		Body:      body,
		Kind:      model.MessageKindReminder,
	}, 0)
}

// DispatchBalanceAlerts notifies clients whose package is nearly depleted or
// nearly expired. At most one alert per client per lookback window, enforced
// against the message log rather than queue-level dedup.
func (s *Service) DispatchBalanceAlerts(ctx context.Context) (int, error) {
	now := time.Now()
	since := now.Add(-s.cfg.AlertLookback)
	enqueued := 0

	byKind := map[string][]*model.PackageInstance{}
	if instances, err := s.packageRepo.ListNearDepletion(ctx, s.cfg.DepletionHours); err != nil {
		s.logger.Error(err, "failed to list near-depletion packages")
	} else {
		byKind[model.MessageKindBalanceAlert] = instances
	}
	if instances, err := s.packageRepo.ListNearExpiry(ctx, now, s.cfg.ExpiryWindow); err != nil {
		s.logger.Error(err, "failed to list near-expiry packages")
	} else {
		byKind[model.MessageKindExpiryAlert] = instances
	}

	for kind, instances := range byKind {
		for _, inst := range instances {
			sent, err := s.repo.HasRecentLog(ctx, inst.ClientID, kind, since)
			if err != nil {
				s.logger.Error(err, "failed to check alert dedup", "client_id", inst.ClientID.String())
				continue
			}
			if sent {
				continue
			}

			if err := s.enqueueAlert(ctx, inst, kind); err != nil {
				s.logger.Error(err, "failed to enqueue alert", "instance_id", inst.ID.String())
				continue
			}
			enqueued++
		}
	}

	s.logger.Info("balance alert dispatch complete", "enqueued", enqueued)
	return enqueued, nil
}

func (s *Service) enqueueAlert(ctx context.Context, inst *model.PackageInstance, kind string) error {
	client, err := s.catalogRepo.GetClient(ctx, inst.ClientID)
	if err != nil {
		return err
	}
	if client.Phone == "" {
		return nil
	}

	var body string
	switch kind {
	case model.MessageKindBalanceAlert:
		body = fmt.Sprintf("Hi %s, your package has %.1f hours left. Book your next visit soon!", client.FirstName, inst.RemainingHours)
	case model.MessageKindExpiryAlert:
		body = fmt.Sprintf("Hi %s, your package expires on %s with %.1f hours remaining.", client.FirstName, inst.ExpiryDate.Format("2006-01-02"), inst.RemainingHours)
	}

	return s.Enqueue(ctx, model.QueueSMS, model.MessagePayload{
		ClientID:  client.ID,
		Recipient: client.Phone,
		Body:      body,
		Kind:      kind,
	}, 0)
}

// DispatchDailyReport enqueues the end-of-day summary for the report queue
func (s *Service) DispatchDailyReport(ctx context.Context, day time.Time) error {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	to := from.AddDate(0, 0, 1)

	reservations, err := s.reservationRepo.List(ctx, &model.ReservationFilters{
		DateFrom: &from,
		DateTo:   &to,
	})
	if err != nil {
		return err
	}

	counts := map[model.ReservationStatus]int{}
	for _, res := range reservations {
		counts[res.Status]++
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Daily summary for %s\n\n", from.Format("2006-01-02"))
	fmt.Fprintf(&b, "Total reservations: %d\n", len(reservations))
	for _, status := range []model.ReservationStatus{
		model.ReservationStatusNew,
		model.ReservationStatusConfirmed,
		model.ReservationStatusInProgress,
		model.ReservationStatusCompleted,
		model.ReservationStatusCancelled,
		model.ReservationStatusNoShow,
	} {
		if n := counts[status]; n > 0 {
			fmt.Fprintf(&b, "  %s: %d\n", status, n)
		}
	}

	return s.Enqueue(ctx, model.QueueReport, model.MessagePayload{
		Recipient: s.cfg.ReportEmail,
		Subject:   "Daily report " + from.Format("2006-01-02"),
		Body:      b.String(),
		Kind:      model.MessageKindReport,
	}, 0)
}

// ProcessJob delivers one claimed job. The audit row is always persisted,
// with the outcome and error detail, before a failure is re-raised to the
// dispatcher's retry machinery.
func (s *Service) ProcessJob(ctx context.Context, job *model.NotificationJob) error {
	var payload model.MessagePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		// Undecodable payload can never succeed; audit and fail permanently
		s.audit(ctx, job, &payload, err)
		return fmt.Errorf("failed to decode job payload: %w", err)
	}

	start := time.Now()
	var sendErr error
	switch job.Queue {
	case model.QueueSMS:
		sendErr = s.smsSender.Send(ctx, payload.Recipient, payload.Body)
	case model.QueueEmail:
		sendErr = s.emailSvc.Send(ctx, payload.Recipient, payload.Subject, payload.Body)
	case model.QueueReport:
		sendErr = s.emailSvc.Send(ctx, s.cfg.ReportEmail, payload.Subject, payload.Body)
	default:
		sendErr = fmt.Errorf("unknown queue: %s", job.Queue)
	}

	if s.metrics != nil {
		s.metrics.SendLatency.WithLabelValues(string(job.Queue)).Observe(time.Since(start).Seconds())
	}

	s.audit(ctx, job, &payload, sendErr)

	if sendErr != nil {
		return fmt.Errorf("failed to deliver %s job: %w", job.Queue, sendErr)
	}
	return nil
}

func (s *Service) audit(ctx context.Context, job *model.NotificationJob, payload *model.MessagePayload, sendErr error) {
	log := &model.MessageLog{
		JobID:     job.ID,
		Queue:     job.Queue,
		Kind:      payload.Kind,
		Recipient: payload.Recipient,
		Outcome:   model.MessageOutcomeSent,
	}
	if payload.ClientID != uuid.Nil {
		clientID := payload.ClientID
		log.ClientID = &clientID
	}
	if sendErr != nil {
		log.Outcome = model.MessageOutcomeFailed
		msg := sendErr.Error()
		log.Error = &msg
	}

	if err := s.repo.InsertLog(ctx, log); err != nil {
		s.logger.Error(err, "failed to persist message log", "job_id", job.ID.String())
	}
}

// RenderTemplate substitutes {name} placeholders
func RenderTemplate(template string, fields map[string]string) string {
	pairs := make([]string, 0, len(fields)*2)
	for name, value := range fields {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

func (s *Service) ListFailed(ctx context.Context, queue model.QueueName, limit int) ([]*model.NotificationJob, error) {
	return s.repo.ListFailed(ctx, queue, limit)
}

func (s *Service) Requeue(ctx context.Context, id uuid.UUID) error {
	return s.repo.Requeue(ctx, id)
}
