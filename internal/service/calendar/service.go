package calendar

import (
	"context"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/spasuite/booking-api/pkg/errors"

	"github.com/spasuite/booking-api/internal/model"
	"github.com/spasuite/booking-api/internal/repository"
)

type Service struct {
	repo        repository.CalendarRepository
	catalogRepo repository.CatalogRepository
}

func NewService(repo repository.CalendarRepository, catalogRepo repository.CatalogRepository) *Service {
	return &Service{repo: repo, catalogRepo: catalogRepo}
}

// Upsert writes a therapist's schedule for one date. A WORKING entry needs
// a window with start before end; non-working statuses carry no window.
func (s *Service) Upsert(ctx context.Context, req *model.UpsertCalendarEntryRequest) (*model.CalendarEntry, error) {
	therapist, err := s.catalogRepo.GetTherapist(ctx, req.TherapistID)
	if err != nil {
		return nil, err
	}
	if !therapist.Active {
		return nil, apperrors.Validation("therapist is not active", nil)
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, apperrors.Validation("invalid date, expected YYYY-MM-DD", err)
	}

	entry := &model.CalendarEntry{
		TherapistID: req.TherapistID,
		Date:        date,
		WorkStatus:  req.WorkStatus,
	}

	if req.WorkStatus == model.WorkStatusWorking {
		start, err := parseClock(date, req.WorkStart)
		if err != nil {
			return nil, apperrors.Validation("invalid work_start, expected HH:MM", err)
		}
		end, err := parseClock(date, req.WorkEnd)
		if err != nil {
			return nil, apperrors.Validation("invalid work_end, expected HH:MM", err)
		}
		if !start.Before(end) {
			return nil, apperrors.Validation("work_start must be before work_end", nil)
		}
		entry.WorkStart = start
		entry.WorkEnd = end
	}

	if err := s.repo.Upsert(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Service) GetForDate(ctx context.Context, therapistID uuid.UUID, date time.Time) (*model.CalendarEntry, error) {
	return s.repo.GetForDate(ctx, therapistID, date)
}

func (s *Service) ListForDate(ctx context.Context, date time.Time) ([]*model.CalendarEntry, error) {
	return s.repo.ListForDate(ctx, date)
}

func (s *Service) ListRange(ctx context.Context, therapistID uuid.UUID, from, to time.Time) ([]*model.CalendarEntry, error) {
	if to.Before(from) {
		return nil, apperrors.Validation("range end before start", nil)
	}
	return s.repo.ListRange(ctx, therapistID, from, to)
}

func parseClock(date time.Time, clock string) (time.Time, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, date.Location()), nil
}
