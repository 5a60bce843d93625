package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	apperrors "github.com/spasuite/booking-api/pkg/errors"

	"github.com/spasuite/booking-api/internal/model"
	"github.com/spasuite/booking-api/internal/repository"
)

// SlotStep is the fixed granularity of candidate start times
const SlotStep = 30 * time.Minute

const roomCacheKey = "active_rooms"

type Service struct {
	catalogRepo     repository.CatalogRepository
	calendarRepo    repository.CalendarRepository
	reservationRepo repository.ReservationRepository
	roomCache       *gocache.Cache
}

func NewService(catalogRepo repository.CatalogRepository, calendarRepo repository.CalendarRepository, reservationRepo repository.ReservationRepository) *Service {
	return &Service{
		catalogRepo:     catalogRepo,
		calendarRepo:    calendarRepo,
		reservationRepo: reservationRepo,
		roomCache:       gocache.New(time.Minute, 5*time.Minute),
	}
}

// ComputeSlots enumerates every feasible (start, end, therapist, room) tuple
// for the date and duration. The result is a point-in-time snapshot; no
// reservation guarantee is made past the moment of the read.
func (s *Service) ComputeSlots(ctx context.Context, date time.Time, duration time.Duration, therapistID *uuid.UUID) ([]model.Slot, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("duration must be positive")
	}

	therapists, err := s.eligibleTherapists(ctx, therapistID)
	if err != nil {
		return nil, err
	}

	rooms, err := s.activeRooms(ctx)
	if err != nil {
		return nil, err
	}

	blocking, err := s.reservationRepo.ListBlockingForDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load reservations: %w", err)
	}

	byTherapist := make(map[uuid.UUID][]*model.Reservation)
	byRoom := make(map[uuid.UUID][]*model.Reservation)
	for _, res := range blocking {
		byTherapist[res.TherapistID] = append(byTherapist[res.TherapistID], res)
		byRoom[res.RoomID] = append(byRoom[res.RoomID], res)
	}

	slots := make([]model.Slot, 0)
	for _, therapist := range therapists {
		entry, err := s.calendarRepo.GetForDate(ctx, therapist.ID, date)
		if err != nil {
			// No entry means the therapist is not scheduled that day
			continue
		}
		if entry.WorkStatus != model.WorkStatusWorking {
			continue
		}

		for step := entry.WorkStart; ; step = step.Add(SlotStep) {
			end := step.Add(duration)
			if end.After(entry.WorkEnd) {
				break
			}

			if hasConflict(byTherapist[therapist.ID], step, end) {
				continue
			}

			roomID, ok := firstFreeRoom(rooms, byRoom, step, end)
			if !ok {
				continue
			}

			slots = append(slots, model.Slot{
				Start:       step,
				End:         end,
				TherapistID: therapist.ID,
				RoomID:      roomID,
			})
		}
	}

	return slots, nil
}

// ComputeSlotsForVariant resolves the treatment variant and enumerates
// slots for its duration
func (s *Service) ComputeSlotsForVariant(ctx context.Context, date time.Time, variantID uuid.UUID, therapistID *uuid.UUID) ([]model.Slot, error) {
	variant, err := s.catalogRepo.GetVariant(ctx, variantID)
	if err != nil {
		return nil, err
	}
	if !variant.Active {
		return nil, apperrors.Validation("service variant is not active", nil)
	}
	return s.ComputeSlots(ctx, date, time.Duration(variant.DurationMinutes)*time.Minute, therapistID)
}

// CheckSlot re-runs the feasibility test for one concrete tuple; the
// reservation service uses it when re-validating an update
func (s *Service) CheckSlot(ctx context.Context, therapistID, roomID uuid.UUID, date, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	blocking, err := s.reservationRepo.ListBlockingForDate(ctx, date)
	if err != nil {
		return false, fmt.Errorf("failed to load reservations: %w", err)
	}
	for _, res := range blocking {
		if excludeID != nil && res.ID == *excludeID {
			continue
		}
		if res.TherapistID != therapistID && res.RoomID != roomID {
			continue
		}
		if model.Overlaps(res.StartTime, res.EndTime, start, end) {
			return false, nil
		}
	}
	return true, nil
}

func (s *Service) eligibleTherapists(ctx context.Context, therapistID *uuid.UUID) ([]*model.Therapist, error) {
	if therapistID != nil {
		therapist, err := s.catalogRepo.GetTherapist(ctx, *therapistID)
		if err != nil {
			return nil, err
		}
		if !therapist.Active {
			return nil, nil
		}
		return []*model.Therapist{therapist}, nil
	}

	therapists, err := s.catalogRepo.ListActiveTherapists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list therapists: %w", err)
	}
	return therapists, nil
}

// activeRooms caches the room list briefly; rooms change rarely and the
// engine reads them on every availability request
func (s *Service) activeRooms(ctx context.Context) ([]*model.Room, error) {
	if cached, ok := s.roomCache.Get(roomCacheKey); ok {
		return cached.([]*model.Room), nil
	}

	rooms, err := s.catalogRepo.ListActiveRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	s.roomCache.Set(roomCacheKey, rooms, gocache.DefaultExpiration)
	return rooms, nil
}

func hasConflict(reservations []*model.Reservation, start, end time.Time) bool {
	for _, res := range reservations {
		if model.Overlaps(res.StartTime, res.EndTime, start, end) {
			return true
		}
	}
	return false
}

// firstFreeRoom picks the first room, in stable enumeration order, with no
// overlapping reservation
func firstFreeRoom(rooms []*model.Room, byRoom map[uuid.UUID][]*model.Reservation, start, end time.Time) (uuid.UUID, bool) {
	for _, room := range rooms {
		if !hasConflict(byRoom[room.ID], start, end) {
			return room.ID, true
		}
	}
	return uuid.Nil, false
}
