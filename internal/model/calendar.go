package model

import (
	"time"

	"github.com/google/uuid"
)

type WorkStatus string

const (
	WorkStatusWorking  WorkStatus = "WORKING"
	WorkStatusOff      WorkStatus = "OFF"
	WorkStatusVacation WorkStatus = "VACATION"
	WorkStatusSick     WorkStatus = "SICK"
)

// CalendarEntry is a therapist's schedule for one date.
// One entry per therapist per date.
type CalendarEntry struct {
	Base
	TherapistID uuid.UUID  `json:"therapist_id" db:"therapist_id"`
	Date        time.Time  `json:"date" db:"date"`
	WorkStart   time.Time  `json:"work_start" db:"work_start"`
	WorkEnd     time.Time  `json:"work_end" db:"work_end"`
	WorkStatus  WorkStatus `json:"work_status" db:"work_status"`
}

type UpsertCalendarEntryRequest struct {
	TherapistID uuid.UUID  `json:"therapist_id" binding:"required"`
	Date        string     `json:"date" binding:"required"`
	WorkStart   string     `json:"work_start" binding:"omitempty,clock"`
	WorkEnd     string     `json:"work_end" binding:"omitempty,clock"`
	WorkStatus  WorkStatus `json:"work_status" binding:"required,oneof=WORKING OFF VACATION SICK"`
}
