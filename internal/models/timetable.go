package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// SlotRef identifies a single day/period cell. Periods are 1-based.
type SlotRef struct {
	Day    string `json:"day"`
	Period int    `json:"period"`
}

// Subject describes weekly demand for one subject within a class.
type Subject struct {
	Name          string `json:"name"`
	WeeklyPeriods int    `json:"weekly_periods"`
}

// Teacher carries the scheduling-relevant facts about an instructor.
// Availability is tracked in a separate per-run ledger, never on the
// teacher itself.
type Teacher struct {
	Name             string    `json:"name"`
	Subjects         []string  `json:"subjects"`
	MaxPeriodsPerDay int       `json:"max_periods_per_day"` // 0 = unbounded
	UnavailableSlots []SlotRef `json:"unavailable_slots,omitempty"`
	AvoidLastPeriod  bool      `json:"avoid_last_period"`
}

// Teaches reports whether the teacher is qualified for the subject.
func (t Teacher) Teaches(subject string) bool {
	for _, s := range t.Subjects {
		if s == subject {
			return true
		}
	}
	return false
}

// ClassSection groups the sections of one class with their shared
// subject demand. Each (class, section) pair schedules independently
// but draws on the global teacher pool.
type ClassSection struct {
	ClassName string    `json:"class_name"`
	Sections  []string  `json:"sections"`
	Subjects  []Subject `json:"subjects"`
}

// TotalWeeklyPeriods sums the weekly demand across all subjects.
func (c ClassSection) TotalWeeklyPeriods() int {
	total := 0
	for _, s := range c.Subjects {
		total += s.WeeklyPeriods
	}
	return total
}

// PeriodSlot is one cell of a section grid. The zero value means the
// period is free.
type PeriodSlot struct {
	Subject string `json:"subject,omitempty"`
	Teacher string `json:"teacher,omitempty"`
}

// Empty reports whether the slot holds no placement.
func (p PeriodSlot) Empty() bool {
	return p.Subject == ""
}

// SectionGrid maps day name to the ordered period slots of one section.
type SectionGrid map[string][]PeriodSlot

// Timetable is the generator output: class → section → day → periods.
// Read-only once a generation run completes.
type Timetable map[string]map[string]SectionGrid

// TimeSlotKind distinguishes teaching periods from breaks.
type TimeSlotKind string

const (
	TimeSlotPeriod TimeSlotKind = "period"
	TimeSlotBreak  TimeSlotKind = "break"
	TimeSlotLunch  TimeSlotKind = "lunch"
)

// TimeSlot maps an abstract slot to wall-clock times. The template
// covers one representative day and is shared by every day of the week.
type TimeSlot struct {
	Kind            TimeSlotKind `json:"kind"`
	Start           string       `json:"start"`
	End             string       `json:"end"`
	DurationMinutes int          `json:"duration_minutes"`
}

// SavedTimetable is the persisted form of an accepted proposal.
type SavedTimetable struct {
	ID           string         `db:"id" json:"id"`
	AcademicYear string         `db:"academic_year" json:"academic_year"`
	Classes      types.JSONText `db:"classes" json:"classes"`
	Payload      types.JSONText `db:"payload" json:"payload"`
	TimeSlots    types.JSONText `db:"time_slots" json:"time_slots"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

// TimetableFilter captures supported filters for listing saved timetables.
type TimetableFilter struct {
	AcademicYear string
	Class        string
	Page         int
	PageSize     int
}
