package service

import (
	"fmt"
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

const clockLayout = "15:04"

// timeSlotOptions configures the one-day wall-clock template. Zero
// values fall back to the defaults below. The template is shared across
// every day of the week; per-day time variation is not supported.
type timeSlotOptions struct {
	StartTime         string
	PeriodDuration    int // minutes
	BreakDuration     int
	LunchDuration     int
	BreakAfterPeriods []int
	LunchAfterPeriod  int // 0 = no lunch
}

const (
	defaultStartTime      = "08:00"
	defaultPeriodDuration = 45
	defaultBreakDuration  = 10
	defaultLunchDuration  = 30
)

// buildTimeSlots walks period index 1..periodsPerDay accumulating
// wall-clock time, inserting short breaks and the lunch slot at the
// configured points. Pure function.
func buildTimeSlots(periodsPerDay int, opts timeSlotOptions) ([]models.TimeSlot, error) {
	if opts.StartTime == "" {
		opts.StartTime = defaultStartTime
	}
	if opts.PeriodDuration <= 0 {
		opts.PeriodDuration = defaultPeriodDuration
	}
	if opts.BreakDuration <= 0 {
		opts.BreakDuration = defaultBreakDuration
	}
	if opts.LunchDuration <= 0 {
		opts.LunchDuration = defaultLunchDuration
	}

	cursor, err := time.Parse(clockLayout, opts.StartTime)
	if err != nil {
		return nil, fmt.Errorf("parse start time %q: %w", opts.StartTime, err)
	}

	breakAfter := make(map[int]bool, len(opts.BreakAfterPeriods))
	for _, p := range opts.BreakAfterPeriods {
		breakAfter[p] = true
	}

	slots := make([]models.TimeSlot, 0, periodsPerDay+len(opts.BreakAfterPeriods)+1)
	emit := func(kind models.TimeSlotKind, minutes int) {
		end := cursor.Add(time.Duration(minutes) * time.Minute)
		slots = append(slots, models.TimeSlot{
			Kind:            kind,
			Start:           cursor.Format(clockLayout),
			End:             end.Format(clockLayout),
			DurationMinutes: minutes,
		})
		cursor = end
	}

	for period := 1; period <= periodsPerDay; period++ {
		emit(models.TimeSlotPeriod, opts.PeriodDuration)
		if period == periodsPerDay {
			break
		}
		if opts.LunchAfterPeriod == period {
			emit(models.TimeSlotLunch, opts.LunchDuration)
		} else if breakAfter[period] {
			emit(models.TimeSlotBreak, opts.BreakDuration)
		}
	}

	return slots, nil
}
