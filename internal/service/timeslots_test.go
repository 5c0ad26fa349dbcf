package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func TestBuildTimeSlotsDefaults(t *testing.T) {
	slots, err := buildTimeSlots(3, timeSlotOptions{})
	require.NoError(t, err)
	require.Len(t, slots, 3)

	assert.Equal(t, models.TimeSlotPeriod, slots[0].Kind)
	assert.Equal(t, "08:00", slots[0].Start)
	assert.Equal(t, "08:45", slots[0].End)
	assert.Equal(t, "08:45", slots[1].Start)
	assert.Equal(t, "09:30", slots[2].Start)
	assert.Equal(t, "10:15", slots[2].End)
}

func TestBuildTimeSlotsWithBreaksAndLunch(t *testing.T) {
	slots, err := buildTimeSlots(4, timeSlotOptions{
		StartTime:         "07:30",
		PeriodDuration:    40,
		BreakDuration:     10,
		LunchDuration:     30,
		BreakAfterPeriods: []int{1},
		LunchAfterPeriod:  2,
	})
	require.NoError(t, err)
	require.Len(t, slots, 6)

	kinds := make([]models.TimeSlotKind, 0, len(slots))
	for _, slot := range slots {
		kinds = append(kinds, slot.Kind)
	}
	assert.Equal(t, []models.TimeSlotKind{
		models.TimeSlotPeriod,
		models.TimeSlotBreak,
		models.TimeSlotPeriod,
		models.TimeSlotLunch,
		models.TimeSlotPeriod,
		models.TimeSlotPeriod,
	}, kinds)

	assert.Equal(t, "07:30", slots[0].Start)
	assert.Equal(t, "08:10", slots[1].Start)
	assert.Equal(t, "08:20", slots[2].Start)
	assert.Equal(t, "09:00", slots[3].Start)
	assert.Equal(t, "09:30", slots[4].Start)
	assert.Equal(t, "10:10", slots[5].Start)

	// Slots are contiguous: each begins where the previous ended.
	for i := 1; i < len(slots); i++ {
		assert.Equal(t, slots[i-1].End, slots[i].Start)
	}
}

func TestBuildTimeSlotsLunchBeatsBreakAtSamePeriod(t *testing.T) {
	slots, err := buildTimeSlots(3, timeSlotOptions{
		BreakAfterPeriods: []int{1},
		LunchAfterPeriod:  1,
	})
	require.NoError(t, err)
	require.Len(t, slots, 4)
	assert.Equal(t, models.TimeSlotLunch, slots[1].Kind)
}

func TestBuildTimeSlotsNoTrailingBreak(t *testing.T) {
	slots, err := buildTimeSlots(2, timeSlotOptions{
		BreakAfterPeriods: []int{2},
		LunchAfterPeriod:  2,
	})
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, models.TimeSlotPeriod, slots[len(slots)-1].Kind)
}

func TestBuildTimeSlotsRejectsMalformedStartTime(t *testing.T) {
	_, err := buildTimeSlots(2, timeSlotOptions{StartTime: "8 o'clock"})
	require.Error(t, err)
}
