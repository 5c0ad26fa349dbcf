package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func TestTeacherLedgerMarksUnavailableSlots(t *testing.T) {
	ledger := newTeacherLedger([]models.Teacher{
		{
			Name:             "Ibu Sari",
			Subjects:         []string{"Math"},
			UnavailableSlots: []models.SlotRef{{Day: "Monday", Period: 1}},
		},
	}, []string{"Monday", "Tuesday"}, 3)

	assert.False(t, ledger.IsFree("Ibu Sari", "Monday", 1))
	assert.True(t, ledger.IsFree("Ibu Sari", "Monday", 2))
	assert.True(t, ledger.IsFree("Ibu Sari", "Tuesday", 1))
}

func TestTeacherLedgerReserveBumpsDailyCount(t *testing.T) {
	ledger := newTeacherLedger([]models.Teacher{
		{Name: "Pak Budi", Subjects: []string{"Science"}},
	}, []string{"Monday"}, 4)

	ledger.Reserve("Pak Budi", "Monday", 2)
	ledger.Reserve("Pak Budi", "Monday", 3)

	assert.False(t, ledger.IsFree("Pak Budi", "Monday", 2))
	assert.False(t, ledger.IsFree("Pak Budi", "Monday", 3))
	assert.Equal(t, 2, ledger.DailyCount("Pak Budi", "Monday"))
}

func TestTeacherLedgerRejectsOutOfRangeSlots(t *testing.T) {
	ledger := newTeacherLedger([]models.Teacher{
		{Name: "Pak Budi", Subjects: []string{"Science"}},
	}, []string{"Monday"}, 2)

	assert.False(t, ledger.IsFree("Pak Budi", "Monday", 0))
	assert.False(t, ledger.IsFree("Pak Budi", "Monday", 3))
	assert.False(t, ledger.IsFree("Pak Budi", "Wednesday", 1))
	assert.False(t, ledger.IsFree("Unknown", "Monday", 1))

	// Out-of-range reservations are ignored entirely.
	ledger.Reserve("Pak Budi", "Monday", 9)
	assert.Equal(t, 0, ledger.DailyCount("Pak Budi", "Monday"))
}

func TestTeacherLedgerCloneIsIsolated(t *testing.T) {
	ledger := newTeacherLedger([]models.Teacher{
		{Name: "Ibu Sari", Subjects: []string{"Math"}},
	}, []string{"Monday"}, 3)
	ledger.Reserve("Ibu Sari", "Monday", 1)

	clone := ledger.Clone()
	require.False(t, clone.IsFree("Ibu Sari", "Monday", 1))

	clone.Reserve("Ibu Sari", "Monday", 2)

	assert.False(t, clone.IsFree("Ibu Sari", "Monday", 2))
	assert.True(t, ledger.IsFree("Ibu Sari", "Monday", 2), "clone mutation must not leak into the canonical ledger")
	assert.Equal(t, 1, ledger.DailyCount("Ibu Sari", "Monday"))
	assert.Equal(t, 2, clone.DailyCount("Ibu Sari", "Monday"))
}

func TestTeacherLedgerMergeCommitsClone(t *testing.T) {
	ledger := newTeacherLedger([]models.Teacher{
		{Name: "Ibu Sari", Subjects: []string{"Math"}},
	}, []string{"Monday"}, 3)

	clone := ledger.Clone()
	clone.Reserve("Ibu Sari", "Monday", 1)
	clone.Reserve("Ibu Sari", "Monday", 3)

	ledger.Merge(clone)

	assert.False(t, ledger.IsFree("Ibu Sari", "Monday", 1))
	assert.True(t, ledger.IsFree("Ibu Sari", "Monday", 2))
	assert.False(t, ledger.IsFree("Ibu Sari", "Monday", 3))
	assert.Equal(t, 2, ledger.DailyCount("Ibu Sari", "Monday"))
}
