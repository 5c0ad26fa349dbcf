package service

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

func schedulerTestConfig() config.GeneratorConfig {
	return config.GeneratorConfig{
		MaxAttempts:        50,
		RelaxSameDayAfter:  25,
		RelaxDailyCapAfter: 30,
		RelaxAdjacentAfter: 35,
		LastPeriodPenalty:  1000,
	}
}

func newTestScheduler(teachers []models.Teacher, days []string, periodsPerDay int, seed int64) *sectionScheduler {
	rng := rand.New(rand.NewSource(seed))
	return newSectionScheduler(teachers, days, periodsPerDay, schedulerTestConfig(), rng, zap.NewNop())
}

func TestSectionSchedulerPlacesFullDemand(t *testing.T) {
	days := []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}
	teachers := []models.Teacher{
		{Name: "Ibu Sari", Subjects: []string{"Math"}},
		{Name: "Pak Budi", Subjects: []string{"Science"}},
	}
	subjects := []models.Subject{
		{Name: "Math", WeeklyPeriods: 5},
		{Name: "Science", WeeklyPeriods: 5},
	}
	ledger := newTeacherLedger(teachers, days, 6)

	grid, attempts, err := newTestScheduler(teachers, days, 6, 7).Schedule("10", "A", subjects, ledger)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, attempts, 1)

	counts := map[string]int{}
	for _, day := range days {
		for _, slot := range grid[day] {
			if !slot.Empty() {
				counts[slot.Subject]++
				assert.NotEmpty(t, slot.Teacher)
			}
		}
	}
	assert.Equal(t, 5, counts["Math"])
	assert.Equal(t, 5, counts["Science"])
}

func TestSectionSchedulerStrictTierSpreadsSubjectAcrossDays(t *testing.T) {
	days := []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}
	teachers := []models.Teacher{{Name: "Ibu Sari", Subjects: []string{"Math"}}}
	subjects := []models.Subject{{Name: "Math", WeeklyPeriods: 5}}
	ledger := newTeacherLedger(teachers, days, 6)

	grid, attempts, err := newTestScheduler(teachers, days, 6, 11).Schedule("10", "A", subjects, ledger)
	require.NoError(t, err)
	require.LessOrEqual(t, attempts, 25, "five periods over five days should not need relaxed tiers")

	for _, day := range days {
		seen := 0
		for _, slot := range grid[day] {
			if slot.Subject == "Math" {
				seen++
			}
		}
		assert.LessOrEqual(t, seen, 1, "strict tier forbids same-subject repeats within %s", day)
	}
}

func TestSectionSchedulerStrictTierRespectsDailyCap(t *testing.T) {
	days := []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}
	teachers := []models.Teacher{
		{Name: "Ibu Sari", Subjects: []string{"Math", "Science"}, MaxPeriodsPerDay: 2},
	}
	subjects := []models.Subject{
		{Name: "Math", WeeklyPeriods: 5},
		{Name: "Science", WeeklyPeriods: 5},
	}
	ledger := newTeacherLedger(teachers, days, 6)

	_, attempts, err := newTestScheduler(teachers, days, 6, 9).Schedule("10", "A", subjects, ledger)
	require.NoError(t, err)
	require.LessOrEqual(t, attempts, 25, "cap-tight demand must still succeed without slack")

	for _, day := range days {
		assert.LessOrEqual(t, ledger.DailyCount("Ibu Sari", day), 2, "daily cap exceeded on %s", day)
	}
}

func TestSectionSchedulerPacksTightWeekOnePerSubjectPerDay(t *testing.T) {
	days := []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}
	teachers := []models.Teacher{
		{Name: "Ibu Sari", Subjects: []string{"Math"}},
		{Name: "Pak Budi", Subjects: []string{"Science"}},
	}
	subjects := []models.Subject{
		{Name: "Math", WeeklyPeriods: 5},
		{Name: "Science", WeeklyPeriods: 5},
	}
	ledger := newTeacherLedger(teachers, days, 2)

	// Ten required periods over ten slots: every day must carry exactly
	// one Math and one Science.
	grid, attempts, err := newTestScheduler(teachers, days, 2, 13).Schedule("10", "A", subjects, ledger)
	require.NoError(t, err)
	require.LessOrEqual(t, attempts, 25)

	for _, day := range days {
		counts := map[string]int{}
		for _, slot := range grid[day] {
			require.False(t, slot.Empty(), "no slot may stay empty on %s", day)
			counts[slot.Subject]++
		}
		assert.Equal(t, 1, counts["Math"], "one Math expected on %s", day)
		assert.Equal(t, 1, counts["Science"], "one Science expected on %s", day)
	}
}

func TestSectionSchedulerNeverDoubleBooksSharedTeacher(t *testing.T) {
	days := []string{"Monday", "Tuesday", "Wednesday"}
	teachers := []models.Teacher{{Name: "Pak Budi", Subjects: []string{"Math", "Science"}}}
	ledger := newTeacherLedger(teachers, days, 4)
	scheduler := newTestScheduler(teachers, days, 4, 3)

	gridA, _, err := scheduler.Schedule("10", "A", []models.Subject{{Name: "Math", WeeklyPeriods: 3}}, ledger)
	require.NoError(t, err)
	gridB, _, err := scheduler.Schedule("10", "B", []models.Subject{{Name: "Science", WeeklyPeriods: 3}}, ledger)
	require.NoError(t, err)

	for _, day := range days {
		for idx := range gridA[day] {
			if gridA[day][idx].Teacher == "Pak Budi" && gridB[day][idx].Teacher == "Pak Budi" {
				t.Fatalf("Pak Budi double-booked on %s period %d", day, idx+1)
			}
		}
	}
}

func TestSectionSchedulerHonoursUnavailableSlots(t *testing.T) {
	days := []string{"Monday", "Tuesday"}
	teachers := []models.Teacher{
		{
			Name:     "Ibu Sari",
			Subjects: []string{"Math"},
			UnavailableSlots: []models.SlotRef{
				{Day: "Monday", Period: 1},
				{Day: "Monday", Period: 2},
			},
		},
	}
	ledger := newTeacherLedger(teachers, days, 3)

	grid, _, err := newTestScheduler(teachers, days, 3, 5).Schedule("11", "A", []models.Subject{{Name: "Math", WeeklyPeriods: 2}}, ledger)
	require.NoError(t, err)

	assert.True(t, grid["Monday"][0].Empty(), "blocked slot Monday/1 must stay empty")
	assert.True(t, grid["Monday"][1].Empty(), "blocked slot Monday/2 must stay empty")
}

func TestSectionSchedulerFailsWhenDemandCannotFit(t *testing.T) {
	days := []string{"Monday"}
	teachers := []models.Teacher{
		{Name: "Ibu Sari", Subjects: []string{"Math"}, MaxPeriodsPerDay: 1},
	}
	ledger := newTeacherLedger(teachers, days, 6)

	// Even the +1 cap slack leaves 4 of 6 required periods unteachable.
	grid, attempts, err := newTestScheduler(teachers, days, 6, 1).Schedule("12", "A", []models.Subject{{Name: "Math", WeeklyPeriods: 6}}, ledger)
	require.Error(t, err)
	assert.Nil(t, grid)
	assert.Equal(t, 50, attempts)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrGenerationFailed.Code, appErr.Code)

	// A failed section leaves no reservations behind.
	assert.Equal(t, 0, ledger.DailyCount("Ibu Sari", "Monday"))
}

func TestSectionSchedulerDeterministicWithFixedSeed(t *testing.T) {
	days := []string{"Monday", "Tuesday", "Wednesday"}
	teachers := []models.Teacher{
		{Name: "Ibu Sari", Subjects: []string{"Math"}},
		{Name: "Pak Budi", Subjects: []string{"Science"}},
	}
	subjects := []models.Subject{
		{Name: "Math", WeeklyPeriods: 3},
		{Name: "Science", WeeklyPeriods: 3},
	}

	run := func() models.SectionGrid {
		ledger := newTeacherLedger(teachers, days, 4)
		grid, _, err := newTestScheduler(teachers, days, 4, 42).Schedule("10", "A", subjects, ledger)
		require.NoError(t, err)
		return grid
	}

	first := run()
	second := run()
	assert.True(t, reflect.DeepEqual(first, second), "identical seeds must produce identical grids")
}

func TestPickTeacherPrefersLowestDailyLoad(t *testing.T) {
	days := []string{"Monday"}
	teachers := []models.Teacher{
		{Name: "Ibu Sari", Subjects: []string{"Math"}},
		{Name: "Pak Budi", Subjects: []string{"Math"}},
	}
	scheduler := newTestScheduler(teachers, days, 6, 1)
	ledger := newTeacherLedger(teachers, days, 6)
	ledger.Reserve("Ibu Sari", "Monday", 1)
	ledger.Reserve("Ibu Sari", "Monday", 2)

	name, ok := scheduler.pickTeacher(ledger, "Math", "Monday", 3, relaxationTier{})
	require.True(t, ok)
	assert.Equal(t, "Pak Budi", name)
}

func TestPickTeacherPenalisesAvoidedLastPeriod(t *testing.T) {
	days := []string{"Monday"}
	teachers := []models.Teacher{
		{Name: "Ibu Sari", Subjects: []string{"Math"}, AvoidLastPeriod: true},
		{Name: "Pak Budi", Subjects: []string{"Math"}},
	}
	scheduler := newTestScheduler(teachers, days, 6, 1)
	ledger := newTeacherLedger(teachers, days, 6)
	// Pak Budi already carries a heavier day; the penalty must still
	// outweigh the load difference at the last period.
	ledger.Reserve("Pak Budi", "Monday", 1)
	ledger.Reserve("Pak Budi", "Monday", 2)

	name, ok := scheduler.pickTeacher(ledger, "Math", "Monday", 6, relaxationTier{})
	require.True(t, ok)
	assert.Equal(t, "Pak Budi", name)

	// Away from the last period the lighter teacher wins again.
	name, ok = scheduler.pickTeacher(ledger, "Math", "Monday", 3, relaxationTier{})
	require.True(t, ok)
	assert.Equal(t, "Ibu Sari", name)
}

func TestViolatesTierAdjacency(t *testing.T) {
	scheduler := newTestScheduler(nil, []string{"Monday"}, 4, 1)
	daySlots := []models.PeriodSlot{
		{Subject: "Math", Teacher: "Ibu Sari"},
		{},
		{},
		{},
	}

	strict := relaxationTier{}
	assert.True(t, scheduler.violatesTier(daySlots, "Math", 3, strict), "strict tier forbids any same-day repeat")

	sameDay := relaxationTier{allowSameDayRepeat: true}
	assert.True(t, scheduler.violatesTier(daySlots, "Math", 1, sameDay), "adjacent repeat still blocked")
	assert.False(t, scheduler.violatesTier(daySlots, "Math", 2, sameDay), "non-adjacent repeat allowed")

	relaxed := relaxationTier{allowSameDayRepeat: true, allowAdjacentRepeat: true}
	assert.False(t, scheduler.violatesTier(daySlots, "Math", 1, relaxed))
}
