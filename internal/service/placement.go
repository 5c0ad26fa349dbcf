package service

import (
	"sort"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// place finds a (day, period, teacher) for one subject instance against
// the cloned ledger and writes it into the grid. Days are visited in
// descending order of remaining free slots to balance load across the
// week; periods are shuffled so restarts explore different orderings.
// The first workable slot wins; teacher choice is the only scored pick.
func (s *sectionScheduler) place(grid models.SectionGrid, ledger *teacherLedger, subject string, tier relaxationTier) bool {
	days := s.daysByFreeSlots(grid)
	for _, day := range days {
		periods := s.rng.Perm(s.periodsPerDay)
		for _, idx := range periods {
			period := idx + 1
			if !grid[day][idx].Empty() {
				continue
			}
			if s.violatesTier(grid[day], subject, idx, tier) {
				continue
			}
			teacher, ok := s.pickTeacher(ledger, subject, day, period, tier)
			if !ok {
				continue
			}
			ledger.Reserve(teacher, day, period)
			grid[day][idx] = models.PeriodSlot{Subject: subject, Teacher: teacher}
			return true
		}
	}
	return false
}

// daysByFreeSlots orders days with the emptiest first. Ties keep input
// order so a fixed seed stays deterministic.
func (s *sectionScheduler) daysByFreeSlots(grid models.SectionGrid) []string {
	days := make([]string, len(s.days))
	copy(days, s.days)
	freeCount := func(day string) int {
		count := 0
		for _, slot := range grid[day] {
			if slot.Empty() {
				count++
			}
		}
		return count
	}
	sort.SliceStable(days, func(i, j int) bool {
		return freeCount(days[i]) > freeCount(days[j])
	})
	return days
}

// violatesTier applies the active same-day and adjacency constraints to
// a candidate period index (0-based) within one day's slots.
func (s *sectionScheduler) violatesTier(daySlots []models.PeriodSlot, subject string, idx int, tier relaxationTier) bool {
	if !tier.allowSameDayRepeat {
		for _, slot := range daySlots {
			if slot.Subject == subject {
				return true
			}
		}
		return false
	}
	if tier.allowAdjacentRepeat {
		return false
	}
	if idx > 0 && daySlots[idx-1].Subject == subject {
		return true
	}
	if idx < len(daySlots)-1 && daySlots[idx+1].Subject == subject {
		return true
	}
	return false
}

// pickTeacher gathers the qualified teachers free at the slot and under
// their daily cap (plus tier slack) and returns the lowest-scoring one.
// Score is the current daily count, bumped by the configured penalty
// when the slot is the day's last period and the teacher avoids it.
func (s *sectionScheduler) pickTeacher(ledger *teacherLedger, subject, day string, period int, tier relaxationTier) (string, bool) {
	lastPeriod := period == s.periodsPerDay

	best := ""
	bestScore := 0
	for _, teacher := range s.qualified[subject] {
		if !ledger.IsFree(teacher.Name, day, period) {
			continue
		}
		count := ledger.DailyCount(teacher.Name, day)
		if teacher.MaxPeriodsPerDay > 0 && count >= teacher.MaxPeriodsPerDay+tier.dailyCapSlack {
			continue
		}
		score := count
		if lastPeriod && teacher.AvoidLastPeriod {
			score += s.cfg.LastPeriodPenalty
		}
		if best == "" || score < bestScore {
			best = teacher.Name
			bestScore = score
		}
	}
	return best, best != ""
}
