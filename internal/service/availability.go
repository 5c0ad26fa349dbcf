package service

import (
	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// teacherLedger is the per-run availability grid shared across every
// class-section of one generation run: teacher → day → period free flag,
// plus a parallel per-day reservation count. All mutation goes through
// Reserve and Merge; the scheduler never touches the maps directly.
//
// Speculative attempts run against a Clone and only a fully successful
// attempt is merged back, so a failed attempt leaves no trace on slots
// committed by earlier sections.
type teacherLedger struct {
	free   map[string]map[string][]bool
	counts map[string]map[string]int
}

// newTeacherLedger builds the full grid, marking each teacher's
// unavailable slots up front.
func newTeacherLedger(teachers []models.Teacher, days []string, periodsPerDay int) *teacherLedger {
	ledger := &teacherLedger{
		free:   make(map[string]map[string][]bool, len(teachers)),
		counts: make(map[string]map[string]int, len(teachers)),
	}
	for _, teacher := range teachers {
		ledger.free[teacher.Name] = make(map[string][]bool, len(days))
		ledger.counts[teacher.Name] = make(map[string]int, len(days))
		for _, day := range days {
			row := make([]bool, periodsPerDay)
			for i := range row {
				row[i] = true
			}
			ledger.free[teacher.Name][day] = row
		}
		for _, slot := range teacher.UnavailableSlots {
			if row, ok := ledger.free[teacher.Name][slot.Day]; ok && slot.Period >= 1 && slot.Period <= len(row) {
				row[slot.Period-1] = false
			}
		}
	}
	return ledger
}

// IsFree reports whether the teacher is unreserved at (day, period).
// Period is 1-based.
func (l *teacherLedger) IsFree(teacher, day string, period int) bool {
	row, ok := l.free[teacher][day]
	if !ok || period < 1 || period > len(row) {
		return false
	}
	return row[period-1]
}

// Reserve marks the slot taken and bumps the daily count. Callers must
// have confirmed IsFree and cap headroom first; reserving an already
// taken slot would break the no-double-booking invariant.
func (l *teacherLedger) Reserve(teacher, day string, period int) {
	row, ok := l.free[teacher][day]
	if !ok || period < 1 || period > len(row) {
		return
	}
	row[period-1] = false
	l.counts[teacher][day]++
}

// DailyCount returns the number of periods reserved for the teacher on
// the given day so far.
func (l *teacherLedger) DailyCount(teacher, day string) int {
	return l.counts[teacher][day]
}

// Clone returns a structural deep copy for a speculative attempt.
func (l *teacherLedger) Clone() *teacherLedger {
	clone := &teacherLedger{
		free:   make(map[string]map[string][]bool, len(l.free)),
		counts: make(map[string]map[string]int, len(l.counts)),
	}
	for teacher, days := range l.free {
		clone.free[teacher] = make(map[string][]bool, len(days))
		for day, row := range days {
			copied := make([]bool, len(row))
			copy(copied, row)
			clone.free[teacher][day] = copied
		}
	}
	for teacher, days := range l.counts {
		clone.counts[teacher] = make(map[string]int, len(days))
		for day, count := range days {
			clone.counts[teacher][day] = count
		}
	}
	return clone
}

// Merge commits a successful clone back into the canonical ledger,
// overwriting every grid entry and count.
func (l *teacherLedger) Merge(src *teacherLedger) {
	for teacher, days := range src.free {
		if l.free[teacher] == nil {
			l.free[teacher] = make(map[string][]bool, len(days))
		}
		for day, row := range days {
			copied := make([]bool, len(row))
			copy(copied, row)
			l.free[teacher][day] = copied
		}
	}
	for teacher, days := range src.counts {
		if l.counts[teacher] == nil {
			l.counts[teacher] = make(map[string]int, len(days))
		}
		for day, count := range days {
			l.counts[teacher][day] = count
		}
	}
}
