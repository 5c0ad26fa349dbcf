package service

import (
	"math/rand"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

// sectionScheduler places the subject-period demand of one class-section
// into its day/period grid, consulting the shared teacher ledger. Each
// attempt works against a ledger clone; only a fully placed attempt is
// merged back, so restarts are isolated by construction and rollback is
// simply discarding the clone.
type sectionScheduler struct {
	days          []string
	periodsPerDay int
	qualified     map[string][]models.Teacher
	teacherIndex  map[string]models.Teacher
	cfg           config.GeneratorConfig
	rng           *rand.Rand
	logger        *zap.Logger
}

func newSectionScheduler(teachers []models.Teacher, days []string, periodsPerDay int, cfg config.GeneratorConfig, rng *rand.Rand, logger *zap.Logger) *sectionScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	qualified := make(map[string][]models.Teacher)
	index := make(map[string]models.Teacher, len(teachers))
	for _, teacher := range teachers {
		index[teacher.Name] = teacher
		for _, subject := range teacher.Subjects {
			qualified[subject] = append(qualified[subject], teacher)
		}
	}
	return &sectionScheduler{
		days:          days,
		periodsPerDay: periodsPerDay,
		qualified:     qualified,
		teacherIndex:  index,
		cfg:           cfg,
		rng:           rng,
		logger:        logger,
	}
}

// Schedule runs the bounded attempt loop for one section. On success the
// clone is merged into the canonical ledger and the finished grid is
// returned. Exhausting the cap fails the whole generation run.
func (s *sectionScheduler) Schedule(class string, section string, subjects []models.Subject, ledger *teacherLedger) (models.SectionGrid, int, error) {
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		tier := tierForAttempt(attempt, s.cfg)
		clone := ledger.Clone()
		grid := s.emptyGrid()

		instances := s.flattenSubjects(subjects)
		s.rng.Shuffle(len(instances), func(i, j int) {
			instances[i], instances[j] = instances[j], instances[i]
		})

		placedAll := true
		for _, subject := range instances {
			if !s.place(grid, clone, subject, tier) {
				placedAll = false
				break
			}
		}
		if placedAll {
			ledger.Merge(clone)
			s.logger.Debug("section scheduled",
				zap.String("class", class),
				zap.String("section", section),
				zap.Int("attempts", attempt),
			)
			return grid, attempt, nil
		}
		// Partial placements die with the clone.
	}

	s.logger.Warn("section exhausted attempt budget",
		zap.String("class", class),
		zap.String("section", section),
		zap.Int("max_attempts", s.cfg.MaxAttempts),
	)
	return nil, s.cfg.MaxAttempts, appErrors.Clone(appErrors.ErrGenerationFailed, "")
}

func (s *sectionScheduler) emptyGrid() models.SectionGrid {
	grid := make(models.SectionGrid, len(s.days))
	for _, day := range s.days {
		grid[day] = make([]models.PeriodSlot, s.periodsPerDay)
	}
	return grid
}

// flattenSubjects expands weekly counts into one entry per required
// period (Math×5 becomes five "Math" entries).
func (s *sectionScheduler) flattenSubjects(subjects []models.Subject) []string {
	var instances []string
	for _, subject := range subjects {
		for i := 0; i < subject.WeeklyPeriods; i++ {
			instances = append(instances, subject.Name)
		}
	}
	return instances
}
