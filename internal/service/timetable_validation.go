package service

import (
	"fmt"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

// validateGeneratorInput runs the structural checks before any search
// begins. Checks run in order and the first violated rule wins, with a
// message naming the offending class or subject. Pure.
func validateGeneratorInput(classes []models.ClassSection, teachers []models.Teacher, days []string, periodsPerDay int) error {
	if len(classes) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "at least one class is required")
	}
	if len(teachers) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "at least one teacher is required")
	}
	if len(days) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "at least one day is required")
	}
	if periodsPerDay <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "periodsPerDay must be a positive integer")
	}

	taught := make(map[string]bool)
	for _, teacher := range teachers {
		for _, subject := range teacher.Subjects {
			taught[subject] = true
		}
	}

	capacity := len(days) * periodsPerDay
	for _, class := range classes {
		if len(class.Subjects) == 0 {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("class %q has no subjects", class.ClassName))
		}
		for _, subject := range class.Subjects {
			if subject.Name == "" {
				return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("class %q has a subject with an empty name", class.ClassName))
			}
			if subject.WeeklyPeriods <= 0 {
				return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("subject %q in class %q must request at least one weekly period", subject.Name, class.ClassName))
			}
			if !taught[subject.Name] {
				return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("no teacher is assigned to subject %q required by class %q", subject.Name, class.ClassName))
			}
		}
		if total := class.TotalWeeklyPeriods(); total > capacity {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("class %q requests %d weekly periods but only %d slots are available", class.ClassName, total, capacity))
		}
	}

	return nil
}
