package service

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

// ImportService parses bulk workload CSV files into the generator's
// input contract. One row per (class, subject) pair:
//
//	class,sections,subject,weekly_periods,teachers,max_periods_per_day,avoid_last_period
//
// sections and teachers are semicolon separated; max_periods_per_day and
// avoid_last_period apply to every teacher listed on the row and may be
// left empty.
type ImportService struct {
	logger *zap.Logger
}

// NewImportService constructs the CSV import adapter.
func NewImportService(logger *zap.Logger) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{logger: logger}
}

const importColumns = 7

// ParseWorkload reads the CSV and returns the class and teacher inputs.
// The caller supplies days and periodsPerDay separately.
func (s *ImportService) ParseWorkload(r io.Reader) ([]dto.ClassInput, []dto.TeacherInput, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = importColumns
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "malformed workload csv")
	}
	if len(records) < 2 {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "workload csv has no data rows")
	}

	classOrder := make([]string, 0)
	classes := make(map[string]*dto.ClassInput)
	teacherOrder := make([]string, 0)
	teachers := make(map[string]*dto.TeacherInput)

	for i, record := range records[1:] {
		line := i + 2
		className := strings.TrimSpace(record[0])
		subjectName := strings.TrimSpace(record[2])
		if className == "" || subjectName == "" {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("line %d: class and subject are required", line))
		}

		weekly, err := strconv.Atoi(strings.TrimSpace(record[3]))
		if err != nil || weekly <= 0 {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("line %d: weekly_periods must be a positive integer", line))
		}

		class, ok := classes[className]
		if !ok {
			class = &dto.ClassInput{ClassName: className}
			classes[className] = class
			classOrder = append(classOrder, className)
		}
		if sections := splitList(record[1]); len(sections) > 0 {
			class.Sections = sections
		}
		class.Subjects = append(class.Subjects, dto.SubjectInput{Name: subjectName, WeeklyPeriods: weekly})

		names := splitList(record[4])
		if len(names) == 0 {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("line %d: at least one teacher is required for subject %q", line, subjectName))
		}

		maxPerDay := 0
		if raw := strings.TrimSpace(record[5]); raw != "" {
			maxPerDay, err = strconv.Atoi(raw)
			if err != nil || maxPerDay < 0 {
				return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("line %d: max_periods_per_day must be a non-negative integer", line))
			}
		}
		avoidLast := false
		if raw := strings.TrimSpace(record[6]); raw != "" {
			avoidLast, err = strconv.ParseBool(raw)
			if err != nil {
				return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("line %d: avoid_last_period must be a boolean", line))
			}
		}

		for _, name := range names {
			teacher, ok := teachers[name]
			if !ok {
				teacher = &dto.TeacherInput{Name: name}
				teachers[name] = teacher
				teacherOrder = append(teacherOrder, name)
			}
			if !containsString(teacher.Subjects, subjectName) {
				teacher.Subjects = append(teacher.Subjects, subjectName)
			}
			if maxPerDay > 0 {
				teacher.MaxPeriodsPerDay = maxPerDay
			}
			if avoidLast {
				teacher.AvoidLastPeriod = true
			}
		}
	}

	classList := make([]dto.ClassInput, 0, len(classOrder))
	for _, name := range classOrder {
		classList = append(classList, *classes[name])
	}
	teacherList := make([]dto.TeacherInput, 0, len(teacherOrder))
	for _, name := range teacherOrder {
		teacherList = append(teacherList, *teachers[name])
	}

	s.logger.Debug("workload csv parsed",
		zap.Int("classes", len(classList)),
		zap.Int("teachers", len(teacherList)),
	)
	return classList, teacherList, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ";")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func containsString(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}
