package dto

import "github.com/noah-isme/sma-timetable-api/internal/models"

// SubjectInput declares weekly demand for one subject in a class.
type SubjectInput struct {
	Name          string `json:"name" validate:"required"`
	WeeklyPeriods int    `json:"weeklyPeriods" validate:"required,min=1"`
}

// SlotInput references a day/period cell (period is 1-based).
type SlotInput struct {
	Day    string `json:"day" validate:"required"`
	Period int    `json:"period" validate:"required,min=1"`
}

// TeacherInput describes an instructor in the generation request.
type TeacherInput struct {
	Name             string      `json:"name" validate:"required"`
	Subjects         []string    `json:"subjects" validate:"required,min=1,dive,required"`
	MaxPeriodsPerDay int         `json:"maxPeriodsPerDay" validate:"omitempty,min=1"`
	UnavailableSlots []SlotInput `json:"unavailableSlots" validate:"omitempty,dive"`
	AvoidLastPeriod  bool        `json:"avoidLastPeriod"`
}

// ClassInput groups sections and subject demand for one class.
type ClassInput struct {
	ClassName string         `json:"className" validate:"required"`
	Sections  []string       `json:"sections"`
	Subjects  []SubjectInput `json:"subjects" validate:"required,min=1,dive"`
}

// TimeSlotOptionsInput customises the wall-clock template. EndTime is
// accepted for callers that mirror it back from a previous response;
// the template length is derived from periodsPerDay and the durations.
type TimeSlotOptionsInput struct {
	StartTime         string `json:"startTime" validate:"omitempty,len=5"`
	EndTime           string `json:"endTime" validate:"omitempty,len=5"`
	PeriodDuration    int    `json:"periodDuration" validate:"omitempty,min=1"`
	BreakDuration     int    `json:"breakDuration" validate:"omitempty,min=1"`
	LunchDuration     int    `json:"lunchDuration" validate:"omitempty,min=1"`
	BreakAfterPeriods []int  `json:"breakAfterPeriods" validate:"omitempty,dive,min=1"`
	LunchAfterPeriod  int    `json:"lunchAfterPeriod" validate:"omitempty,min=1"`
}

// GenerateTimetableRequest is the generator's in-process call contract.
type GenerateTimetableRequest struct {
	Classes       []ClassInput          `json:"classes" validate:"required,min=1,dive"`
	Teachers      []TeacherInput        `json:"teachers" validate:"required,min=1,dive"`
	Days          []string              `json:"days" validate:"required,min=1,dive,required"`
	PeriodsPerDay int                   `json:"periodsPerDay" validate:"required,min=1,max=16"`
	Options       *TimeSlotOptionsInput `json:"options" validate:"omitempty"`
	Seed          *int64                `json:"seed" validate:"omitempty"`
}

// SectionStats reports search effort for one scheduled section.
type SectionStats struct {
	Class    string `json:"class"`
	Section  string `json:"section"`
	Attempts int    `json:"attempts"`
}

// GenerationStats summarises the whole run.
type GenerationStats struct {
	Sections      []SectionStats `json:"sections"`
	TotalAttempts int            `json:"totalAttempts"`
	DurationMS    int64          `json:"durationMs"`
}

// GenerateTimetableResponse returns the built proposal.
type GenerateTimetableResponse struct {
	ProposalID string            `json:"proposalId"`
	Timetable  models.Timetable  `json:"timetable"`
	TimeSlots  []models.TimeSlot `json:"timeSlots"`
	Stats      GenerationStats   `json:"stats"`
}

// SaveTimetableRequest persists a generated proposal.
type SaveTimetableRequest struct {
	ProposalID   string `json:"proposalId" validate:"required"`
	AcademicYear string `json:"academicYear" validate:"required"`
}

// TimetableQuery filters saved timetables.
type TimetableQuery struct {
	AcademicYear string `form:"academicYear" json:"academicYear"`
	Class        string `form:"class" json:"class"`
	Page         int    `form:"page" json:"page"`
	PageSize     int    `form:"pageSize" json:"pageSize"`
}

// ExportTimetableRequest renders one section of a saved timetable.
type ExportTimetableRequest struct {
	TimetableID string `json:"timetableId" validate:"required"`
	Class       string `json:"class" validate:"required"`
	Section     string `json:"section" validate:"required"`
	Format      string `json:"format" validate:"required,oneof=pdf csv"`
}

// ExportJobResponse acknowledges an accepted export job.
type ExportJobResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

// ExportDownloadResponse carries the signed download link once ready.
type ExportDownloadResponse struct {
	JobID     string `json:"jobId"`
	Status    string `json:"status"`
	URL       string `json:"url,omitempty"`
	ExpiresAt string `json:"expiresAt,omitempty"`
}
