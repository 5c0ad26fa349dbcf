package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type timetableRepository interface {
	Create(ctx context.Context, timetable *models.SavedTimetable) error
	List(ctx context.Context, filter models.TimetableFilter) ([]models.SavedTimetable, int, error)
	FindByID(ctx context.Context, id string) (*models.SavedTimetable, error)
	Delete(ctx context.Context, id string) error
}

type timetableCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// TimetableService runs the constraint-satisfaction generator and
// manages the proposal → saved-timetable lifecycle.
type TimetableService struct {
	repo      timetableRepository
	cache     timetableCache
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	genCfg    config.GeneratorConfig
	cacheCfg  config.CacheConfig
	store     *proposalStore
}

// NewTimetableService wires the generator dependencies. The repository
// and cache may be nil; generation itself touches neither.
func NewTimetableService(
	repo timetableRepository,
	cache timetableCache,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	genCfg config.GeneratorConfig,
	cacheCfg config.CacheConfig,
) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if genCfg.MaxAttempts <= 0 {
		genCfg.MaxAttempts = 50
	}
	if genCfg.RelaxSameDayAfter <= 0 {
		genCfg.RelaxSameDayAfter = 25
	}
	if genCfg.RelaxDailyCapAfter <= 0 {
		genCfg.RelaxDailyCapAfter = 30
	}
	if genCfg.RelaxAdjacentAfter <= 0 {
		genCfg.RelaxAdjacentAfter = 35
	}
	if genCfg.LastPeriodPenalty <= 0 {
		genCfg.LastPeriodPenalty = 1000
	}
	if genCfg.ProposalTTL <= 0 {
		genCfg.ProposalTTL = 30 * time.Minute
	}
	return &TimetableService{
		repo:      repo,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		genCfg:    genCfg,
		cacheCfg:  cacheCfg,
		store:     newProposalStore(genCfg.ProposalTTL),
	}
}

// Generate validates the declarative problem description, runs the
// section-by-section search and returns a proposal. No partial results:
// any section exhausting its attempt budget fails the whole run.
func (s *TimetableService) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable generation payload")
	}

	classes := mapClasses(req.Classes)
	teachers := mapTeachers(req.Teachers)
	days := uniqueDays(req.Days)

	if err := validateGeneratorInput(classes, teachers, days, req.PeriodsPerDay); err != nil {
		return nil, err
	}

	seed := s.genCfg.Seed
	if req.Seed != nil {
		seed = *req.Seed
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	started := time.Now()
	timetable, stats, err := s.runGenerator(classes, teachers, days, req.PeriodsPerDay, seed)
	if err != nil {
		s.metrics.ObserveGeneration("failed", time.Since(started))
		return nil, err
	}

	slots, err := buildTimeSlots(req.PeriodsPerDay, mapTimeSlotOptions(req.Options))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid time slot options")
	}

	stats.DurationMS = time.Since(started).Milliseconds()
	s.metrics.ObserveGeneration("success", time.Since(started))
	s.metrics.ObserveSectionAttempts(stats.TotalAttempts)

	proposal := timetableProposal{
		ProposalID:  uuid.NewString(),
		Classes:     classNames(classes),
		Timetable:   timetable,
		TimeSlots:   slots,
		Stats:       stats,
		RequestedAt: time.Now().UTC(),
	}
	s.store.Save(proposal)

	s.logger.Info("timetable generated",
		zap.String("proposal_id", proposal.ProposalID),
		zap.Int("classes", len(classes)),
		zap.Int("total_attempts", stats.TotalAttempts),
		zap.Int64("seed", seed),
	)

	return &dto.GenerateTimetableResponse{
		ProposalID: proposal.ProposalID,
		Timetable:  timetable,
		TimeSlots:  slots,
		Stats:      stats,
	}, nil
}

// runGenerator schedules every class-section in input order against the
// shared ledger. Any panic from malformed input that slipped past
// validation surfaces as the generic generation error, never a crash.
func (s *TimetableService) runGenerator(
	classes []models.ClassSection,
	teachers []models.Teacher,
	days []string,
	periodsPerDay int,
	seed int64,
) (timetable models.Timetable, stats dto.GenerationStats, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("generator panicked", zap.Any("cause", r))
			timetable = nil
			err = appErrors.Clone(appErrors.ErrGenerationFailed, "")
		}
	}()

	rng := rand.New(rand.NewSource(seed))
	ledger := newTeacherLedger(teachers, days, periodsPerDay)
	scheduler := newSectionScheduler(teachers, days, periodsPerDay, s.genCfg, rng, s.logger)

	timetable = make(models.Timetable, len(classes))
	for _, class := range classes {
		sections := class.Sections
		if len(sections) == 0 {
			sections = []string{"A"}
		}
		timetable[class.ClassName] = make(map[string]models.SectionGrid, len(sections))
		for _, section := range sections {
			grid, attempts, schedErr := scheduler.Schedule(class.ClassName, section, class.Subjects, ledger)
			stats.TotalAttempts += attempts
			stats.Sections = append(stats.Sections, dto.SectionStats{
				Class:    class.ClassName,
				Section:  section,
				Attempts: attempts,
			})
			if schedErr != nil {
				return nil, stats, schedErr
			}
			timetable[class.ClassName][section] = grid
		}
	}
	return timetable, stats, nil
}

// Save persists a generated proposal under an academic year.
func (s *TimetableService) Save(ctx context.Context, req dto.SaveTimetableRequest) (string, error) {
	if err := s.validator.Struct(req); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid save timetable payload")
	}
	proposal, ok := s.store.Get(req.ProposalID)
	if !ok {
		return "", appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	if s.repo == nil {
		return "", appErrors.Clone(appErrors.ErrInternal, "timetable repository unavailable")
	}

	classesJSON, err := json.Marshal(proposal.Classes)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode class list")
	}
	payloadJSON, err := json.Marshal(proposal.Timetable)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode timetable payload")
	}
	slotsJSON, err := json.Marshal(proposal.TimeSlots)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode time slots")
	}

	record := &models.SavedTimetable{
		ID:           uuid.NewString(),
		AcademicYear: req.AcademicYear,
		Classes:      types.JSONText(classesJSON),
		Payload:      types.JSONText(payloadJSON),
		TimeSlots:    types.JSONText(slotsJSON),
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist timetable")
	}

	s.store.Delete(req.ProposalID)
	s.invalidateListCache(ctx)
	return record.ID, nil
}

// List returns saved timetables for the query, consulting the read
// cache first. Save and Delete invalidate every cached page.
func (s *TimetableService) List(ctx context.Context, query dto.TimetableQuery) ([]models.SavedTimetable, *models.Pagination, error) {
	if s.repo == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrInternal, "timetable repository unavailable")
	}
	filter := models.TimetableFilter{
		AcademicYear: query.AcademicYear,
		Class:        query.Class,
		Page:         query.Page,
		PageSize:     query.PageSize,
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}

	key := timetableListCacheKey(filter)
	if s.cacheCfg.Enabled && s.cache != nil {
		var cached cachedTimetableList
		start := time.Now()
		err := s.cache.Get(ctx, key, &cached)
		s.metrics.RecordCacheOperation(err == nil, time.Since(start))
		if err == nil {
			return cached.Items, &models.Pagination{Page: page, PageSize: size, TotalCount: cached.Total}, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("timetable list cache read failed", zap.Error(err))
		}
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetables")
	}

	if s.cacheCfg.Enabled && s.cache != nil {
		start := time.Now()
		if err := s.cache.Set(ctx, key, &cachedTimetableList{Items: items, Total: total}, s.cacheCfg.TTL); err != nil {
			s.logger.Warn("timetable list cache write failed", zap.Error(err))
		}
		s.metrics.ObserveCacheWrite(time.Since(start))
	}
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get loads one saved timetable, consulting the read cache first.
func (s *TimetableService) Get(ctx context.Context, id string) (*models.SavedTimetable, error) {
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "timetable id is required")
	}
	if s.repo == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "timetable repository unavailable")
	}

	key := timetableCacheKey(id)
	if s.cacheCfg.Enabled && s.cache != nil {
		var cached models.SavedTimetable
		start := time.Now()
		err := s.cache.Get(ctx, key, &cached)
		s.metrics.RecordCacheOperation(err == nil, time.Since(start))
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("timetable cache read failed", zap.String("id", id), zap.Error(err))
		}
	}

	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}

	if s.cacheCfg.Enabled && s.cache != nil {
		start := time.Now()
		if err := s.cache.Set(ctx, key, record, s.cacheCfg.TTL); err != nil {
			s.logger.Warn("timetable cache write failed", zap.String("id", id), zap.Error(err))
		}
		s.metrics.ObserveCacheWrite(time.Since(start))
	}
	return record, nil
}

// Delete removes a saved timetable and its cache entry.
func (s *TimetableService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return appErrors.Clone(appErrors.ErrValidation, "timetable id is required")
	}
	if s.repo == nil {
		return appErrors.Clone(appErrors.ErrInternal, "timetable repository unavailable")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable")
	}
	if s.cacheCfg.Enabled && s.cache != nil {
		if err := s.cache.Delete(ctx, timetableCacheKey(id)); err != nil {
			s.logger.Warn("timetable cache invalidation failed", zap.String("id", id), zap.Error(err))
		}
	}
	s.invalidateListCache(ctx)
	return nil
}

func (s *TimetableService) invalidateListCache(ctx context.Context) {
	if !s.cacheCfg.Enabled || s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "timetables:list:*"); err != nil {
		s.logger.Warn("timetable list cache invalidation failed", zap.Error(err))
	}
}

// cachedTimetableList is the serialized shape of a cached List page.
type cachedTimetableList struct {
	Items []models.SavedTimetable `json:"items"`
	Total int                     `json:"total"`
}

func timetableCacheKey(id string) string {
	return fmt.Sprintf("timetable:%s", id)
}

func timetableListCacheKey(filter models.TimetableFilter) string {
	return fmt.Sprintf("timetables:list:%s:%s:%d:%d", filter.AcademicYear, filter.Class, filter.Page, filter.PageSize)
}

// --- DTO mapping helpers ---

func mapClasses(inputs []dto.ClassInput) []models.ClassSection {
	classes := make([]models.ClassSection, 0, len(inputs))
	for _, input := range inputs {
		sections := input.Sections
		if len(sections) == 0 {
			sections = []string{"A"}
		}
		subjects := make([]models.Subject, 0, len(input.Subjects))
		for _, subject := range input.Subjects {
			subjects = append(subjects, models.Subject{Name: subject.Name, WeeklyPeriods: subject.WeeklyPeriods})
		}
		classes = append(classes, models.ClassSection{
			ClassName: input.ClassName,
			Sections:  sections,
			Subjects:  subjects,
		})
	}
	return classes
}

func mapTeachers(inputs []dto.TeacherInput) []models.Teacher {
	teachers := make([]models.Teacher, 0, len(inputs))
	for _, input := range inputs {
		slots := make([]models.SlotRef, 0, len(input.UnavailableSlots))
		for _, slot := range input.UnavailableSlots {
			slots = append(slots, models.SlotRef{Day: slot.Day, Period: slot.Period})
		}
		teachers = append(teachers, models.Teacher{
			Name:             input.Name,
			Subjects:         input.Subjects,
			MaxPeriodsPerDay: input.MaxPeriodsPerDay,
			UnavailableSlots: slots,
			AvoidLastPeriod:  input.AvoidLastPeriod,
		})
	}
	return teachers
}

func mapTimeSlotOptions(input *dto.TimeSlotOptionsInput) timeSlotOptions {
	if input == nil {
		return timeSlotOptions{}
	}
	return timeSlotOptions{
		StartTime:         input.StartTime,
		PeriodDuration:    input.PeriodDuration,
		BreakDuration:     input.BreakDuration,
		LunchDuration:     input.LunchDuration,
		BreakAfterPeriods: input.BreakAfterPeriods,
		LunchAfterPeriod:  input.LunchAfterPeriod,
	}
}

func uniqueDays(days []string) []string {
	seen := make(map[string]bool, len(days))
	result := make([]string, 0, len(days))
	for _, day := range days {
		if day == "" || seen[day] {
			continue
		}
		seen[day] = true
		result = append(result, day)
	}
	return result
}

func classNames(classes []models.ClassSection) []string {
	names := make([]string, 0, len(classes))
	for _, class := range classes {
		names = append(names, class.ClassName)
	}
	return names
}

// --- Proposal cache ---

type timetableProposal struct {
	ProposalID  string
	Classes     []string
	Timetable   models.Timetable
	TimeSlots   []models.TimeSlot
	Stats       dto.GenerationStats
	RequestedAt time.Time
}

type proposalStore struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]timetableProposal
}

func newProposalStore(ttl time.Duration) *proposalStore {
	return &proposalStore{
		ttl:   ttl,
		items: make(map[string]timetableProposal),
	}
}

func (s *proposalStore) Save(proposal timetableProposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[proposal.ProposalID] = proposal
}

func (s *proposalStore) Get(id string) (timetableProposal, bool) {
	s.mu.RLock()
	proposal, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return timetableProposal{}, false
	}
	if time.Since(proposal.RequestedAt) > s.ttl {
		s.Delete(id)
		return timetableProposal{}, false
	}
	return proposal, true
}

func (s *proposalStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}
