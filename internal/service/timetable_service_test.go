package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

func int64Ptr(v int64) *int64 { return &v }

func baseGenerateRequest() dto.GenerateTimetableRequest {
	return dto.GenerateTimetableRequest{
		Classes: []dto.ClassInput{
			{
				ClassName: "10",
				Sections:  []string{"A"},
				Subjects: []dto.SubjectInput{
					{Name: "Math", WeeklyPeriods: 5},
					{Name: "Science", WeeklyPeriods: 5},
				},
			},
		},
		Teachers: []dto.TeacherInput{
			{Name: "Ibu Sari", Subjects: []string{"Math"}},
			{Name: "Pak Budi", Subjects: []string{"Science"}},
		},
		Days:          []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"},
		PeriodsPerDay: 6,
		Seed:          int64Ptr(42),
	}
}

func newTimetableServiceFixture(repo timetableRepository, cache timetableCache, cacheCfg config.CacheConfig) *TimetableService {
	return NewTimetableService(repo, cache, nil, validator.New(), zap.NewNop(), config.GeneratorConfig{ProposalTTL: time.Hour}, cacheCfg)
}

func TestTimetableServiceGenerateSuccess(t *testing.T) {
	service := newTimetableServiceFixture(&timetableRepoStub{}, nil, config.CacheConfig{})

	resp, err := service.Generate(context.Background(), baseGenerateRequest())
	require.NoError(t, err)
	require.NotEmpty(t, resp.ProposalID)

	grid, ok := resp.Timetable["10"]["A"]
	require.True(t, ok)

	placed := 0
	for _, day := range []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"} {
		require.Len(t, grid[day], 6)
		for _, slot := range grid[day] {
			if !slot.Empty() {
				placed++
			}
		}
	}
	assert.Equal(t, 10, placed)
	assert.Len(t, resp.TimeSlots, 6)
	assert.GreaterOrEqual(t, resp.Stats.TotalAttempts, 1)
	require.Len(t, resp.Stats.Sections, 1)
	assert.Equal(t, "10", resp.Stats.Sections[0].Class)
}

func TestTimetableServiceGenerateDeterministicForSeed(t *testing.T) {
	service := newTimetableServiceFixture(&timetableRepoStub{}, nil, config.CacheConfig{})

	first, err := service.Generate(context.Background(), baseGenerateRequest())
	require.NoError(t, err)
	second, err := service.Generate(context.Background(), baseGenerateRequest())
	require.NoError(t, err)

	assert.Equal(t, first.Timetable, second.Timetable)
	assert.NotEqual(t, first.ProposalID, second.ProposalID)
}

func TestTimetableServiceGenerateRejectsImpossibleDemand(t *testing.T) {
	service := newTimetableServiceFixture(&timetableRepoStub{}, nil, config.CacheConfig{})

	req := baseGenerateRequest()
	req.PeriodsPerDay = 1
	req.Days = []string{"Monday"}

	_, err := service.Generate(context.Background(), req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestTimetableServiceGenerateRejectsUnknownSubject(t *testing.T) {
	service := newTimetableServiceFixture(&timetableRepoStub{}, nil, config.CacheConfig{})

	req := baseGenerateRequest()
	req.Teachers = []dto.TeacherInput{{Name: "Ibu Sari", Subjects: []string{"Math"}}}

	_, err := service.Generate(context.Background(), req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "Science")
}

func TestTimetableServiceSaveLifecycle(t *testing.T) {
	repo := &timetableRepoStub{}
	service := newTimetableServiceFixture(repo, nil, config.CacheConfig{})

	resp, err := service.Generate(context.Background(), baseGenerateRequest())
	require.NoError(t, err)

	id, err := service.Save(context.Background(), dto.SaveTimetableRequest{
		ProposalID:   resp.ProposalID,
		AcademicYear: "2026/2027",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.Len(t, repo.items, 1)
	assert.Equal(t, "2026/2027", repo.items[0].AcademicYear)

	// Saving consumes the proposal.
	_, err = service.Save(context.Background(), dto.SaveTimetableRequest{
		ProposalID:   resp.ProposalID,
		AcademicYear: "2026/2027",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceSaveUnknownProposal(t *testing.T) {
	service := newTimetableServiceFixture(&timetableRepoStub{}, nil, config.CacheConfig{})

	_, err := service.Save(context.Background(), dto.SaveTimetableRequest{
		ProposalID:   "missing",
		AcademicYear: "2026/2027",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceGetUsesCache(t *testing.T) {
	repo := &timetableRepoStub{
		items: []models.SavedTimetable{{ID: "tt-1", AcademicYear: "2026/2027"}},
	}
	cache := newTimetableCacheStub()
	service := newTimetableServiceFixture(repo, cache, config.CacheConfig{Enabled: true, TTL: time.Minute})

	first, err := service.Get(context.Background(), "tt-1")
	require.NoError(t, err)
	assert.Equal(t, "tt-1", first.ID)
	assert.Equal(t, 1, repo.findCalls)

	second, err := service.Get(context.Background(), "tt-1")
	require.NoError(t, err)
	assert.Equal(t, "tt-1", second.ID)
	assert.Equal(t, 1, repo.findCalls, "second read must be served from cache")
}

func TestTimetableServiceGetNotFound(t *testing.T) {
	service := newTimetableServiceFixture(&timetableRepoStub{}, nil, config.CacheConfig{})

	_, err := service.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceDeleteInvalidatesCache(t *testing.T) {
	repo := &timetableRepoStub{
		items: []models.SavedTimetable{{ID: "tt-1"}},
	}
	cache := newTimetableCacheStub()
	require.NoError(t, cache.Set(context.Background(), "timetable:tt-1", &models.SavedTimetable{ID: "tt-1"}, time.Minute))
	service := newTimetableServiceFixture(repo, cache, config.CacheConfig{Enabled: true, TTL: time.Minute})

	// Prime a list page so the pattern invalidation has work to do.
	_, _, err := service.List(context.Background(), dto.TimetableQuery{})
	require.NoError(t, err)

	require.NoError(t, service.Delete(context.Background(), "tt-1"))
	assert.Empty(t, repo.items)
	assert.NotContains(t, cache.values, "timetable:tt-1")
	assert.Empty(t, cache.values, "cached list pages must be dropped too")

	err = service.Delete(context.Background(), "tt-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceGenerateAcceptsEndTimeOption(t *testing.T) {
	service := newTimetableServiceFixture(&timetableRepoStub{}, nil, config.CacheConfig{})

	req := baseGenerateRequest()
	req.Options = &dto.TimeSlotOptionsInput{StartTime: "07:30", PeriodDuration: 40, EndTime: "15:00"}

	resp, err := service.Generate(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, resp.TimeSlots, 6)
	assert.Equal(t, "07:30", resp.TimeSlots[0].Start)
	assert.Equal(t, "11:30", resp.TimeSlots[5].End, "template length follows periodsPerDay and durations, not endTime")
}

func TestTimetableServiceListUsesCache(t *testing.T) {
	repo := &timetableRepoStub{items: []models.SavedTimetable{{ID: "tt-1"}}}
	cache := newTimetableCacheStub()
	service := newTimetableServiceFixture(repo, cache, config.CacheConfig{Enabled: true, TTL: time.Minute})

	first, _, err := service.List(context.Background(), dto.TimetableQuery{})
	require.NoError(t, err)
	assert.Len(t, first, 1)
	assert.Equal(t, 1, repo.listCalls)

	second, pagination, err := service.List(context.Background(), dto.TimetableQuery{})
	require.NoError(t, err)
	assert.Len(t, second, 1)
	require.NotNil(t, pagination)
	assert.Equal(t, 1, pagination.TotalCount)
	assert.Equal(t, 1, repo.listCalls, "second read must be served from cache")
}

func TestTimetableServiceSaveInvalidatesListCache(t *testing.T) {
	repo := &timetableRepoStub{}
	cache := newTimetableCacheStub()
	service := newTimetableServiceFixture(repo, cache, config.CacheConfig{Enabled: true, TTL: time.Minute})

	_, _, err := service.List(context.Background(), dto.TimetableQuery{})
	require.NoError(t, err)
	require.Equal(t, 1, repo.listCalls)

	resp, err := service.Generate(context.Background(), baseGenerateRequest())
	require.NoError(t, err)
	_, err = service.Save(context.Background(), dto.SaveTimetableRequest{
		ProposalID:   resp.ProposalID,
		AcademicYear: "2026/2027",
	})
	require.NoError(t, err)

	items, _, err := service.List(context.Background(), dto.TimetableQuery{})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 2, repo.listCalls, "saving must drop stale list pages")
}

func TestTimetableServiceList(t *testing.T) {
	repo := &timetableRepoStub{
		items: []models.SavedTimetable{{ID: "tt-1"}, {ID: "tt-2"}},
	}
	service := newTimetableServiceFixture(repo, nil, config.CacheConfig{})

	items, pagination, err := service.List(context.Background(), dto.TimetableQuery{})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	require.NotNil(t, pagination)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 2, pagination.TotalCount)
}

// --- Stubs ---

type timetableRepoStub struct {
	items     []models.SavedTimetable
	findCalls int
	listCalls int
}

func (s *timetableRepoStub) Create(ctx context.Context, timetable *models.SavedTimetable) error {
	timetable.CreatedAt = time.Now().UTC()
	s.items = append(s.items, *timetable)
	return nil
}

func (s *timetableRepoStub) List(ctx context.Context, filter models.TimetableFilter) ([]models.SavedTimetable, int, error) {
	s.listCalls++
	return s.items, len(s.items), nil
}

func (s *timetableRepoStub) FindByID(ctx context.Context, id string) (*models.SavedTimetable, error) {
	s.findCalls++
	for _, item := range s.items {
		if item.ID == id {
			found := item
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *timetableRepoStub) Delete(ctx context.Context, id string) error {
	for idx, item := range s.items {
		if item.ID == id {
			s.items = append(s.items[:idx], s.items[idx+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

type timetableCacheStub struct {
	values map[string][]byte
}

func newTimetableCacheStub() *timetableCacheStub {
	return &timetableCacheStub{values: map[string][]byte{}}
}

func (s *timetableCacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := s.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (s *timetableCacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.values[key] = raw
	return nil
}

func (s *timetableCacheStub) Delete(ctx context.Context, key string) error {
	delete(s.values, key)
	return nil
}

func (s *timetableCacheStub) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range s.values {
		if strings.HasPrefix(key, prefix) {
			delete(s.values, key)
		}
	}
	return nil
}
