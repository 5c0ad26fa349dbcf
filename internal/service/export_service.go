package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
	"github.com/noah-isme/sma-timetable-api/pkg/storage"
)

type exportTimetableReader interface {
	FindByID(ctx context.Context, id string) (*models.SavedTimetable, error)
}

// ExportServiceConfig tunes the export worker pool and the retention
// sweep for rendered files.
type ExportServiceConfig struct {
	WorkerConcurrency int
	WorkerRetries     int
	CleanupInterval   time.Duration
	FileTTL           time.Duration
}

// ExportService renders saved timetables to PDF/CSV asynchronously and
// hands out signed download links once the file is on disk.
type ExportService struct {
	repo      exportTimetableReader
	storage   *storage.LocalStorage
	signer    *storage.SignedURLSigner
	validator *validator.Validate
	logger    *zap.Logger
	pdf       *export.PDFExporter
	csv       *export.CSVExporter

	queue           *jobs.Queue
	cleanupInterval time.Duration
	fileTTL         time.Duration
	stopCleanup     chan struct{}

	mu      sync.RWMutex
	jobsMap map[string]*models.ExportJob
}

// NewExportService wires the export pipeline. Call Start before
// enqueueing and Stop on shutdown.
func NewExportService(
	repo exportTimetableReader,
	store *storage.LocalStorage,
	signer *storage.SignedURLSigner,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg ExportServiceConfig,
) *ExportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FileTTL <= 0 {
		cfg.FileTTL = 24 * time.Hour
	}
	s := &ExportService{
		repo:            repo,
		storage:         store,
		signer:          signer,
		validator:       validate,
		logger:          logger,
		pdf:             export.NewPDFExporter(),
		csv:             export.NewCSVExporter(),
		cleanupInterval: cfg.CleanupInterval,
		fileTTL:         cfg.FileTTL,
		jobsMap:         make(map[string]*models.ExportJob),
	}
	s.queue = jobs.NewQueue("timetable-exports", s.handleJob, jobs.QueueConfig{
		Workers:    cfg.WorkerConcurrency,
		MaxRetries: cfg.WorkerRetries,
		Logger:     logger,
	})
	return s
}

// Start launches the export workers and, when an interval is
// configured, the retention sweep for rendered files.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
	if s.cleanupInterval > 0 {
		s.stopCleanup = make(chan struct{})
		go s.cleanupLoop(s.stopCleanup)
	}
}

// Stop halts the retention sweep and drains the export workers.
func (s *ExportService) Stop() {
	if s.stopCleanup != nil {
		close(s.stopCleanup)
		s.stopCleanup = nil
	}
	s.queue.Stop()
}

func (s *ExportService) cleanupLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.cleanupExpired()
		}
	}
}

// cleanupExpired deletes rendered files past their TTL and forgets the
// jobs that pointed at them, so Status stops advertising dead links.
func (s *ExportService) cleanupExpired() {
	deleted, err := s.storage.CleanupOlderThan(s.fileTTL)
	if err != nil {
		s.logger.Warn("export cleanup failed", zap.Error(err))
		return
	}
	if len(deleted) == 0 {
		return
	}

	removed := make(map[string]bool, len(deleted))
	for _, rel := range deleted {
		removed[rel] = true
	}
	s.mu.Lock()
	for id, job := range s.jobsMap {
		if removed[job.FilePath] {
			delete(s.jobsMap, id)
		}
	}
	s.mu.Unlock()

	s.logger.Info("expired exports removed", zap.Int("files", len(deleted)))
}

// RequestExport validates the request and enqueues a render job.
func (s *ExportService) RequestExport(ctx context.Context, req dto.ExportTimetableRequest) (*dto.ExportJobResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}

	record, err := s.repo.FindByID(ctx, req.TimetableID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}

	var timetable models.Timetable
	if err := json.Unmarshal(record.Payload, &timetable); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode timetable payload")
	}
	if _, ok := timetable[req.Class][req.Section]; !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("class %q section %q not present in timetable", req.Class, req.Section))
	}

	job := &models.ExportJob{
		ID:          uuid.NewString(),
		TimetableID: req.TimetableID,
		Class:       req.Class,
		Section:     req.Section,
		Format:      req.Format,
		Status:      models.ExportJobPending,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	s.mu.Lock()
	s.jobsMap[job.ID] = job
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: req.Format, Payload: req}); err != nil {
		s.markFailed(job.ID, err)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}

	return &dto.ExportJobResponse{JobID: job.ID, Status: string(models.ExportJobPending)}, nil
}

// Status reports job progress and, when ready, a signed download link.
func (s *ExportService) Status(jobID string) (*dto.ExportDownloadResponse, error) {
	s.mu.RLock()
	job, ok := s.jobsMap[jobID]
	s.mu.RUnlock()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}

	resp := &dto.ExportDownloadResponse{JobID: job.ID, Status: string(job.Status)}
	if job.Status != models.ExportJobReady {
		return resp, nil
	}

	token, expiresAt, err := s.signer.Generate(job.ID, job.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}
	resp.URL = fmt.Sprintf("/exports/download?token=%s", token)
	resp.ExpiresAt = expiresAt.UTC().Format(time.RFC3339)
	return resp, nil
}

// Open validates a signed token and returns the exported file handle.
func (s *ExportService) Open(token string) (*os.File, string, error) {
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export file not found")
	}
	return file, jobID, nil
}

// handleJob renders one export and persists the file.
func (s *ExportService) handleJob(ctx context.Context, job jobs.Job) error {
	req, ok := job.Payload.(dto.ExportTimetableRequest)
	if !ok {
		s.markFailed(job.ID, fmt.Errorf("unexpected payload type %T", job.Payload))
		return nil
	}

	record, err := s.repo.FindByID(ctx, req.TimetableID)
	if err != nil {
		s.markFailed(job.ID, err)
		return err
	}

	var timetable models.Timetable
	if err := json.Unmarshal(record.Payload, &timetable); err != nil {
		s.markFailed(job.ID, err)
		return nil
	}
	var slots []models.TimeSlot
	if err := json.Unmarshal(record.TimeSlots, &slots); err != nil {
		s.markFailed(job.ID, err)
		return nil
	}

	sectionGrid, ok := timetable[req.Class][req.Section]
	if !ok {
		s.markFailed(job.ID, fmt.Errorf("class %q section %q missing", req.Class, req.Section))
		return nil
	}

	grid := buildExportGrid(req.Class, req.Section, sectionGrid, slots)

	var payload []byte
	switch req.Format {
	case "pdf":
		payload, err = s.pdf.Render(grid)
	default:
		payload, err = s.csv.Render(grid)
	}
	if err != nil {
		s.markFailed(job.ID, err)
		return err
	}

	filename := fmt.Sprintf("timetables/%s-%s-%s.%s", req.TimetableID, req.Class, req.Section, req.Format)
	if _, err := s.storage.Save(filename, payload); err != nil {
		s.markFailed(job.ID, err)
		return err
	}

	s.mu.Lock()
	if tracked, ok := s.jobsMap[job.ID]; ok {
		tracked.Status = models.ExportJobReady
		tracked.FilePath = filename
		tracked.UpdatedAt = time.Now().UTC()
	}
	s.mu.Unlock()

	s.logger.Info("timetable export ready",
		zap.String("job_id", job.ID),
		zap.String("timetable_id", req.TimetableID),
		zap.String("format", req.Format),
	)
	return nil
}

func (s *ExportService) markFailed(jobID string, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobsMap[jobID]; ok {
		job.Status = models.ExportJobFailed
		job.Error = cause.Error()
		job.UpdatedAt = time.Now().UTC()
	}
}

// buildExportGrid flattens one section's schedule into a renderable grid.
// Days follow the usual week order when recognised, otherwise input order
// as sorted names.
func buildExportGrid(class, section string, grid models.SectionGrid, slots []models.TimeSlot) export.TimetableGrid {
	days := make([]string, 0, len(grid))
	for day := range grid {
		days = append(days, day)
	}
	sort.SliceStable(days, func(i, j int) bool {
		ri, iOK := weekdayRank[days[i]]
		rj, jOK := weekdayRank[days[j]]
		if iOK && jOK {
			return ri < rj
		}
		if iOK != jOK {
			return iOK
		}
		return days[i] < days[j]
	})

	var periods []string
	index := 0
	for _, slot := range slots {
		if slot.Kind != models.TimeSlotPeriod {
			continue
		}
		index++
		periods = append(periods, fmt.Sprintf("%d (%s-%s)", index, slot.Start, slot.End))
	}

	rows := make(map[string][]string, len(days))
	for _, day := range days {
		cells := make([]string, 0, len(grid[day]))
		for _, slot := range grid[day] {
			if slot.Empty() {
				cells = append(cells, "-")
				continue
			}
			cells = append(cells, fmt.Sprintf("%s / %s", slot.Subject, slot.Teacher))
		}
		if len(periods) == 0 {
			for i := range cells {
				periods = append(periods, fmt.Sprintf("%d", i+1))
			}
		}
		rows[day] = cells
	}

	return export.TimetableGrid{
		Title:   fmt.Sprintf("%s %s weekly timetable", class, section),
		Days:    days,
		Periods: periods,
		Rows:    rows,
	}
}

var weekdayRank = map[string]int{
	"Monday":    1,
	"Tuesday":   2,
	"Wednesday": 3,
	"Thursday":  4,
	"Friday":    5,
	"Saturday":  6,
	"Sunday":    7,
}
