package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

const (
	maxClasses        = 64
	maxImportFileSize = 1 << 20
)

type timetableGenerator interface {
	Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error)
	Save(ctx context.Context, req dto.SaveTimetableRequest) (string, error)
	List(ctx context.Context, query dto.TimetableQuery) ([]models.SavedTimetable, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.SavedTimetable, error)
	Delete(ctx context.Context, id string) error
}

// TimetableHandler exposes the generator and saved-timetable endpoints.
type TimetableHandler struct {
	service  timetableGenerator
	importer *service.ImportService
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(svc *service.TimetableService, importer *service.ImportService) *TimetableHandler {
	return &TimetableHandler{service: svc, importer: importer}
}

// Generate builds a timetable proposal without persisting it.
func (h *TimetableHandler) Generate(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}
	if len(req.Classes) > maxClasses {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "classes exceeds supported limit"))
		return
	}
	result, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Save persists a previously generated proposal.
func (h *TimetableHandler) Save(c *gin.Context) {
	var req dto.SaveTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid save payload"))
		return
	}
	id, err := h.service.Save(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"timetableId": id})
}

// List returns saved timetables matching the query filters.
func (h *TimetableHandler) List(c *gin.Context) {
	query := dto.TimetableQuery{
		AcademicYear: c.Query("academicYear"),
		Class:        c.Query("class"),
	}
	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "page must be a positive integer"))
			return
		}
		query.Page = page
	}
	if raw := c.Query("pageSize"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "pageSize must be a positive integer"))
			return
		}
		query.PageSize = size
	}
	result, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, pagination)
}

// Get returns one saved timetable by ID.
func (h *TimetableHandler) Get(c *gin.Context) {
	result, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Delete removes a saved timetable.
func (h *TimetableHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Import accepts a workload CSV upload and runs the generator on it.
// Days and periodsPerDay arrive as form fields alongside the file.
func (h *TimetableHandler) Import(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "workload csv file is required"))
		return
	}
	if fileHeader.Size > maxImportFileSize {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "workload csv exceeds the 1MB upload limit"))
		return
	}

	days := splitQueryList(c.PostForm("days"))
	if len(days) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "days form field is required"))
		return
	}
	periodsPerDay, err := strconv.Atoi(c.PostForm("periodsPerDay"))
	if err != nil || periodsPerDay < 1 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "periodsPerDay must be a positive integer"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unable to read workload csv"))
		return
	}
	defer file.Close()

	classes, teachers, err := h.importer.ParseWorkload(file)
	if err != nil {
		response.Error(c, err)
		return
	}

	req := dto.GenerateTimetableRequest{
		Classes:       classes,
		Teachers:      teachers,
		Days:          days,
		PeriodsPerDay: periodsPerDay,
	}
	if raw := c.PostForm("seed"); raw != "" {
		seed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "seed must be an integer"))
			return
		}
		req.Seed = &seed
	}

	result, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

func splitQueryList(raw string) []string {
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
