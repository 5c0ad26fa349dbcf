package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// TimetableRepository persists accepted timetable proposals.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository creates a new timetable repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

// Create inserts a saved timetable with its JSONB payloads.
func (r *TimetableRepository) Create(ctx context.Context, timetable *models.SavedTimetable) error {
	const query = `
		INSERT INTO timetables (id, academic_year, classes, payload, time_slots, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at`
	if err := r.db.QueryRowxContext(ctx, query,
		timetable.ID,
		timetable.AcademicYear,
		timetable.Classes,
		timetable.Payload,
		timetable.TimeSlots,
	).Scan(&timetable.CreatedAt); err != nil {
		return fmt.Errorf("create timetable: %w", err)
	}
	return nil
}

// List returns saved timetables with optional filtering and pagination.
func (r *TimetableRepository) List(ctx context.Context, filter models.TimetableFilter) ([]models.SavedTimetable, int, error) {
	base := "FROM timetables WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.AcademicYear != "" {
		conditions = append(conditions, fmt.Sprintf("academic_year = $%d", len(args)+1))
		args = append(args, filter.AcademicYear)
	}
	if filter.Class != "" {
		conditions = append(conditions, fmt.Sprintf("classes @> $%d", len(args)+1))
		args = append(args, fmt.Sprintf(`["%s"]`, filter.Class))
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT id, academic_year, classes, payload, time_slots, created_at %s ORDER BY created_at DESC LIMIT %d OFFSET %d", base, size, offset)
	var timetables []models.SavedTimetable
	if err := r.db.SelectContext(ctx, &timetables, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list timetables: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count timetables: %w", err)
	}

	return timetables, total, nil
}

// FindByID loads a saved timetable by id.
func (r *TimetableRepository) FindByID(ctx context.Context, id string) (*models.SavedTimetable, error) {
	const query = `SELECT id, academic_year, classes, payload, time_slots, created_at FROM timetables WHERE id = $1`
	var timetable models.SavedTimetable
	if err := r.db.GetContext(ctx, &timetable, query, id); err != nil {
		return nil, err
	}
	return &timetable, nil
}

// Delete removes a saved timetable.
func (r *TimetableRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM timetables WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete timetable: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete timetable rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
