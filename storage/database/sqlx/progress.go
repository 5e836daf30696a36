package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tuutta/core"
	"github.com/trezcool/tuutta/core/progress"
)

const summaryColumns = `id, enrollment_id, user_id, course_id, completed_lesson_ids, completed_module_ids,
	last_lesson_id, percent_complete, total_time_spent_seconds, version, created_at, updated_at`

type summaryRow struct {
	ID                    string      `db:"id"`
	EnrollmentID          string      `db:"enrollment_id"`
	UserID                string      `db:"user_id"`
	CourseID              string      `db:"course_id"`
	CompletedLessonIDs    string      `db:"completed_lesson_ids"` // json
	CompletedModuleIDs    string      `db:"completed_module_ids"` // json
	LastLessonID          null.String `db:"last_lesson_id"`
	PercentComplete       int         `db:"percent_complete"`
	TotalTimeSpentSeconds int64       `db:"total_time_spent_seconds"`
	Version               int64       `db:"version"`
	CreatedAt             time.Time   `db:"created_at"`
	UpdatedAt             time.Time   `db:"updated_at"`
}

func toSummaryRow(s progress.Summary) (summaryRow, error) {
	lessons, err := marshalJSON(nonNil(s.CompletedLessonIDs))
	if err != nil {
		return summaryRow{}, err
	}
	modules, err := marshalJSON(nonNil(s.CompletedModuleIDs))
	if err != nil {
		return summaryRow{}, err
	}
	return summaryRow{
		ID:                    s.ID,
		EnrollmentID:          s.EnrollmentID,
		UserID:                s.UserID,
		CourseID:              s.CourseID,
		CompletedLessonIDs:    lessons,
		CompletedModuleIDs:    modules,
		LastLessonID:          null.NewString(s.LastLessonID, s.LastLessonID != ""),
		PercentComplete:       s.PercentComplete,
		TotalTimeSpentSeconds: s.TotalTimeSpentSeconds,
		Version:               s.Version,
		CreatedAt:             s.CreatedAt.UTC(),
		UpdatedAt:             s.UpdatedAt.UTC(),
	}, nil
}

func (r summaryRow) toSummary() (progress.Summary, error) {
	s := progress.Summary{
		ID:                    r.ID,
		EnrollmentID:          r.EnrollmentID,
		UserID:                r.UserID,
		CourseID:              r.CourseID,
		CompletedLessonIDs:    []string{},
		CompletedModuleIDs:    []string{},
		LastLessonID:          r.LastLessonID.String,
		PercentComplete:       r.PercentComplete,
		TotalTimeSpentSeconds: r.TotalTimeSpentSeconds,
		Version:               r.Version,
		CreatedAt:             r.CreatedAt.UTC(),
		UpdatedAt:             r.UpdatedAt.UTC(),
	}
	if err := unmarshalJSON(r.CompletedLessonIDs, &s.CompletedLessonIDs); err != nil {
		return progress.Summary{}, err
	}
	if err := unmarshalJSON(r.CompletedModuleIDs, &s.CompletedModuleIDs); err != nil {
		return progress.Summary{}, err
	}
	return s, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

type eventRow struct {
	ID           string      `db:"id"`
	UserID       string      `db:"user_id"`
	CourseID     string      `db:"course_id"`
	EnrollmentID string      `db:"enrollment_id"`
	Type         string      `db:"type"`
	LessonID     null.String `db:"lesson_id"`
	ModuleID     null.String `db:"module_id"`
	CreatedAt    time.Time   `db:"created_at"`
}

type progressRepository struct {
	db *sqlx.DB
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *sqlx.DB) progress.Repository {
	return &progressRepository{db: db}
}

func (repo *progressRepository) CreateSummary(ctx context.Context, s progress.Summary) error {
	s.Version = 1
	row, err := toSummaryRow(s)
	if err != nil {
		return err
	}
	ex := executor(ctx, repo.db)
	q := ex.Rebind(`INSERT INTO progress_summaries (` + summaryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = ex.ExecContext(ctx, q, row.ID, row.EnrollmentID, row.UserID, row.CourseID, row.CompletedLessonIDs,
		row.CompletedModuleIDs, row.LastLessonID, row.PercentComplete, row.TotalTimeSpentSeconds, row.Version,
		row.CreatedAt, row.UpdatedAt)
	return mapError(err)
}

func (repo *progressRepository) GetSummary(ctx context.Context, id string) (progress.Summary, error) {
	ex := executor(ctx, repo.db)
	var row summaryRow
	err := sqlx.GetContext(ctx, ex, &row, ex.Rebind(`SELECT `+summaryColumns+` FROM progress_summaries WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return progress.Summary{}, progress.ErrNotFound
		}
		return progress.Summary{}, errors.Wrap(err, "selecting progress summary")
	}
	return row.toSummary()
}

func (repo *progressRepository) UpdateSummary(ctx context.Context, s progress.Summary) (progress.Summary, error) {
	row, err := toSummaryRow(s)
	if err != nil {
		return progress.Summary{}, err
	}
	ex := executor(ctx, repo.db)
	q := ex.Rebind(`UPDATE progress_summaries SET completed_lesson_ids = ?, completed_module_ids = ?,
		last_lesson_id = ?, percent_complete = ?, total_time_spent_seconds = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`)
	res, err := ex.ExecContext(ctx, q, row.CompletedLessonIDs, row.CompletedModuleIDs, row.LastLessonID,
		row.PercentComplete, row.TotalTimeSpentSeconds, row.UpdatedAt, row.ID, row.Version)
	if err != nil {
		return progress.Summary{}, errors.Wrap(mapError(err), "updating progress summary")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return progress.Summary{}, errors.Wrap(err, "updating progress summary")
	}
	if n == 0 {
		// either gone or changed since it was read
		if _, err = repo.GetSummary(ctx, s.ID); err != nil {
			return progress.Summary{}, err
		}
		return progress.Summary{}, core.ErrConflict
	}
	s.Version++
	return s, nil
}

func (repo *progressRepository) AddEvent(ctx context.Context, ev progress.Event) error {
	ex := executor(ctx, repo.db)
	q := ex.Rebind(`INSERT INTO progress_events (id, user_id, course_id, enrollment_id, type, lesson_id, module_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := ex.ExecContext(ctx, q, ev.ID, ev.UserID, ev.CourseID, ev.EnrollmentID, string(ev.Type),
		null.NewString(ev.LessonID, ev.LessonID != ""), null.NewString(ev.ModuleID, ev.ModuleID != ""), ev.CreatedAt.UTC())
	return errors.Wrap(mapError(err), "inserting progress event")
}

func (repo *progressRepository) QueryEvents(ctx context.Context, userID, courseID string) ([]progress.Event, error) {
	ex := executor(ctx, repo.db)
	var rows []eventRow
	q := ex.Rebind(`SELECT id, user_id, course_id, enrollment_id, type, lesson_id, module_id, created_at
		FROM progress_events WHERE user_id = ? AND course_id = ? ORDER BY created_at ASC, id ASC`)
	if err := sqlx.SelectContext(ctx, ex, &rows, q, userID, courseID); err != nil {
		return nil, errors.Wrap(err, "selecting progress events")
	}
	evs := make([]progress.Event, 0, len(rows))
	for _, r := range rows {
		evs = append(evs, progress.Event{
			ID:           r.ID,
			UserID:       r.UserID,
			CourseID:     r.CourseID,
			EnrollmentID: r.EnrollmentID,
			Type:         progress.EventType(r.Type),
			LessonID:     r.LessonID.String,
			ModuleID:     r.ModuleID.String,
			CreatedAt:    r.CreatedAt.UTC(),
		})
	}
	return evs, nil
}
