package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tuutta/core"
	"github.com/trezcool/tuutta/core/enrollment"
)

const enrollmentColumns = `id, org_id, user_id, course_id, enrolled_by, status, enrolled_at, completed_at,
	due_date, certificate_id, withdraw_reason, updated_at`

// enrollment ordering fields (allowlist)
var enrollmentOrderFields = map[string]string{
	"enrolled_at": "enrolled_at",
	"due_date":    "due_date",
	"updated_at":  "updated_at",
	"status":      "status",
	"id":          "id",
}

type enrollmentRow struct {
	ID             string      `db:"id"`
	OrgID          string      `db:"org_id"`
	UserID         string      `db:"user_id"`
	CourseID       string      `db:"course_id"`
	EnrolledBy     string      `db:"enrolled_by"`
	Status         string      `db:"status"`
	EnrolledAt     time.Time   `db:"enrolled_at"`
	CompletedAt    null.Time   `db:"completed_at"`
	DueDate        null.Time   `db:"due_date"`
	CertificateID  null.String `db:"certificate_id"`
	WithdrawReason null.String `db:"withdraw_reason"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

func toEnrollmentRow(e enrollment.Enrollment) enrollmentRow {
	return enrollmentRow{
		ID:             e.ID,
		OrgID:          e.OrgID,
		UserID:         e.UserID,
		CourseID:       e.CourseID,
		EnrolledBy:     e.EnrolledBy,
		Status:         string(e.Status),
		EnrolledAt:     e.EnrolledAt.UTC(),
		CompletedAt:    null.TimeFromPtr(e.CompletedAt),
		DueDate:        null.TimeFromPtr(e.DueDate),
		CertificateID:  null.NewString(e.CertificateID, e.CertificateID != ""),
		WithdrawReason: null.NewString(e.WithdrawReason, e.WithdrawReason != ""),
		UpdatedAt:      e.UpdatedAt.UTC(),
	}
}

func (r enrollmentRow) toEnrollment() enrollment.Enrollment {
	return enrollment.Enrollment{
		ID:             r.ID,
		OrgID:          r.OrgID,
		UserID:         r.UserID,
		CourseID:       r.CourseID,
		EnrolledBy:     r.EnrolledBy,
		Status:         enrollment.Status(r.Status),
		EnrolledAt:     r.EnrolledAt.UTC(),
		CompletedAt:    utcPtr(r.CompletedAt),
		DueDate:        utcPtr(r.DueDate),
		CertificateID:  r.CertificateID.String,
		WithdrawReason: r.WithdrawReason.String,
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

func utcPtr(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	u := t.Time.UTC()
	return &u
}

type enrollmentRepository struct {
	db *sqlx.DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *sqlx.DB) enrollment.Repository {
	return &enrollmentRepository{db: db}
}

func (repo *enrollmentRepository) CreateEnrollment(ctx context.Context, e enrollment.Enrollment) error {
	ex := executor(ctx, repo.db)
	q := ex.Rebind(`INSERT INTO enrollments (` + enrollmentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	row := toEnrollmentRow(e)
	_, err := ex.ExecContext(ctx, q, row.ID, row.OrgID, row.UserID, row.CourseID, row.EnrolledBy, row.Status,
		row.EnrolledAt, row.CompletedAt, row.DueDate, row.CertificateID, row.WithdrawReason, row.UpdatedAt)
	return mapError(err)
}

func (repo *enrollmentRepository) GetEnrollment(ctx context.Context, id string) (enrollment.Enrollment, error) {
	ex := executor(ctx, repo.db)
	var row enrollmentRow
	err := sqlx.GetContext(ctx, ex, &row, ex.Rebind(`SELECT `+enrollmentColumns+` FROM enrollments WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return enrollment.Enrollment{}, enrollment.ErrNotFound
		}
		return enrollment.Enrollment{}, errors.Wrap(err, "selecting enrollment")
	}
	return row.toEnrollment(), nil
}

func (repo *enrollmentRepository) QueryEnrollments(ctx context.Context, filter *enrollment.QueryFilter, ordering []core.DBOrdering) ([]enrollment.Enrollment, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter != nil {
		if filter.OrgID != "" {
			where = append(where, "org_id = ?")
			args = append(args, filter.OrgID)
		}
		if filter.UserID != "" {
			where = append(where, "user_id = ?")
			args = append(args, filter.UserID)
		}
		if filter.CourseID != "" {
			where = append(where, "course_id = ?")
			args = append(args, filter.CourseID)
		}
		if len(filter.Statuses) > 0 {
			where = append(where, "status IN "+inClause(len(filter.Statuses)))
			for _, st := range filter.Statuses {
				args = append(args, string(st))
			}
		}
		if !filter.DueBefore.IsZero() {
			where = append(where, "due_date IS NOT NULL AND due_date < ?")
			args = append(args, filter.DueBefore.UTC())
		}
	}

	q := `SELECT ` + enrollmentColumns + ` FROM enrollments`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY " + orderBy(ordering, enrollmentOrderFields, "enrolled_at ASC, id ASC")

	ex := executor(ctx, repo.db)
	var rows []enrollmentRow
	if err := sqlx.SelectContext(ctx, ex, &rows, ex.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "selecting enrollments")
	}
	enrs := make([]enrollment.Enrollment, 0, len(rows))
	for _, row := range rows {
		enrs = append(enrs, row.toEnrollment())
	}
	return enrs, nil
}

func (repo *enrollmentRepository) UpdateEnrollment(ctx context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	ex := executor(ctx, repo.db)
	row := toEnrollmentRow(e)
	q := ex.Rebind(`UPDATE enrollments SET enrolled_by = ?, status = ?, completed_at = ?, due_date = ?,
		certificate_id = ?, withdraw_reason = ?, updated_at = ? WHERE id = ?`)
	res, err := ex.ExecContext(ctx, q, row.EnrolledBy, row.Status, row.CompletedAt, row.DueDate,
		row.CertificateID, row.WithdrawReason, row.UpdatedAt, row.ID)
	if err != nil {
		return enrollment.Enrollment{}, errors.Wrap(mapError(err), "updating enrollment")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	return row.toEnrollment(), nil
}

// orderBy builds an ORDER BY clause from allowed fields only.
func orderBy(ordering []core.DBOrdering, allowed map[string]string, fallback string) string {
	var parts []string
	for _, ord := range ordering {
		if col, ok := allowed[ord.Field]; ok {
			parts = append(parts, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
		}
	}
	if len(parts) == 0 {
		return fallback
	}
	return strings.Join(parts, ", ")
}
