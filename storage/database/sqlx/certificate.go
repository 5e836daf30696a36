package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/tuutta/core/certificate"
)

const certificateColumns = `id, number, org_id, user_id, course_id, enrollment_id, issued_at`

type certificateRow struct {
	ID           string    `db:"id"`
	Number       string    `db:"number"`
	OrgID        string    `db:"org_id"`
	UserID       string    `db:"user_id"`
	CourseID     string    `db:"course_id"`
	EnrollmentID string    `db:"enrollment_id"`
	IssuedAt     time.Time `db:"issued_at"`
}

func (r certificateRow) toCertificate() certificate.Certificate {
	return certificate.Certificate{
		ID:           r.ID,
		Number:       r.Number,
		OrgID:        r.OrgID,
		UserID:       r.UserID,
		CourseID:     r.CourseID,
		EnrollmentID: r.EnrollmentID,
		IssuedAt:     r.IssuedAt.UTC(),
	}
}

type certificateRepository struct {
	db *sqlx.DB
}

var _ certificate.Repository = (*certificateRepository)(nil) // interface compliance check

func NewCertificateRepository(db *sqlx.DB) certificate.Repository {
	return &certificateRepository{db: db}
}

func (repo *certificateRepository) CreateCertificate(ctx context.Context, c certificate.Certificate) error {
	ex := executor(ctx, repo.db)
	q := ex.Rebind(`INSERT INTO certificates (` + certificateColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err := ex.ExecContext(ctx, q, c.ID, c.Number, c.OrgID, c.UserID, c.CourseID, c.EnrollmentID, c.IssuedAt.UTC())
	return mapError(err)
}

func (repo *certificateRepository) get(ctx context.Context, where string, arg string) (certificate.Certificate, error) {
	ex := executor(ctx, repo.db)
	var row certificateRow
	err := sqlx.GetContext(ctx, ex, &row, ex.Rebind(`SELECT `+certificateColumns+` FROM certificates WHERE `+where), arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return certificate.Certificate{}, certificate.ErrNotFound
		}
		return certificate.Certificate{}, errors.Wrap(err, "selecting certificate")
	}
	return row.toCertificate(), nil
}

func (repo *certificateRepository) GetCertificate(ctx context.Context, id string) (certificate.Certificate, error) {
	return repo.get(ctx, "id = ?", id)
}

func (repo *certificateRepository) GetByEnrollment(ctx context.Context, enrollmentID string) (certificate.Certificate, error) {
	return repo.get(ctx, "enrollment_id = ?", enrollmentID)
}
