package dummydb

import (
	"context"

	"github.com/trezcool/tuutta/core"
	"github.com/trezcool/tuutta/core/certificate"
)

type certificateRepository struct {
	db *DB
}

var _ certificate.Repository = (*certificateRepository)(nil) // interface compliance check

func NewCertificateRepository(db *DB) certificate.Repository {
	return &certificateRepository{db: db}
}

func (repo *certificateRepository) CreateCertificate(ctx context.Context, c certificate.Certificate) error {
	return repo.db.write(ctx, func() error {
		for _, existing := range repo.db.certificates {
			if existing.EnrollmentID == c.EnrollmentID || existing.Number == c.Number {
				return core.ErrConflict
			}
		}
		repo.db.certificates[c.ID] = c
		return nil
	})
}

func (repo *certificateRepository) GetCertificate(ctx context.Context, id string) (certificate.Certificate, error) {
	var (
		c  certificate.Certificate
		ok bool
	)
	repo.db.read(ctx, func() { c, ok = repo.db.certificates[id] })
	if !ok {
		return certificate.Certificate{}, certificate.ErrNotFound
	}
	return c, nil
}

func (repo *certificateRepository) GetByEnrollment(ctx context.Context, enrollmentID string) (certificate.Certificate, error) {
	var (
		c  certificate.Certificate
		ok bool
	)
	repo.db.read(ctx, func() {
		for _, existing := range repo.db.certificates {
			if existing.EnrollmentID == enrollmentID {
				c, ok = existing, true
				return
			}
		}
	})
	if !ok {
		return certificate.Certificate{}, certificate.ErrNotFound
	}
	return c, nil
}
