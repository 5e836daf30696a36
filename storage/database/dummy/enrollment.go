package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/tuutta/core"
	"github.com/trezcool/tuutta/core/enrollment"
)

type enrollmentRepository struct {
	db *DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *DB) enrollment.Repository {
	return &enrollmentRepository{db: db}
}

func (repo *enrollmentRepository) CreateEnrollment(ctx context.Context, e enrollment.Enrollment) error {
	return repo.db.write(ctx, func() error {
		if _, ok := repo.db.enrollments[e.ID]; ok {
			return core.ErrConflict
		}
		repo.db.enrollments[e.ID] = e
		return nil
	})
}

func (repo *enrollmentRepository) GetEnrollment(ctx context.Context, id string) (enrollment.Enrollment, error) {
	var (
		e  enrollment.Enrollment
		ok bool
	)
	repo.db.read(ctx, func() { e, ok = repo.db.enrollments[id] })
	if !ok {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	return e, nil
}

func (repo *enrollmentRepository) QueryEnrollments(ctx context.Context, filter *enrollment.QueryFilter, ordering []core.DBOrdering) ([]enrollment.Enrollment, error) {
	var enrs []enrollment.Enrollment
	repo.db.read(ctx, func() {
		for _, e := range repo.db.enrollments {
			if filter.Match(e) {
				enrs = append(enrs, e)
			}
		}
	})
	sortEnrollments(enrs, ordering)
	return enrs, nil
}

func (repo *enrollmentRepository) UpdateEnrollment(ctx context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	err := repo.db.write(ctx, func() error {
		if _, ok := repo.db.enrollments[e.ID]; !ok {
			return enrollment.ErrNotFound
		}
		repo.db.enrollments[e.ID] = e
		return nil
	})
	if err != nil {
		return enrollment.Enrollment{}, err
	}
	return e, nil
}

// sortEnrollments orders by enrolled_at then id, unless ordering names "id" or "enrolled_at".
func sortEnrollments(enrs []enrollment.Enrollment, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "enrolled_at", Ascending: true}, {Field: "id", Ascending: true}}
	}
	sort.SliceStable(enrs, func(i, j int) bool {
		for _, ord := range ordering {
			var less, greater bool
			switch ord.Field {
			case "enrolled_at":
				less, greater = enrs[i].EnrolledAt.Before(enrs[j].EnrolledAt), enrs[i].EnrolledAt.After(enrs[j].EnrolledAt)
			case "id":
				less, greater = enrs[i].ID < enrs[j].ID, enrs[i].ID > enrs[j].ID
			default:
				continue
			}
			if !ord.Ascending {
				less, greater = greater, less
			}
			if less || greater {
				return less
			}
		}
		return false
	})
}
