package dummydb

import (
	"context"

	"github.com/trezcool/tuutta/core"
)

type activityRepository struct {
	db *DB
}

var _ core.ActivityRepository = (*activityRepository)(nil) // interface compliance check

func NewActivityRepository(db *DB) core.ActivityRepository {
	return &activityRepository{db: db}
}

func (repo *activityRepository) AddActivity(ctx context.Context, ev core.ActivityEvent) error {
	return repo.db.write(ctx, func() error {
		repo.db.activities = append(repo.db.activities, ev)
		return nil
	})
}

func (repo *activityRepository) QueryActivities(ctx context.Context, filter core.ActivityFilter) ([]core.ActivityEvent, error) {
	var evs []core.ActivityEvent
	repo.db.read(ctx, func() {
		for i := len(repo.db.activities) - 1; i >= 0; i-- {
			if filter.Limit > 0 && len(evs) >= filter.Limit {
				return
			}
			if ev := repo.db.activities[i]; filter.Match(ev) {
				evs = append(evs, ev)
			}
		}
	})
	return evs, nil
}
