package dummydb

import (
	"context"

	"github.com/trezcool/tuutta/core"
	"github.com/trezcool/tuutta/core/progress"
)

type progressRepository struct {
	db *DB
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *DB) progress.Repository {
	return &progressRepository{db: db}
}

func copySummary(s progress.Summary) progress.Summary {
	s.CompletedLessonIDs = copyStrings(s.CompletedLessonIDs)
	s.CompletedModuleIDs = copyStrings(s.CompletedModuleIDs)
	return s
}

func (repo *progressRepository) CreateSummary(ctx context.Context, s progress.Summary) error {
	return repo.db.write(ctx, func() error {
		if _, ok := repo.db.summaries[s.ID]; ok {
			return core.ErrConflict
		}
		s.Version = 1
		repo.db.summaries[s.ID] = copySummary(s)
		return nil
	})
}

func (repo *progressRepository) GetSummary(ctx context.Context, id string) (progress.Summary, error) {
	var (
		s  progress.Summary
		ok bool
	)
	repo.db.read(ctx, func() { s, ok = repo.db.summaries[id] })
	if !ok {
		return progress.Summary{}, progress.ErrNotFound
	}
	return copySummary(s), nil
}

func (repo *progressRepository) UpdateSummary(ctx context.Context, s progress.Summary) (progress.Summary, error) {
	err := repo.db.write(ctx, func() error {
		stored, ok := repo.db.summaries[s.ID]
		if !ok {
			return progress.ErrNotFound
		}
		if stored.Version != s.Version {
			return core.ErrConflict
		}
		s.Version++
		repo.db.summaries[s.ID] = copySummary(s)
		return nil
	})
	if err != nil {
		return progress.Summary{}, err
	}
	return copySummary(s), nil
}

func (repo *progressRepository) AddEvent(ctx context.Context, ev progress.Event) error {
	return repo.db.write(ctx, func() error {
		repo.db.events = append(repo.db.events, ev)
		return nil
	})
}

func (repo *progressRepository) QueryEvents(ctx context.Context, userID, courseID string) ([]progress.Event, error) {
	var evs []progress.Event
	repo.db.read(ctx, func() {
		for _, ev := range repo.db.events {
			if ev.UserID == userID && ev.CourseID == courseID {
				evs = append(evs, ev)
			}
		}
	})
	return evs, nil
}
