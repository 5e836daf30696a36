package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/tuutta/core"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound        = core.NewNotFoundError("progress")
	ErrNegativeSeconds = core.NewValidationError(nil, core.FieldError{Field: "seconds", Error: "seconds must not be negative"})
)

type (
	Repository interface {
		// CreateSummary returns core.ErrConflict if a Summary with the same ID exists.
		CreateSummary(ctx context.Context, s Summary) error
		GetSummary(ctx context.Context, id string) (Summary, error)
		// UpdateSummary saves s only if the stored Version still equals s.Version,
		// and returns the saved Summary with its Version bumped. core.ErrConflict otherwise.
		UpdateSummary(ctx context.Context, s Summary) (Summary, error)
		AddEvent(ctx context.Context, ev Event) error
		QueryEvents(ctx context.Context, userID, courseID string) ([]Event, error)
	}

	// CompletionHandler is notified once a learner has completed a whole course.
	// It must be idempotent.
	CompletionHandler interface {
		CourseCompleted(ctx context.Context, s Summary) error
	}

	TrackerDeps struct {
		TxRunner   core.TxRunner
		Repo       Repository
		OnComplete CompletionHandler
		Validate   *validator.Validate
		Logger     core.Logger
		Retry      core.RetryConfig
	}

	Tracker struct {
		tx         core.TxRunner
		repo       Repository
		onComplete CompletionHandler
		validate   *validator.Validate
		logger     core.Logger
		retry      core.RetryConfig
	}
)

func NewTracker(deps TrackerDeps) *Tracker {
	return &Tracker{
		tx:         deps.TxRunner,
		repo:       deps.Repo,
		onComplete: deps.OnComplete,
		validate:   deps.Validate,
		logger:     deps.Logger,
		retry:      deps.Retry,
	}
}

func (t *Tracker) GetProgress(ctx context.Context, userID, courseID string) (Summary, error) {
	return t.repo.GetSummary(ctx, SummaryID(userID, courseID))
}

func (t *Tracker) Events(ctx context.Context, userID, courseID string) ([]Event, error) {
	return t.repo.QueryEvents(ctx, userID, courseID)
}

// mutate applies fn to the current Summary and saves it, retrying on concurrent updates.
func (t *Tracker) mutate(ctx context.Context, id string, fn func(s *Summary)) (Summary, error) {
	var saved Summary
	err := core.RetryOnConflict(ctx, t.retry, func(ctx context.Context) error {
		s, err := t.repo.GetSummary(ctx, id)
		if err != nil {
			return err
		}
		s = s.clone()
		fn(&s)
		s.UpdatedAt = NowFunc().UTC()
		saved, err = t.repo.UpdateSummary(ctx, s)
		return err
	})
	return saved, err
}

// RecordLessonStart moves the learner's bookmark to lessonID.
// Only the Summary write can fail; the lesson_start event is best effort.
func (t *Tracker) RecordLessonStart(ctx context.Context, ref LessonRef) error {
	if err := ref.Validate(t.validate); err != nil {
		return err
	}

	s, err := t.mutate(ctx, SummaryID(ref.UserID, ref.CourseID), func(s *Summary) {
		s.LastLessonID = ref.LessonID
	})
	if err != nil {
		return errors.Wrap(err, "recording lesson start")
	}

	ev := t.newEvent(s, EventLessonStart, ref.LessonID, "")
	if err := t.repo.AddEvent(ctx, ev); err != nil {
		t.logger.Warn(fmt.Sprintf("logging lesson start: %v", err), err)
	}
	return nil
}

// RecordLessonComplete marks a lesson complete and cascades module and course completion.
//
// Replaying an already completed lesson returns the current stats and records nothing.
// The lesson set, module set and percentage are decided and saved in one transaction;
// a concurrent write to the same Summary makes the whole pass start over on fresh data.
func (t *Tracker) RecordLessonComplete(ctx context.Context, lc LessonCompletion) (CompletionStats, error) {
	if err := lc.Validate(t.validate); err != nil {
		return CompletionStats{}, err
	}

	var (
		stats     CompletionStats
		summary   Summary
		duplicate bool
	)
	err := core.RetryOnConflict(ctx, t.retry, func(ctx context.Context) error {
		return t.tx.RunInTx(ctx, func(ctx context.Context) error {
			var err error
			stats, summary, duplicate, err = t.completeLesson(ctx, lc)
			return err
		})
	})
	if err != nil {
		return CompletionStats{}, errors.Wrap(err, "recording lesson completion")
	}

	// a replay of the lesson that completed the course re-drives the idempotent hand-off,
	// in case the previous call failed after saving the Summary.
	if stats.CourseCompleted || (duplicate && summary.IsCourseComplete(lc.AllModuleIDsInCourse)) {
		if t.onComplete != nil {
			if err := t.onComplete.CourseCompleted(ctx, summary); err != nil {
				return stats, errors.Wrap(err, "completing course")
			}
		}
	}
	return stats, nil
}

func (t *Tracker) completeLesson(ctx context.Context, lc LessonCompletion) (CompletionStats, Summary, bool, error) {
	orig, err := t.repo.GetSummary(ctx, SummaryID(lc.UserID, lc.CourseID))
	if err != nil {
		return CompletionStats{}, Summary{}, false, err
	}

	// 1. duplicate completion
	if orig.HasCompletedLesson(lc.LessonID) {
		return CompletionStats{PercentComplete: orig.PercentComplete}, orig, true, nil
	}

	var stats CompletionStats
	s := orig.clone()

	// 2. lesson
	if err = t.repo.AddEvent(ctx, t.newEvent(s, EventLessonComplete, lc.LessonID, lc.ModuleID)); err != nil {
		return stats, s, false, err
	}
	s.CompletedLessonIDs = append(s.CompletedLessonIDs, lc.LessonID)

	// 3. module
	if hasAll(s.CompletedLessonIDs, lc.ModuleLessonIDs) && !s.HasCompletedModule(lc.ModuleID) {
		s.CompletedModuleIDs = append(s.CompletedModuleIDs, lc.ModuleID)
		if err = t.repo.AddEvent(ctx, t.newEvent(s, EventModuleComplete, "", lc.ModuleID)); err != nil {
			return stats, s, false, err
		}
		stats.ModuleCompleted = true
	}

	// 4. percentage
	s.PercentComplete = core.Percent(len(s.CompletedLessonIDs), lc.TotalLessonsInCourse)
	stats.PercentComplete = s.PercentComplete

	// 5. course
	if s.IsCourseComplete(lc.AllModuleIDsInCourse) {
		if err = t.repo.AddEvent(ctx, t.newEvent(s, EventCourseComplete, "", "")); err != nil {
			return stats, s, false, err
		}
		stats.CourseCompleted = true
	}

	// 6. one write
	s.LastLessonID = lc.LessonID
	s.TotalTimeSpentSeconds += lc.DurationSeconds
	s.UpdatedAt = NowFunc().UTC()
	saved, err := t.repo.UpdateSummary(ctx, s)
	if err != nil {
		return CompletionStats{}, s, false, err
	}
	return stats, saved, false, nil
}

// AddTimeSpent adds seconds to the learner's total time spent.
func (t *Tracker) AddTimeSpent(ctx context.Context, userID, courseID string, seconds int64) (Summary, error) {
	if seconds < 0 {
		return Summary{}, ErrNegativeSeconds
	}
	s, err := t.mutate(ctx, SummaryID(userID, courseID), func(s *Summary) {
		s.TotalTimeSpentSeconds += seconds
	})
	if err != nil {
		return Summary{}, errors.Wrap(err, "adding time spent")
	}
	return s, nil
}

// GetNextLesson returns the lesson the learner should resume with.
// ok is false when every lesson in orderedLessonIDs is complete.
func (t *Tracker) GetNextLesson(ctx context.Context, userID, courseID string, orderedLessonIDs []string) (lessonID string, ok bool, err error) {
	s, err := t.GetProgress(ctx, userID, courseID)
	if err != nil {
		return "", false, err
	}
	if s.LastLessonID != "" && !s.HasCompletedLesson(s.LastLessonID) {
		return s.LastLessonID, true, nil
	}
	for _, id := range orderedLessonIDs {
		if !s.HasCompletedLesson(id) {
			return id, true, nil
		}
	}
	return "", false, nil
}

func (t *Tracker) newEvent(s Summary, typ EventType, lessonID, moduleID string) Event {
	return Event{
		ID:           uuid.New().String(),
		UserID:       s.UserID,
		CourseID:     s.CourseID,
		EnrollmentID: s.EnrollmentID,
		Type:         typ,
		LessonID:     lessonID,
		ModuleID:     moduleID,
		CreatedAt:    NowFunc().UTC(),
	}
}
