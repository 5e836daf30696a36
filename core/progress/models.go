package progress

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/tuutta/core"
)

type EventType string

// Progress event types
const (
	EventLessonStart    EventType = "lesson_start"
	EventLessonComplete EventType = "lesson_complete"
	EventModuleComplete EventType = "module_complete"
	EventCourseComplete EventType = "course_complete"
)

// SummaryID returns the deterministic ProgressSummary ID of a (user, course) pair.
func SummaryID(userID, courseID string) string {
	return core.CompositeID(userID, courseID)
}

// Summary is the aggregated completion state of one enrollment.
// PercentComplete is always derived from CompletedLessonIDs; it is never set on its own.
type Summary struct {
	ID                    string    `json:"id"`
	EnrollmentID          string    `json:"enrollment_id"`
	UserID                string    `json:"user_id"`
	CourseID              string    `json:"course_id"`
	CompletedLessonIDs    []string  `json:"completed_lesson_ids"`
	CompletedModuleIDs    []string  `json:"completed_module_ids"`
	LastLessonID          string    `json:"last_lesson_id,omitempty"`
	PercentComplete       int       `json:"percent_complete"`
	TotalTimeSpentSeconds int64     `json:"total_time_spent_seconds"`
	Version               int64     `json:"version"`
	CreatedAt             time.Time `json:"created_at"` // UTC
	UpdatedAt             time.Time `json:"updated_at"` // UTC
}

// NewSummary returns the empty Summary paired with a new enrollment.
func NewSummary(enrollmentID, userID, courseID string, now time.Time) Summary {
	return Summary{
		ID:                 SummaryID(userID, courseID),
		EnrollmentID:       enrollmentID,
		UserID:             userID,
		CourseID:           courseID,
		CompletedLessonIDs: []string{},
		CompletedModuleIDs: []string{},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func (s Summary) HasCompletedLesson(id string) bool { return contains(s.CompletedLessonIDs, id) }
func (s Summary) HasCompletedModule(id string) bool { return contains(s.CompletedModuleIDs, id) }

// hasAll reports whether every id is in set.
func hasAll(set []string, ids []string) bool {
	for _, id := range ids {
		if !contains(set, id) {
			return false
		}
	}
	return true
}

// IsCourseComplete reports whether every module is complete and the course is at 100%.
func (s Summary) IsCourseComplete(allModuleIDs []string) bool {
	return len(allModuleIDs) > 0 && hasAll(s.CompletedModuleIDs, allModuleIDs) && s.PercentComplete == 100
}

func (s Summary) clone() Summary {
	c := s
	c.CompletedLessonIDs = append(make([]string, 0, len(s.CompletedLessonIDs)+1), s.CompletedLessonIDs...)
	c.CompletedModuleIDs = append(make([]string, 0, len(s.CompletedModuleIDs)+1), s.CompletedModuleIDs...)
	return c
}

func contains(set []string, id string) bool {
	for _, s := range set {
		if s == id {
			return true
		}
	}
	return false
}

// Event is an immutable record of a single progress transition.
type Event struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	CourseID     string    `json:"course_id"`
	EnrollmentID string    `json:"enrollment_id"`
	Type         EventType `json:"type"`
	LessonID     string    `json:"lesson_id,omitempty"`
	ModuleID     string    `json:"module_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"` // UTC
}

// LessonCompletion contains everything needed to record a completed lesson and
// detect module and course completion in the same pass.
type LessonCompletion struct {
	UserID               string   `json:"user_id" validate:"idpart"`
	CourseID             string   `json:"course_id" validate:"idpart"`
	LessonID             string   `json:"lesson_id" validate:"notblank"`
	ModuleID             string   `json:"module_id" validate:"notblank"`
	DurationSeconds      int64    `json:"duration_seconds" validate:"gte=0"`
	TotalLessonsInCourse int      `json:"total_lessons_in_course" validate:"gte=1"`
	ModuleLessonIDs      []string `json:"module_lesson_ids" validate:"required,min=1,dive,notblank"`
	AllModuleIDsInCourse []string `json:"all_module_ids_in_course" validate:"required,min=1,dive,notblank"`
}

func (lc *LessonCompletion) Validate(validate *validator.Validate) error {
	lc.UserID = core.CleanString(lc.UserID)
	lc.CourseID = core.CleanString(lc.CourseID)
	lc.LessonID = core.CleanString(lc.LessonID)
	lc.ModuleID = core.CleanString(lc.ModuleID)
	return validate.Struct(lc)
}

// CompletionStats is the outcome of recording a completed lesson.
type CompletionStats struct {
	PercentComplete int  `json:"percent_complete"`
	ModuleCompleted bool `json:"module_completed"`
	CourseCompleted bool `json:"course_completed"`
}

// LessonRef identifies a lesson of a learner's course.
type LessonRef struct {
	UserID   string `json:"user_id" validate:"idpart"`
	CourseID string `json:"course_id" validate:"idpart"`
	LessonID string `json:"lesson_id" validate:"notblank"`
}

func (lr *LessonRef) Validate(validate *validator.Validate) error {
	lr.UserID = core.CleanString(lr.UserID)
	lr.CourseID = core.CleanString(lr.CourseID)
	lr.LessonID = core.CleanString(lr.LessonID)
	return validate.Struct(lr)
}
