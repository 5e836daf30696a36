// Package testutil wires the services on the in-memory database for tests.
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/tuutta/core"
	"github.com/trezcool/tuutta/core/assessment"
	"github.com/trezcool/tuutta/core/certificate"
	"github.com/trezcool/tuutta/core/completion"
	"github.com/trezcool/tuutta/core/enrollment"
	"github.com/trezcool/tuutta/core/progress"
	dummydb "github.com/trezcool/tuutta/storage/database/dummy"
)

// Logger discards every message but keeps the warnings and errors.
type Logger struct {
	mu       sync.Mutex
	Warnings []string
	Errors   []string
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) Debug(string, ...interface{}) {}
func (l *Logger) Info(string, ...interface{})  {}
func (l *Logger) Fatal(string, ...interface{}) {}

func (l *Logger) Warn(msg string, _ ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warnings = append(l.Warnings, msg)
}

func (l *Logger) Error(msg string, _ ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

// Sink records activity events synchronously.
type Sink struct {
	mu     sync.Mutex
	events []core.ActivityEvent
}

var _ core.ActivitySink = (*Sink)(nil)

func (s *Sink) Log(_ context.Context, ev core.ActivityEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

// Events returns the recorded events, optionally limited to the given actions.
func (s *Sink) Events(actions ...string) []core.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	evs := make([]core.ActivityEvent, 0, len(s.events))
	for _, ev := range s.events {
		if len(actions) == 0 || containsAction(actions, ev.Action) {
			evs = append(evs, ev)
		}
	}
	return evs
}

func containsAction(actions []string, action string) bool {
	for _, a := range actions {
		if a == action {
			return true
		}
	}
	return false
}

type Services struct {
	TxRunner     core.TxRunner
	Validate     *validator.Validate
	Translator   ut.Translator
	Logger       *Logger
	Sink         *Sink
	Activities   core.ActivityRepository
	Enrollments  *enrollment.Service
	Tracker      *progress.Tracker
	Assessments  *assessment.Service
	Certificates *certificate.Service

	EnrollmentRepo  enrollment.Repository
	ProgressRepo    progress.Repository
	AssessmentRepo  assessment.Repository
	CertificateRepo certificate.Repository
}

// Repositories is the storage a Services runs on.
type Repositories struct {
	TxRunner     core.TxRunner
	Enrollments  enrollment.Repository
	Progress     progress.Repository
	Assessments  assessment.Repository
	Certificates certificate.Repository
	Activities   core.ActivityRepository
}

// NewServices wires every service on a fresh dummydb.
func NewServices(t *testing.T) Services {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	return NewServicesWith(t, Repositories{
		TxRunner:     db,
		Enrollments:  dummydb.NewEnrollmentRepository(db),
		Progress:     dummydb.NewProgressRepository(db),
		Assessments:  dummydb.NewAssessmentRepository(db),
		Certificates: dummydb.NewCertificateRepository(db),
		Activities:   dummydb.NewActivityRepository(db),
	})
}

// NewServicesWith wires every service on repos.
func NewServicesWith(t *testing.T, repos Repositories) Services {
	t.Helper()

	translator := core.NewTranslator()
	s := Services{
		TxRunner:        repos.TxRunner,
		Validate:        core.NewValidator(translator),
		Translator:      translator,
		Logger:          &Logger{},
		Sink:            &Sink{},
		Activities:      repos.Activities,
		EnrollmentRepo:  repos.Enrollments,
		ProgressRepo:    repos.Progress,
		AssessmentRepo:  repos.Assessments,
		CertificateRepo: repos.Certificates,
	}
	retry := core.RetryConfig{MaxAttempts: 10, BaseDelay: time.Millisecond}

	s.Enrollments = enrollment.NewService(enrollment.ServiceDeps{
		TxRunner:     s.TxRunner,
		Repo:         s.EnrollmentRepo,
		ProgressRepo: s.ProgressRepo,
		Validate:     s.Validate,
		Activity:     s.Sink,
		Logger:       s.Logger,
	})
	s.Certificates = certificate.NewService(s.CertificateRepo, s.Sink)
	s.Tracker = progress.NewTracker(progress.TrackerDeps{
		TxRunner: s.TxRunner,
		Repo:     s.ProgressRepo,
		OnComplete: completion.NewOrchestrator(completion.Deps{
			Enrollments:  s.Enrollments,
			Certificates: s.Certificates,
			Activity:     s.Sink,
			Logger:       s.Logger,
		}),
		Validate: s.Validate,
		Logger:   s.Logger,
		Retry:    retry,
	})
	s.Assessments = assessment.NewService(assessment.ServiceDeps{
		TxRunner:    s.TxRunner,
		Repo:        s.AssessmentRepo,
		Enrollments: s.Enrollments,
		Validate:    s.Validate,
		Activity:    s.Sink,
		Retry:       retry,
	})
	return s
}

func Enroll(t *testing.T, svc *enrollment.Service, orgID, userID, courseID string, dueDate ...time.Time) enrollment.Enrollment {
	t.Helper()

	ne := enrollment.NewEnrollment{OrgID: orgID, UserID: userID, CourseID: courseID}
	if len(dueDate) > 0 {
		ne.DueDate = &dueDate[0]
	}
	enr, err := svc.Enroll(context.Background(), ne)
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
	return enr
}

// Course describes a course layout: module ID -> ordered lesson IDs.
type Course struct {
	ID      string
	Modules []string
	Lessons map[string][]string
}

func (c Course) TotalLessons() int {
	var n int
	for _, ls := range c.Lessons {
		n += len(ls)
	}
	return n
}

// Completion returns the LessonCompletion of lessonID in moduleID.
func (c Course) Completion(userID, moduleID, lessonID string) progress.LessonCompletion {
	return progress.LessonCompletion{
		UserID:               userID,
		CourseID:             c.ID,
		LessonID:             lessonID,
		ModuleID:             moduleID,
		DurationSeconds:      60,
		TotalLessonsInCourse: c.TotalLessons(),
		ModuleLessonIDs:      c.Lessons[moduleID],
		AllModuleIDsInCourse: c.Modules,
	}
}
