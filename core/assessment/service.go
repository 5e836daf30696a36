package assessment

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/tuutta/core"
	"github.com/trezcool/tuutta/core/enrollment"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound           = core.NewNotFoundError("assessment")
	ErrResultNotFound     = core.NewNotFoundError("assessment result")
	ErrNotEnrolled        = core.NewPolicyError("not_enrolled", "learner is not enrolled in this course")
	ErrMaxAttemptsReached = core.NewPolicyError("max_attempts_reached", "maximum number of attempts reached")
)

type (
	Repository interface {
		CreateAssessment(ctx context.Context, a Assessment) error
		GetAssessment(ctx context.Context, id string) (Assessment, error)
		UpdateAssessment(ctx context.Context, a Assessment) (Assessment, error)

		CountResults(ctx context.Context, userID, assessmentID string) (int, error)
		// CreateResult returns core.ErrConflict if the attempt number (or the submission ID)
		// is already recorded for the user and assessment.
		CreateResult(ctx context.Context, r Result) error
		// QueryResults returns the user's results ordered by attempt.
		QueryResults(ctx context.Context, userID, assessmentID string) ([]Result, error)
		GetResultBySubmission(ctx context.Context, userID, assessmentID, submissionID string) (Result, error)
	}

	// Invalidator is implemented by caching repositories.
	Invalidator interface {
		InvalidateAssessment(ctx context.Context, id string)
	}

	EnrollmentFinder interface {
		GetFor(ctx context.Context, orgID, userID, courseID string) (enrollment.Enrollment, error)
	}

	ServiceDeps struct {
		TxRunner    core.TxRunner
		Repo        Repository
		Enrollments EnrollmentFinder
		Validate    *validator.Validate
		Activity    core.ActivitySink
		Retry       core.RetryConfig
	}

	Service struct {
		tx          core.TxRunner
		repo        Repository
		enrollments EnrollmentFinder
		validate    *validator.Validate
		activity    core.ActivitySink
		retry       core.RetryConfig
	}
)

func NewService(deps ServiceDeps) *Service {
	activity := deps.Activity
	if activity == nil {
		activity = core.NopActivitySink{}
	}
	return &Service{
		tx:          deps.TxRunner,
		repo:        deps.Repo,
		enrollments: deps.Enrollments,
		validate:    deps.Validate,
		activity:    activity,
		retry:       deps.Retry,
	}
}

func (svc *Service) Create(ctx context.Context, na NewAssessment) (Assessment, error) {
	if err := na.Validate(svc.validate); err != nil {
		return Assessment{}, err
	}

	now := NowFunc().UTC()
	a := Assessment{
		ID:          uuid.New().String(),
		OrgID:       na.OrgID,
		CourseID:    na.CourseID,
		Title:       na.Title,
		Type:        na.Type,
		Questions:   nonNilQuestions(na.Questions),
		PassMark:    na.PassMark,
		MaxAttempts: na.MaxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := svc.repo.CreateAssessment(ctx, a); err != nil {
		return Assessment{}, errors.Wrap(err, "creating assessment")
	}
	return a, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Assessment, error) {
	return svc.repo.GetAssessment(ctx, id)
}

// Update replaces the definition of an Assessment. Results already recorded keep
// the score they were graded with.
func (svc *Service) Update(ctx context.Context, id string, def Definition) (Assessment, error) {
	if err := def.Validate(svc.validate); err != nil {
		return Assessment{}, err
	}

	var updated Assessment
	err := svc.tx.RunInTx(ctx, func(ctx context.Context) error {
		a, err := svc.repo.GetAssessment(ctx, id)
		if err != nil {
			return err
		}
		a.Title = def.Title
		a.Type = def.Type
		a.Questions = nonNilQuestions(def.Questions)
		a.PassMark = def.PassMark
		a.MaxAttempts = def.MaxAttempts
		a.UpdatedAt = NowFunc().UTC()
		updated, err = svc.repo.UpdateAssessment(ctx, a)
		return err
	})
	if err != nil {
		return Assessment{}, errors.Wrap(err, "updating assessment")
	}
	if inv, ok := svc.repo.(Invalidator); ok {
		inv.InvalidateAssessment(ctx, id)
	}
	return updated, nil
}

// SubmitResult grades a Submission and records it as the learner's next attempt.
// Over the attempt limit, it fails with ErrMaxAttemptsReached and records nothing.
func (svc *Service) SubmitResult(ctx context.Context, sub Submission) (Result, error) {
	if err := sub.Validate(svc.validate); err != nil {
		return Result{}, err
	}

	a, err := svc.repo.GetAssessment(ctx, sub.AssessmentID)
	if err != nil {
		return Result{}, err
	}
	if a.CourseID != sub.CourseID {
		return Result{}, ErrNotEnrolled
	}

	enr, err := svc.enrollments.GetFor(ctx, sub.OrgID, sub.UserID, sub.CourseID)
	if err != nil {
		if core.IsNotFound(err) {
			return Result{}, ErrNotEnrolled
		}
		return Result{}, errors.Wrap(err, "finding enrollment")
	}

	grade := GradeAnswers(a.Questions, sub.Answers)
	startedAt := sub.StartedAt.UTC()

	var (
		res    Result
		replay bool
	)
	err = core.RetryOnConflict(ctx, svc.retry, func(ctx context.Context) error {
		return svc.tx.RunInTx(ctx, func(ctx context.Context) error {
			if sub.SubmissionID != "" {
				prev, err := svc.repo.GetResultBySubmission(ctx, sub.UserID, a.ID, sub.SubmissionID)
				if err == nil {
					res, replay = prev, true
					return nil
				}
				if errors.Cause(err) != ErrResultNotFound {
					return err
				}
			}

			count, err := svc.repo.CountResults(ctx, sub.UserID, a.ID)
			if err != nil {
				return err
			}
			attempt := count + 1
			if a.MaxAttempts != nil && attempt > *a.MaxAttempts {
				return ErrMaxAttemptsReached
			}

			submittedAt := NowFunc().UTC()
			if startedAt.IsZero() {
				startedAt = submittedAt
			}
			res = Result{
				ID:           uuid.New().String(),
				AssessmentID: a.ID,
				EnrollmentID: enr.ID,
				UserID:       sub.UserID,
				SubmissionID: sub.SubmissionID,
				Attempt:      attempt,
				Score:        grade.ScorePercent(),
				Passed:       grade.Passed(a.PassMark),
				Answers:      grade.Answers,
				StartedAt:    startedAt,
				SubmittedAt:  submittedAt,
			}
			replay = false
			return svc.repo.CreateResult(ctx, res)
		})
	})
	if err != nil {
		return Result{}, errors.Wrap(err, "submitting result")
	}

	if !replay {
		svc.activity.Log(ctx, core.ActivityEvent{
			OrgID:      sub.OrgID,
			ActorID:    sub.UserID,
			Action:     core.ActionAssessmentSubmitted,
			EntityType: "assessment_result",
			EntityID:   res.ID,
			Metadata: map[string]interface{}{
				"assessmentId": a.ID,
				"attempt":      res.Attempt,
				"score":        res.Score,
				"passed":       res.Passed,
			},
			OccurredAt: res.SubmittedAt,
		})
	}
	return res, nil
}

// GetResults returns the user's results for an assessment, ordered by attempt.
func (svc *Service) GetResults(ctx context.Context, userID, assessmentID string) ([]Result, error) {
	return svc.repo.QueryResults(ctx, userID, assessmentID)
}

// RemainingAttempts returns how many attempts the user has left; unlimited is true
// when the assessment sets no limit.
func (svc *Service) RemainingAttempts(ctx context.Context, userID, assessmentID string) (remaining int, unlimited bool, err error) {
	a, err := svc.repo.GetAssessment(ctx, assessmentID)
	if err != nil {
		return 0, false, err
	}
	if a.MaxAttempts == nil {
		return 0, true, nil
	}
	used, err := svc.repo.CountResults(ctx, userID, assessmentID)
	if err != nil {
		return 0, false, err
	}
	if remaining = *a.MaxAttempts - used; remaining < 0 {
		remaining = 0
	}
	return remaining, false, nil
}

// BestScore returns the user's highest score; ok is false without any result.
func (svc *Service) BestScore(ctx context.Context, userID, assessmentID string) (best int, ok bool, err error) {
	results, err := svc.repo.QueryResults(ctx, userID, assessmentID)
	if err != nil {
		return 0, false, err
	}
	for _, r := range results {
		if !ok || r.Score > best {
			best, ok = r.Score, true
		}
	}
	return best, ok, nil
}

// Attempts gathers RemainingAttempts and BestScore.
func (svc *Service) Attempts(ctx context.Context, userID, assessmentID string) (Attempts, error) {
	remaining, unlimited, err := svc.RemainingAttempts(ctx, userID, assessmentID)
	if err != nil {
		return Attempts{}, err
	}
	results, err := svc.repo.QueryResults(ctx, userID, assessmentID)
	if err != nil {
		return Attempts{}, err
	}

	att := Attempts{Used: len(results), Remaining: remaining, Unlimited: unlimited}
	for _, r := range results {
		if att.BestScore == nil || r.Score > *att.BestScore {
			score := r.Score
			att.BestScore = &score
		}
	}
	return att, nil
}

func nonNilQuestions(qs []Question) []Question {
	if qs == nil {
		return []Question{}
	}
	return qs
}
