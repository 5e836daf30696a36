package assessment_test

import (
	"context"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tuutta/core"
	"github.com/trezcool/tuutta/core/assessment"
	testutil "github.com/trezcool/tuutta/tests"
)

func intPtr(i int) *int { return &i }

func newQuiz(maxAttempts *int) assessment.NewAssessment {
	return assessment.NewAssessment{
		OrgID:    "org",
		CourseID: "c1",
		Definition: assessment.Definition{
			Title:       "Quiz",
			Type:        assessment.TypeQuiz,
			PassMark:    70,
			MaxAttempts: maxAttempts,
			Questions: []assessment.Question{
				{ID: "q1", Type: assessment.MultipleChoice, Text: "Pick B", Options: []string{"A", "B", "C"}, CorrectAnswers: []string{"B"}, Points: 10},
			},
		},
	}
}

func submission(a assessment.Assessment, userID, answer string) assessment.Submission {
	return assessment.Submission{
		OrgID:        a.OrgID,
		UserID:       userID,
		CourseID:     a.CourseID,
		AssessmentID: a.ID,
		Answers:      map[string]string{"q1": answer},
	}
}

func TestService_Create(t *testing.T) {
	svcs := testutil.NewServices(t)
	ctx := context.Background()

	dup := newQuiz(nil)
	dup.Questions = append(dup.Questions, dup.Questions[0])

	twoCorrect := newQuiz(nil)
	twoCorrect.Questions[0].CorrectAnswers = []string{"A", "B"}

	zeroAttempts := newQuiz(intPtr(0))

	badPassMark := newQuiz(nil)
	badPassMark.PassMark = 101

	tests := []struct {
		name    string
		na      assessment.NewAssessment
		wantErr bool
	}{
		{name: "duplicate question", na: dup, wantErr: true},
		{name: "multiple choice with two answers", na: twoCorrect, wantErr: true},
		{name: "zero attempts", na: zeroAttempts, wantErr: true},
		{name: "pass mark over 100", na: badPassMark, wantErr: true},
		{name: "unlimited", na: newQuiz(nil)},
		{name: "limited", na: newQuiz(intPtr(2))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := svcs.Assessments.Create(ctx, tt.na)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Create() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			got, err := svcs.Assessments.Get(ctx, a.ID)
			require.NoError(t, err)
			assert.Equal(t, a.Questions, got.Questions)
			assert.Equal(t, tt.na.MaxAttempts, got.MaxAttempts)
		})
	}
}

func TestService_SubmitResult_caseInsensitive(t *testing.T) {
	svcs := testutil.NewServices(t)
	ctx := context.Background()
	enr := testutil.Enroll(t, svcs.Enrollments, "org", "u1", "c1")

	a, err := svcs.Assessments.Create(ctx, newQuiz(nil))
	require.NoError(t, err)

	res, err := svcs.Assessments.SubmitResult(ctx, submission(a, "u1", "b"))
	require.NoError(t, err)
	assert.Equal(t, 100, res.Score)
	assert.True(t, res.Passed)
	assert.Equal(t, 1, res.Attempt)
	assert.Equal(t, enr.ID, res.EnrollmentID)
	require.Len(t, res.Answers, 1)
	assert.True(t, res.Answers[0].IsCorrect)
	assert.False(t, res.StartedAt.IsZero())

	evs := svcs.Sink.Events(core.ActionAssessmentSubmitted)
	require.Len(t, evs, 1)
	assert.Equal(t, res.ID, evs[0].EntityID)
}

func TestService_SubmitResult_maxAttempts(t *testing.T) {
	svcs := testutil.NewServices(t)
	ctx := context.Background()
	testutil.Enroll(t, svcs.Enrollments, "org", "u1", "c1")
	testutil.Enroll(t, svcs.Enrollments, "org", "u2", "c1")

	a, err := svcs.Assessments.Create(ctx, newQuiz(intPtr(1)))
	require.NoError(t, err)

	first, err := svcs.Assessments.SubmitResult(ctx, submission(a, "u1", "A"))
	require.NoError(t, err)
	assert.Equal(t, 1, first.Attempt)
	assert.False(t, first.Passed)

	_, err = svcs.Assessments.SubmitResult(ctx, submission(a, "u1", "B"))
	assert.Equal(t, assessment.ErrMaxAttemptsReached, errors.Cause(err))

	results, err := svcs.Assessments.GetResults(ctx, "u1", a.ID)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	// other learners keep their own attempts
	_, err = svcs.Assessments.SubmitResult(ctx, submission(a, "u2", "B"))
	require.NoError(t, err)

	att, err := svcs.Assessments.Attempts(ctx, "u1", a.ID)
	require.NoError(t, err)
	assert.Equal(t, assessment.Attempts{Used: 1, Remaining: 0, BestScore: intPtr(0)}, att)
}

func TestService_SubmitResult_concurrent(t *testing.T) {
	svcs := testutil.NewServices(t)
	ctx := context.Background()
	testutil.Enroll(t, svcs.Enrollments, "org", "u1", "c1")

	a, err := svcs.Assessments.Create(ctx, newQuiz(intPtr(3)))
	require.NoError(t, err)

	const n = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, full int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svcs.Assessments.SubmitResult(ctx, submission(a, "u1", "B"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Cause(err) == assessment.ErrMaxAttemptsReached:
				full++
			default:
				t.Errorf("SubmitResult() error = %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, ok)
	assert.Equal(t, n-3, full)

	results, err := svcs.Assessments.GetResults(ctx, "u1", a.ID)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, i+1, r.Attempt)
	}
}

func TestService_SubmitResult_submissionID(t *testing.T) {
	svcs := testutil.NewServices(t)
	ctx := context.Background()
	testutil.Enroll(t, svcs.Enrollments, "org", "u1", "c1")

	a, err := svcs.Assessments.Create(ctx, newQuiz(intPtr(1)))
	require.NoError(t, err)

	sub := submission(a, "u1", "B")
	sub.SubmissionID = "tab-1"
	first, err := svcs.Assessments.SubmitResult(ctx, sub)
	require.NoError(t, err)

	// a replay returns the first result, even at the attempt limit
	replay, err := svcs.Assessments.SubmitResult(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, first.ID, replay.ID)
	assert.Len(t, svcs.Sink.Events(core.ActionAssessmentSubmitted), 1)

	sub.SubmissionID = "tab-2"
	_, err = svcs.Assessments.SubmitResult(ctx, sub)
	assert.Equal(t, assessment.ErrMaxAttemptsReached, errors.Cause(err))
}

func TestService_SubmitResult_errors(t *testing.T) {
	svcs := testutil.NewServices(t)
	ctx := context.Background()
	testutil.Enroll(t, svcs.Enrollments, "org", "u1", "c1")

	a, err := svcs.Assessments.Create(ctx, newQuiz(nil))
	require.NoError(t, err)

	otherCourse := submission(a, "u1", "B")
	otherCourse.CourseID = "c2"

	missing := submission(a, "u1", "B")
	missing.AssessmentID = "lol"

	blank := submission(a, " ", "B")

	tests := []struct {
		name      string
		sub       assessment.Submission
		wantErr   error
		wantValid bool
	}{
		{name: "not enrolled", sub: submission(a, "u2", "B"), wantErr: assessment.ErrNotEnrolled},
		{name: "other course", sub: otherCourse, wantErr: assessment.ErrNotEnrolled},
		{name: "unknown assessment", sub: missing, wantErr: assessment.ErrNotFound},
		{name: "blank user", sub: blank, wantValid: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svcs.Assessments.SubmitResult(ctx, tt.sub)
			if tt.wantValid {
				if _, ok := errors.Cause(err).(validator.ValidationErrors); !ok {
					t.Errorf("SubmitResult() error = %v, want validation error", err)
				}
				return
			}
			if errors.Cause(err) != tt.wantErr {
				t.Errorf("SubmitResult() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	results, err := svcs.Assessments.GetResults(ctx, "u1", a.ID)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestService_Update(t *testing.T) {
	svcs := testutil.NewServices(t)
	ctx := context.Background()
	testutil.Enroll(t, svcs.Enrollments, "org", "u1", "c1")

	a, err := svcs.Assessments.Create(ctx, newQuiz(nil))
	require.NoError(t, err)
	res, err := svcs.Assessments.SubmitResult(ctx, submission(a, "u1", "B"))
	require.NoError(t, err)

	def := newQuiz(intPtr(5)).Definition
	def.Title = "Quiz v2"
	def.Questions[0].CorrectAnswers = []string{"C"}
	updated, err := svcs.Assessments.Update(ctx, a.ID, def)
	require.NoError(t, err)
	assert.Equal(t, "Quiz v2", updated.Title)
	assert.Equal(t, intPtr(5), updated.MaxAttempts)

	// recorded results keep their score
	results, err := svcs.Assessments.GetResults(ctx, "u1", a.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, res.Score, results[0].Score)

	att, err := svcs.Assessments.Attempts(ctx, "u1", a.ID)
	require.NoError(t, err)
	assert.Equal(t, assessment.Attempts{Used: 1, Remaining: 4, BestScore: intPtr(100)}, att)

	_, err = svcs.Assessments.Update(ctx, "lol", def)
	assert.True(t, core.IsNotFound(err))
}
