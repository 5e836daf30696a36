package assessment

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/tuutta/core"
)

type Type string

// Assessment types
const (
	TypeQuiz       Type = "quiz"
	TypeExam       Type = "exam"
	TypeSurvey     Type = "survey"
	TypeAssignment Type = "assignment"
)

type QuestionType string

// Question types
const (
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	ShortAnswer    QuestionType = "short_answer"
)

type Question struct {
	ID             string       `json:"id" validate:"notblank"`
	Type           QuestionType `json:"type" validate:"required,oneof=multiple_choice true_false short_answer"`
	Text           string       `json:"text" validate:"notblank"`
	Options        []string     `json:"options,omitempty"`
	CorrectAnswers []string     `json:"correct_answers" validate:"required,min=1,dive,notblank"`
	Points         int          `json:"points" validate:"gte=0"`
}

type Assessment struct {
	ID          string     `json:"id"`
	OrgID       string     `json:"org_id"`
	CourseID    string     `json:"course_id"`
	Title       string     `json:"title"`
	Type        Type       `json:"type"`
	Questions   []Question `json:"questions"`
	PassMark    int        `json:"pass_mark"`
	MaxAttempts *int       `json:"max_attempts,omitempty"` // nil: unlimited
	CreatedAt   time.Time  `json:"created_at"`             // UTC
	UpdatedAt   time.Time  `json:"updated_at"`             // UTC
}

// Definition holds the editable part of an Assessment.
type Definition struct {
	Title       string     `json:"title" validate:"notblank"`
	Type        Type       `json:"type" validate:"required,oneof=quiz exam survey assignment"`
	Questions   []Question `json:"questions" validate:"dive"`
	PassMark    int        `json:"pass_mark" validate:"gte=0,lte=100"`
	MaxAttempts *int       `json:"max_attempts" validate:"omitempty,gte=1"`
}

func (d *Definition) Validate(validate *validator.Validate) error {
	d.clean()
	if err := validate.Struct(d); err != nil {
		return err
	}
	return d.checkQuestions()
}

func (d *Definition) clean() {
	d.Title = core.CleanString(d.Title)
	for i := range d.Questions {
		d.Questions[i].ID = core.CleanString(d.Questions[i].ID)
	}
}

func (d *Definition) checkQuestions() error {
	seen := make(map[string]bool, len(d.Questions))
	for i, q := range d.Questions {
		fld := fmt.Sprintf("questions[%d]", i)
		if seen[q.ID] {
			return core.NewValidationError(nil, core.FieldError{Field: fld + ".id", Error: "duplicate question id"})
		}
		seen[q.ID] = true
		if q.Type != ShortAnswer && len(q.CorrectAnswers) != 1 {
			return core.NewValidationError(nil, core.FieldError{Field: fld + ".correct_answers", Error: "exactly one correct answer is required"})
		}
	}
	return nil
}

type NewAssessment struct {
	OrgID    string `json:"org_id" validate:"idpart"`
	CourseID string `json:"course_id" validate:"idpart"`
	Definition
}

func (na *NewAssessment) Validate(validate *validator.Validate) error {
	na.OrgID = core.CleanString(na.OrgID)
	na.CourseID = core.CleanString(na.CourseID)
	na.clean()
	if err := validate.Struct(na); err != nil {
		return err
	}
	return na.checkQuestions()
}

// AnswerRecord is the graded answer to one question.
type AnswerRecord struct {
	QuestionID   string `json:"question_id"`
	GivenAnswer  string `json:"given_answer"`
	IsCorrect    bool   `json:"is_correct"`
	PointsEarned int    `json:"points_earned"`
}

type Result struct {
	ID           string         `json:"id"`
	AssessmentID string         `json:"assessment_id"`
	EnrollmentID string         `json:"enrollment_id"`
	UserID       string         `json:"user_id"`
	SubmissionID string         `json:"submission_id,omitempty"`
	Attempt      int            `json:"attempt"` // 1-based
	Score        int            `json:"score"`   // percent
	Passed       bool           `json:"passed"`
	Answers      []AnswerRecord `json:"answers"`
	StartedAt    time.Time      `json:"started_at"`   // UTC
	SubmittedAt  time.Time      `json:"submitted_at"` // UTC
}

// Submission is a learner's set of answers to an Assessment.
// SubmissionID is an optional client token: resubmitting with the same token returns
// the Result recorded the first time instead of grading a new attempt.
type Submission struct {
	OrgID        string            `json:"org_id" validate:"idpart"`
	UserID       string            `json:"user_id" validate:"idpart"`
	CourseID     string            `json:"course_id" validate:"idpart"`
	AssessmentID string            `json:"assessment_id" validate:"notblank"`
	Answers      map[string]string `json:"answers"`
	StartedAt    time.Time         `json:"started_at"`
	SubmissionID string            `json:"submission_id" validate:"max=100"`
}

func (sub *Submission) Validate(validate *validator.Validate) error {
	sub.OrgID = core.CleanString(sub.OrgID)
	sub.UserID = core.CleanString(sub.UserID)
	sub.CourseID = core.CleanString(sub.CourseID)
	sub.AssessmentID = core.CleanString(sub.AssessmentID)
	sub.SubmissionID = core.CleanString(sub.SubmissionID)
	return validate.Struct(sub)
}

// Attempts summarises a learner's attempts at an Assessment.
type Attempts struct {
	Used      int  `json:"used"`
	Remaining int  `json:"remaining"`
	Unlimited bool `json:"unlimited"`
	BestScore *int `json:"best_score,omitempty"`
}
