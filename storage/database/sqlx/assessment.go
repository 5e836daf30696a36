package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tuutta/core/assessment"
)

const (
	assessmentColumns = `id, org_id, course_id, title, type, questions, pass_mark, max_attempts, created_at, updated_at`
	resultColumns     = `id, assessment_id, enrollment_id, user_id, submission_id, attempt, score, passed, answers,
	started_at, submitted_at`
)

type assessmentRow struct {
	ID          string    `db:"id"`
	OrgID       string    `db:"org_id"`
	CourseID    string    `db:"course_id"`
	Title       string    `db:"title"`
	Type        string    `db:"type"`
	Questions   string    `db:"questions"` // json
	PassMark    int       `db:"pass_mark"`
	MaxAttempts null.Int  `db:"max_attempts"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func toAssessmentRow(a assessment.Assessment) (assessmentRow, error) {
	questions := a.Questions
	if questions == nil {
		questions = []assessment.Question{}
	}
	qs, err := marshalJSON(questions)
	if err != nil {
		return assessmentRow{}, err
	}
	return assessmentRow{
		ID:          a.ID,
		OrgID:       a.OrgID,
		CourseID:    a.CourseID,
		Title:       a.Title,
		Type:        string(a.Type),
		Questions:   qs,
		PassMark:    a.PassMark,
		MaxAttempts: null.IntFromPtr(a.MaxAttempts),
		CreatedAt:   a.CreatedAt.UTC(),
		UpdatedAt:   a.UpdatedAt.UTC(),
	}, nil
}

func (r assessmentRow) toAssessment() (assessment.Assessment, error) {
	a := assessment.Assessment{
		ID:          r.ID,
		OrgID:       r.OrgID,
		CourseID:    r.CourseID,
		Title:       r.Title,
		Type:        assessment.Type(r.Type),
		Questions:   []assessment.Question{},
		PassMark:    r.PassMark,
		MaxAttempts: r.MaxAttempts.Ptr(),
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	if err := unmarshalJSON(r.Questions, &a.Questions); err != nil {
		return assessment.Assessment{}, err
	}
	return a, nil
}

type resultRow struct {
	ID           string      `db:"id"`
	AssessmentID string      `db:"assessment_id"`
	EnrollmentID string      `db:"enrollment_id"`
	UserID       string      `db:"user_id"`
	SubmissionID null.String `db:"submission_id"`
	Attempt      int         `db:"attempt"`
	Score        int         `db:"score"`
	Passed       bool        `db:"passed"`
	Answers      string      `db:"answers"` // json
	StartedAt    time.Time   `db:"started_at"`
	SubmittedAt  time.Time   `db:"submitted_at"`
}

func (r resultRow) toResult() (assessment.Result, error) {
	res := assessment.Result{
		ID:           r.ID,
		AssessmentID: r.AssessmentID,
		EnrollmentID: r.EnrollmentID,
		UserID:       r.UserID,
		SubmissionID: r.SubmissionID.String,
		Attempt:      r.Attempt,
		Score:        r.Score,
		Passed:       r.Passed,
		Answers:      []assessment.AnswerRecord{},
		StartedAt:    r.StartedAt.UTC(),
		SubmittedAt:  r.SubmittedAt.UTC(),
	}
	if err := unmarshalJSON(r.Answers, &res.Answers); err != nil {
		return assessment.Result{}, err
	}
	return res, nil
}

type assessmentRepository struct {
	db *sqlx.DB
}

var _ assessment.Repository = (*assessmentRepository)(nil) // interface compliance check

func NewAssessmentRepository(db *sqlx.DB) assessment.Repository {
	return &assessmentRepository{db: db}
}

func (repo *assessmentRepository) CreateAssessment(ctx context.Context, a assessment.Assessment) error {
	row, err := toAssessmentRow(a)
	if err != nil {
		return err
	}
	ex := executor(ctx, repo.db)
	q := ex.Rebind(`INSERT INTO assessments (` + assessmentColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = ex.ExecContext(ctx, q, row.ID, row.OrgID, row.CourseID, row.Title, row.Type, row.Questions,
		row.PassMark, row.MaxAttempts, row.CreatedAt, row.UpdatedAt)
	return mapError(err)
}

func (repo *assessmentRepository) GetAssessment(ctx context.Context, id string) (assessment.Assessment, error) {
	ex := executor(ctx, repo.db)
	var row assessmentRow
	err := sqlx.GetContext(ctx, ex, &row, ex.Rebind(`SELECT `+assessmentColumns+` FROM assessments WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return assessment.Assessment{}, assessment.ErrNotFound
		}
		return assessment.Assessment{}, errors.Wrap(err, "selecting assessment")
	}
	return row.toAssessment()
}

func (repo *assessmentRepository) UpdateAssessment(ctx context.Context, a assessment.Assessment) (assessment.Assessment, error) {
	row, err := toAssessmentRow(a)
	if err != nil {
		return assessment.Assessment{}, err
	}
	ex := executor(ctx, repo.db)
	q := ex.Rebind(`UPDATE assessments SET title = ?, type = ?, questions = ?, pass_mark = ?, max_attempts = ?,
		updated_at = ? WHERE id = ?`)
	res, err := ex.ExecContext(ctx, q, row.Title, row.Type, row.Questions, row.PassMark, row.MaxAttempts,
		row.UpdatedAt, row.ID)
	if err != nil {
		return assessment.Assessment{}, errors.Wrap(mapError(err), "updating assessment")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return assessment.Assessment{}, assessment.ErrNotFound
	}
	return row.toAssessment()
}

func (repo *assessmentRepository) CountResults(ctx context.Context, userID, assessmentID string) (int, error) {
	ex := executor(ctx, repo.db)
	var n int
	q := ex.Rebind(`SELECT COUNT(*) FROM assessment_results WHERE user_id = ? AND assessment_id = ?`)
	if err := sqlx.GetContext(ctx, ex, &n, q, userID, assessmentID); err != nil {
		return 0, errors.Wrap(err, "counting assessment results")
	}
	return n, nil
}

func (repo *assessmentRepository) CreateResult(ctx context.Context, r assessment.Result) error {
	answers := r.Answers
	if answers == nil {
		answers = []assessment.AnswerRecord{}
	}
	ans, err := marshalJSON(answers)
	if err != nil {
		return err
	}
	ex := executor(ctx, repo.db)
	q := ex.Rebind(`INSERT INTO assessment_results (` + resultColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = ex.ExecContext(ctx, q, r.ID, r.AssessmentID, r.EnrollmentID, r.UserID,
		null.NewString(r.SubmissionID, r.SubmissionID != ""), r.Attempt, r.Score, r.Passed, ans,
		r.StartedAt.UTC(), r.SubmittedAt.UTC())
	return mapError(err)
}

func (repo *assessmentRepository) selectResults(ctx context.Context, where string, args ...interface{}) ([]assessment.Result, error) {
	ex := executor(ctx, repo.db)
	var rows []resultRow
	q := ex.Rebind(`SELECT ` + resultColumns + ` FROM assessment_results WHERE ` + where + ` ORDER BY attempt ASC`)
	if err := sqlx.SelectContext(ctx, ex, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting assessment results")
	}
	results := make([]assessment.Result, 0, len(rows))
	for _, row := range rows {
		res, err := row.toResult()
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (repo *assessmentRepository) QueryResults(ctx context.Context, userID, assessmentID string) ([]assessment.Result, error) {
	return repo.selectResults(ctx, "user_id = ? AND assessment_id = ?", userID, assessmentID)
}

func (repo *assessmentRepository) GetResultBySubmission(ctx context.Context, userID, assessmentID, submissionID string) (assessment.Result, error) {
	results, err := repo.selectResults(ctx, "user_id = ? AND assessment_id = ? AND submission_id = ?", userID, assessmentID, submissionID)
	if err != nil {
		return assessment.Result{}, err
	}
	if len(results) == 0 {
		return assessment.Result{}, assessment.ErrResultNotFound
	}
	return results[0], nil
}
