package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/tuutta/core"
	"github.com/trezcool/tuutta/core/assessment"
)

type assessmentRepository struct {
	db *DB
}

var _ assessment.Repository = (*assessmentRepository)(nil) // interface compliance check

func NewAssessmentRepository(db *DB) assessment.Repository {
	return &assessmentRepository{db: db}
}

func copyAssessment(a assessment.Assessment) assessment.Assessment {
	qs := make([]assessment.Question, len(a.Questions))
	for i, q := range a.Questions {
		q.Options = copyStrings(q.Options)
		q.CorrectAnswers = copyStrings(q.CorrectAnswers)
		qs[i] = q
	}
	a.Questions = qs
	if a.MaxAttempts != nil {
		n := *a.MaxAttempts
		a.MaxAttempts = &n
	}
	return a
}

func copyResult(r assessment.Result) assessment.Result {
	r.Answers = append(make([]assessment.AnswerRecord, 0, len(r.Answers)), r.Answers...)
	return r
}

func (repo *assessmentRepository) CreateAssessment(ctx context.Context, a assessment.Assessment) error {
	return repo.db.write(ctx, func() error {
		if _, ok := repo.db.assessments[a.ID]; ok {
			return core.ErrConflict
		}
		repo.db.assessments[a.ID] = copyAssessment(a)
		return nil
	})
}

func (repo *assessmentRepository) GetAssessment(ctx context.Context, id string) (assessment.Assessment, error) {
	var (
		a  assessment.Assessment
		ok bool
	)
	repo.db.read(ctx, func() { a, ok = repo.db.assessments[id] })
	if !ok {
		return assessment.Assessment{}, assessment.ErrNotFound
	}
	return copyAssessment(a), nil
}

func (repo *assessmentRepository) UpdateAssessment(ctx context.Context, a assessment.Assessment) (assessment.Assessment, error) {
	err := repo.db.write(ctx, func() error {
		if _, ok := repo.db.assessments[a.ID]; !ok {
			return assessment.ErrNotFound
		}
		repo.db.assessments[a.ID] = copyAssessment(a)
		return nil
	})
	if err != nil {
		return assessment.Assessment{}, err
	}
	return copyAssessment(a), nil
}

func (repo *assessmentRepository) CountResults(ctx context.Context, userID, assessmentID string) (int, error) {
	var n int
	repo.db.read(ctx, func() {
		for _, r := range repo.db.results {
			if r.UserID == userID && r.AssessmentID == assessmentID {
				n++
			}
		}
	})
	return n, nil
}

func (repo *assessmentRepository) CreateResult(ctx context.Context, res assessment.Result) error {
	return repo.db.write(ctx, func() error {
		for _, r := range repo.db.results {
			if r.UserID != res.UserID || r.AssessmentID != res.AssessmentID {
				continue
			}
			if r.Attempt == res.Attempt || (res.SubmissionID != "" && r.SubmissionID == res.SubmissionID) {
				return core.ErrConflict
			}
		}
		repo.db.results = append(repo.db.results, copyResult(res))
		return nil
	})
}

func (repo *assessmentRepository) QueryResults(ctx context.Context, userID, assessmentID string) ([]assessment.Result, error) {
	var results []assessment.Result
	repo.db.read(ctx, func() {
		for _, r := range repo.db.results {
			if r.UserID == userID && r.AssessmentID == assessmentID {
				results = append(results, copyResult(r))
			}
		}
	})
	sort.Slice(results, func(i, j int) bool { return results[i].Attempt < results[j].Attempt })
	return results, nil
}

func (repo *assessmentRepository) GetResultBySubmission(ctx context.Context, userID, assessmentID, submissionID string) (assessment.Result, error) {
	var (
		res assessment.Result
		ok  bool
	)
	repo.db.read(ctx, func() {
		for _, r := range repo.db.results {
			if r.UserID == userID && r.AssessmentID == assessmentID && r.SubmissionID == submissionID {
				res, ok = copyResult(r), true
				return
			}
		}
	})
	if !ok {
		return assessment.Result{}, assessment.ErrResultNotFound
	}
	return res, nil
}
