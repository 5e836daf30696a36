package assessment

import "github.com/trezcool/tuutta/core"

// Grade is the outcome of GradeAnswers.
type Grade struct {
	Answers    []AnswerRecord
	TotalScore int
	MaxScore   int
}

// ScorePercent returns round(100 * TotalScore / MaxScore); 0 when nothing is scorable.
func (g Grade) ScorePercent() int {
	return core.Percent(g.TotalScore, g.MaxScore)
}

// Passed reports whether the grade reaches passMark. An assessment without
// scorable questions is never passed.
func (g Grade) Passed(passMark int) bool {
	return g.MaxScore > 0 && g.ScorePercent() >= passMark
}

// GradeAnswers grades given (question id -> answer) against questions.
// Missing or unknown answers are incorrect.
func GradeAnswers(questions []Question, given map[string]string) Grade {
	g := Grade{Answers: make([]AnswerRecord, 0, len(questions))}
	for _, q := range questions {
		g.MaxScore += q.Points

		answer := given[q.ID]
		rec := AnswerRecord{QuestionID: q.ID, GivenAnswer: answer}
		if isCorrect(q, answer) {
			rec.IsCorrect = true
			rec.PointsEarned = q.Points
			g.TotalScore += q.Points
		}
		g.Answers = append(g.Answers, rec)
	}
	return g
}

func isCorrect(q Question, answer string) bool {
	answer = normalize(answer)
	if answer == "" || len(q.CorrectAnswers) == 0 {
		return false
	}

	switch q.Type {
	case MultipleChoice, TrueFalse:
		return answer == normalize(q.CorrectAnswers[0])
	case ShortAnswer:
		for _, ca := range q.CorrectAnswers {
			if answer == normalize(ca) {
				return true
			}
		}
	}
	return false
}

func normalize(s string) string {
	return core.CleanString(s, true)
}
