package assessment

import (
	"reflect"
	"testing"
)

func TestGradeAnswers(t *testing.T) {
	questions := []Question{
		{ID: "q1", Type: MultipleChoice, Text: "Pick B", Options: []string{"A", "B"}, CorrectAnswers: []string{"B"}, Points: 10},
		{ID: "q2", Type: TrueFalse, Text: "Go has generics", CorrectAnswers: []string{"true"}, Points: 5},
		{ID: "q3", Type: ShortAnswer, Text: "Capital of the DRC", CorrectAnswers: []string{"Kinshasa", "Leopoldville"}, Points: 5},
	}

	tests := []struct {
		name       string
		questions  []Question
		given      map[string]string
		wantScore  int
		wantTotal  int
		wantMax    int
		wantPassed bool // pass mark 70
	}{
		{name: "all correct, case and spaces ignored", questions: questions, given: map[string]string{"q1": "b", "q2": " TRUE ", "q3": "kinshasa"}, wantScore: 100, wantTotal: 20, wantMax: 20, wantPassed: true},
		{name: "alternative short answer", questions: questions, given: map[string]string{"q1": "B", "q2": "true", "q3": "LEOPOLDVILLE"}, wantScore: 100, wantTotal: 20, wantMax: 20, wantPassed: true},
		{name: "partial", questions: questions, given: map[string]string{"q1": "B", "q2": "false"}, wantScore: 50, wantTotal: 10, wantMax: 20},
		{name: "above pass mark", questions: questions, given: map[string]string{"q1": "B", "q2": "true", "q3": "Lubumbashi"}, wantScore: 75, wantTotal: 15, wantMax: 20, wantPassed: true},
		{name: "unknown question ignored", questions: questions, given: map[string]string{"q9": "B"}, wantScore: 0, wantMax: 20},
		{name: "no answers", questions: questions, wantScore: 0, wantMax: 20},
		{name: "no questions", given: map[string]string{"q1": "B"}, wantScore: 0},
		{name: "zero points", questions: []Question{{ID: "q", Type: TrueFalse, CorrectAnswers: []string{"true"}}}, given: map[string]string{"q": "true"}, wantScore: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := GradeAnswers(tt.questions, tt.given)
			if g.ScorePercent() != tt.wantScore {
				t.Errorf("ScorePercent() = %d, want %d", g.ScorePercent(), tt.wantScore)
			}
			if g.TotalScore != tt.wantTotal || g.MaxScore != tt.wantMax {
				t.Errorf("GradeAnswers() total/max = %d/%d, want %d/%d", g.TotalScore, g.MaxScore, tt.wantTotal, tt.wantMax)
			}
			if g.Passed(70) != tt.wantPassed {
				t.Errorf("Passed(70) = %v, want %v", g.Passed(70), tt.wantPassed)
			}
			if len(g.Answers) != len(tt.questions) {
				t.Errorf("len(Answers) = %d, want %d", len(g.Answers), len(tt.questions))
			}

			// pure: same input, same output
			if again := GradeAnswers(tt.questions, tt.given); !reflect.DeepEqual(g, again) {
				t.Errorf("GradeAnswers() not deterministic: %+v != %+v", g, again)
			}
		})
	}
}

func TestGradeAnswers_records(t *testing.T) {
	questions := []Question{
		{ID: "q1", Type: MultipleChoice, CorrectAnswers: []string{"B"}, Points: 10},
		{ID: "q2", Type: ShortAnswer, CorrectAnswers: []string{"yes"}, Points: 3},
	}
	g := GradeAnswers(questions, map[string]string{"q1": "b", "q2": "no"})

	want := []AnswerRecord{
		{QuestionID: "q1", GivenAnswer: "b", IsCorrect: true, PointsEarned: 10},
		{QuestionID: "q2", GivenAnswer: "no"},
	}
	if !reflect.DeepEqual(g.Answers, want) {
		t.Errorf("GradeAnswers().Answers = %+v, want %+v", g.Answers, want)
	}
}
